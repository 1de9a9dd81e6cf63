package voice

import (
	"math"
	"strings"
)

// Profile 语速(词/分钟)、音量(0-1)、音高偏移
type Profile struct {
	Rate   int     `json:"rate" mapstructure:"rate"`
	Volume float64 `json:"volume" mapstructure:"volume"`
	Pitch  int     `json:"pitch" mapstructure:"pitch"`
}

// DefaultProfile 未知角色使用的默认参数
var DefaultProfile = Profile{Rate: 150, Volume: 0.9, Pitch: 0}

// KnownProfiles 内置角色参数
var KnownProfiles = map[string]Profile{
	"john":  {Rate: 160, Volume: 0.9, Pitch: 0},
	"sarah": {Rate: 150, Volume: 0.8, Pitch: 50},
	"mike":  {Rate: 140, Volume: 1.0, Pitch: -20},
	"emma":  {Rate: 155, Volume: 0.85, Pitch: 30},
}

// Profiles 角色参数表，可由配置覆盖
type Profiles struct {
	known    map[string]Profile
	fallback Profile
}

// NewProfiles 合并内置参数和配置覆盖项
func NewProfiles(overrides map[string]Profile, fallback *Profile) *Profiles {
	p := &Profiles{
		known:    make(map[string]Profile, len(KnownProfiles)+len(overrides)),
		fallback: DefaultProfile,
	}
	for name, prof := range KnownProfiles {
		p.known[name] = prof
	}
	for name, prof := range overrides {
		p.known[strings.ToLower(name)] = prof
	}
	if fallback != nil && fallback.Rate > 0 {
		p.fallback = *fallback
	}
	return p
}

// For 返回角色参数，未知角色返回默认值
func (p *Profiles) For(speaker string) Profile {
	if prof, ok := p.known[strings.ToLower(speaker)]; ok {
		return prof
	}
	return p.fallback
}

// EstimateDuration 估算朗读时长(秒)，最少1秒
func EstimateDuration(text string, profile Profile) float64 {
	rate := profile.Rate
	if rate <= 0 {
		rate = DefaultProfile.Rate
	}
	wordsPerMinute := float64(rate) * 0.8
	words := len(strings.Fields(text))
	return math.Max(float64(words)/wordsPerMinute*60, 1.0)
}
