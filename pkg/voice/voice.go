/*声音分配*/
package voice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
)

// Gender 声音性别标签
type Gender string

const (
	GenderFemale Gender = "Female"
	GenderMale   Gender = "Male"
)

var (
	// ErrNarratorVoice 旁白不参与声音分配
	ErrNarratorVoice = errors.New("narrator has no voice assignment")
	// ErrUnknownVoice 声音不在目录中
	ErrUnknownVoice = errors.New("unknown voice id")
)

// Voice 合成引擎提供的声音。ID 是传给引擎的声音名，File 是引擎内部的声音文件标识，
// 两者都可用于分配。
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
	File   string `json:"file,omitempty"`
}

// Label 下拉列表显示文本
func (v Voice) Label() string {
	return fmt.Sprintf("%s (%s)", v.Name, v.Gender)
}

// GenderOf 按名称子串推断性别
func GenderOf(name string) Gender {
	if strings.Contains(strings.ToLower(name), "female") {
		return GenderFemale
	}
	return GenderMale
}

// Catalog 声音目录
type Catalog interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// Assignments 说话人 -> 声音ID。一旦设置就保持不变，直到显式修改。
type Assignments map[string]string

// Assign 为说话人指定声音。known 非空时校验声音ID是否存在。
func (a Assignments) Assign(speaker, voiceID string, known []Voice) error {
	speaker = strings.ToLower(strings.TrimSpace(speaker))
	if speaker == script.Narrator {
		return ErrNarratorVoice
	}
	if speaker == "" {
		return fmt.Errorf("说话人为空")
	}
	if len(known) > 0 && !containsVoice(known, voiceID) {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, voiceID)
	}
	a[speaker] = voiceID
	return nil
}

// Unassign 取消分配
func (a Assignments) Unassign(speaker string) {
	delete(a, strings.ToLower(speaker))
}

// Lookup 查询说话人的声音
func (a Assignments) Lookup(speaker string) (string, bool) {
	id, ok := a[speaker]
	return id, ok
}

// Unassigned 返回没有声音的说话人（不含旁白），按字母排序
func (a Assignments) Unassigned(speakers []string) []string {
	var result []string
	for _, s := range speakers {
		if s == script.Narrator {
			continue
		}
		if _, ok := a[s]; !ok {
			result = append(result, s)
		}
	}
	sort.Strings(result)
	return result
}

// containsVoice 按 ID 或文件标识匹配，不区分大小写
func containsVoice(voices []Voice, id string) bool {
	for _, v := range voices {
		if strings.EqualFold(v.ID, id) || (v.File != "" && strings.EqualFold(v.File, id)) {
			return true
		}
	}
	return false
}

// ParsePairs 解析 speaker=voice 形式的分配列表，每一项也可以用逗号分隔多个
func ParsePairs(pairs []string) (Assignments, error) {
	a := Assignments{}
	for _, item := range pairs {
		for _, pair := range strings.Split(item, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			speaker, id, ok := strings.Cut(pair, "=")
			speaker = strings.ToLower(strings.TrimSpace(speaker))
			id = strings.TrimSpace(id)
			if !ok || speaker == "" || id == "" {
				return nil, fmt.Errorf("声音分配格式错误 %q，应为 speaker=voice", pair)
			}
			a[speaker] = id
		}
	}
	return a, nil
}
