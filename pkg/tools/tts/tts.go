/*语音生成*/
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"go.uber.org/zap"
)

// ErrMissingVoices fail 策略下存在未分配声音的说话人
var ErrMissingVoices = errors.New("speakers without voice assignment")

// Synthesizer 语音合成接口
type Synthesizer interface {
	voice.Catalog
	Synthesize(ctx context.Context, text, voiceID string, profile voice.Profile, outputFile string) error
}

// AudioUnit 一条已合成的台词
type AudioUnit struct {
	Order     int     `json:"order"`
	Speaker   string  `json:"speaker"`
	Dialogue  string  `json:"dialogue"`
	AudioPath string  `json:"audio_path"`
	VoiceID   string  `json:"voice_id"`
	Estimated float64 `json:"estimated_seconds"`
}

// SkippedLine 未生成音频的台词及原因
type SkippedLine struct {
	Order   int    `json:"order"`
	Speaker string `json:"speaker"`
	Reason  string `json:"reason"`
}

// AudioResult 整个剧本的音频生成结果
type AudioResult struct {
	Units   []AudioUnit   `json:"units"`
	Skipped []SkippedLine `json:"skipped,omitempty"`
	Failed  []SkippedLine `json:"failed,omitempty"`
}

// AudioOptions 生成参数
type AudioOptions struct {
	OutputDir string
	// FailOnMissing 为 true 时，存在未分配声音的非旁白说话人则直接返回错误
	FailOnMissing bool
	// NarratorVoice 非空时旁白也会被朗读
	NarratorVoice string
	// Progress 开始处理每一行前回调，current 从1开始
	Progress func(current, total int, line script.Line)
}

// TTSProcessor 文本转语音处理器
type TTSProcessor struct {
	synth    Synthesizer
	profiles *voice.Profiles
	logger   *zap.Logger
}

// NewTTSProcessor 创建TTS处理器
func NewTTSProcessor(synth Synthesizer, profiles *voice.Profiles, logger *zap.Logger) *TTSProcessor {
	if profiles == nil {
		profiles = voice.NewProfiles(nil, nil)
	}
	return &TTSProcessor{
		synth:    synth,
		profiles: profiles,
		logger:   logger,
	}
}

// Voices 列出可用声音
func (tp *TTSProcessor) Voices(ctx context.Context) ([]voice.Voice, error) {
	return tp.synth.Voices(ctx)
}

// AudioFileName 音频文件名: 三位行号_说话人.wav
func AudioFileName(order int, speaker string) string {
	return fmt.Sprintf("%03d_%s.wav", order, speaker)
}

// GenerateScriptAudio 逐行合成剧本音频。单行失败只记录并跳过，不会中断整批。
func (tp *TTSProcessor) GenerateScriptAudio(ctx context.Context, lines []script.Line, assignments voice.Assignments, opts AudioOptions) (*AudioResult, error) {
	if opts.FailOnMissing {
		if missing := assignments.Unassigned(script.Speakers(lines)); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingVoices, strings.Join(missing, ", "))
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建音频目录失败: %w", err)
	}

	result := &AudioResult{}
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(lines), line)
		}

		voiceID, ok := tp.voiceFor(line, assignments, opts)
		if !ok {
			reason := "未分配声音"
			if line.IsNarrator() {
				reason = "旁白未配置声音"
			}
			tp.logger.Warn("跳过台词",
				zap.Int("order", line.Position),
				zap.String("speaker", line.Speaker),
				zap.String("reason", reason),
			)
			result.Skipped = append(result.Skipped, SkippedLine{Order: line.Position, Speaker: line.Speaker, Reason: reason})
			continue
		}

		profile := tp.profiles.For(line.Speaker)
		outputFile := filepath.Join(opts.OutputDir, AudioFileName(line.Position, line.Speaker))

		if err := tp.synth.Synthesize(ctx, line.Dialogue, voiceID, profile, outputFile); err != nil {
			tp.logger.Error("语音合成失败",
				zap.Int("order", line.Position),
				zap.String("speaker", line.Speaker),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, SkippedLine{Order: line.Position, Speaker: line.Speaker, Reason: err.Error()})
			continue
		}

		result.Units = append(result.Units, AudioUnit{
			Order:     line.Position,
			Speaker:   line.Speaker,
			Dialogue:  line.Dialogue,
			AudioPath: outputFile,
			VoiceID:   voiceID,
			Estimated: voice.EstimateDuration(line.Dialogue, profile),
		})
	}

	tp.logger.Info("音频生成完成",
		zap.Int("generated", len(result.Units)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (tp *TTSProcessor) voiceFor(line script.Line, assignments voice.Assignments, opts AudioOptions) (string, bool) {
	if line.IsNarrator() {
		return opts.NarratorVoice, opts.NarratorVoice != ""
	}
	return assignments.Lookup(line.Speaker)
}
