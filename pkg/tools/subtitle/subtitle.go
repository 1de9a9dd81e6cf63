/*字幕生成*/
package subtitle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asticode/go-astisub"
	"go.uber.org/zap"
)

// Cue 一条台词及其在成片中的时长
type Cue struct {
	Order    int     `json:"order"`
	Speaker  string  `json:"speaker"`
	Dialogue string  `json:"dialogue"`
	Duration float64 `json:"duration"` // 秒
}

// SubtitleResult 字幕生成结果
type SubtitleResult struct {
	File     string        `json:"file"`
	Format   string        `json:"format"`
	Lines    int           `json:"lines"`
	Duration time.Duration `json:"duration"`
}

// SubtitleGenerator 字幕生成器
type SubtitleGenerator struct {
	logger *zap.Logger
}

// NewSubtitleGenerator 创建字幕生成器
func NewSubtitleGenerator(logger *zap.Logger) *SubtitleGenerator {
	return &SubtitleGenerator{logger: logger}
}

// Build 按片段顺序累加时长生成字幕条目，文本为 "Speaker: dialogue"
func (sg *SubtitleGenerator) Build(cues []Cue) *astisub.Subtitles {
	subs := astisub.NewSubtitles()
	var offset time.Duration
	for _, c := range cues {
		d := time.Duration(c.Duration * float64(time.Second))
		if d <= 0 {
			continue
		}
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: offset,
			EndAt:   offset + d,
			Lines: []astisub.Line{
				{Items: []astisub.LineItem{{Text: Label(c.Speaker, c.Dialogue)}}},
			},
		})
		offset += d
	}
	return subs
}

// Label 字幕文本
func Label(speaker, dialogue string) string {
	if speaker == "" {
		return dialogue
	}
	return strings.ToUpper(speaker[:1]) + speaker[1:] + ": " + dialogue
}

// Generate 生成字幕文件，格式由扩展名决定(.srt/.vtt/.ssa/.ass)
func (sg *SubtitleGenerator) Generate(cues []Cue, outputFile string) (*SubtitleResult, error) {
	subs := sg.Build(cues)
	if len(subs.Items) == 0 {
		sg.logger.Warn("没有可写入的字幕", zap.String("file", outputFile))
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return nil, fmt.Errorf("创建字幕目录失败: %w", err)
	}
	if err := subs.Write(outputFile); err != nil {
		return nil, fmt.Errorf("写入字幕文件失败: %w", err)
	}

	result := &SubtitleResult{
		File:     outputFile,
		Format:   strings.TrimPrefix(filepath.Ext(outputFile), "."),
		Lines:    len(subs.Items),
		Duration: subs.Duration(),
	}
	sg.logger.Info("字幕生成完成",
		zap.String("file", outputFile),
		zap.Int("lines", result.Lines),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// WriteSRT 以 SRT 格式写出
func (sg *SubtitleGenerator) WriteSRT(cues []Cue, w io.Writer) error {
	return sg.Build(cues).WriteToSRT(w)
}
