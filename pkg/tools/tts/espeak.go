package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"go.uber.org/zap"
)

// EngineError 合成引擎错误
type EngineError struct {
	Op     string
	Detail string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("espeak %s: %v: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("espeak %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// EspeakEngine 调用 espeak-ng 命令行合成语音
type EspeakEngine struct {
	binary string
	logger *zap.Logger
}

// NewEspeakEngine 创建引擎。binary 为空时依次尝试 espeak-ng 和 espeak。
func NewEspeakEngine(binary string, logger *zap.Logger) (*EspeakEngine, error) {
	candidates := []string{binary}
	if binary == "" {
		candidates = []string{"espeak-ng", "espeak"}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return &EspeakEngine{binary: path, logger: logger}, nil
		}
	}
	return nil, &EngineError{Op: "lookup", Err: exec.ErrNotFound, Detail: strings.Join(candidates, ",")}
}

// Voices 列出已安装的声音
func (e *EspeakEngine) Voices(ctx context.Context) ([]voice.Voice, error) {
	out, err := exec.CommandContext(ctx, e.binary, "--voices").Output()
	if err != nil {
		return nil, &EngineError{Op: "voices", Err: err}
	}
	return ParseVoiceList(out), nil
}

// Synthesize 合成单条台词到 wav 文件
func (e *EspeakEngine) Synthesize(ctx context.Context, text, voiceID string, profile voice.Profile, outputFile string) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("创建音频目录失败: %w", err)
	}

	args := EspeakArgs(voiceID, profile, outputFile)
	args = append(args, "--", text)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outputFile)
		return &EngineError{Op: "synthesize", Err: err, Detail: strings.TrimSpace(stderr.String())}
	}

	if info, err := os.Stat(outputFile); err != nil || info.Size() == 0 {
		return &EngineError{Op: "synthesize", Err: fmt.Errorf("输出文件不存在或为空: %s", outputFile)}
	}

	e.logger.Debug("语音合成完成",
		zap.String("voice", voiceID),
		zap.String("file", outputFile),
	)
	return nil
}

// EspeakArgs 构造命令行参数。音量 0-1 映射到 -a 0-200，音高偏移映射到 -p 0-99。
func EspeakArgs(voiceID string, profile voice.Profile, outputFile string) []string {
	rate := profile.Rate
	if rate <= 0 {
		rate = voice.DefaultProfile.Rate
	}
	amplitude := int(math.Round(profile.Volume * 100))
	if amplitude < 0 {
		amplitude = 0
	}
	if amplitude > 200 {
		amplitude = 200
	}
	pitch := 50 + profile.Pitch/2
	if pitch < 0 {
		pitch = 0
	}
	if pitch > 99 {
		pitch = 99
	}

	return []string{
		"-v", voiceID,
		"-s", strconv.Itoa(rate),
		"-a", strconv.Itoa(amplitude),
		"-p", strconv.Itoa(pitch),
		"-w", outputFile,
	}
}

// ParseVoiceList 解析 `espeak-ng --voices` 输出:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
//
// ID 取 Language 列(-v 直接接受)。同一语言的后续声音用 File 列作 ID，保证唯一。
func ParseVoiceList(out []byte) []voice.Voice {
	var voices []voice.Voice
	seenFiles := make(map[string]bool)
	ids := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}

		lang, file := fields[1], fields[4]
		if seenFiles[file] {
			continue
		}
		seenFiles[file] = true

		id := lang
		if ids[id] {
			id = file
		}
		ids[id] = true

		name := strings.ReplaceAll(fields[3], "_", " ")
		voices = append(voices, voice.Voice{
			ID:     id,
			Name:   name,
			Gender: voice.GenderOf(name),
			File:   file,
		})
	}
	return voices
}
