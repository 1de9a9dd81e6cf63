/*视频组装*/
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// FrameSource 按序号提供帧
type FrameSource interface {
	Len() int
	Frame(i int) (image.Image, error)
}

// Frames 内存中的帧序列
type Frames []image.Image

func (f Frames) Len() int { return len(f) }

func (f Frames) Frame(i int) (image.Image, error) { return f[i], nil }

// Alignment 画面与音频的对齐方案
type Alignment struct {
	Loops    int     `json:"loops"`    // 画面额外循环次数
	Duration float64 `json:"duration"` // 输出时长，始终等于音频时长
}

// Align 画面短于音频时循环补齐，长于音频时截断，音频本身不变
func Align(videoDuration, audioDuration float64) Alignment {
	a := Alignment{Duration: audioDuration}
	if videoDuration > 0 && videoDuration < audioDuration {
		a.Loops = int(math.Ceil(audioDuration/videoDuration)) - 1
	}
	return a
}

// SceneClip 单个场景的视频片段
type SceneClip struct {
	Order     int    `json:"order"`
	VideoPath string `json:"video_path"`
}

// MergeResult 合并结果
type MergeResult struct {
	OutputPath string `json:"output_path"`
	Merged     []int  `json:"merged"`
	Missing    []int  `json:"missing,omitempty"`
}

// Options 编码参数
type Options struct {
	VideoCodec string
	AudioCodec string
}

// VideoProcessor 视频处理器，负责帧编码、音画合成和场景合并
type VideoProcessor struct {
	opts   Options
	ffmpeg string
	logger *zap.Logger
}

// NewVideoProcessor 创建视频处理器
func NewVideoProcessor(opts Options, logger *zap.Logger) *VideoProcessor {
	if opts.VideoCodec == "" {
		opts.VideoCodec = "libx264"
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = "aac"
	}
	return &VideoProcessor{
		opts:   opts,
		ffmpeg: "ffmpeg",
		logger: logger,
	}
}

// EncodeFrames 把帧序列写成临时 png 再编码为无声视频，临时目录总会被删除
func (vp *VideoProcessor) EncodeFrames(ctx context.Context, frames FrameSource, fps int, outputFile string) error {
	if frames == nil || frames.Len() == 0 {
		return fmt.Errorf("没有可编码的帧")
	}
	if fps <= 0 {
		return fmt.Errorf("帧率无效: %d", fps)
	}

	tmpDir, err := os.MkdirTemp("", "frames-*")
	if err != nil {
		return fmt.Errorf("创建临时帧目录失败: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	for i := 0; i < frames.Len(); i++ {
		img, err := frames.Frame(i)
		if err != nil {
			return fmt.Errorf("获取第%d帧失败: %w", i, err)
		}
		if err := writePNG(&encoder, filepath.Join(tmpDir, fmt.Sprintf("frame_%05d.png", i)), img); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("创建视频目录失败: %w", err)
	}

	stream := ffmpeg.Input(filepath.Join(tmpDir, "frame_%05d.png"), ffmpeg.KwArgs{"framerate": fps}).
		Output(outputFile, ffmpeg.KwArgs{"c:v": vp.opts.VideoCodec, "pix_fmt": "yuv420p"}).
		OverWriteOutput()
	if err := vp.run(ctx, stream); err != nil {
		os.Remove(outputFile)
		return fmt.Errorf("编码帧序列失败: %w", err)
	}

	vp.logger.Debug("帧序列编码完成",
		zap.Int("frames", frames.Len()),
		zap.String("output", outputFile),
	)
	return nil
}

func writePNG(encoder *png.Encoder, path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建帧文件失败: %w", err)
	}
	if err := encoder.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("写入帧文件失败: %w", err)
	}
	return f.Close()
}

// ComposeScene 将帧序列与台词音频合成为场景片段。
// 音频不存在时返回 "", nil；中间产生的无声片段无论成功与否都会删除。
func (vp *VideoProcessor) ComposeScene(ctx context.Context, frames FrameSource, fps int, audioFile, outputFile string) (string, error) {
	if audioFile == "" {
		return "", nil
	}
	if _, err := os.Stat(audioFile); errors.Is(err, os.ErrNotExist) {
		vp.logger.Warn("场景音频不存在，跳过", zap.String("audio", audioFile))
		return "", nil
	}

	tmp, err := os.CreateTemp("", "scene-*.mp4")
	if err != nil {
		return "", fmt.Errorf("创建临时片段失败: %w", err)
	}
	tmpClip := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpClip)

	if err := vp.EncodeFrames(ctx, frames, fps, tmpClip); err != nil {
		return "", err
	}

	audioDuration, err := Duration(audioFile)
	if err != nil {
		return "", fmt.Errorf("获取音频时长失败: %w", err)
	}
	videoDuration, err := Duration(tmpClip)
	if err != nil {
		// 帧数换算的时长足够精确
		videoDuration = float64(frames.Len()) / float64(fps)
	}
	plan := Align(videoDuration, audioDuration)

	video := ffmpeg.Input(tmpClip, ffmpeg.KwArgs{"stream_loop": plan.Loops}).Video()
	audio := ffmpeg.Input(audioFile).Audio()
	stream := ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outputFile, ffmpeg.KwArgs{
		"t":        fmt.Sprintf("%.3f", plan.Duration),
		"c:v":      vp.opts.VideoCodec,
		"c:a":      vp.opts.AudioCodec,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}).OverWriteOutput()

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return "", fmt.Errorf("创建场景目录失败: %w", err)
	}
	if err := vp.run(ctx, stream); err != nil {
		os.Remove(outputFile)
		return "", fmt.Errorf("合成场景失败: %w", err)
	}

	vp.logger.Info("场景合成完成",
		zap.String("output", outputFile),
		zap.Float64("audio_duration", audioDuration),
		zap.Float64("video_duration", videoDuration),
		zap.Int("loops", plan.Loops),
	)
	return outputFile, nil
}

// MergeScenes 按 order 顺序拼接场景片段，缺失的片段跳过并记录在结果中。
// 没有任何可用片段时返回 nil, nil。
func (vp *VideoProcessor) MergeScenes(ctx context.Context, clips []SceneClip, outputFile string) (*MergeResult, error) {
	sorted := make([]SceneClip, len(clips))
	copy(sorted, clips)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	result := &MergeResult{OutputPath: outputFile}
	var list strings.Builder
	for _, c := range sorted {
		if _, err := os.Stat(c.VideoPath); err != nil {
			vp.logger.Warn("场景片段不存在，跳过", zap.Int("order", c.Order), zap.String("path", c.VideoPath))
			result.Missing = append(result.Missing, c.Order)
			continue
		}
		abs, err := filepath.Abs(c.VideoPath)
		if err != nil {
			return nil, fmt.Errorf("解析片段路径失败: %w", err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
		result.Merged = append(result.Merged, c.Order)
	}
	if len(result.Merged) == 0 {
		vp.logger.Warn("没有可合并的场景片段")
		return nil, nil
	}

	listFile, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return nil, fmt.Errorf("创建拼接列表失败: %w", err)
	}
	defer os.Remove(listFile.Name())
	if _, err := listFile.WriteString(list.String()); err != nil {
		listFile.Close()
		return nil, fmt.Errorf("写入拼接列表失败: %w", err)
	}
	listFile.Close()

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	stream := ffmpeg.Input(listFile.Name(), ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputFile, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput()
	if err := vp.run(ctx, stream); err != nil {
		os.Remove(outputFile)
		return nil, fmt.Errorf("合并场景失败: %w", err)
	}

	vp.logger.Info("场景合并完成",
		zap.String("output", outputFile),
		zap.Int("scenes", len(result.Merged)),
		zap.Int("missing", len(result.Missing)),
	)
	return result, nil
}

// run 用 ffmpeg-go 生成参数，在可取消的 exec.Cmd 中执行
func (vp *VideoProcessor) run(ctx context.Context, stream *ffmpeg.Stream) error {
	args := stream.GetArgs()
	vp.logger.Debug("执行 ffmpeg", zap.Strings("args", args))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, vp.ffmpeg, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
