package workflow

import (
	"context"
	"fmt"
	goimage "image"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/session"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/animator"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/camera"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/file"
	image "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/image"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/subtitle"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	video "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/video"
	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// RenderResult 成片结果，同时作为 manifest.json 写入会话工作目录
type RenderResult struct {
	SessionID    string            `json:"session_id"`
	OutputPath   string            `json:"output_path"`
	SubtitlePath string            `json:"subtitle_path,omitempty"`
	Duration     float64           `json:"duration"`
	Scenes       []session.Scene   `json:"scenes"`
	Skipped      []tts.SkippedLine `json:"skipped,omitempty"`
	Failed       []tts.SkippedLine `json:"failed,omitempty"`
	Missing      []int             `json:"missing,omitempty"`
}

// OutputName 成片文件名(不含扩展名)
func OutputName(name string) string {
	safe := strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_")
	if safe == "" {
		return "output"
	}
	return safe
}

// GenerateVideo 逐条音频渲染场景片段，再按顺序合并成片并生成字幕。
// 单个场景失败只记录在结果中，不中断其余场景。
func (p *Processor) GenerateVideo(ctx context.Context, id string) (*RenderResult, error) {
	var result *RenderResult

	_, err := p.sessions.Update(id, func(s *session.State) error {
		if len(s.Audio.Units) == 0 {
			return ErrNoAudio
		}

		done := s.BeginStep(StepVideo)
		r, err := p.renderSession(ctx, s)
		if err != nil {
			done(err, "")
			return err
		}

		result = r
		done(nil, fmt.Sprintf("%d scenes, %d failed", len(r.Scenes), len(s.Failed)))
		return nil
	})
	p.finish(id, StepVideo, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Processor) renderSession(ctx context.Context, s *session.State) (*RenderResult, error) {
	ps, err := p.files.CreateProjectStructure(s.ID, s.Script)
	if err != nil {
		return nil, err
	}
	s.ResetVideo()
	p.refreshAssets()

	units := append([]tts.AudioUnit(nil), s.Audio.Units...)
	sort.SliceStable(units, func(i, j int) bool { return units[i].Order < units[j].Order })

	backgrounds := image.NewImageGenerator(p.cfg.Render.Width, p.cfg.Render.Height, ps.BackgroundDir, p.logger)

	// 1. 逐个渲染场景
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.events.SendProgress(s.ID, StepVideo, i+1, len(units),
			fmt.Sprintf("渲染场景 %d (%s)", unit.Order, unit.Speaker))

		scene, err := p.renderScene(ctx, ps, backgrounds, unit, i)
		if err != nil {
			p.logger.Error("场景渲染失败",
				zap.Int("order", unit.Order),
				zap.String("speaker", unit.Speaker),
				zap.Error(err),
			)
			s.Failed = append(s.Failed, tts.SkippedLine{Order: unit.Order, Speaker: unit.Speaker, Reason: err.Error()})
			continue
		}
		if scene == nil {
			s.Failed = append(s.Failed, tts.SkippedLine{Order: unit.Order, Speaker: unit.Speaker, Reason: "音频文件不存在"})
			continue
		}
		s.Scenes = append(s.Scenes, *scene)
	}

	// 2. 合并场景
	clips := make([]video.SceneClip, 0, len(s.Scenes))
	for _, sc := range s.Scenes {
		clips = append(clips, video.SceneClip{Order: sc.Order, VideoPath: sc.VideoPath})
	}
	outputFile := filepath.Join(p.cfg.Paths.Output, OutputName(s.Name)+".mp4")
	merged, err := p.video.MergeScenes(ctx, clips, outputFile)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, ErrNoScenes
	}
	s.Output.VideoPath = merged.OutputPath

	result := &RenderResult{
		SessionID:  s.ID,
		OutputPath: merged.OutputPath,
		Skipped:    s.Audio.Skipped,
		Failed:     append(append([]tts.SkippedLine(nil), s.Audio.Failed...), s.Failed...),
		Missing:    merged.Missing,
	}

	// 3. 字幕，时长与合并后的片段一一对应
	dialogue := make(map[int]string, len(units))
	for _, u := range units {
		dialogue[u.Order] = u.Dialogue
	}
	inMerge := make(map[int]bool, len(merged.Merged))
	for _, o := range merged.Merged {
		inMerge[o] = true
	}
	var cues []subtitle.Cue
	for _, sc := range s.Scenes {
		if !inMerge[sc.Order] {
			continue
		}
		result.Scenes = append(result.Scenes, sc)
		result.Duration += sc.Duration
		cues = append(cues, subtitle.Cue{Order: sc.Order, Speaker: sc.Speaker, Dialogue: dialogue[sc.Order], Duration: sc.Duration})
	}

	if p.cfg.Video.Subtitles {
		subFile := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".srt"
		sub, err := p.subtitles.Generate(cues, subFile)
		if err != nil {
			p.logger.Warn("字幕生成失败", zap.Error(err))
		} else if sub != nil {
			s.Output.SubtitlePath = sub.File
			result.SubtitlePath = sub.File
		}
	}

	// 4. 渲染清单
	if err := p.files.SaveJSON(ps.ManifestFile(), result); err != nil {
		p.logger.Warn("保存渲染清单失败", zap.Error(err))
	}

	p.logger.Info("成片生成完成",
		zap.String("session", s.ID),
		zap.String("output", result.OutputPath),
		zap.Int("scenes", len(result.Scenes)),
		zap.Int("failed", len(result.Failed)),
		zap.Float64("duration", result.Duration),
	)
	return result, nil
}

// renderScene 渲染单个场景。音频不存在时返回 nil, nil。
func (p *Processor) renderScene(ctx context.Context, ps *file.ProjectStructure, backgrounds *image.ImageGenerator,
	unit tts.AudioUnit, index int) (*session.Scene, error) {

	if _, err := os.Stat(unit.AudioPath); err != nil {
		p.logger.Warn("场景音频不存在，跳过", zap.Int("order", unit.Order), zap.String("audio", unit.AudioPath))
		return nil, nil
	}

	bg, err := backgrounds.GenerateSceneBackground(unit.Dialogue)
	if err != nil {
		return nil, err
	}

	fps := p.cfg.Render.FPS
	total := int(math.Ceil(unit.Estimated * float64(fps)))
	if total < 1 {
		total = 1
	}

	// 旁白或没有立绘的角色只显示背景
	var anim *animator.Animation
	if path, ok := p.registry.Lookup(unit.Speaker); ok {
		anim, err = p.animator.Animate(path, unit.Dialogue, unit.Estimated, fps)
		if err != nil {
			return nil, err
		}
	} else if unit.Speaker != script.Narrator {
		p.logger.Warn("角色图片不存在，只显示背景", zap.String("speaker", unit.Speaker))
	}

	position := camera.PositionFor(index)
	var transition []camera.Framing
	if index > 0 {
		transition = camera.Transition(camera.PositionFor(index-1), position, p.cfg.Render.TransitionFrames)
	}

	frames := &sceneFrames{
		camera:     p.camera,
		background: bg.Image,
		animation:  anim,
		overlay:    p.captionOverlay(unit),
		transition: transition,
		framing:    camera.FramingOf(position),
		total:      total,
	}

	out, err := p.video.ComposeScene(ctx, frames, fps, unit.AudioPath, ps.SceneFile(unit.Order))
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	duration, err := video.Duration(out)
	if err != nil {
		duration = unit.Estimated
	}

	return &session.Scene{
		Order:      unit.Order,
		Speaker:    unit.Speaker,
		Camera:     string(position),
		Background: string(bg.Archetype),
		VideoPath:  out,
		Duration:   duration,
	}, nil
}

// captionOverlay 透明底的字幕条，未开启字幕画面时返回 nil
func (p *Processor) captionOverlay(unit tts.AudioUnit) goimage.Image {
	if p.captions == nil {
		return nil
	}
	dc := gg.NewContext(p.cfg.Render.Width, p.cfg.Render.Height)
	p.captions.Draw(dc, unit.Speaker, unit.Dialogue)
	return dc.Image()
}

// sceneFrames 按需生成场景帧，避免整段画面常驻内存。
// 转场结束后镜头参数固定，背景只裁切一次。
type sceneFrames struct {
	camera     *camera.Controller
	background goimage.Image
	animation  *animator.Animation
	overlay    goimage.Image
	transition []camera.Framing
	framing    camera.Framing
	total      int

	cached *goimage.RGBA
}

func (f *sceneFrames) Len() int { return f.total }

func (f *sceneFrames) Frame(i int) (goimage.Image, error) {
	var bg *goimage.RGBA
	framing := f.framing
	if i < len(f.transition) {
		framing = f.transition[i]
		bg = f.camera.Background(f.background, framing)
	} else {
		if f.cached == nil {
			f.cached = f.camera.Background(f.background, framing)
		}
		bg = f.cached
	}

	var character goimage.Image
	if f.animation != nil {
		character = f.animation.Frame(i)
	}
	frame := f.camera.Composite(bg, character, framing)
	if f.overlay != nil {
		draw.Draw(frame, frame.Bounds(), f.overlay, goimage.Point{}, draw.Over)
	}
	return frame, nil
}
