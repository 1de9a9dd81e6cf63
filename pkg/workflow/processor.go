package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/broadcast"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/characters"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/config"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/session"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/animator"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/camera"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/file"
	image "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/image"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/subtitle"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	video "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/video"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"go.uber.org/zap"
)

// 步骤名，同时用作广播事件的 step
const (
	StepParse  = "parse"
	StepVoice  = "voice"
	StepAudio  = "audio"
	StepVideo  = "video"
	StepRender = "render"
)

var (
	// ErrNoScript 会话还没有剧本
	ErrNoScript = errors.New("session has no script")
	// ErrNoAudio 会话还没有生成音频
	ErrNoAudio = errors.New("session has no generated audio")
	// ErrNoScenes 所有场景都失败，没有可合并的片段
	ErrNoScenes = errors.New("no scene clip rendered")
)

// Analysis 剧本分析结果: 说话人素材状态和声音分配情况
type Analysis struct {
	SessionID     string                     `json:"session_id"`
	Lines         []script.Line              `json:"lines"`
	Speakers      []characters.SpeakerStatus `json:"speakers"`
	MissingAssets []string                   `json:"missing_assets,omitempty"`
	Unassigned    []string                   `json:"unassigned,omitempty"`
	Assignments   voice.Assignments          `json:"assignments"`
}

// Processor 对白视频工作流。每个操作都作用在一个显式的会话上，
// 同一会话内的操作由 session.Manager 串行化。
type Processor struct {
	cfg       *config.Config
	tts       *tts.TTSProcessor
	registry  *characters.Registry
	sessions  *session.Manager
	events    *broadcast.BroadcastService
	files     *file.FileManager
	video     *video.VideoProcessor
	subtitles *subtitle.SubtitleGenerator
	animator  *animator.CharacterAnimator
	camera    *camera.Controller
	captions  *image.CaptionDrawer
	logger    *zap.Logger
}

// NewProcessor 创建工作流处理器。events 可以为 nil。
func NewProcessor(cfg *config.Config, synth tts.Synthesizer, registry *characters.Registry,
	sessions *session.Manager, events *broadcast.BroadcastService, logger *zap.Logger) *Processor {

	profiles := voice.NewProfiles(cfg.Voices.Profiles, &cfg.Voices.Default)

	p := &Processor{
		cfg:      cfg,
		tts:      tts.NewTTSProcessor(synth, profiles, logger),
		registry: registry,
		sessions: sessions,
		events:   events,
		files:    file.NewFileManager(cfg.Paths.Workspace),
		video: video.NewVideoProcessor(video.Options{
			VideoCodec: cfg.Video.VideoCodec,
			AudioCodec: cfg.Video.AudioCodec,
		}, logger),
		subtitles: subtitle.NewSubtitleGenerator(logger),
		animator:  animator.NewCharacterAnimator(cfg.Render.CharacterWidth, cfg.Render.CharacterHeight, logger),
		camera:    camera.NewController(cfg.Render.Width, cfg.Render.Height),
		logger:    logger,
	}
	if cfg.Image.Captions {
		p.captions = image.NewCaptionDrawer(cfg.Image.FontPath, cfg.Image.FontSize, logger)
	}
	return p
}

// Sessions 会话管理器
func (p *Processor) Sessions() *session.Manager {
	return p.sessions
}

// Registry 角色目录
func (p *Processor) Registry() *characters.Registry {
	return p.registry
}

// ParseScript 解析剧本并写入会话，之前生成的音频和视频全部作废
func (p *Processor) ParseScript(id, text string) (*session.State, error) {
	lines := script.Parse(text)

	state, err := p.sessions.Update(id, func(s *session.State) error {
		done := s.BeginStep(StepParse)
		if _, err := p.files.CreateProjectStructure(s.ID, text); err != nil {
			done(err, "")
			return err
		}
		s.SetScript(text, lines)
		done(nil, fmt.Sprintf("%d lines, %d speakers", len(lines), len(s.Speakers())))
		return nil
	})
	p.finish(id, StepParse, err)
	if err != nil {
		return nil, err
	}

	p.logger.Info("剧本解析完成",
		zap.String("session", id),
		zap.Int("lines", len(lines)),
		zap.Strings("speakers", state.Speakers()),
	)
	return state, nil
}

// Analyze 检查每个说话人的角色图片和声音分配
func (p *Processor) Analyze(id string) (*Analysis, error) {
	state, err := p.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	p.refreshAssets()

	speakers := state.Speakers()
	statuses := p.registry.Classify(speakers)
	return &Analysis{
		SessionID:     state.ID,
		Lines:         state.Lines,
		Speakers:      statuses,
		MissingAssets: characters.Missing(statuses),
		Unassigned:    state.Assignments.Unassigned(speakers),
		Assignments:   state.Assignments,
	}, nil
}

// Voices 列出合成引擎提供的声音
func (p *Processor) Voices(ctx context.Context) ([]voice.Voice, error) {
	return p.tts.Voices(ctx)
}

// AssignVoice 为说话人指定声音。声音目录可用时校验ID，声音变化时作废已生成的音频。
func (p *Processor) AssignVoice(ctx context.Context, id, speaker, voiceID string) (*session.State, error) {
	known, err := p.tts.Voices(ctx)
	if err != nil {
		p.logger.Warn("获取声音列表失败，跳过校验", zap.Error(err))
		known = nil
	}

	key := strings.ToLower(strings.TrimSpace(speaker))
	state, err := p.sessions.Update(id, func(s *session.State) error {
		prev, had := s.Assignments.Lookup(key)
		if err := s.Assignments.Assign(key, voiceID, known); err != nil {
			return err
		}
		if had && prev != voiceID && len(s.Audio.Units) > 0 {
			p.logger.Info("声音已变更，已生成的音频作废", zap.String("speaker", key))
			s.ResetAudio()
		}
		return nil
	})
	if err != nil {
		p.finish(id, StepVoice, err)
		return nil, err
	}

	p.logger.Info("声音已分配",
		zap.String("session", id),
		zap.String("speaker", key),
		zap.String("voice", voiceID),
	)
	return state, nil
}

// GenerateAudio 为会话中的每一行台词合成音频
func (p *Processor) GenerateAudio(ctx context.Context, id string) (*tts.AudioResult, error) {
	var result *tts.AudioResult

	_, err := p.sessions.Update(id, func(s *session.State) error {
		if len(s.Lines) == 0 {
			return ErrNoScript
		}

		done := s.BeginStep(StepAudio)
		ps, err := p.files.CreateProjectStructure(s.ID, s.Script)
		if err != nil {
			done(err, "")
			return err
		}
		s.ResetAudio()

		opts := tts.AudioOptions{
			OutputDir:     ps.AudioDir,
			FailOnMissing: p.cfg.Audio.MissingVoicePolicy == config.PolicyFail,
			NarratorVoice: p.cfg.Audio.NarratorVoice,
			Progress: func(current, total int, line script.Line) {
				p.events.SendProgress(s.ID, StepAudio, current, total,
					fmt.Sprintf("合成第 %d 行 (%s)", line.Position, line.Speaker))
			},
		}

		r, err := p.tts.GenerateScriptAudio(ctx, s.Lines, s.Assignments, opts)
		if r != nil {
			s.Audio = *r
		}
		if err != nil {
			done(err, "")
			return fmt.Errorf("生成音频失败: %w", err)
		}

		result = r
		done(nil, fmt.Sprintf("%d generated, %d skipped, %d failed", len(r.Units), len(r.Skipped), len(r.Failed)))
		return nil
	})
	p.finish(id, StepAudio, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// refreshAssets 重新扫描角色目录。没有目录监听时，分类和渲染也能看到最新的图片。
func (p *Processor) refreshAssets() {
	if _, err := p.registry.Rescan(); err != nil {
		p.logger.Warn("重新扫描角色目录失败，使用上次结果", zap.Error(err))
	}
}

// finish 广播步骤结束事件
func (p *Processor) finish(id, step string, err error) {
	if err != nil {
		p.events.Publish(broadcast.Event{Session: id, Step: step, Type: broadcast.TypeError, Message: err.Error()})
		return
	}
	p.events.Publish(broadcast.Event{Session: id, Step: step, Type: broadcast.TypeDone, Message: step + " 完成"})
}
