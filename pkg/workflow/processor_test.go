package workflow

import (
	"context"
	"errors"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/broadcast"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/characters"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/config"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/database"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/session"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const sampleScript = `Hi, I'm John. Let's get to work.
The room went quiet.
Sarah replied: Thanks John!`

// fakeSynth 写入占位音频；tone 为 true 时用 ffmpeg 生成真实的1秒音频
type fakeSynth struct {
	tone bool
}

func (f *fakeSynth) Voices(ctx context.Context) ([]voice.Voice, error) {
	return []voice.Voice{
		{ID: "en-us", Name: "English (America)", Gender: voice.GenderMale},
		{ID: "en-gb", Name: "English female", Gender: voice.GenderFemale},
	}, nil
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voiceID string, profile voice.Profile, outputFile string) error {
	if !f.tone {
		return os.WriteFile(outputFile, []byte("RIFF"), 0644)
	}
	return exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-ar", "22050", outputFile).Run()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.Characters = filepath.Join(root, "characters")
	cfg.Paths.Workspace = filepath.Join(root, "workspace")
	cfg.Paths.Output = filepath.Join(root, "output")
	cfg.Render.Width = 320
	cfg.Render.Height = 180
	cfg.Render.FPS = 8
	cfg.Render.TransitionFrames = 4
	cfg.Render.CharacterWidth = 40
	cfg.Render.CharacterHeight = 60
	return cfg
}

func writePortrait(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	dc := gg.NewContext(80, 120)
	dc.SetColor(color.RGBA{200, 50, 50, 255})
	dc.DrawCircle(40, 60, 35)
	dc.Fill()
	if err := dc.SavePNG(filepath.Join(dir, name+".png")); err != nil {
		t.Fatal(err)
	}
}

func newTestProcessor(t *testing.T, cfg *config.Config, synth tts.Synthesizer, events *broadcast.BroadcastService) *Processor {
	t.Helper()
	logger := zap.NewNop()
	writePortrait(t, cfg.Paths.Characters, "john")
	registry, err := characters.NewRegistry(cfg.Paths.Characters, logger)
	if err != nil {
		t.Fatalf("创建角色目录失败: %v", err)
	}
	sessions := session.NewManager(session.NewMemoryStore(), logger)
	return NewProcessor(cfg, synth, registry, sessions, events, logger)
}

func TestParseAndAnalyze(t *testing.T) {
	cfg := testConfig(t)
	p := newTestProcessor(t, cfg, &fakeSynth{}, nil)

	s, err := p.Sessions().Create("demo")
	if err != nil {
		t.Fatal(err)
	}
	state, err := p.ParseScript(s.ID, sampleScript)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(state.Lines) != 3 {
		t.Fatalf("行数 = %d", len(state.Lines))
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.Workspace, s.ID, "script.txt")); err != nil {
		t.Errorf("剧本未写入工作目录: %v", err)
	}

	analysis, err := p.Analyze(s.ID)
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	want := map[string]characters.AssetStatus{
		"john":     characters.StatusHasAsset,
		"narrator": characters.StatusExempt,
		"sarah":    characters.StatusMissingAsset,
	}
	for _, st := range analysis.Speakers {
		if want[st.Speaker] != st.Status {
			t.Errorf("%s 状态 = %s", st.Speaker, st.Status)
		}
	}
	if !reflect.DeepEqual(analysis.MissingAssets, []string{"sarah"}) {
		t.Errorf("MissingAssets = %v", analysis.MissingAssets)
	}
	if !reflect.DeepEqual(analysis.Unassigned, []string{"john", "sarah"}) {
		t.Errorf("Unassigned = %v", analysis.Unassigned)
	}

	if _, err := p.Analyze("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("不存在的会话应返回 ErrSessionNotFound: %v", err)
	}
}

func TestAnalyzeSeesAssetChanges(t *testing.T) {
	cfg := testConfig(t)
	p := newTestProcessor(t, cfg, &fakeSynth{}, nil)

	s, err := p.Sessions().Create("demo")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.ParseScript(s.ID, sampleScript); err != nil {
		t.Fatal(err)
	}

	statusOf := func(speaker string) characters.AssetStatus {
		t.Helper()
		analysis, err := p.Analyze(s.ID)
		if err != nil {
			t.Fatalf("分析失败: %v", err)
		}
		for _, st := range analysis.Speakers {
			if st.Speaker == speaker {
				return st.Status
			}
		}
		t.Fatalf("没有说话人 %s", speaker)
		return ""
	}

	// 注册表创建之后才加入的图片，没有目录监听
	writePortrait(t, cfg.Paths.Characters, "sarah")
	if got := statusOf("sarah"); got != characters.StatusHasAsset {
		t.Errorf("新增图片后 sarah = %s", got)
	}
	if _, ok := p.Registry().Lookup("sarah"); !ok {
		t.Error("新增图片后 Lookup(sarah) 应命中")
	}

	if err := os.Remove(filepath.Join(cfg.Paths.Characters, "john.png")); err != nil {
		t.Fatal(err)
	}
	if got := statusOf("john"); got != characters.StatusMissingAsset {
		t.Errorf("删除图片后 john = %s", got)
	}
}

func TestAssignVoice(t *testing.T) {
	cfg := testConfig(t)
	p := newTestProcessor(t, cfg, &fakeSynth{}, nil)
	ctx := context.Background()

	s, _ := p.Sessions().Create("voices")
	if _, err := p.ParseScript(s.ID, sampleScript); err != nil {
		t.Fatal(err)
	}

	t.Run("未知声音", func(t *testing.T) {
		if _, err := p.AssignVoice(ctx, s.ID, "john", "xx-yy"); !errors.Is(err, voice.ErrUnknownVoice) {
			t.Errorf("期望 ErrUnknownVoice, 得到 %v", err)
		}
	})

	t.Run("旁白", func(t *testing.T) {
		if _, err := p.AssignVoice(ctx, s.ID, "narrator", "en-us"); !errors.Is(err, voice.ErrNarratorVoice) {
			t.Errorf("期望 ErrNarratorVoice, 得到 %v", err)
		}
	})

	t.Run("大小写归一", func(t *testing.T) {
		state, err := p.AssignVoice(ctx, s.ID, " John ", "en-us")
		if err != nil {
			t.Fatal(err)
		}
		if state.Assignments["john"] != "en-us" {
			t.Errorf("Assignments = %v", state.Assignments)
		}
	})

	t.Run("变更声音作废音频", func(t *testing.T) {
		if _, err := p.GenerateAudio(ctx, s.ID); err != nil {
			t.Fatal(err)
		}
		state, _ := p.Sessions().Get(s.ID)
		if len(state.Audio.Units) == 0 {
			t.Fatal("应已生成音频")
		}

		// 相同声音不作废
		state, _ = p.AssignVoice(ctx, s.ID, "john", "en-us")
		if len(state.Audio.Units) == 0 {
			t.Error("声音未变化时不应作废音频")
		}

		state, _ = p.AssignVoice(ctx, s.ID, "john", "en-gb")
		if len(state.Audio.Units) != 0 {
			t.Error("声音变化后应作废音频")
		}
	})
}

func TestGenerateAudioPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("skip", func(t *testing.T) {
		cfg := testConfig(t)
		p := newTestProcessor(t, cfg, &fakeSynth{}, nil)
		s, _ := p.Sessions().Create("skip")
		p.ParseScript(s.ID, sampleScript)
		p.AssignVoice(ctx, s.ID, "john", "en-us")

		result, err := p.GenerateAudio(ctx, s.ID)
		if err != nil {
			t.Fatalf("生成失败: %v", err)
		}
		if len(result.Units) != 1 || result.Units[0].Speaker != "john" {
			t.Errorf("Units = %+v", result.Units)
		}
		if len(result.Skipped) != 2 {
			t.Errorf("Skipped = %+v", result.Skipped)
		}
		wantAudio := filepath.Join(cfg.Paths.Workspace, s.ID, "audio", "000_john.wav")
		if result.Units[0].AudioPath != wantAudio {
			t.Errorf("音频路径 = %s", result.Units[0].AudioPath)
		}
	})

	t.Run("fail", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Audio.MissingVoicePolicy = config.PolicyFail
		p := newTestProcessor(t, cfg, &fakeSynth{}, nil)
		s, _ := p.Sessions().Create("fail")
		p.ParseScript(s.ID, sampleScript)
		p.AssignVoice(ctx, s.ID, "john", "en-us")

		if _, err := p.GenerateAudio(ctx, s.ID); !errors.Is(err, tts.ErrMissingVoices) {
			t.Fatalf("期望 ErrMissingVoices, 得到 %v", err)
		}
		state, _ := p.Sessions().Get(s.ID)
		if state.Status != database.StatusFailed {
			t.Errorf("会话状态 = %s", state.Status)
		}
	})

	t.Run("narrator_voice", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Audio.NarratorVoice = "en-us"
		p := newTestProcessor(t, cfg, &fakeSynth{}, nil)
		s, _ := p.Sessions().Create("narrator")
		p.ParseScript(s.ID, "The room went quiet.")

		result, err := p.GenerateAudio(ctx, s.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Units) != 1 || result.Units[0].Speaker != "narrator" {
			t.Errorf("旁白应被朗读: %+v", result)
		}
	})

	t.Run("没有剧本", func(t *testing.T) {
		cfg := testConfig(t)
		p := newTestProcessor(t, cfg, &fakeSynth{}, nil)
		s, _ := p.Sessions().Create("empty")
		if _, err := p.GenerateAudio(ctx, s.ID); !errors.Is(err, ErrNoScript) {
			t.Errorf("期望 ErrNoScript, 得到 %v", err)
		}
	})
}

func TestGenerateAudioProgressEvents(t *testing.T) {
	events := broadcast.NewBroadcastService()
	var wg sync.WaitGroup
	wg.Add(1)
	go events.Start(&wg)
	defer func() {
		events.Close()
		wg.Wait()
	}()
	client := events.RegisterClient(nil)

	cfg := testConfig(t)
	p := newTestProcessor(t, cfg, &fakeSynth{}, events)
	ctx := context.Background()
	s, _ := p.Sessions().Create("events")
	p.ParseScript(s.ID, sampleScript)
	p.AssignVoice(ctx, s.ID, "john", "en-us")
	if _, err := p.GenerateAudio(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	var progress int
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-client.Send:
			if e.Step == StepAudio && e.Type == broadcast.TypeProgress {
				progress++
				if e.Total != 3 || e.Session != s.ID {
					t.Errorf("进度事件 = %+v", e)
				}
			}
			if e.Step == StepAudio && e.Type == broadcast.TypeDone {
				if progress != 3 {
					t.Errorf("进度事件数 = %d", progress)
				}
				return
			}
		case <-timeout:
			t.Fatalf("未收到完成事件, progress = %d", progress)
		}
	}
}

func TestGenerateVideoWithoutAudio(t *testing.T) {
	cfg := testConfig(t)
	p := newTestProcessor(t, cfg, &fakeSynth{}, nil)
	s, _ := p.Sessions().Create("noaudio")
	p.ParseScript(s.ID, sampleScript)

	if _, err := p.GenerateVideo(context.Background(), s.ID); !errors.Is(err, ErrNoAudio) {
		t.Errorf("期望 ErrNoAudio, 得到 %v", err)
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"My Story":    "My_Story",
		"../../etc":   "etc",
		"":            "output",
		"scene-01_ok": "scene-01_ok",
		"a/b c":       "a_b_c",
	}
	for in, want := range tests {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, 期望 %q", in, got, want)
		}
	}
}

func requireTools(t *testing.T) {
	t.Helper()
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s 未安装，跳过测试", tool)
		}
	}
}

func TestRenderEndToEnd(t *testing.T) {
	requireTools(t)

	cfg := testConfig(t)
	p := newTestProcessor(t, cfg, &fakeSynth{tone: true}, nil)

	result, err := p.Render(context.Background(), Job{
		Name:        "demo scene",
		Script:      sampleScript,
		Assignments: voice.Assignments{"john": "en-us", "sarah": "en-gb"},
	})
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}

	if result.OutputPath != filepath.Join(cfg.Paths.Output, "demo_scene.mp4") {
		t.Errorf("OutputPath = %s", result.OutputPath)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Errorf("成片不存在: %v", err)
	}
	if _, err := os.Stat(result.SubtitlePath); err != nil {
		t.Errorf("字幕不存在: %v", err)
	}

	if len(result.Scenes) != 2 {
		t.Fatalf("场景数 = %d", len(result.Scenes))
	}
	first, second := result.Scenes[0], result.Scenes[1]
	if first.Order != 0 || first.Camera != "wide" || first.Background != "office" {
		t.Errorf("第一个场景 = %+v", first)
	}
	if second.Order != 2 || second.Camera != "medium" || second.Speaker != "sarah" {
		t.Errorf("第二个场景 = %+v", second)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Speaker != "narrator" {
		t.Errorf("Skipped = %+v", result.Skipped)
	}

	state, err := p.Sessions().Get(result.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Output.VideoPath != result.OutputPath || state.Status != database.StatusCompleted {
		t.Errorf("会话未记录成片: %+v", state.Output)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.Workspace, result.SessionID, "manifest.json")); err != nil {
		t.Errorf("渲染清单不存在: %v", err)
	}
}
