package video

import (
	"context"
	"image"
	"image/color"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		name      string
		video     float64
		audio     float64
		wantLoops int
	}{
		{"画面短于音频", 4, 6, 1},
		{"画面长于音频", 8, 5, 0},
		{"时长相等", 3, 3, 0},
		{"需要多次循环", 1, 3.5, 3},
		{"画面时长未知", 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Align(tt.video, tt.audio)
			if got.Loops != tt.wantLoops {
				t.Errorf("Loops = %d, 期望 %d", got.Loops, tt.wantLoops)
			}
			if got.Duration != tt.audio {
				t.Errorf("Duration = %v, 输出时长应等于音频时长 %v", got.Duration, tt.audio)
			}
		})
	}
}

func solidFrames(n, w, h int) Frames {
	frames := make(Frames, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		c := color.RGBA{uint8(i * 10), 100, 150, 255}
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = c.R, c.G, c.B, c.A
		}
		frames[i] = img
	}
	return frames
}

// isolatedTemp 让 os.TempDir 指向独立目录，便于检查临时文件是否清理
func isolatedTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	return dir
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("临时文件未清理: %s", e.Name())
	}
}

func TestEncodeFramesCleansUpOnFailure(t *testing.T) {
	tmp := isolatedTemp(t)
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	vp.ffmpeg = filepath.Join(t.TempDir(), "missing-ffmpeg")

	out := filepath.Join(t.TempDir(), "clip.mp4")
	if err := vp.EncodeFrames(context.Background(), solidFrames(3, 16, 16), 24, out); err == nil {
		t.Fatal("ffmpeg 不存在时应返回错误")
	}
	assertEmpty(t, tmp)
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("失败时不应留下输出文件")
	}
}

func TestEncodeFramesRejectsEmpty(t *testing.T) {
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	if err := vp.EncodeFrames(context.Background(), Frames{}, 24, "out.mp4"); err == nil {
		t.Error("空帧序列应返回错误")
	}
	if err := vp.EncodeFrames(context.Background(), solidFrames(1, 4, 4), 0, "out.mp4"); err == nil {
		t.Error("帧率为0应返回错误")
	}
}

func TestComposeSceneMissingAudio(t *testing.T) {
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	out, err := vp.ComposeScene(context.Background(), solidFrames(2, 8, 8), 24, filepath.Join(t.TempDir(), "none.wav"), "scene.mp4")
	if err != nil || out != "" {
		t.Errorf("音频缺失应返回空结果: %q %v", out, err)
	}
	out, err = vp.ComposeScene(context.Background(), solidFrames(2, 8, 8), 24, "", "scene.mp4")
	if err != nil || out != "" {
		t.Errorf("无音频应返回空结果: %q %v", out, err)
	}
}

func TestComposeSceneCleansUpOnFailure(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "line.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	tmp := isolatedTemp(t)
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	vp.ffmpeg = filepath.Join(t.TempDir(), "missing-ffmpeg")

	if _, err := vp.ComposeScene(context.Background(), solidFrames(2, 8, 8), 24, audio, filepath.Join(t.TempDir(), "scene.mp4")); err == nil {
		t.Fatal("编码失败时应返回错误")
	}
	assertEmpty(t, tmp)
}

func TestMergeScenesAllMissing(t *testing.T) {
	tmp := isolatedTemp(t)
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	res, err := vp.MergeScenes(context.Background(), []SceneClip{
		{Order: 1, VideoPath: "/nonexistent/a.mp4"},
	}, filepath.Join(t.TempDir(), "final.mp4"))
	if err != nil || res != nil {
		t.Errorf("没有可用片段应返回 nil, nil: %v %v", res, err)
	}
	assertEmpty(t, tmp)
}

func TestMergeScenesCleansUpOnFailure(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "scene_000.mp4")
	if err := os.WriteFile(clip, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	tmp := isolatedTemp(t)
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	vp.ffmpeg = filepath.Join(t.TempDir(), "missing-ffmpeg")

	_, err := vp.MergeScenes(context.Background(), []SceneClip{{Order: 0, VideoPath: clip}}, filepath.Join(t.TempDir(), "final.mp4"))
	if err == nil {
		t.Fatal("ffmpeg 不存在时应返回错误")
	}
	assertEmpty(t, tmp)
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s 未安装，跳过测试", name)
		}
	}
}

func makeTone(t *testing.T, path string, seconds string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y", "-loglevel", "error", "-f", "lavfi", "-i", "sine=frequency=440:duration="+seconds, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("生成测试音频失败: %v %s", err, out)
	}
}

func TestComposeAndMerge(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	vp := NewVideoProcessor(Options{}, zap.NewNop())
	ctx := context.Background()

	// 1秒画面 + 2.5秒音频，需要循环
	longAudio := filepath.Join(dir, "000_john.wav")
	makeTone(t, longAudio, "2.5")
	scene0, err := vp.ComposeScene(ctx, solidFrames(24, 64, 48), 24, longAudio, filepath.Join(dir, "scene_000.mp4"))
	if err != nil {
		t.Fatalf("合成场景失败: %v", err)
	}
	d, err := Duration(scene0)
	if err != nil {
		t.Fatalf("获取时长失败: %v", err)
	}
	if math.Abs(d-2.5) > 0.2 {
		t.Errorf("场景时长 = %.2f, 期望约 2.5", d)
	}

	// 2秒画面 + 1秒音频，需要截断
	shortAudio := filepath.Join(dir, "001_sarah.wav")
	makeTone(t, shortAudio, "1")
	scene1, err := vp.ComposeScene(ctx, solidFrames(48, 64, 48), 24, shortAudio, filepath.Join(dir, "scene_001.mp4"))
	if err != nil {
		t.Fatalf("合成场景失败: %v", err)
	}
	if d, _ := Duration(scene1); math.Abs(d-1.0) > 0.2 {
		t.Errorf("场景时长 = %.2f, 期望约 1.0", d)
	}

	res, err := vp.MergeScenes(ctx, []SceneClip{
		{Order: 1, VideoPath: scene1},
		{Order: 5, VideoPath: filepath.Join(dir, "gone.mp4")},
		{Order: 0, VideoPath: scene0},
	}, filepath.Join(dir, "final.mp4"))
	if err != nil {
		t.Fatalf("合并失败: %v", err)
	}
	if len(res.Merged) != 2 || res.Merged[0] != 0 || res.Merged[1] != 1 {
		t.Errorf("合并顺序 = %v", res.Merged)
	}
	if len(res.Missing) != 1 || res.Missing[0] != 5 {
		t.Errorf("缺失片段 = %v", res.Missing)
	}
	if d, _ := Duration(res.OutputPath); math.Abs(d-3.5) > 0.4 {
		t.Errorf("合并后时长 = %.2f, 期望约 3.5", d)
	}
}
