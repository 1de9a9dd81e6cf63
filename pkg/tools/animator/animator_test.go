package animator

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

func writePortrait(t *testing.T, dir, name string) string {
	t.Helper()
	dc := gg.NewContext(200, 300)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	path := filepath.Join(dir, name)
	if err := gg.SavePNG(path, dc.Image()); err != nil {
		t.Fatalf("写入测试立绘失败: %v", err)
	}
	return path
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestMouthOpen(t *testing.T) {
	for i := 0; i < 16; i++ {
		want := i%8 < 4
		if got := MouthOpen(i, true); got != want {
			t.Errorf("MouthOpen(%d) = %v", i, got)
		}
		if MouthOpen(i, false) {
			t.Errorf("无台词时第%d帧不应张嘴", i)
		}
	}
}

func TestAnimate(t *testing.T) {
	dir := t.TempDir()
	path := writePortrait(t, dir, "john.png")
	ca := NewCharacterAnimator(400, 600, zap.NewNop())

	anim, err := ca.Animate(path, "Hello there", 2.0, 24)
	if err != nil {
		t.Fatalf("生成动画失败: %v", err)
	}
	if anim == nil {
		t.Fatal("立绘存在时不应返回 nil")
	}
	if anim.TotalFrames != 48 {
		t.Errorf("TotalFrames = %d", anim.TotalFrames)
	}
	if b := anim.Closed.Bounds(); b.Dx() != 400 || b.Dy() != 600 {
		t.Errorf("立绘应缩放到 400x600: %v", b)
	}

	if got := rgbaAt(anim.Frame(0), 200, 420); got != (color.RGBA{50, 50, 50, 255}) {
		t.Errorf("第0帧嘴巴颜色 = %v", got)
	}
	if got := rgbaAt(anim.Frame(4), 200, 420); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("第4帧应闭嘴: %v", got)
	}
	if got := rgbaAt(anim.Closed, 200, 420); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("画嘴巴不应修改原图: %v", got)
	}
}

func TestAnimateSilent(t *testing.T) {
	dir := t.TempDir()
	path := writePortrait(t, dir, "emma.png")
	ca := NewCharacterAnimator(400, 600, zap.NewNop())

	anim, err := ca.Animate(path, "", 1.0, 24)
	if err != nil {
		t.Fatalf("生成动画失败: %v", err)
	}
	for i := 0; i < anim.TotalFrames; i++ {
		if anim.Frame(i) != anim.Closed {
			t.Fatalf("无台词时第%d帧不应张嘴", i)
		}
	}
}

func TestAnimateJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mike.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	anim, err := NewCharacterAnimator(400, 600, zap.NewNop()).Animate(path, "hi", 1.0, 24)
	if err != nil || anim == nil {
		t.Fatalf("jpeg 立绘加载失败: %v", err)
	}
}

func TestAnimateMissing(t *testing.T) {
	ca := NewCharacterAnimator(400, 600, zap.NewNop())

	anim, err := ca.Animate(filepath.Join(t.TempDir(), "nobody.png"), "hi", 1.0, 24)
	if err != nil || anim != nil {
		t.Errorf("立绘缺失应返回 nil, nil: %v %v", anim, err)
	}

	anim, err = ca.Animate("", "hi", 1.0, 24)
	if err != nil || anim != nil {
		t.Errorf("空路径应返回 nil, nil: %v %v", anim, err)
	}
}

func TestAnimateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCharacterAnimator(400, 600, zap.NewNop()).Animate(path, "hi", 1.0, 24); err == nil {
		t.Error("损坏的立绘应返回错误")
	}
}
