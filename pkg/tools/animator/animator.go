/*角色口型动画*/
package animator

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// 张嘴周期: 每8帧中前4帧张嘴
const (
	mouthCycle    = 8
	mouthOpenSpan = 4
)

// Animation 单个场景的角色动画，只保存张嘴、闭嘴两张图
type Animation struct {
	Closed      image.Image
	Open        image.Image
	Talking     bool
	TotalFrames int
}

// Frame 第 i 帧的角色图像
func (a *Animation) Frame(i int) image.Image {
	if MouthOpen(i, a.Talking) {
		return a.Open
	}
	return a.Closed
}

// MouthOpen 第 frame 帧是否张嘴
func MouthOpen(frame int, talking bool) bool {
	return talking && frame%mouthCycle < mouthOpenSpan
}

// CharacterAnimator 角色动画生成器
type CharacterAnimator struct {
	width  int
	height int
	logger *zap.Logger
}

// NewCharacterAnimator 创建角色动画生成器，width/height 为角色缩放尺寸
func NewCharacterAnimator(width, height int, logger *zap.Logger) *CharacterAnimator {
	return &CharacterAnimator{width: width, height: height, logger: logger}
}

// Animate 加载角色立绘并生成口型动画。立绘不存在时返回 nil, nil。
func (ca *CharacterAnimator) Animate(imagePath, dialogue string, duration float64, fps int) (*Animation, error) {
	portrait, err := ca.Load(imagePath)
	if err != nil {
		return nil, err
	}
	if portrait == nil {
		return nil, nil
	}

	total := int(duration * float64(fps))
	if total < 1 {
		total = 1
	}

	return &Animation{
		Closed:      portrait,
		Open:        drawMouth(portrait),
		Talking:     len(dialogue) > 0,
		TotalFrames: total,
	}, nil
}

// Load 读取并缩放立绘
func (ca *CharacterAnimator) Load(imagePath string) (*image.RGBA, error) {
	if imagePath == "" {
		return nil, nil
	}
	f, err := os.Open(imagePath)
	if errors.Is(err, os.ErrNotExist) {
		ca.logger.Warn("角色立绘不存在", zap.String("path", imagePath))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("打开角色立绘失败: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码角色立绘失败: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, ca.width, ca.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// drawMouth 在 (w/2, 0.7h) 画一个深灰色椭圆嘴巴，不修改原图
func drawMouth(portrait *image.RGBA) *image.RGBA {
	dc := gg.NewContextForRGBA(cloneRGBA(portrait))
	x := float64(portrait.Bounds().Dx() / 2)
	y := float64(int(float64(portrait.Bounds().Dy()) * 0.7))

	dc.DrawEllipse(x, y, 15, 8)
	dc.SetColor(color.RGBA{50, 50, 50, 255})
	dc.FillPreserve()
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.Stroke()

	return dc.Image().(*image.RGBA)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
