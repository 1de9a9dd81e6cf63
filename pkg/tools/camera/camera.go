/*镜头控制*/
package camera

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Position 镜头机位名称
type Position string

const (
	Wide   Position = "wide"
	Medium Position = "medium"
	Close  Position = "close"
	Left   Position = "left"
	Right  Position = "right"
)

// DefaultTransitionFrames 默认转场帧数
const DefaultTransitionFrames = 12

// 角色距画面右边缘、下边缘的距离
const (
	characterMarginRight  = 100
	characterMarginBottom = 50
)

// Framing 镜头参数: 水平偏移、垂直偏移、缩放
type Framing struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Sequence 场景机位轮换顺序
var Sequence = []Position{Wide, Medium, Close, Left, Right}

var framings = map[Position]Framing{
	Wide:   {X: 0, Y: 0, Zoom: 1.0},
	Medium: {X: 0, Y: -100, Zoom: 1.5},
	Close:  {X: 0, Y: -200, Zoom: 2.0},
	Left:   {X: -200, Y: -100, Zoom: 1.5},
	Right:  {X: 200, Y: -100, Zoom: 1.5},
}

// FramingOf 机位参数，未知机位按 wide 处理
func FramingOf(p Position) Framing {
	if f, ok := framings[p]; ok {
		return f
	}
	return framings[Wide]
}

// PositionFor 第 sceneIndex 个场景的机位
func PositionFor(sceneIndex int) Position {
	n := len(Sequence)
	return Sequence[((sceneIndex%n)+n)%n]
}

// Transition 两个机位之间的线性插值，首帧为起点，末帧为终点
func Transition(from, to Position, frames int) []Framing {
	start, end := FramingOf(from), FramingOf(to)
	if frames <= 1 {
		return []Framing{end}
	}

	result := make([]Framing, frames)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(frames-1)
		result[i] = Framing{
			X:    start.X + (end.X-start.X)*t,
			Y:    start.Y + (end.Y-start.Y)*t,
			Zoom: start.Zoom + (end.Zoom-start.Zoom)*t,
		}
	}
	return result
}

// Controller 按镜头参数裁切背景并叠加角色
type Controller struct {
	width  int
	height int
}

// NewController 创建镜头控制器
func NewController(width, height int) *Controller {
	return &Controller{width: width, height: height}
}

// Size 输出画面尺寸
func (c *Controller) Size() (int, int) {
	return c.width, c.height
}

// Background 按缩放和偏移裁切背景，输出固定尺寸画面。缩放为1时不裁切。
func (c *Controller) Background(bg image.Image, f Framing) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	if f.Zoom <= 0 || f.Zoom == 1.0 {
		draw.CatmullRom.Scale(dst, dst.Bounds(), bg, bg.Bounds(), draw.Src, nil)
		return dst
	}

	// 先在放大后的坐标系里计算裁切窗口，再换算回原图坐标
	scaledW := int(float64(c.width) * f.Zoom)
	scaledH := int(float64(c.height) * f.Zoom)
	cropX := clamp((scaledW-c.width)/2+int(math.Round(f.X)), 0, scaledW-c.width)
	cropY := clamp((scaledH-c.height)/2+int(math.Round(f.Y)), 0, scaledH-c.height)

	b := bg.Bounds()
	sx := float64(b.Dx()) / float64(scaledW)
	sy := float64(b.Dy()) / float64(scaledH)
	src := image.Rect(
		b.Min.X+int(math.Round(float64(cropX)*sx)),
		b.Min.Y+int(math.Round(float64(cropY)*sy)),
		b.Min.X+int(math.Round(float64(cropX+c.width)*sx)),
		b.Min.Y+int(math.Round(float64(cropY+c.height)*sy)),
	)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), bg, src, draw.Src, nil)
	return dst
}

// CharacterAnchor 角色左上角坐标，锚定在右下角并随镜头偏移
func (c *Controller) CharacterAnchor(charW, charH int, f Framing) image.Point {
	return image.Point{
		X: c.width - charW - characterMarginRight + int(math.Round(f.X)),
		Y: c.height - charH - characterMarginBottom + int(math.Round(f.Y)),
	}
}

// Composite 把角色按透明度叠加到已裁切的背景上，返回新画面
func (c *Controller) Composite(background *image.RGBA, character image.Image, f Framing) *image.RGBA {
	frame := image.NewRGBA(background.Bounds())
	copy(frame.Pix, background.Pix)
	if character == nil {
		return frame
	}

	cb := character.Bounds()
	at := c.CharacterAnchor(cb.Dx(), cb.Dy(), f)
	target := image.Rectangle{Min: at, Max: at.Add(cb.Size())}
	draw.Draw(frame, target, character, cb.Min, draw.Over)
	return frame
}

// Frame 一步完成背景裁切与角色叠加
func (c *Controller) Frame(bg image.Image, character image.Image, f Framing) *image.RGBA {
	return c.Composite(c.Background(bg, f), character, f)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
