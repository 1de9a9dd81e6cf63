/*背景生成*/
package image

import (
	"fmt"
	"hash/fnv"
	goimage "image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

// Archetype 背景类型
type Archetype string

const (
	ArchetypeOffice  Archetype = "office"
	ArchetypeOutdoor Archetype = "outdoor"
	ArchetypeNeutral Archetype = "neutral"
)

// ArchetypeFor 根据台词关键词选择背景类型
func ArchetypeFor(dialogue string) Archetype {
	lower := strings.ToLower(dialogue)
	switch {
	case strings.Contains(lower, "office") || strings.Contains(lower, "work"):
		return ArchetypeOffice
	case strings.Contains(lower, "park") || strings.Contains(lower, "outside"):
		return ArchetypeOutdoor
	default:
		return ArchetypeNeutral
	}
}

// FileName 背景文件名，哈希只用于命名，不影响画面内容
func FileName(dialogue string) string {
	h := fnv.New32a()
	h.Write([]byte(dialogue))
	return fmt.Sprintf("bg_%d.png", h.Sum32()%10000)
}

// Background 生成的背景
type Background struct {
	Archetype Archetype     `json:"archetype"`
	ImageFile string        `json:"image_file"`
	Image     goimage.Image `json:"-"`
}

// ImageGenerator 背景生成器
type ImageGenerator struct {
	width     int
	height    int
	outputDir string
	logger    *zap.Logger
}

// NewImageGenerator 创建背景生成器
func NewImageGenerator(width, height int, outputDir string, logger *zap.Logger) *ImageGenerator {
	return &ImageGenerator{
		width:     width,
		height:    height,
		outputDir: outputDir,
		logger:    logger,
	}
}

// GenerateSceneBackground 根据台词生成背景并保存为 png
func (ig *ImageGenerator) GenerateSceneBackground(dialogue string) (*Background, error) {
	archetype := ArchetypeFor(dialogue)
	img := ig.Render(archetype)

	if err := os.MkdirAll(ig.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建背景目录失败: %w", err)
	}
	imageFile := filepath.Join(ig.outputDir, FileName(dialogue))
	if err := gg.SavePNG(imageFile, img); err != nil {
		return nil, fmt.Errorf("保存背景失败: %w", err)
	}

	ig.logger.Debug("背景已生成",
		zap.String("archetype", string(archetype)),
		zap.String("file", imageFile),
	)

	return &Background{
		Archetype: archetype,
		ImageFile: imageFile,
		Image:     img,
	}, nil
}

// Render 绘制指定类型的背景，相同参数输出完全相同
func (ig *ImageGenerator) Render(archetype Archetype) goimage.Image {
	dc := gg.NewContext(ig.width, ig.height)
	switch archetype {
	case ArchetypeOffice:
		drawOffice(dc)
	case ArchetypeOutdoor:
		drawOutdoor(dc)
	default:
		drawNeutral(dc)
	}
	return dc.Image()
}

func drawOffice(dc *gg.Context) {
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetColor(color.RGBA{240, 240, 245, 255})
	dc.Clear()

	// 地板
	dc.SetColor(color.RGBA{139, 69, 19, 255})
	dc.DrawRectangle(0, h-200, w, 200)
	dc.Fill()

	// 桌子
	dc.SetColor(color.RGBA{200, 200, 200, 255})
	dc.DrawRectangle(w-300, 100, 250, h-300)
	dc.Fill()
}

func drawOutdoor(dc *gg.Context) {
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetColor(color.RGBA{135, 206, 235, 255})
	dc.Clear()

	// 草地
	dc.SetColor(color.RGBA{34, 139, 34, 255})
	dc.DrawRectangle(0, h-300, w, 300)
	dc.Fill()

	// 树
	dc.SetColor(color.RGBA{0, 100, 0, 255})
	for x := 100.0; x < w; x += 400 {
		dc.DrawEllipse(x+50, h-350, 50, 50)
		dc.Fill()
	}
}

func drawNeutral(dc *gg.Context) {
	w, h := dc.Width(), dc.Height()

	// 纵向渐变 250 -> 200，蓝色略高
	for y := 0; y < h; y++ {
		c := 250 - int(float64(y)/float64(h)*50)
		b := c + 10
		if b > 255 {
			b = 255
		}
		dc.SetColor(color.RGBA{uint8(c), uint8(c), uint8(b), 255})
		dc.DrawRectangle(0, float64(y), float64(w), 1)
		dc.Fill()
	}
}
