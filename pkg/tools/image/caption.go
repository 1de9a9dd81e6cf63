package image

import (
	"fmt"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"
)

// CaptionDrawer 在画面底部绘制说话人和台词
type CaptionDrawer struct {
	face   font.Face
	size   float64
	logger *zap.Logger
}

// NewCaptionDrawer 加载 TrueType 字体，fontPath 为空或加载失败时使用 gg 默认字体
func NewCaptionDrawer(fontPath string, size float64, logger *zap.Logger) *CaptionDrawer {
	cd := &CaptionDrawer{size: size, logger: logger}
	if fontPath == "" {
		return cd
	}

	face, err := loadFace(fontPath, size)
	if err != nil {
		logger.Warn("加载字体失败，使用默认字体", zap.String("font", fontPath), zap.Error(err))
		return cd
	}
	cd.face = face
	return cd
}

func loadFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, err
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体失败: %w", err)
	}
	return truetype.NewFace(parsed, &truetype.Options{Size: size}), nil
}

// Draw 绘制字幕条
func (cd *CaptionDrawer) Draw(dc *gg.Context, speaker, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if cd.face != nil {
		dc.SetFontFace(cd.face)
	}

	w, h := float64(dc.Width()), float64(dc.Height())
	margin := w * 0.05
	barHeight := h * 0.16

	dc.SetRGBA(0, 0, 0, 0.55)
	dc.DrawRectangle(0, h-barHeight, w, barHeight)
	dc.Fill()

	label := text
	if speaker != "" {
		label = fmt.Sprintf("%s: %s", strings.ToUpper(speaker[:1])+speaker[1:], text)
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(label, margin, h-barHeight/2, 0, 0.5, w-2*margin, 1.3, gg.AlignLeft)
}
