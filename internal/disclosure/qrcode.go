package disclosure

import (
	"encoding/base64"
	"fmt"
	"image/color"

	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 400

var (
	qrForeground = color.RGBA{R: 0x1a, G: 0x36, B: 0x5d, A: 0xff}
	qrBackground = color.White
)

// PNGRenderer renders QR codes as base64 PNG data URLs
type PNGRenderer struct {
	size int
}

// NewPNGRenderer creates a renderer producing size x size images
func NewPNGRenderer(size int) *PNGRenderer {
	if size <= 0 {
		size = defaultQRSize
	}
	return &PNGRenderer{size: size}
}

// DataURL encodes content as a "data:image/png;base64,..." URL
func (r *PNGRenderer) DataURL(content string) (string, error) {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	code.ForegroundColor = qrForeground
	code.BackgroundColor = qrBackground

	png, err := code.PNG(r.size)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
