package ticket

import (
	"encoding/base64"
	"fmt"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

// ImageSize is the edge length of rendered QR codes in pixels.
const ImageSize = 400

var (
	darkModule  = color.RGBA{R: 0x0a, G: 0x0a, B: 0x0a, A: 0xff}
	lightModule = color.White
)

// RenderPNG renders payload text as a QR code PNG.
func RenderPNG(payload string) ([]byte, error) {
	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("build qr code: %w", err)
	}
	q.ForegroundColor = darkModule
	q.BackgroundColor = lightModule
	png, err := q.PNG(ImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}
	return png, nil
}

// DataURL wraps PNG bytes in a data: URL for direct use in an <img> tag.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
