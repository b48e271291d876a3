// Package qrimage turns QR content strings into PNG images.
package qrimage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("qrimage: empty content")

// Renderer encodes content at a fixed pixel size. It holds no state beyond its settings.
type Renderer struct {
	size  int
	level qr.ErrorCorrectionLevel
}

// NewRenderer returns a renderer producing size x size PNGs with medium error correction.
func NewRenderer(size int) *Renderer {
	return &Renderer{size: size, level: qr.M}
}

// PNG renders content as a PNG image.
func (r *Renderer) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	code, err := qr.Encode(content, r.level, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, r.size, r.size)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes for inline use in JSON responses.
func DataURL(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}
