// Package thumbnail renders small JPEG previews of uploaded images.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

const (
	// MaxWidth and MaxHeight bound the thumbnail; aspect ratio is preserved.
	MaxWidth  = 200
	MaxHeight = 200
	// Quality is the JPEG quality of generated thumbnails.
	Quality = 70
	// MaxPixels bounds the decoded size of a source image.
	MaxPixels = 40_000_000
)

// ErrUnsupportedFormat is returned for MIME types that can not be decoded.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrTooLarge is returned for images whose declared dimensions exceed MaxPixels.
var ErrTooLarge = errors.New("image dimensions too large")

var decodable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Generate decodes data and returns a JPEG that fits inside MaxWidth x
// MaxHeight. Images already small enough are re-encoded without scaling.
// Images larger than MaxPixels are rejected with ErrTooLarge.
func Generate(data []byte, mimeType string) ([]byte, error) {
	if !decodable[mimeType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}

	// The header is checked before decoding: a small file can declare
	// dimensions whose pixel buffer would not fit in memory.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	w, h := Fit(src.Bounds().Dx(), src.Bounds().Dy(), MaxWidth, MaxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit scales (w, h) down to fit inside (maxW, maxH), preserving aspect ratio.
// It never scales up and never returns a zero dimension.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxW && h <= maxH {
		return w, h
	}

	if w*maxH > h*maxW {
		// Width is the limiting side.
		nh := h * maxW / w
		return maxW, max(nh, 1)
	}
	nw := w * maxH / h
	return max(nw, 1), maxH
}
