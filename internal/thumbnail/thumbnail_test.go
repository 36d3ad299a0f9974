package thumbnail

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// withDimensions rewrites the IHDR chunk of a PNG so it declares w x h
// without carrying the pixel data for it.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	// signature(8) length(4) "IHDR"(4) data(13) crc(4)
	if len(data) < 33 || string(data[12:16]) != "IHDR" {
		t.Fatal("not a png with a leading IHDR chunk")
	}
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "already small", w: 100, h: 50, wantW: 100, wantH: 50},
		{name: "exact bound", w: 200, h: 200, wantW: 200, wantH: 200},
		{name: "wide", w: 800, h: 400, wantW: 200, wantH: 100},
		{name: "tall", w: 300, h: 900, wantW: 66, wantH: 200},
		{name: "very thin", w: 5000, h: 2, wantW: 200, wantH: 1},
		{name: "degenerate", w: 0, h: 10, wantW: 1, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotW, gotH := Fit(tt.w, tt.h, MaxWidth, MaxHeight)
			if gotW != tt.wantW || gotH != tt.wantH {
				t.Errorf("Fit(%d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Run("scales large png into a jpeg within bounds", func(t *testing.T) {
		thumb, err := Generate(encodePNG(t, 640, 320), "image/png")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		img, err := jpeg.Decode(bytes.NewReader(thumb))
		if err != nil {
			t.Fatalf("thumbnail is not a jpeg: %v", err)
		}
		if got := img.Bounds().Dx(); got != 200 {
			t.Errorf("width = %d, want 200", got)
		}
		if got := img.Bounds().Dy(); got != 100 {
			t.Errorf("height = %d, want 100", got)
		}
	})

	t.Run("rejects non-image types", func(t *testing.T) {
		_, err := Generate([]byte("%PDF-1.4"), "application/pdf")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Generate() error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("rejects huge declared dimensions before decoding", func(t *testing.T) {
		huge := withDimensions(t, encodePNG(t, 1, 1), 16000, 16000)
		_, err := Generate(huge, "image/png")
		if !errors.Is(err, ErrTooLarge) {
			t.Errorf("Generate() error = %v, want ErrTooLarge", err)
		}
	})

	t.Run("accepts ordinary images", func(t *testing.T) {
		if _, err := Generate(encodePNG(t, 400, 300), "image/png"); err != nil {
			t.Errorf("Generate() error = %v", err)
		}
	})

	t.Run("fails on corrupt data", func(t *testing.T) {
		if _, err := Generate([]byte("not an image"), "image/png"); err == nil {
			t.Error("Generate() expected error for corrupt data")
		}
	})
}
