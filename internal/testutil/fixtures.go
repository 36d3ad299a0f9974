package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"cms-go/internal/cms"
)

// Job returns a job listing record.
func Job(title, category string, status cms.Status) cms.Item {
	return cms.Item{
		"title":       title,
		"category":    category,
		"location":    "Remote",
		"description": title + " role",
		"status":      string(status),
		"createdBy":   "tester",
	}
}

// BlogPost returns a blog post record.
func BlogPost(title, content string) cms.Item {
	return cms.Item{
		"title":   title,
		"content": content,
		"tags":    []any{"news"},
		"status":  string(cms.StatusPublished),
	}
}

// Testimonial returns a testimonial pointing at clientImage.
func Testimonial(clientName, clientImage string) cms.Item {
	return cms.Item{
		"clientName":  clientName,
		"clientImage": clientImage,
		"reviewText":  "Great work",
		"rating":      5,
	}
}

// PNG encodes a w x h image.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// ImageUpload returns a PNG upload request.
func ImageUpload(t *testing.T, name string) *cms.MediaFile {
	t.Helper()

	return &cms.MediaFile{
		Name:       name,
		MimeType:   "image/png",
		Data:       PNG(t, 320, 160),
		UploadedBy: "tester",
		Tags:       []string{"test"},
	}
}
