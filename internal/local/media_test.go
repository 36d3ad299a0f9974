package local_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"cms-go/internal/cms"
	"cms-go/internal/local"
	"cms-go/internal/testutil"
)

func TestStore_UploadMedia(t *testing.T) {
	ctx := context.Background()
	s, v := testutil.NewTestLocalStore(t, local.Options{})

	upload := testutil.ImageUpload(t, "Team Photo.PNG")
	asset, err := s.UploadMedia(ctx, upload)
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}

	filename := asset.String("filename")
	if !strings.HasSuffix(filename, ".png") {
		t.Errorf("filename = %q, want a .png suffix", filename)
	}
	if asset.String("originalName") != "Team Photo.PNG" {
		t.Errorf("originalName = %q", asset.String("originalName"))
	}
	if asset.String("mimeType") != "image/png" || asset.Status() != cms.StatusPublished {
		t.Errorf("asset = %v", asset)
	}
	if asset.String("url") != v.URL(local.MediaKey(filename)) {
		t.Errorf("url = %q", asset.String("url"))
	}
	if asset.String("thumbnail") != v.URL(local.ThumbnailKey(filename)) {
		t.Errorf("thumbnail = %q", asset.String("thumbnail"))
	}
	if asset.String(cms.FieldCreatedBy) != "tester" {
		t.Errorf("createdBy = %q, want tester", asset.String(cms.FieldCreatedBy))
	}

	keys := v.Keys()
	for _, want := range []string{local.MediaKey(filename), local.ThumbnailKey(filename)} {
		if !slices.Contains(keys, want) {
			t.Errorf("vault keys %v missing %s", keys, want)
		}
	}
	if ct := v.ContentType(local.ThumbnailKey(filename)); ct != "image/jpeg" {
		t.Errorf("thumbnail content type = %q", ct)
	}

	var content bytes.Buffer
	if err := s.ReadMediaContent(ctx, asset.ID(), &content); err != nil {
		t.Fatalf("ReadMediaContent() error = %v", err)
	}
	if !bytes.Equal(content.Bytes(), upload.Data) {
		t.Error("ReadMediaContent() differs from the upload")
	}
	if err := s.ReadMediaContent(ctx, "missing", &content); !errors.Is(err, cms.ErrNotFound) {
		t.Errorf("ReadMediaContent(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_UploadMediaWithoutThumbnail(t *testing.T) {
	ctx := context.Background()

	t.Run("non-image", func(t *testing.T) {
		s, v := testutil.NewTestLocalStore(t, local.Options{})
		asset, err := s.UploadMedia(ctx, &cms.MediaFile{Name: "cv.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")})
		if err != nil {
			t.Fatalf("UploadMedia() error = %v", err)
		}
		if _, ok := asset["thumbnail"]; ok {
			t.Error("pdf upload has a thumbnail")
		}
		if len(v.Keys()) != 1 {
			t.Errorf("vault keys = %v, want only the binary", v.Keys())
		}
	})

	t.Run("thumbnail failure is not fatal", func(t *testing.T) {
		failing := func([]byte, string) ([]byte, error) { return nil, errors.New("decoder broke") }
		s, _ := testutil.NewTestLocalStore(t, local.Options{Thumbnailer: failing})
		asset, err := s.UploadMedia(ctx, testutil.ImageUpload(t, "a.png"))
		if err != nil {
			t.Fatalf("UploadMedia() error = %v", err)
		}
		if _, ok := asset["thumbnail"]; ok {
			t.Error("asset has a thumbnail although generation failed")
		}
	})
}

func TestStore_UploadMediaValidation(t *testing.T) {
	ctx := context.Background()
	s, v := testutil.NewTestLocalStore(t, local.Options{MaxUploadBytes: 1024})

	tests := []struct {
		name string
		file *cms.MediaFile
	}{
		{name: "nil file", file: nil},
		{name: "empty data", file: &cms.MediaFile{Name: "a.png", MimeType: "image/png"}},
		{name: "too large", file: &cms.MediaFile{Name: "a.png", MimeType: "image/png", Data: make([]byte, 2048)}},
		{name: "disallowed type", file: &cms.MediaFile{Name: "a.exe", MimeType: "application/x-msdownload", Data: []byte("MZ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.UploadMedia(ctx, tt.file); !errors.Is(err, cms.ErrValidation) {
				t.Errorf("UploadMedia() error = %v, want ErrValidation", err)
			}
		})
	}

	if len(v.Keys()) != 0 {
		t.Errorf("vault keys after rejected uploads = %v", v.Keys())
	}
	items, _ := s.List(ctx, cms.CollectionMedia, nil)
	if len(items) != 0 {
		t.Errorf("media records after rejected uploads = %d", len(items))
	}
}

func TestStore_DeleteMedia(t *testing.T) {
	ctx := context.Background()
	s, v := testutil.NewTestLocalStore(t, local.Options{})

	asset, err := s.UploadMedia(ctx, testutil.ImageUpload(t, "client.png"))
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}
	review := testutil.MustCreate(t, s, cms.CollectionTestimonials, testutil.Testimonial("Ada", asset.ID()))

	_, err = s.DeleteMedia(ctx, asset.ID())
	if !errors.Is(err, cms.ErrReferenced) {
		t.Fatalf("DeleteMedia(referenced) error = %v, want ErrReferenced", err)
	}
	if got, _ := s.Read(ctx, cms.CollectionMedia, asset.ID()); got == nil {
		t.Fatal("referenced asset was deleted")
	}

	if _, err := s.Delete(ctx, cms.CollectionTestimonials, review.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	deleted, err := s.DeleteMedia(ctx, asset.ID())
	if err != nil || !deleted {
		t.Fatalf("DeleteMedia() = %v, %v; want true, nil", deleted, err)
	}
	if len(v.Keys()) != 0 {
		t.Errorf("vault keys after delete = %v", v.Keys())
	}

	deleted, err = s.DeleteMedia(ctx, asset.ID())
	if err != nil || deleted {
		t.Errorf("DeleteMedia(again) = %v, %v; want false, nil", deleted, err)
	}
}

func TestStore_ReplaceMedia(t *testing.T) {
	ctx := context.Background()
	s, v := testutil.NewTestLocalStore(t, local.Options{})

	old, err := s.UploadMedia(ctx, testutil.ImageUpload(t, "old.png"))
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}
	review := testutil.MustCreate(t, s, cms.CollectionTestimonials, testutil.Testimonial("Ada", old.ID()))
	post := testutil.MustCreate(t, s, cms.CollectionBlog, cms.Item{
		"title":   "Launch",
		"content": "See ![shot](" + old.ID() + ") here",
		"images":  []any{old.ID(), "other"},
	})

	replacement, err := s.ReplaceMedia(ctx, old.ID(), testutil.ImageUpload(t, "new.png"))
	if err != nil {
		t.Fatalf("ReplaceMedia() error = %v", err)
	}

	gotReview, _ := s.Read(ctx, cms.CollectionTestimonials, review.ID())
	if gotReview.String("clientImage") != replacement.ID() {
		t.Errorf("clientImage = %q, want %q", gotReview.String("clientImage"), replacement.ID())
	}
	gotPost, _ := s.Read(ctx, cms.CollectionBlog, post.ID())
	if !strings.Contains(gotPost.String("content"), replacement.ID()) || strings.Contains(gotPost.String("content"), "("+old.ID()+")") {
		t.Errorf("content = %q, want the new id", gotPost.String("content"))
	}
	if gotOld, _ := s.Read(ctx, cms.CollectionMedia, old.ID()); gotOld != nil {
		t.Error("old asset still exists")
	}
	if slices.Contains(v.Keys(), local.MediaKey(old.String("filename"))) {
		t.Error("old binary still in the vault")
	}

	if _, err := s.ReplaceMedia(ctx, "missing", testutil.ImageUpload(t, "x.png")); !errors.Is(err, cms.ErrNotFound) {
		t.Errorf("ReplaceMedia(missing) error = %v, want ErrNotFound", err)
	}
}
