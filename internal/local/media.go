package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cms-go/internal/cms"
)

const (
	// DefaultMaxUploadBytes is the upload limit applied to operator uploads.
	DefaultMaxUploadBytes int64 = 5 * 1024 * 1024
	// MaxUploadCeiling is the hard limit no configuration can exceed.
	MaxUploadCeiling int64 = 10 * 1024 * 1024
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/svg+xml":   true,
	"application/pdf": true,
	"video/mp4":       true,
}

// MediaKey is the vault key of an asset's binary.
func MediaKey(filename string) string { return "media/" + filename }

// ThumbnailKey is the vault key of an asset's thumbnail.
func ThumbnailKey(filename string) string { return "thumbnails/" + filename + ".jpg" }

// UploadMedia validates file, stores its binary (and a thumbnail for
// images) in the vault and records the asset in the media collection.
// Thumbnail failures only omit the thumbnail.
func (s *Store) UploadMedia(ctx context.Context, file *cms.MediaFile) (cms.Item, error) {
	if err := s.validateUpload(file); err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	filename := s.filename(file.Name)
	key := MediaKey(filename)
	if err := s.vault.Put(ctx, key, bytes.NewReader(file.Data), file.Size(), file.MimeType); err != nil {
		return nil, fmt.Errorf("storing %s: %w", file.Name, err)
	}

	var thumbURL string
	if strings.HasPrefix(file.MimeType, "image/") {
		thumbURL = s.storeThumbnail(ctx, filename, file)
	}

	tags := file.Tags
	if tags == nil {
		tags = []string{}
	}
	now := s.clock.Now()
	record := cms.Item{
		"filename":      filename,
		"originalName":  file.Name,
		"mimeType":      file.MimeType,
		"size":          file.Size(),
		"url":           s.vault.URL(key),
		"tags":          tags,
		"uploadedAt":    cms.FormatTime(now),
		"uploadedBy":    file.UploadedBy,
		cms.FieldStatus: string(cms.StatusPublished),
	}
	if file.UploadedBy != "" {
		record[cms.FieldCreatedBy] = file.UploadedBy
	}
	if thumbURL != "" {
		record["thumbnail"] = thumbURL
	}

	created, err := s.Create(ctx, cms.CollectionMedia, record)
	if err != nil {
		s.removeBlobs(ctx, filename, thumbURL != "")
		return nil, err
	}

	s.logger.Info("media uploaded", "id", created.ID(), "filename", filename, "size", file.Size())
	return created, nil
}

// DeleteMedia removes an asset nothing references.
func (s *Store) DeleteMedia(ctx context.Context, id string) (bool, error) {
	if err := cms.ValidateName("media id", id); err != nil {
		return false, fmt.Errorf("delete media: %w", err)
	}

	refs, err := s.finder.FindReferences(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete media %s: %w", id, err)
	}
	if len(refs) > 0 {
		return false, fmt.Errorf("delete media %s: referenced by %d field(s), first %s/%s.%s: %w",
			id, len(refs), refs[0].Collection, refs[0].ItemID, refs[0].Field, cms.ErrReferenced)
	}
	return s.deleteMedia(ctx, id)
}

// ReplaceMedia uploads file as a new asset, repoints every reference from
// oldID to it, then deletes the old asset.
func (s *Store) ReplaceMedia(ctx context.Context, oldID string, file *cms.MediaFile) (cms.Item, error) {
	old, err := s.Read(ctx, cms.CollectionMedia, oldID)
	if err != nil {
		return nil, fmt.Errorf("replace media: %w", err)
	}
	if old == nil {
		return nil, fmt.Errorf("replace media %s: %w", oldID, cms.ErrNotFound)
	}

	created, err := s.UploadMedia(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("replace media %s: %w", oldID, err)
	}

	if err := s.finder.UpdateReferences(ctx, oldID, created.ID()); err != nil {
		return created, fmt.Errorf("replace media %s: repointing references to %s: %w", oldID, created.ID(), err)
	}

	// References were moved above, so the reference check is skipped.
	if _, err := s.deleteMedia(ctx, oldID); err != nil {
		return created, fmt.Errorf("replace media %s: deleting old asset: %w", oldID, err)
	}

	s.logger.Info("media replaced", "old", oldID, "new", created.ID())
	return created, nil
}

// ReadMediaContent writes the binary of a media asset to w.
func (s *Store) ReadMediaContent(ctx context.Context, id string, w io.Writer) error {
	asset, err := s.Read(ctx, cms.CollectionMedia, id)
	if err != nil {
		return fmt.Errorf("read media: %w", err)
	}
	if asset == nil {
		return fmt.Errorf("read media %s: %w", id, cms.ErrNotFound)
	}
	if err := s.vault.Get(ctx, MediaKey(asset.String("filename")), w); err != nil {
		return fmt.Errorf("read media %s: %w", id, err)
	}
	return nil
}

func (s *Store) deleteMedia(ctx context.Context, id string) (bool, error) {
	asset, err := s.Read(ctx, cms.CollectionMedia, id)
	if err != nil {
		return false, err
	}
	if asset == nil {
		return false, nil
	}

	deleted, err := s.Delete(ctx, cms.CollectionMedia, id)
	if err != nil || !deleted {
		return deleted, err
	}
	s.removeBlobs(ctx, asset.String("filename"), asset.String("thumbnail") != "")
	return true, nil
}

// removeBlobs deletes stored binaries. Failures leave orphaned blobs, which
// are logged but not returned.
func (s *Store) removeBlobs(ctx context.Context, filename string, thumb bool) {
	if filename == "" {
		return
	}
	if err := s.vault.Delete(ctx, MediaKey(filename)); err != nil {
		s.logger.Warn("failed to delete media binary", "filename", filename, "error", err)
	}
	if thumb {
		if err := s.vault.Delete(ctx, ThumbnailKey(filename)); err != nil {
			s.logger.Warn("failed to delete thumbnail", "filename", filename, "error", err)
		}
	}
}

func (s *Store) storeThumbnail(ctx context.Context, filename string, file *cms.MediaFile) string {
	thumb, err := s.thumbnails(file.Data, file.MimeType)
	if err != nil {
		s.logger.Debug("thumbnail skipped", "filename", filename, "error", err)
		return ""
	}
	key := ThumbnailKey(filename)
	if err := s.vault.Put(ctx, key, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		s.logger.Warn("failed to store thumbnail", "filename", filename, "error", err)
		return ""
	}
	return s.vault.URL(key)
}

func (s *Store) validateUpload(file *cms.MediaFile) error {
	if file == nil || len(file.Data) == 0 {
		return fmt.Errorf("file is empty: %w", cms.ErrValidation)
	}
	if file.Size() > s.maxUpload {
		return fmt.Errorf("file %q is %d bytes, maximum is %d: %w", file.Name, file.Size(), s.maxUpload, cms.ErrValidation)
	}
	if !allowedMimeTypes[file.MimeType] {
		return fmt.Errorf("file %q has unsupported type %q: %w", file.Name, file.MimeType, cms.ErrValidation)
	}
	return nil
}

// filename returns a collision-free storage name keeping the original extension.
func (s *Store) filename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	clean := strings.Map(func(r rune) rune {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, ext)
	if clean == "." {
		clean = ""
	}
	return s.ids.New() + clean
}
