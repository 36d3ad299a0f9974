package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cms-go/internal/cms"
	"cms-go/internal/fs"
)

// UploadOptions are applied to every file of an upload.
type UploadOptions struct {
	Recursive  bool
	UploadedBy string
	Tags       []string
}

// Upload stores the file at path, or every file in the directory at path, as
// media assets. Files that fail are reported together after the rest are
// uploaded.
func (a *CMSApp) Upload(ctx context.Context, path string, opts UploadOptions) ([]cms.Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = fs.FindMediaFiles(path, opts.Recursive); err != nil {
			return nil, err
		}
	}

	var (
		created []cms.Item
		errs    []error
	)
	for _, name := range files {
		item, err := a.uploadFile(ctx, name, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created = append(created, item)
	}
	return created, errors.Join(errs...)
}

// Replace uploads the file at path as the replacement of media asset oldID.
func (a *CMSApp) Replace(ctx context.Context, oldID, path string, opts UploadOptions) (cms.Item, error) {
	file, err := a.loadFile(path, opts)
	if err != nil {
		return nil, err
	}
	return a.storage.ReplaceMedia(ctx, oldID, file)
}

// Download writes the binary of media asset id to w.
func (a *CMSApp) Download(ctx context.Context, id string, w io.Writer) error {
	return a.storage.ReadMediaContent(ctx, id, w)
}

func (a *CMSApp) uploadFile(ctx context.Context, path string, opts UploadOptions) (cms.Item, error) {
	file, err := a.loadFile(path, opts)
	if err != nil {
		return nil, err
	}
	item, err := a.storage.UploadMedia(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return item, nil
}

func (a *CMSApp) loadFile(path string, opts UploadOptions) (*cms.MediaFile, error) {
	file, err := fs.LoadMediaFile(path)
	if err != nil {
		return nil, err
	}
	file.UploadedBy = opts.UploadedBy
	file.Tags = opts.Tags
	return file, nil
}
