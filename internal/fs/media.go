// Package fs loads upload files from the local disk.
package fs

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cms-go/internal/cms"
)

// sniffLen is how much content http.DetectContentType inspects.
const sniffLen = 512

// LoadMediaFile reads a regular file into an upload request. The MIME type
// comes from the extension, falling back to content sniffing.
func LoadMediaFile(name string) (*cms.MediaFile, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file: %w", abs, cms.ErrInvalidArgument)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	return &cms.MediaFile{
		Name:     filepath.Base(abs),
		MimeType: DetectMimeType(filepath.Base(abs), data),
		Data:     data,
	}, nil
}

// DetectMimeType returns the media type of a file without parameters.
func DetectMimeType(name string, data []byte) string {
	byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if byExt == "" {
		head := data
		if len(head) > sniffLen {
			head = head[:sniffLen]
		}
		byExt = http.DetectContentType(head)
	}
	mt, _, err := mime.ParseMediaType(byExt)
	if err != nil {
		return byExt
	}
	return mt
}

// FindMediaFiles lists the regular files under dir that skip does not
// exclude, sorted. A .cmsignore in dir adds to the skip rules.
func FindMediaFiles(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", dir, cms.ErrInvalidArgument)
	}

	extra, err := ReadSkipFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	skip := NewSkipList(extra...)

	var found []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive || skip.Skip(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !skip.Skip(rel) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(found)
	return found, nil
}
