package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cms-go/internal/cms"
)

// FileSystemVault stores media under a root directory, one file per key:
//
//	<root>/
//	  media/<filename>
//	  thumbnails/<filename>.jpg
type FileSystemVault struct {
	root    string
	baseURL string
}

// NewFileSystemVault creates a vault rooted at root, creating the directory
// if needed. URLs are baseURL + "/" + key, or file:// URLs when baseURL is
// empty.
func NewFileSystemVault(root, baseURL string) (*FileSystemVault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &FileSystemVault{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put stores content under key using an atomic write.
func (v *FileSystemVault) Put(_ context.Context, key string, r io.Reader, size int64, _ string) error {
	dest, err := v.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	return writeFile(dest, r, size)
}

// Get writes the content stored under key to w.
func (v *FileSystemVault) Get(_ context.Context, key string, w io.Writer) error {
	src, err := v.path(key)
	if err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("content %s: %w", key, cms.ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Delete removes key.
func (v *FileSystemVault) Delete(_ context.Context, key string) error {
	p, err := v.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// URL returns the public location of key.
func (v *FileSystemVault) URL(key string) string {
	if v.baseURL != "" {
		return v.baseURL + "/" + key
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(v.root, filepath.FromSlash(key)))}
	return u.String()
}

// ValidateSetup verifies that the vault root exists and is writable.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// path maps key to a file below root, rejecting keys that escape it.
func (v *FileSystemVault) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key must not be empty: %w", cms.ErrInvalidArgument)
	}
	p := filepath.Join(v.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(v.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("key %q escapes the vault root: %w", key, cms.ErrInvalidArgument)
	}
	return p, nil
}

// writeFile writes data from r to destPath using a temp file and rename.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ cms.Vault = (*FileSystemVault)(nil)
