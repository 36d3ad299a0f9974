package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"cms-go/internal/cms"
)

// MemoryVault is an in-memory implementation of cms.Vault, useful for testing.
// It is safe for concurrent use.
type MemoryVault struct {
	baseURL      string
	content      map[string][]byte
	contentTypes map[string]string
	mu           sync.RWMutex
}

// NewMemoryVault creates an empty vault. URLs are baseURL + "/" + key, or
// memory:// URLs when baseURL is empty.
func NewMemoryVault(baseURL string) *MemoryVault {
	return &MemoryVault{
		baseURL:      strings.TrimRight(baseURL, "/"),
		content:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// Put stores content under key.
func (m *MemoryVault) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[key] = data
	m.contentTypes[key] = contentType
	return nil
}

// Get writes the content stored under key to w.
func (m *MemoryVault) Get(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("content %s: %w", key, cms.ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Delete removes key.
func (m *MemoryVault) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, key)
	delete(m.contentTypes, key)
	return nil
}

// URL returns the public location of key.
func (m *MemoryVault) URL(key string) string {
	if m.baseURL != "" {
		return m.baseURL + "/" + key
	}
	return "memory://" + key
}

// Keys lists the stored keys, sorted.
func (m *MemoryVault) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.content))
	for k := range m.content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentType returns the content type key was stored with.
func (m *MemoryVault) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contentTypes[key]
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

var _ cms.Vault = (*MemoryVault)(nil)
