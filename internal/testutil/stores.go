package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"cms-go/internal/cms"
	"cms-go/internal/database"
	"cms-go/internal/local"
	"cms-go/internal/remote"
	"cms-go/internal/vault"
)

// NewTestKV creates an in-memory SQLite key-value store with migrations
// applied. It is closed when the test completes.
func NewTestKV(t *testing.T) *database.SQLiteKV {
	t.Helper()

	kv, err := database.NewSQLiteKV(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open test kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("")
}

// NewTestLocalStore creates a local store over a fresh test kv and vault.
// Zero-valued options get a FixedClock and a StubIDGenerator.
func NewTestLocalStore(t *testing.T, opts local.Options) (*local.Store, *vault.MemoryVault) {
	t.Helper()

	if opts.Clock == nil {
		opts.Clock = FixedClock()
	}
	if opts.IDs == nil {
		opts.IDs = NewStubIDGenerator()
	}
	v := NewTestVault()
	return local.NewStore(NewTestKV(t), v, opts), v
}

// NewTestRemoteStore creates and initializes a remote store on a SQLite file
// in a temp dir. Zero-valued options get a FixedClock and remote-prefixed ids.
func NewTestRemoteStore(t *testing.T, opts remote.Options) *remote.Store {
	t.Helper()

	if opts.URL == "" {
		opts.URL = "sqlite://" + filepath.ToSlash(filepath.Join(t.TempDir(), "remote.db"))
	}
	if opts.Clock == nil {
		opts.Clock = FixedClock()
	}
	if opts.IDs == nil {
		opts.IDs = NewPrefixedIDGenerator("remote")
	}

	s := remote.NewStore(opts)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize remote store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// MustCreate creates item in collection or fails the test.
func MustCreate(t *testing.T, store cms.RecordStore, collection string, item cms.Item) cms.Item {
	t.Helper()

	created, err := store.Create(context.Background(), collection, item)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", collection, err)
	}
	return created
}
