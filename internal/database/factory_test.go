package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cms-go/internal/cms"
	"cms-go/internal/config"
)

func TestNewKVFromConfig(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		got, err := NewKVFromConfig(config.LocalConfig{Type: "memory"}, nil)
		if err != nil {
			t.Fatalf("NewKVFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if got.Path() != ":memory:" {
			t.Errorf("Path() = %q, want %q", got.Path(), ":memory:")
		}
	})

	t.Run("sqlite store", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		got, err := NewKVFromConfig(config.LocalConfig{Type: "sqlite", DataDir: dir}, nil)
		if err != nil {
			t.Fatalf("NewKVFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if _, err := os.Stat(filepath.Join(dir, DBFileName)); err != nil {
			t.Errorf("database file not created: %v", err)
		}
		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite store without data_dir", func(t *testing.T) {
		got, err := NewKVFromConfig(config.LocalConfig{Type: "sqlite"}, nil)
		if !errors.Is(err, cms.ErrConfig) {
			t.Errorf("NewKVFromConfig() error = %v, want ErrConfig", err)
		}
		if got != nil {
			t.Error("NewKVFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		got, err := NewKVFromConfig(config.LocalConfig{Type: "unknown"}, nil)
		if !errors.Is(err, cms.ErrConfig) {
			t.Errorf("NewKVFromConfig() error = %v, want ErrConfig", err)
		}
		if got != nil {
			t.Error("NewKVFromConfig() should return nil on error")
			got.Close()
		}
	})
}
