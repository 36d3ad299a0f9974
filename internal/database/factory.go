package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cms-go/internal/cms"
	"cms-go/internal/config"
)

// DBFileName is the name of the SQLite file inside the local data dir.
const DBFileName = "cms.db"

// NewKVFromConfig creates the local key-value store based on the config type.
func NewKVFromConfig(cfg config.LocalConfig, clock cms.Clock) (*SQLiteKV, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite storage: %w", cms.ErrConfig)
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteKV(filepath.Join(cfg.DataDir, DBFileName), clock)
	case "memory":
		return NewSQLiteKV(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown local storage type %q: %w", cfg.Type, cms.ErrConfig)
	}
}
