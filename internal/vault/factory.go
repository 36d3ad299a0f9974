package vault

import (
	"context"
	"fmt"

	"cms-go/internal/cms"
	"cms-go/internal/config"
)

// NewVaultFromConfig creates a Vault implementation based on the media config type.
func NewVaultFromConfig(ctx context.Context, cfg config.MediaConfig) (cms.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.PublicBaseURL), nil
	case "s3":
		v, err := NewS3VaultFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_root to be set: %w", cms.ErrConfig)
		}
		v, err := NewFileSystemVault(cfg.FSRoot, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown media type %q: %w", cfg.Type, cms.ErrConfig)
	}
}
