package vault

import (
	"context"
	"errors"
	"testing"

	"cms-go/internal/cms"
	"cms-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MediaConfig
		wantErr error
	}{
		{
			name: "memory vault",
			cfg:  config.MediaConfig{Type: "memory"},
		},
		{
			name: "filesystem vault",
			cfg:  config.MediaConfig{Type: "filesystem", FSRoot: t.TempDir()},
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.MediaConfig{Type: "filesystem"},
			wantErr: cms.ErrConfig,
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.MediaConfig{Type: "s3", S3Region: "us-east-1"},
			wantErr: cms.ErrConfig,
		},
		{
			name:    "unknown type",
			cfg:     config.MediaConfig{Type: "ftp"},
			wantErr: cms.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewVaultFromConfig() error = %v, want %v", err, tt.wantErr)
				}
				if got != nil {
					t.Error("NewVaultFromConfig() should return nil on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewVaultFromConfig() unexpected error: %v", err)
			}
			if got == nil {
				t.Error("NewVaultFromConfig() returned nil")
			}
		})
	}
}
