package app

import (
	"fmt"
	"os"
	"path/filepath"

	"cms-go/internal/config"
)

// Environment variables that relocate the config file and data directory.
const (
	EnvConfigPath = "CMS_CONFIG_PATH"
	EnvHome       = "CMS_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CMS_CONFIG_PATH: config file location (default: ~/.config/cms.toml)
//   - CMS_HOME: base directory for cms data (default: ~/.local/share/cms)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// LoadConfig reads the config file at path, then loads .env files from the
// working directory and the base dir and applies environment overrides.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, err
	}

	dotenv := []string{".env"}
	if cfg.BaseDir != "" {
		dotenv = append(dotenv, filepath.Join(cfg.BaseDir, ".env"))
	}
	if err := config.LoadDotEnv(dotenv...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	return cfg, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "cms.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "cms"), nil
}
