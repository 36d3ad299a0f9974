package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for cms.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Local    LocalConfig    `toml:"local"`
	Remote   RemoteConfig   `toml:"remote"`
	Media    MediaConfig    `toml:"media"`
	Realtime RealtimeConfig `toml:"realtime"`
}

// LocalConfig represents configuration for the local record store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LocalConfig struct {
	Type            string `toml:"type"`                         // "sqlite" or "memory"
	DataDir         string `toml:"data_dir,omitempty"`           // only used for type=sqlite
	MaxStorageBytes int64  `toml:"max_storage_bytes,omitempty"`  // per collection; defaults to 5MB
	MaxUploadBytes  int64  `toml:"max_upload_bytes,omitempty"`   // per upload; defaults to 5MB, capped at 10MB
}

// RemoteConfig represents configuration for the remote record store.
type RemoteConfig struct {
	URL            string `toml:"url,omitempty"`        // postgres://... or sqlite:///path
	AccessKey      string `toml:"access_key,omitempty"` // used as the password when URL has none
	Realtime       bool   `toml:"realtime"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryDelayMS   int    `toml:"retry_delay_ms"`
	Offline        bool   `toml:"offline"` // forces local-only storage
	MaxRecordBytes int64  `toml:"max_record_bytes,omitempty"`

	// MaxCollectionBytes bounds the serialized size of one remote collection.
	MaxCollectionBytes int64 `toml:"max_collection_bytes,omitempty"`
}

// Enabled reports whether remote storage should be attempted at all.
func (c RemoteConfig) Enabled() bool {
	return c.URL != "" && !c.Offline
}

// RetryDelay returns the base delay between retries.
func (c RemoteConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// MediaConfig represents configuration for the media vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// PublicBaseURL, when set, prefixes every media URL instead of the backend default.
	PublicBaseURL string `toml:"public_base_url,omitempty"`
}

// RealtimeConfig represents configuration for change notifications.
type RealtimeConfig struct {
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
}

// NewConfig creates a new Config with local SQLite storage under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Local: LocalConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Remote: RemoteConfig{
			RetryAttempts: 3,
			RetryDelayMS:  200,
		},
		Media: MediaConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "media"),
		},
	}
}

// Environment variables that override the remote section.
const (
	EnvRemoteURL     = "CMS_REMOTE_URL"
	EnvRemoteKey     = "CMS_REMOTE_KEY"
	EnvRealtime      = "CMS_REALTIME"
	EnvRetryAttempts = "CMS_RETRY_ATTEMPTS"
	EnvRetryDelayMS  = "CMS_RETRY_DELAY_MS"
	EnvOffline       = "CMS_OFFLINE"
)

// ApplyEnv overrides remote settings from environment variables. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRemoteURL); ok {
		c.Remote.URL = v
	}
	if v, ok := lookup(EnvRemoteKey); ok {
		c.Remote.AccessKey = v
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{EnvRealtime, &c.Remote.Realtime},
		{EnvOffline, &c.Remote.Offline},
	}
	for _, b := range bools {
		v, ok := lookup(b.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", b.name, err)
		}
		*b.dst = parsed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvRetryAttempts, &c.Remote.RetryAttempts},
		{EnvRetryDelayMS, &c.Remote.RetryDelayMS},
	}
	for _, n := range ints {
		v, ok := lookup(n.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", n.name, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must not be negative", n.name)
		}
		*n.dst = parsed
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
