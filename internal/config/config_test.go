package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/cms",
		LogDir:  "/home/user/.local/share/cms/log",
		Local: LocalConfig{
			Type:            "sqlite",
			DataDir:         "/home/user/.local/share/cms/data",
			MaxStorageBytes: 1024,
		},
		Remote: RemoteConfig{
			URL:           "postgres://cms@db.example.com/cms",
			Realtime:      true,
			RetryAttempts: 5,
			RetryDelayMS:  50,
		},
		Media: MediaConfig{
			Type:          "s3",
			S3Bucket:      "assets",
			S3Prefix:      "site",
			S3Region:      "eu-west-1",
			PublicBaseURL: "https://cdn.example.com",
		},
		Realtime: RealtimeConfig{RedisAddr: "localhost:6379", RedisDB: 2},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Local != original.Local {
		t.Errorf("Local = %+v, want %+v", got.Local, original.Local)
	}
	if got.Remote != original.Remote {
		t.Errorf("Remote = %+v, want %+v", got.Remote, original.Remote)
	}
	if got.Media != original.Media {
		t.Errorf("Media = %+v, want %+v", got.Media, original.Media)
	}
	if got.Realtime != original.Realtime {
		t.Errorf("Realtime = %+v, want %+v", got.Realtime, original.Realtime)
	}
}

func TestManager_Read_InvalidTOML(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(bytes.NewBufferString("local = [unterminated")); err == nil {
		t.Fatal("Read() expected error for invalid TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/cms")

	if cfg.BaseDir != "/data/cms" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/cms")
	}
	if cfg.LogDir != "/data/cms/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/cms/log")
	}
	if cfg.Local.Type != "sqlite" || cfg.Local.DataDir != "/data/cms/data" {
		t.Errorf("Local = %+v, want sqlite under /data/cms/data", cfg.Local)
	}
	if cfg.Media.Type != "filesystem" || cfg.Media.FSRoot != "/data/cms/media" {
		t.Errorf("Media = %+v, want filesystem under /data/cms/media", cfg.Media)
	}
	if cfg.Remote.Enabled() {
		t.Error("Remote.Enabled() = true for a fresh config")
	}
	if cfg.Remote.RetryDelay() != 200*time.Millisecond {
		t.Errorf("RetryDelay() = %v, want 200ms", cfg.Remote.RetryDelay())
	}
}

func TestRemoteConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  RemoteConfig
		want bool
	}{
		{name: "no url", cfg: RemoteConfig{}, want: false},
		{name: "url", cfg: RemoteConfig{URL: "sqlite:///tmp/x.db"}, want: true},
		{name: "offline", cfg: RemoteConfig{URL: "sqlite:///tmp/x.db", Offline: true}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	lookupFrom := func(env map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}
	}

	t.Run("overrides remote settings", func(t *testing.T) {
		cfg := NewConfig("/data/cms")
		err := cfg.ApplyEnv(lookupFrom(map[string]string{
			EnvRemoteURL:     "postgres://db/cms",
			EnvRemoteKey:     "secret",
			EnvRealtime:      "true",
			EnvRetryAttempts: "7",
			EnvRetryDelayMS:  "15",
			EnvOffline:       "0",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}
		want := RemoteConfig{
			URL:           "postgres://db/cms",
			AccessKey:     "secret",
			Realtime:      true,
			RetryAttempts: 7,
			RetryDelayMS:  15,
		}
		if cfg.Remote != want {
			t.Errorf("Remote = %+v, want %+v", cfg.Remote, want)
		}
	})

	t.Run("leaves unset values alone", func(t *testing.T) {
		cfg := NewConfig("/data/cms")
		cfg.Remote.URL = "sqlite:///tmp/a.db"
		if err := cfg.ApplyEnv(lookupFrom(nil)); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}
		if cfg.Remote.URL != "sqlite:///tmp/a.db" || cfg.Remote.RetryAttempts != 3 {
			t.Errorf("Remote = %+v, want unchanged", cfg.Remote)
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		for _, env := range []map[string]string{
			{EnvRealtime: "maybe"},
			{EnvRetryAttempts: "three"},
			{EnvRetryDelayMS: "-5"},
		} {
			cfg := NewConfig("/data/cms")
			if err := cfg.ApplyEnv(lookupFrom(env)); err == nil {
				t.Errorf("ApplyEnv(%v) expected error", env)
			}
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CMS_TEST_DOTENV_VALUE=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CMS_TEST_DOTENV_VALUE", "")
	os.Unsetenv("CMS_TEST_DOTENV_VALUE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("CMS_TEST_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("CMS_TEST_DOTENV_VALUE = %q, want %q", got, "from-file")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cms.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cms.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cms.toml")
		cfg := NewConfig(dir)
		cfg.Local = LocalConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Local.Type != "memory" {
			t.Errorf("Local.Type = %q, want %q", got.Local.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/cms.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
