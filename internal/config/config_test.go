package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		TerminalID: "terminal-abc",
		BaseDir:    "/home/user/.local/share/weighbridge",
		LogDir:     "/home/user/.local/share/weighbridge/log",
		Database:   DatabaseConfig{Type: "postgres", DSN: "postgres://wb@db/wb", AutoMigrate: true},
		Media: MediaConfig{
			Type:          "s3",
			S3Bucket:      "weighbridge-media",
			S3Region:      "ap-south-1",
			S3Endpoint:    "http://minio:9000",
			S3PathStyle:   true,
			PublicBaseURL: "https://cdn.example.com/media",
		},
		Realtime: RealtimeConfig{Type: "postgres", Channel: "weighment_changes"},
		Camera:   CameraConfig{Type: "http", URL: "http://cam/snapshot.jpg", Timeout: Duration{3 * time.Second}},
		Snapshot: SnapshotConfig{Category: "gate-1", Quality: 70},
		Identity: IdentityConfig{VehicleLink: "latest_use", NormalizePlates: true},
		Policy:   PolicyConfig{RejectNegativeNet: true},
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

	if got.TerminalID != original.TerminalID {
		t.Errorf("TerminalID = %q, want %q", got.TerminalID, original.TerminalID)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Media != original.Media {
		t.Errorf("Media = %+v, want %+v", got.Media, original.Media)
	}
	if got.Realtime != original.Realtime {
		t.Errorf("Realtime = %+v, want %+v", got.Realtime, original.Realtime)
	}
	if got.Camera.Timeout.Duration != 3*time.Second {
		t.Errorf("Camera.Timeout = %v, want 3s", got.Camera.Timeout.Duration)
	}
	if got.Snapshot != original.Snapshot {
		t.Errorf("Snapshot = %+v, want %+v", got.Snapshot, original.Snapshot)
	}
	if got.Identity != original.Identity {
		t.Errorf("Identity = %+v, want %+v", got.Identity, original.Identity)
	}
	if !got.Policy.RejectNegativeNet {
		t.Error("Policy.RejectNegativeNet = false, want true")
	}
}

func TestManager_Read_InvalidDuration(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(strings.NewReader("[realtime]\npoll_interval = \"soon\"\n"))
	if err == nil {
		t.Fatal("Read() expected error for invalid duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("terminal-1", "/data/wb")

	if cfg.TerminalID != "terminal-1" {
		t.Errorf("TerminalID = %q, want %q", cfg.TerminalID, "terminal-1")
	}
	if cfg.LogDir != "/data/wb/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/wb/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/wb/db" {
		t.Errorf("Database = %+v, want sqlite in /data/wb/db", cfg.Database)
	}
	if cfg.Media.Type != "filesystem" || cfg.Media.FSRoot != "/data/wb/media" {
		t.Errorf("Media = %+v, want filesystem in /data/wb/media", cfg.Media)
	}
	if cfg.Realtime.PollInterval.Duration != 500*time.Millisecond {
		t.Errorf("Realtime.PollInterval = %v, want 500ms", cfg.Realtime.PollInterval.Duration)
	}
	if cfg.Snapshot.Quality != 80 {
		t.Errorf("Snapshot.Quality = %d, want 80", cfg.Snapshot.Quality)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing terminal id", func(c *Config) { c.TerminalID = "" }, true},
		{"missing log dir", func(c *Config) { c.LogDir = "" }, true},
		{"quality too high", func(c *Config) { c.Snapshot.Quality = 101 }, true},
		{"unknown vehicle link", func(c *Config) { c.Identity.VehicleLink = "sometimes" }, true},
		{"latest use", func(c *Config) { c.Identity.VehicleLink = "latest_use" }, false},
		{"poll on postgres", func(c *Config) { c.Database.Type = "postgres"; c.Realtime.Type = "poll" }, true},
		{"postgres feed on postgres", func(c *Config) { c.Database.Type = "postgres"; c.Realtime.Type = "postgres" }, false},
		{"default feed on postgres", func(c *Config) { c.Database.Type = "postgres" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("t1", "/data/wb")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRealtimeConfig_Source(t *testing.T) {
	tests := []struct {
		feed   string
		dbType string
		want   string
	}{
		{"", "sqlite", "poll"},
		{"", "memory", "poll"},
		{"", "postgres", "postgres"},
		{"poll", "sqlite", "poll"},
		{"postgres", "postgres", "postgres"},
	}
	for _, tt := range tests {
		got := RealtimeConfig{Type: tt.feed}.Source(tt.dbType)
		if got != tt.want {
			t.Errorf("Source(%q) with type %q = %q, want %q", tt.dbType, tt.feed, got, tt.want)
		}
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "weighbridge.toml")
		cfg := NewConfig("t1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "weighbridge.toml")
		cfg := NewConfig("t1", dir)

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
		path := filepath.Join(dir, "weighbridge.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.TerminalID != "read-test" {
			t.Errorf("TerminalID = %q, want %q", got.TerminalID, "read-test")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/weighbridge.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "weighbridge.toml")
		if err := os.WriteFile(path, []byte("log_dir = \"/tmp\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected error for missing terminal_id")
		}
	})
}
