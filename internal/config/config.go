package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the configuration of one weighbridge terminal.
type Config struct {
	TerminalID string         `toml:"terminal_id"`
	BaseDir    string         `toml:"base_dir"`
	LogDir     string         `toml:"log_dir"`
	Database   DatabaseConfig `toml:"database"`
	Media      MediaConfig    `toml:"media"`
	Realtime   RealtimeConfig `toml:"realtime"`
	Camera     CameraConfig   `toml:"camera"`
	Snapshot   SnapshotConfig `toml:"snapshot"`
	Identity   IdentityConfig `toml:"identity"`
	Policy     PolicyConfig   `toml:"policy"`
}

// DatabaseConfig selects the shared transaction store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type        string `toml:"type"`                   // "sqlite", "memory" or "postgres"
	DataDir     string `toml:"data_dir,omitempty"`     // only used for type=sqlite
	DSN         string `toml:"dsn,omitempty"`          // only used for type=postgres
	AutoMigrate bool   `toml:"auto_migrate,omitempty"` // apply migrations on startup
}

// MediaConfig selects the object store for snapshots.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// PublicBaseURL, when set, prefixes keys to form public URLs.
	PublicBaseURL string `toml:"public_base_url,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// RealtimeConfig selects how change notifications reach this terminal.
type RealtimeConfig struct {
	Type         string   `toml:"type"`                    // "poll", "postgres", or empty to follow database.type
	PollInterval Duration `toml:"poll_interval,omitempty"` // only used for type=poll
	Channel      string   `toml:"channel,omitempty"`       // only used for type=postgres
}

// CameraConfig selects the frame source used for snapshots.
type CameraConfig struct {
	Type    string   `toml:"type"`              // "none", "file" or "http"
	Path    string   `toml:"path,omitempty"`    // only used for type=file
	URL     string   `toml:"url,omitempty"`     // only used for type=http
	Timeout Duration `toml:"timeout,omitempty"` // only used for type=http
}

// SnapshotConfig tunes snapshot composition and storage.
type SnapshotConfig struct {
	Category string `toml:"category,omitempty"` // key prefix, default "snapshots"
	Quality  int    `toml:"quality,omitempty"`  // JPEG quality 1-100, default 80
}

// IdentityConfig controls farmer and vehicle matching.
type IdentityConfig struct {
	VehicleLink     string `toml:"vehicle_link,omitempty"` // "first_use" (default) or "latest_use"
	NormalizePlates bool   `toml:"normalize_plates,omitempty"`
}

// PolicyConfig holds business rules that are off by default.
type PolicyConfig struct {
	RejectNegativeNet bool `toml:"reject_negative_net,omitempty"`
}

// Duration is a time.Duration that reads and writes as a string such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewConfig creates a new Config with local defaults: a sqlite database and
// filesystem snapshots under baseDir, the change feed matching the database,
// no camera.
func NewConfig(terminalID, baseDir string) *Config {
	return &Config{
		TerminalID: terminalID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:        "sqlite",
			DataDir:     filepath.Join(baseDir, "db"),
			AutoMigrate: true,
		},
		Media: MediaConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "media"),
		},
		Realtime: RealtimeConfig{
			PollInterval: Duration{500 * time.Millisecond},
		},
		Camera:   CameraConfig{Type: "none"},
		Snapshot: SnapshotConfig{Category: "snapshots", Quality: 80},
		Identity: IdentityConfig{VehicleLink: "first_use"},
	}
}

// Source returns the change feed to run against a database of dbType.
// Postgres assigns change_log.seq before commit, so a seq-tailing poller
// could skip rows that commit out of order; postgres databases always
// use LISTEN/NOTIFY.
func (r RealtimeConfig) Source(dbType string) string {
	if r.Type != "" {
		return r.Type
	}
	if dbType == "postgres" {
		return "postgres"
	}
	return "poll"
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
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields every terminal needs.
func (c *Config) Validate() error {
	if c.TerminalID == "" {
		return fmt.Errorf("terminal_id is required")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	if c.Snapshot.Quality < 0 || c.Snapshot.Quality > 100 {
		return fmt.Errorf("snapshot.quality must be between 1 and 100, got %d", c.Snapshot.Quality)
	}
	if c.Realtime.Type == "poll" && c.Database.Type == "postgres" {
		return fmt.Errorf("realtime.type poll cannot follow a postgres database; use postgres or leave it empty")
	}
	switch c.Identity.VehicleLink {
	case "", "first_use", "latest_use":
	default:
		return fmt.Errorf("identity.vehicle_link must be first_use or latest_use, got %q", c.Identity.VehicleLink)
	}
	return nil
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
