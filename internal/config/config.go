package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for veretino.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Hashing    HashingConfig    `toml:"hashing"`
	Filter     FilterConfig     `toml:"filter"`
	Save       SaveConfig       `toml:"save"`
	History    HistoryConfig    `toml:"history"`
	Watch      WatchConfig      `toml:"watch"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// HashingConfig controls how checksums are computed for new databases and
// how updates treat files that appear elsewhere.
type HashingConfig struct {
	Algorithm     string `toml:"algorithm"`  // "sha1", "sha256" or "sha512"
	ChunkSize     int    `toml:"chunk_size"` // bytes read per step; 0 selects 1 MiB
	DetectMoved   bool   `toml:"detect_moved"`
	ImportDigests bool   `toml:"import_digests"` // take checksums from <file>.sha* summaries
}

// FilterConfig is the default filter rule for new databases. Existing
// databases carry their own rule in the header.
type FilterConfig struct {
	Mode              string   `toml:"mode"` // "none", "include" or "ignore"
	Extensions        []string `toml:"extensions"`
	IgnoreDbFiles     bool     `toml:"ignore_db_files"`
	IgnoreDigestFiles bool     `toml:"ignore_digest_files"`
	IgnoreUnreadable  bool     `toml:"ignore_unreadable"`
	IgnoreSymlinks    bool     `toml:"ignore_symlinks"`
	IgnoreFile        bool     `toml:"ignore_file"` // honor .verignore in the working folder
}

// SaveConfig controls how databases are written.
type SaveConfig struct {
	Compressed  bool   `toml:"compressed"` // new databases use the .ver extension
	Backup      bool   `toml:"backup"`     // keep <db>.bak for undo
	FallbackDir string `toml:"fallback_dir,omitempty"`
}

// HistoryConfig represents configuration for the operation history.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce time.Duration `toml:"debounce"`
}

// EncryptionConfig holds paths to the age key pair used for vault snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	Armor          bool   `toml:"armor"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig creates a new Config with the provided values and defaults
// for everything else.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Hashing: HashingConfig{
			Algorithm:   "sha256",
			DetectMoved: true,
		},
		Filter: FilterConfig{
			Mode:              "none",
			IgnoreDbFiles:     true,
			IgnoreDigestFiles: true,
			IgnoreSymlinks:    true,
			IgnoreFile:        true,
		},
		Save: SaveConfig{
			Backup:      true,
			FallbackDir: filepath.Join(baseDir, "fallback"),
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "history"),
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "veretino.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "veretino.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
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

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
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

// Init writes cfg to path. It fails if a config already exists there.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
