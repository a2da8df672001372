package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidSessionDuration = errors.New("session_duration must be a positive duration")

// Config holds server configuration. Every field has a working default so a
// bare binary starts with a local data directory.
type Config struct {
	ListenAddr       string        `yaml:"listen_addr"`
	DataDir          string        `yaml:"data_dir"`
	SessionDuration  time.Duration `yaml:"-"`
	ScopeReadsToUser bool          `yaml:"scope_reads_to_user"`

	// BackupInterval of zero disables scheduled backups.
	BackupInterval time.Duration `yaml:"-"`
	BackupKeep     int           `yaml:"backup_keep"`

	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "collections.db")
}

func defaults() *Config {
	return &Config{
		ListenAddr:      ":8080",
		DataDir:         "./data",
		SessionDuration: 30 * 24 * time.Hour,
		BackupKeep:      5,
		LogMaxSizeMB:    20,
		LogMaxBackups:   3,
	}
}

// Load builds config from environment variables, falling back to defaults.
func Load() (*Config, error) {
	c := defaults()

	if v := os.Getenv("REELVAULT_LISTEN"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("REELVAULT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("REELVAULT_SESSION_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, ErrInvalidSessionDuration
		}
		c.SessionDuration = d
	}
	if v := os.Getenv("REELVAULT_SCOPE_READS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			c.ScopeReadsToUser = b
		}
	}
	if v := os.Getenv("REELVAULT_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.BackupInterval = d
		}
	}
	if v := os.Getenv("REELVAULT_BACKUP_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BackupKeep = n
		}
	}
	if v := os.Getenv("REELVAULT_LOG_FILE"); v != "" {
		c.LogFile = v
	}

	return c, nil
}

type fileConfig struct {
	Config          `yaml:",inline"`
	SessionDuration string `yaml:"session_duration"`
	BackupInterval  string `yaml:"backup_interval"`
}

// LoadFromFile loads config from a YAML file. Unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f := fileConfig{Config: *defaults()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	c := f.Config
	c.SessionDuration = 30 * 24 * time.Hour
	if f.SessionDuration != "" {
		d, err := time.ParseDuration(f.SessionDuration)
		if err != nil || d <= 0 {
			return nil, ErrInvalidSessionDuration
		}
		c.SessionDuration = d
	}
	if f.BackupInterval != "" {
		if d, err := time.ParseDuration(f.BackupInterval); err == nil && d > 0 {
			c.BackupInterval = d
		}
	}

	return &c, nil
}
