// Package config loads application configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	BaseURL string `yaml:"base_url"`
}

// FeedConfig controls feed generation.
type FeedConfig struct {
	// HorizonDays is how far forward feeds and series materialization
	// reach.
	HorizonDays int `yaml:"horizon_days"`
	// CacheTTLSeconds bounds how stale a cached feed document may be.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	// ExtendCron schedules the rolling-horizon job.
	ExtendCron string `yaml:"extend_cron"`
}

// EmailConfig holds Postmark settings. The server token comes from the
// environment, never the file.
type EmailConfig struct {
	From string `yaml:"from"`
}

// StorageConfig holds S3-compatible storage settings for documents and
// backups. Credentials come from the environment.
type StorageConfig struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
}

// BackupConfig controls scheduled database snapshots.
type BackupConfig struct {
	ScheduleHour  int `yaml:"schedule_hour"`
	RetentionDays int `yaml:"retention_days"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	DBPath   string        `yaml:"db_path"`
	LogLevel string        `yaml:"log_level"`
	Feed     FeedConfig    `yaml:"feed"`
	Email    EmailConfig   `yaml:"email"`
	Storage  StorageConfig `yaml:"storage"`
	Backup   BackupConfig  `yaml:"backup"`

	// Populated from the environment by Load.
	PostmarkToken    string `yaml:"-"`
	StorageAccessKey string `yaml:"-"`
	StorageSecretKey string `yaml:"-"`
	BackupPassphrase string `yaml:"-"`
	VAPIDPublicKey   string `yaml:"-"`
	VAPIDPrivateKey  string `yaml:"-"`
}

// Default returns an in-memory default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or zero values so partially-filled configs
// still behave. It is the single source of defaults: BaseURL in particular
// is derived from the final Listen value, so it must run after the file is
// unmarshalled, never before.
func (c *Config) Normalize() {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://" + c.Server.Listen
	}
	if c.DBPath == "" {
		c.DBPath = "cadenza.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Feed.HorizonDays <= 0 {
		c.Feed.HorizonDays = 180
	}
	if c.Feed.CacheTTLSeconds <= 0 {
		c.Feed.CacheTTLSeconds = 300
	}
	if c.Feed.ExtendCron == "" {
		c.Feed.ExtendCron = "17 3 * * *"
	}
	if c.Backup.ScheduleHour <= 0 || c.Backup.ScheduleHour > 23 {
		c.Backup.ScheduleHour = 4
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 30
	}
}

// Load reads the YAML config at path, normalizes it, and pulls secrets from
// the environment. A missing file yields the defaults rather than an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.Normalize()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CADENZA_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("CADENZA_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("CADENZA_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CADENZA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.PostmarkToken = os.Getenv("POSTMARK_SERVER_TOKEN")
	c.StorageAccessKey = os.Getenv("S3_ACCESS_KEY")
	c.StorageSecretKey = os.Getenv("S3_SECRET_KEY")
	c.BackupPassphrase = os.Getenv("BACKUP_PASSPHRASE")
	c.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	c.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
}
