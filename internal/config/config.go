package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "coopbooks.yaml"

// Environment variables that override the file.
const (
	EnvDB        = "COOPBOOKS_DB"
	EnvLogLevel  = "COOPBOOKS_LOG_LEVEL"
	EnvRedisAddr = "COOPBOOKS_REDIS_ADDR"
	EnvHTTPAddr  = "COOPBOOKS_HTTP_ADDR"
)

// Config represents the top-level coopbooks.yaml configuration.
type Config struct {
	Coop     CoopConfig     `yaml:"coop"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Audit    AuditConfig    `yaml:"audit"`
}

// CoopConfig identifies the cooperative and its default tenant.
type CoopConfig struct {
	Name   string `yaml:"name"`
	Tenant string `yaml:"tenant"`
}

// LedgerConfig holds ledger-wide accounting settings.
type LedgerConfig struct {
	RetainedEarnings string        `yaml:"retained_earnings"` // equity account closed into
	LockWait         time.Duration `yaml:"lock_wait"`
	RetryAttempts    int           `yaml:"retry_attempts"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls zap output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// RedisConfig enables the distributed locker when Addr is set.
type RedisConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// AuditConfig locates the audit CSV log.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Load reads a coopbooks.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadWithEnv reads path when it exists, falling back to defaults, then
// applies the environment. Variables in envFile are loaded first without
// overriding ones already set.
func LoadWithEnv(path, envFile string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(""), nil
	}
	if err != nil {
		return nil, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from COOPBOOKS_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new cooperative.
func Default(coopName string) *Config {
	return &Config{
		Coop: CoopConfig{
			Name:   coopName,
			Tenant: "default",
		},
		Ledger: LedgerConfig{
			RetainedEarnings: "3-2000",
			LockWait:         2 * time.Second,
			RetryAttempts:    3,
		},
		Database: DatabaseConfig{
			Path: "coopbooks.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Audit: AuditConfig{
			Path: "logs/audit-log.csv",
		},
	}
}
