package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	// Mode is "jwt" (verify locally with a shared secret) or "remote"
	// (ask the identity provider's user endpoint).
	Mode string `mapstructure:"mode" yaml:"mode"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	ProviderURL string `mapstructure:"provider_url" yaml:"provider_url"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`

	// UseKeyring reads JWTSecret and APIKey from the OS keyring when they
	// are not set in the file or environment.
	UseKeyring bool `mapstructure:"use_keyring" yaml:"use_keyring"`
}

// BackupConfig sets the ring capacities.
type BackupConfig struct {
	ChecklistCapacity int `mapstructure:"checklist_capacity" yaml:"checklist_capacity"`
	DocumentCapacity  int `mapstructure:"document_capacity" yaml:"document_capacity"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// EventsConfig toggles the change notification socket.
type EventsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Backups  BackupConfig   `mapstructure:"backups" yaml:"backups"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/hdcharts/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "hdcharts", "config.yaml")
}

// defaults is shared by viper and the missing-file path.
var defaults = map[string]any{
	"server.addr":                "localhost:8080",
	"server.read_timeout_sec":    10,
	"server.write_timeout_sec":   10,
	"database.driver":            "sqlite",
	"database.dsn":               "hdcharts.db",
	"auth.mode":                  "jwt",
	"auth.jwt_secret":            "",
	"auth.provider_url":          "",
	"auth.api_key":               "",
	"auth.use_keyring":           false,
	"backups.checklist_capacity": 5,
	"backups.document_capacity":  30,
	"log.level":                  "info",
	"log.file":                   "",
	"log.max_size_mb":            50,
	"log.max_backups":            5,
	"events.enabled":             true,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// HDCHARTS_AUTH_JWT_SECRET overrides auth.jwt_secret, and so on.
	v.SetEnvPrefix("hdcharts")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultConfig() *AppConfig {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	cfg := &AppConfig{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with HDCHARTS_ override file values. If
// the file does not exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks enumerated fields and capacities.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	switch c.Auth.Mode {
	case "jwt", "remote":
	default:
		return fmt.Errorf("auth.mode must be jwt or remote, got %q", c.Auth.Mode)
	}
	if c.Backups.ChecklistCapacity < 1 {
		return fmt.Errorf("backups.checklist_capacity must be positive")
	}
	if c.Backups.DocumentCapacity < 1 {
		return fmt.Errorf("backups.document_capacity must be positive")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("auth", cfg.Auth)
	v.Set("backups", cfg.Backups)
	v.Set("log", cfg.Log)
	v.Set("events", cfg.Events)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
