// Package config defines the vms.yaml configuration file and its viper
// bindings. Flags override environment variables (VMS_*), which override the
// file, which overrides the built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level vms configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// AuthConfig controls token issuance and the login lockout policy.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenExpiryMinutes int    `yaml:"token_expiry_minutes" mapstructure:"token_expiry_minutes"`
	MaxFailedLogins    int    `yaml:"max_failed_logins" mapstructure:"max_failed_logins"`
	LockoutMinutes     int    `yaml:"lockout_minutes" mapstructure:"lockout_minutes"`
}

// DatabaseConfig selects the storage backend. An empty driver means SQLite
// in the data directory.
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
		},
		Auth: AuthConfig{
			TokenExpiryMinutes: 60,
			MaxFailedLogins:    5,
			LockoutMinutes:     15,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FromViper materializes the effective configuration from viper, falling
// back to defaults for unset keys.
func FromViper() Config {
	cfg := Default()

	if v := viper.GetString("server.host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		cfg.Server.Port = v
	}
	if v := viper.GetString("server.shutdown_timeout"); v != "" {
		cfg.Server.ShutdownTimeout = v
	}
	if v := viper.GetStringSlice("server.cors_origins"); len(v) > 0 {
		cfg.Server.CORSOrigins = v
	}

	if v := viper.GetString("auth.jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetInt("auth.token_expiry_minutes"); v != 0 {
		cfg.Auth.TokenExpiryMinutes = v
	}
	if v := viper.GetInt("auth.max_failed_logins"); v != 0 {
		cfg.Auth.MaxFailedLogins = v
	}
	if v := viper.GetInt("auth.lockout_minutes"); v != 0 {
		cfg.Auth.LockoutMinutes = v
	}

	if v := viper.GetString("database.driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("database.dsn"); v != "" {
		cfg.Database.DSN = v
	}

	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		cfg.Logging.Format = v
	}

	return cfg
}

// ShutdownTimeoutDuration parses the configured shutdown timeout, defaulting
// to 30s on a malformed value.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// TokenExpiry returns the token lifetime as a duration.
func (c AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryMinutes) * time.Minute
}

// LockoutDuration returns the account lockout window as a duration.
func (c AuthConfig) LockoutDuration() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}

// Load reads a configuration file from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Write serializes the configuration to a YAML file. Fails if the file
// already exists, so `config init` never clobbers a hand-edited file.
func Write(path string, cfg Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
