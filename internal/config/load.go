package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "ncc.yaml"

// Environment variables consulted by Load.
const (
	EnvConfigPath      = "NCC_CONFIG"
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
	EnvTelegramEnabled = "NCC_TELEGRAM_ENABLED"
	EnvAPIAddr         = "NCC_API_ADDR"
	EnvAPIEnabled      = "NCC_API_ENABLED"
	EnvAuthSecret      = "NCC_AUTH_SECRET"
	EnvSessionTTL      = "NCC_SESSION_TTL"
	EnvLogLevel        = "NCC_LOG_LEVEL"
	EnvLogFile         = "NCC_LOG_FILE"
	EnvAuditDir        = "NCC_AUDIT_DIR"
)

// Load merges Default() + the YAML file + environment overrides and
// validates the result.
//
// An explicit path (argument or NCC_CONFIG) must exist. The implicit
// ncc.yaml is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultFile
		explicit = false
	}

	if err := loadFromFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file on top of cfg.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// applyEnvOverrides applies environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv(EnvTelegramToken); val != "" {
		cfg.Telegram.Token = val
	}

	if val := os.Getenv(EnvTelegramEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTelegramEnabled, err)
		}
		cfg.Telegram.Enabled = enabled
	}

	if val := os.Getenv(EnvAPIAddr); val != "" {
		cfg.API.Addr = val
		cfg.API.Enabled = true
	}

	if val := os.Getenv(EnvAPIEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPIEnabled, err)
		}
		cfg.API.Enabled = enabled
	}

	if val := os.Getenv(EnvAuthSecret); val != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Algorithm = "HS256"
		cfg.Auth.Secret = val
	}

	if val := os.Getenv(EnvSessionTTL); val != "" {
		ttl, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSessionTTL, err)
		}
		cfg.Session.TTLSec = int(ttl / time.Second)
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		cfg.Log.Level = val
	}

	if val := os.Getenv(EnvLogFile); val != "" {
		cfg.Log.File = val
	}

	if val := os.Getenv(EnvAuditDir); val != "" {
		cfg.Audit.Dir = val
	}

	return nil
}
