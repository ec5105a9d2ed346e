package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Validate enforces structural rules on a merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateTransports(cfg); err != nil {
		return fmt.Errorf("transport validation failed: %w", err)
	}

	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	if cfg.Session.TTLSec <= 0 {
		return fmt.Errorf("session ttl must be positive, got %ds", cfg.Session.TTLSec)
	}
	if cfg.Session.SweepIntervalSec <= 0 {
		return fmt.Errorf("session sweep interval must be positive, got %ds", cfg.Session.SweepIntervalSec)
	}

	if cfg.Telemetry.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %ds", cfg.Telemetry.HeartbeatIntervalSec)
	}
	if cfg.Telemetry.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", cfg.Telemetry.EventBufferSize)
	}

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	if cfg.Audit.Enabled && cfg.Audit.Dir == "" {
		return fmt.Errorf("audit directory must be set when audit is enabled")
	}

	return nil
}

func validateTransports(cfg *Config) error {
	if !cfg.Telegram.Enabled && !cfg.API.Enabled {
		return fmt.Errorf("at least one of telegram or api must be enabled")
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("telegram token is not set (%s)", EnvTelegramToken)
		}
		if cfg.Telegram.PollTimeoutSec <= 0 {
			return fmt.Errorf("telegram poll timeout must be positive, got %ds", cfg.Telegram.PollTimeoutSec)
		}
	}

	if cfg.API.Enabled {
		if cfg.API.Addr == "" {
			return fmt.Errorf("api address must be set")
		}
		if cfg.API.ReadTimeoutSec <= 0 || cfg.API.WriteTimeoutSec <= 0 || cfg.API.IdleTimeoutSec <= 0 {
			return fmt.Errorf("api timeouts must be positive")
		}
	}

	return nil
}

func validateAuth(auth *AuthConfig) error {
	if !auth.Enabled {
		return nil
	}

	switch auth.Algorithm {
	case "HS256":
		if auth.Secret == "" {
			return fmt.Errorf("HS256 requires a secret")
		}
	case "RS256":
		if auth.PublicKeyPEM == "" {
			return fmt.Errorf("RS256 requires a public key")
		}
	default:
		return fmt.Errorf("unsupported algorithm: %s", auth.Algorithm)
	}

	return nil
}
