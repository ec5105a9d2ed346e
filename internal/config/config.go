package config

import "time"

// Config represents the complete configuration for the container.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Audit     AuditConfig     `yaml:"audit"`
}

// TelegramConfig holds the chat transport settings.
type TelegramConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Token          string `yaml:"token"`
	PollTimeoutSec int    `yaml:"pollTimeoutSec"`
	Debug          bool   `yaml:"debug"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"readTimeoutSec"`
	WriteTimeoutSec int    `yaml:"writeTimeoutSec"`
	IdleTimeoutSec  int    `yaml:"idleTimeoutSec"`
}

// AuthConfig holds bearer token verification settings for the HTTP API.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Algorithm    string `yaml:"algorithm"` // "HS256" or "RS256"
	Secret       string `yaml:"secret"`
	PublicKeyPEM string `yaml:"publicKeyPem"`
}

// SessionConfig holds conversation lifetime settings.
type SessionConfig struct {
	TTLSec           int `yaml:"ttlSec"`
	SweepIntervalSec int `yaml:"sweepIntervalSec"`
}

// TelemetryConfig holds SSE hub settings.
type TelemetryConfig struct {
	HeartbeatIntervalSec int `yaml:"heartbeatIntervalSec"`
	EventBufferSize      int `yaml:"eventBufferSize"`
}

// LogConfig holds process log settings. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Enabled:        true,
			PollTimeoutSec: 60,
		},
		API: APIConfig{
			Enabled:         false,
			Addr:            ":8000",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 30,
			IdleTimeoutSec:  120,
		},
		Auth: AuthConfig{
			Enabled:   false,
			Algorithm: "HS256",
		},
		Session: SessionConfig{
			TTLSec:           600,
			SweepIntervalSec: 60,
		},
		Telemetry: TelemetryConfig{
			HeartbeatIntervalSec: 15,
			EventBufferSize:      50,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Dir:        "logs",
			MaxSizeMB:  20,
			MaxBackups: 10,
		},
	}
}

// PollTimeout returns the long-poll timeout.
func (c TelegramConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSec) * time.Second
}

// ReadTimeout returns the HTTP read timeout.
func (c APIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (c APIConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// IdleTimeout returns the HTTP keep-alive idle timeout.
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// TTL returns how long an idle conversation is kept.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// SweepInterval returns how often expired conversations are dropped.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// HeartbeatInterval returns the SSE heartbeat period.
func (c TelemetryConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}
