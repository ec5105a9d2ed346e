package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Telegram.Token = "tok"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults with token", func(*Config) {}, ""},
		{"no transport", func(c *Config) { c.Telegram.Enabled = false }, "at least one"},
		{"api only", func(c *Config) { c.Telegram.Enabled = false; c.API.Enabled = true }, ""},
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram token"},
		{"zero poll timeout", func(c *Config) { c.Telegram.PollTimeoutSec = 0 }, "poll timeout"},
		{"api without addr", func(c *Config) { c.API.Enabled = true; c.API.Addr = "" }, "api address"},
		{"api zero timeout", func(c *Config) { c.API.Enabled = true; c.API.ReadTimeoutSec = 0 }, "api timeouts"},
		{"hs256 without secret", func(c *Config) { c.Auth.Enabled = true }, "HS256 requires"},
		{"rs256 without key", func(c *Config) { c.Auth.Enabled = true; c.Auth.Algorithm = "RS256" }, "RS256 requires"},
		{"unknown algorithm", func(c *Config) { c.Auth.Enabled = true; c.Auth.Algorithm = "none" }, "unsupported algorithm"},
		{"disabled auth ignores algorithm", func(c *Config) { c.Auth.Algorithm = "none" }, ""},
		{"negative ttl", func(c *Config) { c.Session.TTLSec = -1 }, "session ttl"},
		{"zero sweep", func(c *Config) { c.Session.SweepIntervalSec = 0 }, "sweep interval"},
		{"zero heartbeat", func(c *Config) { c.Telemetry.HeartbeatIntervalSec = 0 }, "heartbeat"},
		{"zero buffer", func(c *Config) { c.Telemetry.EventBufferSize = 0 }, "event buffer"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"audit without dir", func(c *Config) { c.Audit.Dir = "" }, "audit directory"},
		{"audit disabled without dir", func(c *Config) { c.Audit.Enabled = false; c.Audit.Dir = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL())
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval())
	assert.Equal(t, 15*time.Second, cfg.Telemetry.HeartbeatInterval())
	assert.Equal(t, 60*time.Second, cfg.Telegram.PollTimeout())
	assert.Equal(t, 30*time.Second, cfg.API.ReadTimeout())
	assert.Equal(t, 30*time.Second, cfg.API.WriteTimeout())
	assert.Equal(t, 120*time.Second, cfg.API.IdleTimeout())
}
