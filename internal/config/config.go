package config

import (
	"fmt"
	"time"

	"github.com/vovakirdan/wireplan-server/internal/core"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	EventBuffer        int   `mapstructure:"event_buffer" yaml:"event_buffer"`

	DisconnectPolicy      string        `mapstructure:"disconnect_policy" yaml:"disconnect_policy"`
	AllowEstimateWhenOpen bool          `mapstructure:"allow_estimate_when_open" yaml:"allow_estimate_when_open"`
	SessionTTL            time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	ReapInterval          time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`

	RecoverySecret string        `mapstructure:"recovery_secret" yaml:"recovery_secret"`
	RecoveryTTL    time.Duration `mapstructure:"recovery_ttl" yaml:"recovery_ttl"`

	// DatabasePath enables the round archive. Empty disables it.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		MaxMessageBytes:    4 << 10,
		RateLimitPerMinute: 120,
		EventBuffer:        core.DefaultEventBuffer,
		DisconnectPolicy:   string(core.RetainOnDisconnect),
		SessionTTL:         30 * time.Minute,
		ReapInterval:       time.Minute,
		RecoveryTTL:        24 * time.Hour,
		DatabasePath:       "wireplan.db",
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if _, err := core.ParseDisconnectPolicy(c.DisconnectPolicy); err != nil {
		return err
	}
	if c.MaxMessageBytes < 0 || c.RateLimitPerMinute < 0 || c.EventBuffer < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if c.SessionTTL < 0 || c.ReapInterval < 0 || c.RecoveryTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// CoreOptions translates the session settings for the coordinator.
func (c Config) CoreOptions() (core.Options, error) {
	policy, err := core.ParseDisconnectPolicy(c.DisconnectPolicy)
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		DisconnectPolicy:      policy,
		AllowEstimateWhenOpen: c.AllowEstimateWhenOpen,
		SessionTTL:            c.SessionTTL,
	}, nil
}
