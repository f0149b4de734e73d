package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values (production)
const (
	DefaultDomain = "gridvoice.qzz.io"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds application configuration.
type Config struct {
	// Domain is the game service domain; WebSocket and auth URLs are built
	// from it.
	Domain string `mapstructure:"domain"`

	// STUNServers are the public relay-discovery endpoints for NAT traversal.
	// No TURN infrastructure is assumed: connection establishment can fail
	// behind restrictive NATs.
	STUNServers []string `mapstructure:"stun_servers"`

	// Reconnect backoff: delay(n) = min(base * 2^(n-1), cap), up to
	// max_attempts sequential attempts.
	ReconnectBase time.Duration `mapstructure:"reconnect_base"`
	ReconnectCap  time.Duration `mapstructure:"reconnect_cap"`
	MaxAttempts   int           `mapstructure:"max_attempts"`

	// ReadyDelay is the grace period after the channel reports open before
	// request/response calls are allowed. Covers server-side readiness lag.
	ReadyDelay time.Duration `mapstructure:"ready_delay"`

	// DeleteTimeout bounds the account-deletion response wait.
	DeleteTimeout time.Duration `mapstructure:"delete_timeout"`

	// Voice activity detection.
	VADInterval  time.Duration `mapstructure:"vad_interval"`
	VADThreshold float64       `mapstructure:"vad_threshold"`

	// AudioSource is the path of the Ogg/Opus file or pipe used as the
	// microphone input. Empty means no capture device is available.
	AudioSource string `mapstructure:"audio_source"`
}

// Options carries CLI flag overrides, which take priority over environment
// variables and defaults.
type Options struct {
	Domain      string
	STUNServer  string
	AudioSource string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables (GRIDVOICE_ prefix)
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("gridvoice")
	v.AutomaticEnv()

	v.SetDefault("domain", DefaultDomain)
	v.SetDefault("stun_servers", []string{DefaultSTUN})
	v.SetDefault("reconnect_base", "1s")
	v.SetDefault("reconnect_cap", "30s")
	v.SetDefault("max_attempts", 10)
	v.SetDefault("ready_delay", "300ms")
	v.SetDefault("delete_timeout", "5s")
	v.SetDefault("vad_interval", "100ms")
	v.SetDefault("vad_threshold", 0.02)
	v.SetDefault("audio_source", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if opts.Domain != "" {
		cfg.Domain = opts.Domain
	}
	if opts.STUNServer != "" {
		cfg.STUNServers = []string{opts.STUNServer}
	}
	if opts.AudioSource != "" {
		cfg.AudioSource = opts.AudioSource
	}

	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("max_attempts must be >= 0, got %d", cfg.MaxAttempts)
	}

	return &cfg, nil
}

// AuthURL returns the HTTP endpoint for device authentication.
func (c *Config) AuthURL() string {
	return fmt.Sprintf("https://%s/api/auth", c.Domain)
}

// WebSocketURL returns the duplex channel endpoint for a session token.
func (c *Config) WebSocketURL(token string) string {
	return fmt.Sprintf("wss://%s/ws?token=%s", c.Domain, token)
}
