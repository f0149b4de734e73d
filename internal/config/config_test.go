package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Domain != DefaultDomain {
		t.Errorf("Domain = %q", cfg.Domain)
	}
	if len(cfg.STUNServers) != 1 || cfg.STUNServers[0] != DefaultSTUN {
		t.Errorf("STUNServers = %v", cfg.STUNServers)
	}
	if cfg.ReconnectBase != time.Second || cfg.ReconnectCap != 30*time.Second {
		t.Errorf("backoff = %v/%v", cfg.ReconnectBase, cfg.ReconnectCap)
	}
	if cfg.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
	if cfg.ReadyDelay != 300*time.Millisecond {
		t.Errorf("ReadyDelay = %v", cfg.ReadyDelay)
	}
	if cfg.VADInterval != 100*time.Millisecond || cfg.VADThreshold != 0.02 {
		t.Errorf("VAD = %v/%v", cfg.VADInterval, cfg.VADThreshold)
	}
}

func TestLoadFlagOverrides(t *testing.T) {
	cfg, err := Load(Options{
		Domain:      "game.example.com",
		STUNServer:  "stun:stun.example.com:3478",
		AudioSource: "/tmp/mic.ogg",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Domain != "game.example.com" {
		t.Errorf("Domain = %q", cfg.Domain)
	}
	if len(cfg.STUNServers) != 1 || cfg.STUNServers[0] != "stun:stun.example.com:3478" {
		t.Errorf("STUNServers = %v", cfg.STUNServers)
	}
	if cfg.AudioSource != "/tmp/mic.ogg" {
		t.Errorf("AudioSource = %q", cfg.AudioSource)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GRIDVOICE_DOMAIN", "env.example.com")
	t.Setenv("GRIDVOICE_MAX_ATTEMPTS", "3")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != "env.example.com" {
		t.Errorf("Domain = %q", cfg.Domain)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}

	// Flags still beat the environment.
	cfg, err = Load(Options{Domain: "flag.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != "flag.example.com" {
		t.Errorf("Domain = %q", cfg.Domain)
	}
}

func TestURLs(t *testing.T) {
	cfg := &Config{Domain: "game.example.com"}
	if got := cfg.AuthURL(); got != "https://game.example.com/api/auth" {
		t.Errorf("AuthURL = %q", got)
	}
	if got := cfg.WebSocketURL("tok"); got != "wss://game.example.com/ws?token=tok" {
		t.Errorf("WebSocketURL = %q", got)
	}
}
