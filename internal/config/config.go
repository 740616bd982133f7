package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.easychat/config.toml.
type Config struct {
	// ServerURL is the websocket chat endpoint (ws:// or wss://).
	ServerURL string `toml:"server_url"`
	// APIBaseURL is the HTTP endpoint for contacts, groups and history.
	APIBaseURL string `toml:"api_base_url"`
	// HeartbeatSeconds is the keep-alive ping interval.
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
	// HistoryLimit is the page size for full history backfills.
	HistoryLimit int `toml:"history_limit"`
	// PollSeconds is the pending friend-request poll interval.
	PollSeconds int `toml:"poll_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL:        "wss://api.chirpchump.xyz/ws/chat",
		APIBaseURL:       "https://api.chirpchump.xyz",
		HeartbeatSeconds: 30,
		HistoryLimit:     100,
		PollSeconds:      10,
	}
}

// Load reads config from the given path, filling unset fields with defaults.
// A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.HeartbeatSeconds <= 0 {
		cfg.HeartbeatSeconds = 30
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.PollSeconds <= 0 {
		cfg.PollSeconds = 10
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
