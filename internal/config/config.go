// Package config loads the client configuration from TOML files and
// owns the persistent device identity sent to the media server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "hark"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Playback PlaybackConfig `koanf:"playback"`
	Sync     SyncConfig     `koanf:"sync"`
}

// ServerConfig points at the media server.
type ServerConfig struct {
	URL   string `koanf:"url"`   // e.g., "https://audiobooks.example.com"
	Token string `koanf:"token"` // API token from the server's user settings
}

// PlaybackConfig tunes the playback engine.
type PlaybackConfig struct {
	Rate float64 `koanf:"rate"` // initial playback rate (0.5-3.0, default: 1.0)
	// Guard window in seconds before a chapter boundary where the
	// chapters sleep timer stops. Conservative by contract: playback
	// stops at or before the boundary, never past it.
	SleepGuardSeconds float64 `koanf:"sleep_guard_seconds"` // default: 0.5
	DeviceName        string  `koanf:"device_name"`         // shown in the server's session list
}

// SyncConfig tunes progress synchronization.
type SyncConfig struct {
	// Accrued listening seconds that trigger a heartbeat flush.
	// Conservative by contract: flush at or after the threshold.
	FlushSeconds float64 `koanf:"flush_seconds"` // default: 10
	// Progress feed poll interval in seconds; 0 disables the feed.
	PollSeconds float64 `koanf:"poll_seconds"` // default: 30
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Sync: SyncConfig{PollSeconds: 30},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Server.URL = strings.TrimSuffix(cfg.Server.URL, "/")
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Playback.Rate < 0.5 || c.Playback.Rate > 3.0 {
		c.Playback.Rate = 1.0
	}
	if c.Playback.SleepGuardSeconds <= 0 || c.Playback.SleepGuardSeconds > 0.5 {
		c.Playback.SleepGuardSeconds = 0.5
	}
	if c.Playback.DeviceName == "" {
		if host, err := os.Hostname(); err == nil {
			c.Playback.DeviceName = host
		} else {
			c.Playback.DeviceName = appName
		}
	}
	if c.Sync.FlushSeconds < 10 {
		c.Sync.FlushSeconds = 10
	}
	if c.Sync.PollSeconds < 0 {
		c.Sync.PollSeconds = 0
	}
}

// HasServerConfig returns true if a media server is configured.
func (c *Config) HasServerConfig() bool {
	return c.Server.URL != "" && c.Server.Token != ""
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/hark/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

// DeviceID returns this installation's stable device identifier,
// generating and persisting one on first run. The server uses it to
// tell sessions from different devices apart.
func DeviceID() (string, error) {
	path, err := xdg.StateFile(filepath.Join(appName, "device_id"))
	if err != nil {
		return "", fmt.Errorf("resolve device id path: %w", err)
	}
	if raw, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(raw))
		if _, err := uuid.Parse(id); err == nil {
			return id, nil
		}
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
