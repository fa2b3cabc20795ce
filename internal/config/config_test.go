package config

import (
	"testing"
)

func TestGetConfigPaths(t *testing.T) {
	paths := getConfigPaths()

	if len(paths) == 0 {
		t.Error("getConfigPaths() returned empty slice")
	}

	// Last path should be local config.toml (highest priority)
	lastPath := paths[len(paths)-1]
	if lastPath != "config.toml" {
		t.Errorf("last config path = %q, want %q", lastPath, "config.toml")
	}
}

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		in    Config
		check func(t *testing.T, c Config)
	}{
		{
			name: "zero config gets all defaults",
			in:   Config{},
			check: func(t *testing.T, c Config) {
				if c.Playback.Rate != 1.0 {
					t.Errorf("Rate = %f, want 1.0", c.Playback.Rate)
				}
				if c.Playback.SleepGuardSeconds != 0.5 {
					t.Errorf("SleepGuardSeconds = %f, want 0.5", c.Playback.SleepGuardSeconds)
				}
				if c.Sync.FlushSeconds != 10 {
					t.Errorf("FlushSeconds = %f, want 10", c.Sync.FlushSeconds)
				}
				if c.Playback.DeviceName == "" {
					t.Error("DeviceName empty after defaults")
				}
			},
		},
		{
			name: "valid values kept",
			in: Config{
				Playback: PlaybackConfig{Rate: 1.5, SleepGuardSeconds: 0.3, DeviceName: "study"},
				Sync:     SyncConfig{FlushSeconds: 15, PollSeconds: 60},
			},
			check: func(t *testing.T, c Config) {
				if c.Playback.Rate != 1.5 {
					t.Errorf("Rate = %f, want 1.5", c.Playback.Rate)
				}
				if c.Playback.SleepGuardSeconds != 0.3 {
					t.Errorf("SleepGuardSeconds = %f, want 0.3", c.Playback.SleepGuardSeconds)
				}
				if c.Sync.FlushSeconds != 15 {
					t.Errorf("FlushSeconds = %f, want 15", c.Sync.FlushSeconds)
				}
				if c.Playback.DeviceName != "study" {
					t.Errorf("DeviceName = %q, want study", c.Playback.DeviceName)
				}
			},
		},
		{
			name: "out-of-range rate resets",
			in:   Config{Playback: PlaybackConfig{Rate: 12}},
			check: func(t *testing.T, c Config) {
				if c.Playback.Rate != 1.0 {
					t.Errorf("Rate = %f, want 1.0", c.Playback.Rate)
				}
			},
		},
		{
			name: "guard never grows past half a second",
			in:   Config{Playback: PlaybackConfig{SleepGuardSeconds: 2}},
			check: func(t *testing.T, c Config) {
				if c.Playback.SleepGuardSeconds != 0.5 {
					t.Errorf("SleepGuardSeconds = %f, want 0.5", c.Playback.SleepGuardSeconds)
				}
			},
		},
		{
			name: "flush threshold never shrinks below ten seconds",
			in:   Config{Sync: SyncConfig{FlushSeconds: 2}},
			check: func(t *testing.T, c Config) {
				if c.Sync.FlushSeconds != 10 {
					t.Errorf("FlushSeconds = %f, want 10", c.Sync.FlushSeconds)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.applyDefaults()
			tt.check(t, c)
		})
	}
}

func TestHasServerConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{
			name: "url and token present",
			cfg:  Config{Server: ServerConfig{URL: "https://abs.example.com", Token: "tok"}},
			want: true,
		},
		{
			name: "missing token",
			cfg:  Config{Server: ServerConfig{URL: "https://abs.example.com"}},
			want: false,
		},
		{
			name: "missing url",
			cfg:  Config{Server: ServerConfig{Token: "tok"}},
			want: false,
		},
		{
			name: "empty",
			cfg:  Config{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.HasServerConfig(); got != tt.want {
				t.Errorf("HasServerConfig() = %v, want %v", got, tt.want)
			}
		})
	}
}
