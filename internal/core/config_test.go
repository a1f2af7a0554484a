package core

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Slack.ChannelName != "jamcraft" {
		t.Errorf("expected default channel jamcraft, got %q", cfg.Slack.ChannelName)
	}
	if cfg.App.DedupTTL != time.Hour {
		t.Errorf("expected 1h dedup TTL, got %s", cfg.App.DedupTTL)
	}
	if cfg.App.DryRun {
		t.Error("dry run must be off by default")
	}
}

func TestSpotifyConfigured(t *testing.T) {
	complete := SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		PlaylistID:   "playlist",
	}

	tests := []struct {
		name   string
		mutate func(*SpotifyConfig)
		want   bool
	}{
		{"complete", func(*SpotifyConfig) {}, true},
		{"missing client id", func(c *SpotifyConfig) { c.ClientID = "" }, false},
		{"missing client secret", func(c *SpotifyConfig) { c.ClientSecret = "" }, false},
		{"missing refresh token", func(c *SpotifyConfig) { c.RefreshToken = "" }, false},
		{"missing playlist", func(c *SpotifyConfig) { c.PlaylistID = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Spotify = complete
			tt.mutate(&cfg.Spotify)

			if got := cfg.SpotifyConfigured(); got != tt.want {
				t.Errorf("SpotifyConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
