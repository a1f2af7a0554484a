package core

import (
	"time"
)

type Config struct {
	Slack   SlackConfig
	Spotify SpotifyConfig
	Server  ServerConfig
	Log     LogConfig
	App     AppConfig
}

type SlackConfig struct {
	BotToken      string
	SigningSecret string
	ChannelID     string // resolved at startup when only ChannelName is set
	ChannelName   string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	PlaylistID   string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	DryRun            bool
	BackfillOnStartup bool
	DedupTTL          time.Duration
	RequestTimeout    time.Duration
	FloodLimitPerMin  int
}

func DefaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			ChannelName: "jamcraft",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			DedupTTL:         time.Hour,
			RequestTimeout:   10 * time.Second,
			FloodLimitPerMin: 20,
		},
	}
}

// SpotifyConfigured reports whether every credential needed for playlist
// mutation is present. When false the pipeline surfaces ConfigMissing
// instead of attempting Spotify calls.
func (c *Config) SpotifyConfigured() bool {
	return c.Spotify.ClientID != "" &&
		c.Spotify.ClientSecret != "" &&
		c.Spotify.RefreshToken != "" &&
		c.Spotify.PlaylistID != ""
}
