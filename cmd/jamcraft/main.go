// Package main provides the jamcraft CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"jamcraft/internal/core"
	"jamcraft/internal/flood"
	httpserver "jamcraft/internal/http"
	"jamcraft/internal/slack"
	"jamcraft/internal/spotify"
	"jamcraft/internal/store"
	"jamcraft/pkg/musiclink"
	"jamcraft/pkg/text"
)

const (
	dedupMaxTracks        = 10000
	dedupBloomFPRate      = 0.001
	dedupSweepInterval    = 5 * time.Minute
	startupTimeout        = 30 * time.Second
	gaugeInterval         = time.Minute
	playlistGaugeInterval = 10 * time.Minute
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jamcraft",
	Short: "jamcraft - Slack channel → Spotify playlist",
	Long: `jamcraft listens to a Slack channel, resolves shared music links
(Spotify, YouTube, Apple Music, Qobuz) to Spotify tracks and appends
them to a shared playlist.`,
	RunE: runJamcraft,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("slack-bot-token", "", "Slack bot token (xoxb-...)")
	rootCmd.PersistentFlags().String("slack-signing-secret", "", "Slack request signing secret")
	rootCmd.PersistentFlags().String("slack-channel-id", "", "Slack channel ID to listen on")
	rootCmd.PersistentFlags().String("slack-channel-name", "jamcraft", "Slack channel name, resolved to an ID at startup")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-refresh-token", "", "Spotify OAuth refresh token")
	rootCmd.PersistentFlags().String("spotify-playlist-id", "", "Target Spotify playlist ID")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 3000, "HTTP server port")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Resolve and log but never mutate the playlist")
	rootCmd.PersistentFlags().Bool("backfill", false, "Scan the full channel history on startup")
	rootCmd.PersistentFlags().Duration("dedup-ttl", time.Hour, "How long a track counts as recently seen")
	rootCmd.PersistentFlags().Duration("request-timeout", 10*time.Second, "Per-call timeout for upstream APIs")
	rootCmd.PersistentFlags().Int("flood-limit-per-minute", 20, "Maximum messages per user per minute")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("JAMCRAFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(&config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Slack.BotToken = viper.GetString("slack-bot-token")
	cfg.Slack.SigningSecret = viper.GetString("slack-signing-secret")
	cfg.Slack.ChannelID = viper.GetString("slack-channel-id")
	if name := viper.GetString("slack-channel-name"); name != "" {
		cfg.Slack.ChannelName = name
	}

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.RefreshToken = viper.GetString("spotify-refresh-token")
	cfg.Spotify.PlaylistID = viper.GetString("spotify-playlist-id")

	if host := viper.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("server-port"); port != 0 {
		cfg.Server.Port = port
	}

	cfg.Log.Level = viper.GetString("log-level")
	if format := viper.GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}

	cfg.App.DryRun = viper.GetBool("dry-run")
	cfg.App.BackfillOnStartup = viper.GetBool("backfill")
	if ttl := viper.GetDuration("dedup-ttl"); ttl > 0 {
		cfg.App.DedupTTL = ttl
	}
	if timeout := viper.GetDuration("request-timeout"); timeout > 0 {
		cfg.App.RequestTimeout = timeout
	}
	cfg.App.FloodLimitPerMin = viper.GetInt("flood-limit-per-minute")

	return cfg
}

func buildLogger(cfg *core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func validateConfig() error {
	if config.Slack.BotToken == "" {
		return fmt.Errorf("slack bot token is required")
	}
	if config.Slack.SigningSecret == "" {
		return fmt.Errorf("slack signing secret is required")
	}
	if config.Slack.ChannelID == "" && config.Slack.ChannelName == "" {
		return fmt.Errorf("a slack channel ID or channel name is required")
	}
	return nil
}

func runJamcraft(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting jamcraft",
		zap.String("channel", config.Slack.ChannelName),
		zap.String("playlist", config.Spotify.PlaylistID),
		zap.Bool("dryRun", config.App.DryRun),
		zap.Bool("spotifyConfigured", config.SpotifyConfigured()))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

type services struct {
	slackClient *slack.Client
	gateway     *spotify.Gateway
	dedup       *store.DedupCache
	gate        *flood.Gate
	pipeline    *core.Pipeline
	backfill    *core.Backfill
	httpServer  *httpserver.Server
	ready       *atomic.Bool
}

func initializeServices(ctx context.Context) (*services, error) {
	slackClient := slack.NewClient(config.Slack.BotToken, logger.Named("slack"))

	if config.Slack.ChannelID == "" {
		resolveCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()

		channelID, err := slackClient.ResolveChannelID(resolveCtx, config.Slack.ChannelName)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %q: %w", config.Slack.ChannelName, err)
		}
		config.Slack.ChannelID = channelID
		logger.Info("Resolved channel name",
			zap.String("channel", config.Slack.ChannelName),
			zap.String("channelID", channelID))
	}

	creds := spotify.NewCredentialManager(&config.Spotify, logger.Named("spotify"))
	gateway := spotify.NewGateway(&config.Spotify, creds, logger.Named("spotify"), config.App.DryRun)

	dedup := store.NewDedupCache(config.App.DedupTTL, dedupMaxTracks, dedupBloomFPRate)
	gate := flood.NewGate(config.App.FloodLimitPerMin)

	pipeline := core.NewPipeline(
		config,
		text.NewParser(),
		musiclink.NewManager(gateway),
		dedup,
		gateway,
		slackClient,
		logger.Named("pipeline"),
	)

	var backfill *core.Backfill
	if config.App.BackfillOnStartup {
		backfill = core.NewBackfill(pipeline, slackClient, config.Slack.ChannelID, logger.Named("backfill"))
	}

	ready := &atomic.Bool{}
	httpServer := httpserver.NewServer(config, pipeline, gate, logger.Named("http"), ready.Load)

	return &services{
		slackClient: slackClient,
		gateway:     gateway,
		dedup:       dedup,
		gate:        gate,
		pipeline:    pipeline,
		backfill:    backfill,
		httpServer:  httpServer,
		ready:       ready,
	}, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Run(gCtx)
	})

	g.Go(func() error {
		svcs.dedup.RunSweeper(gCtx, dedupSweepInterval)
		return nil
	})

	g.Go(func() error {
		svcs.gate.RunCleaner(gCtx)
		return nil
	})

	g.Go(func() error {
		publishDedupSize(gCtx, svcs)
		return nil
	})

	if config.SpotifyConfigured() {
		g.Go(func() error {
			publishPlaylistSize(gCtx, svcs)
			return nil
		})
	}

	if svcs.backfill != nil {
		g.Go(func() error {
			if err := svcs.backfill.Run(gCtx); err != nil {
				// Backfill is best-effort; live ingestion keeps running.
				logger.Warn("Backfill failed", zap.Error(err))
			}
			return nil
		})
	}

	svcs.ready.Store(true)
	logger.Info("jamcraft started",
		zap.String("addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("jamcraft stopped with error", zap.Error(err))
		return err
	}

	logger.Info("jamcraft stopped gracefully")
	return nil
}

func publishDedupSize(ctx context.Context, svcs *services) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svcs.httpServer.Metrics().SetDedupSize(svcs.dedup.Size())
		}
	}
}

// publishPlaylistSize pages the full playlist, so it runs far less often
// than the cheap gauges.
func publishPlaylistSize(ctx context.Context, svcs *services) {
	ticker := time.NewTicker(playlistGaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := svcs.gateway.CountTracks(ctx)
			if err != nil {
				logger.Debug("Playlist size probe failed", zap.Error(err))
				continue
			}
			svcs.httpServer.Metrics().SetPlaylistSize(count)
		}
	}
}
