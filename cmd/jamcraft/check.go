package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jamcraft/internal/spotify"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the Spotify credentials and playlist access",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(_ *cobra.Command, _ []string) error {
	if !config.SpotifyConfigured() {
		return fmt.Errorf("spotify is not fully configured: client ID, client secret, " +
			"refresh token and playlist ID are all required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	creds := spotify.NewCredentialManager(&config.Spotify, logger.Named("spotify"))
	if _, err := creds.Token(); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	fmt.Println("✅ Refresh token is valid")

	gateway := spotify.NewGateway(&config.Spotify, creds, logger.Named("spotify"), true)
	count, err := gateway.CountTracks(ctx)
	if err != nil {
		return fmt.Errorf("playlist check failed: %w", err)
	}
	fmt.Printf("✅ Playlist %s reachable, %d track(s)\n", config.Spotify.PlaylistID, count)

	return nil
}
