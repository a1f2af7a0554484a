package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// The redirect URI only needs to match the Spotify app registration; the
// browser lands on a dead page and the user pastes the URL back here.
const authRedirectURL = "http://127.0.0.1:3000/callback"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Obtain a Spotify refresh token interactively",
	Long: `auth walks through the Spotify authorization-code flow once and
prints the refresh token to store as JAMCRAFT_SPOTIFY_REFRESH_TOKEN.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(_ *cobra.Command, _ []string) error {
	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client ID and client secret are required")
	}

	conf := &oauth2.Config{
		ClientID:     config.Spotify.ClientID,
		ClientSecret: config.Spotify.ClientSecret,
		RedirectURL:  authRedirectURL,
		Scopes: []string{
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	state := fmt.Sprintf("jamcraft-%d", time.Now().UnixNano())

	fmt.Println("Open this URL in your browser and authorize the app:")
	fmt.Println()
	fmt.Println("  " + conf.AuthCodeURL(state))
	fmt.Println()
	fmt.Print("Paste the full URL you were redirected to: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read redirect URL: %w", err)
	}

	code, err := extractAuthCode(strings.TrimSpace(line), state)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("spotify returned no refresh token")
	}

	fmt.Println()
	fmt.Println("Success! Add this to your environment:")
	fmt.Printf("\n  JAMCRAFT_SPOTIFY_REFRESH_TOKEN=%s\n\n", token.RefreshToken)
	return nil
}

func extractAuthCode(redirectURL, wantState string) (string, error) {
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}

	query := parsed.Query()
	if errParam := query.Get("error"); errParam != "" {
		return "", fmt.Errorf("authorization denied: %s", errParam)
	}
	if state := query.Get("state"); state != wantState {
		return "", fmt.Errorf("state mismatch: got %q", state)
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL carries no authorization code")
	}
	return code, nil
}
