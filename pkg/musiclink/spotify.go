package musiclink

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Spotify track IDs are base62 tokens of this exact length.
const spotifyIDLength = 22

var (
	spotifyTrackRegex = regexp.MustCompile(`(?:open\.)?spotify\.com/(?:[a-z\-]+/)?track/([a-zA-Z0-9]+)`)
	spotifyURIRegex   = regexp.MustCompile(`spotify:track:([a-zA-Z0-9]+)`)
	spotifyIDRegex    = regexp.MustCompile(`^[a-zA-Z0-9]{22}$`)
)

// SpotifyResolver extracts track IDs directly from Spotify URLs and URIs.
// It performs no network I/O.
type SpotifyResolver struct{}

func NewSpotifyResolver() *SpotifyResolver {
	return &SpotifyResolver{}
}

// CanResolve checks if the URL is a Spotify track link or URI.
func (r *SpotifyResolver) CanResolve(rawURL string) bool {
	if spotifyURIRegex.MatchString(rawURL) {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	hostname := strings.ToLower(u.Hostname())
	return (hostname == "open.spotify.com" || hostname == "spotify.com") &&
		strings.Contains(u.Path, "/track/")
}

// Resolve extracts the track ID from the URL path or URI and validates its
// shape. Malformed IDs fail fast.
func (r *SpotifyResolver) Resolve(_ context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)

	var id string
	if matches := spotifyURIRegex.FindStringSubmatch(rawURL); len(matches) > 1 {
		id = matches[1]
	} else if matches := spotifyTrackRegex.FindStringSubmatch(rawURL); len(matches) > 1 {
		id = matches[1]
	}

	if id == "" {
		return "", fmt.Errorf("no track segment in %q: %w", rawURL, ErrUnresolvable)
	}

	if !spotifyIDRegex.MatchString(id) {
		return "", fmt.Errorf("malformed track ID %q: %w", id, ErrUnresolvable)
	}

	return id, nil
}

// ParseSpotifyTrackID extracts and validates a track ID from arbitrary
// text containing a Spotify track URL. Used by the Odesli resolver on
// returned platform links.
func ParseSpotifyTrackID(s string) (string, bool) {
	matches := spotifyTrackRegex.FindStringSubmatch(s)
	if len(matches) < 2 || !spotifyIDRegex.MatchString(matches[1]) {
		return "", false
	}
	return matches[1], true
}
