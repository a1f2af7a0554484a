package musiclink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	// OdesliAPIURL is the song.link cross-platform lookup endpoint.
	OdesliAPIURL = "https://api.song.link/v1-alpha.1/links"
	// OdesliRequestTimeout is the timeout for Odesli API requests.
	OdesliRequestTimeout = 10 * time.Second
	// odesliMaxBodySize caps how much of the response body is read.
	odesliMaxBodySize = 1 << 20

	// entityUniqueIDPrefix marks Spotify entries in Odesli entity IDs,
	// e.g. "SPOTIFY_SONG::4cOdK2wGLETKBW3PvgPWqT".
	entityUniqueIDPrefix = "SPOTIFY_SONG::"
)

// odesliResponse is the subset of the Odesli payload we consume.
type odesliResponse struct {
	LinksByPlatform map[string]odesliPlatformLink `json:"linksByPlatform"`
}

type odesliPlatformLink struct {
	URL            string `json:"url"`
	EntityUniqueID string `json:"entityUniqueId"`
}

// OdesliResolver resolves non-Spotify provider links (YouTube, Apple
// Music, and anything else song.link supports) to Spotify track IDs with
// a single GET per link.
type OdesliResolver struct {
	apiURL string
	client *http.Client
}

func NewOdesliResolver() *OdesliResolver {
	return &OdesliResolver{
		apiURL: OdesliAPIURL,
		client: &http.Client{
			Timeout: OdesliRequestTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxHTTPRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
	}
}

// CanResolve accepts YouTube and Apple Music links. Qobuz is excluded:
// Odesli does not index it, so the Qobuz resolver must run instead.
func (r *OdesliResolver) CanResolve(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be",
		"music.apple.com", "itunes.apple.com":
		return true
	}
	return false
}

// Resolve performs one Odesli lookup and extracts the Spotify entry from
// the returned platform links. Missing entry, request error, or non-2xx
// status all fail with ErrUnresolvable.
func (r *OdesliResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	lookupURL := normalizeForOdesli(rawURL)

	reqURL := fmt.Sprintf("%s?url=%s", r.apiURL, url.QueryEscape(lookupURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("building odesli request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("odesli request failed for %s: %w", rawURL, ErrUnresolvable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("odesli returned status %d: %w", resp.StatusCode, ErrUnresolvable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, odesliMaxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading odesli response: %w", ErrUnresolvable)
	}

	var parsed odesliResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding odesli response: %w", ErrUnresolvable)
	}

	entry, ok := parsed.LinksByPlatform["spotify"]
	if !ok {
		return "", fmt.Errorf("no spotify entry for %s: %w", rawURL, ErrUnresolvable)
	}

	if id, ok := ParseSpotifyTrackID(entry.URL); ok {
		return id, nil
	}

	if id, ok := strings.CutPrefix(entry.EntityUniqueID, entityUniqueIDPrefix); ok {
		if spotifyIDRegex.MatchString(id) {
			return id, nil
		}
	}

	return "", fmt.Errorf("spotify entry without usable ID for %s: %w", rawURL, ErrUnresolvable)
}

// normalizeForOdesli rewrites music.youtube.com links to www.youtube.com;
// Odesli may not recognize the music subdomain but the video ID format is
// identical.
func normalizeForOdesli(rawURL string) string {
	return strings.Replace(rawURL, "music.youtube.com", "www.youtube.com", 1)
}
