package musiclink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	// QobuzAPIURL is the public track metadata endpoint backing the
	// open.qobuz.com smart-link pages.
	QobuzAPIURL = "https://www.qobuz.com/api.json/0.2/track/get"
	// qobuzOpenAppID is open.qobuz.com's public app ID, which allows
	// unsigned GET requests.
	qobuzOpenAppID = "712109809"
	// QobuzRequestTimeout is the timeout for Qobuz API requests.
	QobuzRequestTimeout = 10 * time.Second

	qobuzMaxBodySize = 1 << 20
)

var qobuzTrackRegex = regexp.MustCompile(`open\.qobuz\.com/track/([0-9]+)`)

// qobuzTrackResponse is the subset of the Qobuz track payload we consume.
// Artist attribution varies by release, hence the cascade of fields.
type qobuzTrackResponse struct {
	Title      string        `json:"title"`
	Performer  *qobuzPerson  `json:"performer"`
	Performers []qobuzPerson `json:"performers"`
	Composer   *qobuzPerson  `json:"composer"`
	Album      *struct {
		Artist *qobuzPerson `json:"artist"`
	} `json:"album"`
}

type qobuzPerson struct {
	Name string `json:"name"`
}

// QobuzResolver resolves open.qobuz.com track links. Odesli does not index
// Qobuz, so this path fetches artist and title from Qobuz's public API and
// searches the Spotify catalog for the best match.
type QobuzResolver struct {
	apiURL   string
	client   *http.Client
	searcher TrackSearcher
}

func NewQobuzResolver(searcher TrackSearcher) *QobuzResolver {
	return &QobuzResolver{
		apiURL:   QobuzAPIURL,
		client:   &http.Client{Timeout: QobuzRequestTimeout},
		searcher: searcher,
	}
}

// CanResolve checks if the URL is a Qobuz track link.
func (r *QobuzResolver) CanResolve(rawURL string) bool {
	return qobuzTrackRegex.MatchString(rawURL)
}

// Resolve fetches track metadata from Qobuz and delegates to the catalog
// searcher. Requires a searcher; without one the link is unresolvable.
func (r *QobuzResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	if r.searcher == nil {
		return "", fmt.Errorf("no catalog searcher configured: %w", ErrUnresolvable)
	}

	matches := qobuzTrackRegex.FindStringSubmatch(rawURL)
	if len(matches) < 2 {
		return "", fmt.Errorf("no track segment in %q: %w", rawURL, ErrUnresolvable)
	}

	artist, title, err := r.fetchMetadata(ctx, matches[1])
	if err != nil {
		return "", err
	}

	id, err := r.searcher.SearchTrack(ctx, artist, title)
	if err != nil {
		return "", fmt.Errorf("catalog search for %q - %q: %w", artist, title, ErrUnresolvable)
	}

	return id, nil
}

func (r *QobuzResolver) fetchMetadata(ctx context.Context, trackID string) (artist, title string, err error) {
	reqURL := fmt.Sprintf("%s?track_id=%s&app_id=%s", r.apiURL, url.QueryEscape(trackID), qobuzOpenAppID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", "", fmt.Errorf("building qobuz request: %w", err)
	}
	req.Header.Set("User-Agent", commonUserAgent)
	req.Header.Set("Origin", "https://open.qobuz.com")
	req.Header.Set("Referer", "https://open.qobuz.com/")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("qobuz request failed: %w", ErrUnresolvable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("qobuz returned status %d: %w", resp.StatusCode, ErrUnresolvable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, qobuzMaxBodySize))
	if err != nil {
		return "", "", fmt.Errorf("reading qobuz response: %w", ErrUnresolvable)
	}

	var parsed qobuzTrackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("decoding qobuz response: %w", ErrUnresolvable)
	}

	title = strings.TrimSpace(parsed.Title)
	artist = parsed.artistName()
	if title == "" || artist == "" {
		return "", "", fmt.Errorf("qobuz metadata incomplete for track %s: %w", trackID, ErrUnresolvable)
	}

	return artist, title, nil
}

func (t *qobuzTrackResponse) artistName() string {
	if t.Performer != nil && t.Performer.Name != "" {
		return t.Performer.Name
	}
	if len(t.Performers) > 0 && t.Performers[0].Name != "" {
		return t.Performers[0].Name
	}
	if t.Album != nil && t.Album.Artist != nil && t.Album.Artist.Name != "" {
		return t.Album.Artist.Name
	}
	if t.Composer != nil && t.Composer.Name != "" {
		return t.Composer.Name
	}
	return ""
}
