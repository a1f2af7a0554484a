package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"jamcraft/internal/core"
	"jamcraft/pkg/fuzzy"
)

const (
	// playlistPageSize is the page size for membership listing.
	playlistPageSize = 100
	// maxSearchResults limits how many catalog search hits are ranked.
	maxSearchResults = 10
	// apiRate paces paginated reads so backfill scans stay under
	// Spotify's request quota.
	apiRate  = rate.Limit(10)
	apiBurst = 5
)

// Gateway manages membership checks and appends against the target
// playlist. All calls are bearer-authenticated through the credential
// manager; a 401-class response triggers exactly one forced
// refresh-and-retry.
type Gateway struct {
	config     *core.SpotifyConfig
	logger     *zap.Logger
	creds      *CredentialManager
	client     *spotify.Client
	normalizer *fuzzy.Normalizer
	limiter    *rate.Limiter
	dryRun     bool
}

func NewGateway(config *core.SpotifyConfig, creds *CredentialManager, logger *zap.Logger, dryRun bool) *Gateway {
	httpClient := oauth2.NewClient(context.Background(), creds)

	return &Gateway{
		config:     config,
		logger:     logger,
		creds:      creds,
		client:     spotify.New(httpClient),
		normalizer: fuzzy.NewNormalizer(),
		limiter:    rate.NewLimiter(apiRate, apiBurst),
		dryRun:     dryRun,
	}
}

// EnsureAdded appends trackID to the target playlist unless it is already
// a member. The full membership listing is paged through before any
// append, so a track added outside this process is never duplicated.
func (g *Gateway) EnsureAdded(ctx context.Context, trackID string) (core.AddResult, error) {
	if g.config.PlaylistID == "" {
		return 0, core.ErrNotConfigured
	}

	var present bool
	err := g.withAuthRetry(ctx, func() error {
		ids, err := g.playlistTrackIDs(ctx)
		if err != nil {
			return err
		}
		_, present = ids[trackID]
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("membership check for %s: %w", trackID, err)
	}

	if present {
		g.logger.Debug("Track already in playlist", zap.String("trackID", trackID))
		return core.TrackAlreadyPresent, nil
	}

	if g.dryRun {
		g.logger.Info("Dry run: would add track",
			zap.String("trackID", trackID),
			zap.String("playlistID", g.config.PlaylistID))
		return core.TrackAdded, nil
	}

	err = g.withAuthRetry(ctx, func() error {
		_, err := g.client.AddTracksToPlaylist(ctx, spotify.ID(g.config.PlaylistID), spotify.ID(trackID))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add track %s: %w", trackID, err)
	}

	g.logger.Info("Track added to playlist",
		zap.String("trackID", trackID),
		zap.String("playlistID", g.config.PlaylistID))

	return core.TrackAdded, nil
}

// SearchTrack finds the best catalog match for the given artist and title,
// ranked by fuzzy similarity. Used by the Qobuz resolution path.
func (g *Gateway) SearchTrack(ctx context.Context, artist, title string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf("artist:%q track:%q", artist, title)

	var results *spotify.SearchResult
	err := g.withAuthRetry(ctx, func() error {
		var err error
		results, err = g.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(maxSearchResults))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return "", fmt.Errorf("no tracks found for %q - %q", artist, title)
	}

	return g.bestMatch(results.Tracks.Tracks, artist, title), nil
}

// CountTracks returns the number of tracks currently in the playlist.
func (g *Gateway) CountTracks(ctx context.Context) (int, error) {
	if g.config.PlaylistID == "" {
		return 0, core.ErrNotConfigured
	}

	var count int
	err := g.withAuthRetry(ctx, func() error {
		ids, err := g.playlistTrackIDs(ctx)
		if err != nil {
			return err
		}
		count = len(ids)
		return nil
	})
	return count, err
}

// playlistTrackIDs pages through all playlist items. Stopping at the first
// page would yield false negatives on large playlists.
func (g *Gateway) playlistTrackIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	offset := 0

	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		items, err := g.client.GetPlaylistItems(ctx, spotify.ID(g.config.PlaylistID),
			spotify.Limit(playlistPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("get playlist items at offset %d: %w", offset, err)
		}

		for i := range items.Items {
			// Episodes and removed items come back with a nil track.
			if items.Items[i].Track.Track != nil {
				ids[string(items.Items[i].Track.Track.ID)] = struct{}{}
			}
		}

		if len(items.Items) < playlistPageSize {
			return ids, nil
		}
		offset += playlistPageSize
	}
}

func (g *Gateway) bestMatch(tracks []spotify.FullTrack, artist, title string) string {
	wantTitle := g.normalizer.NormalizeTitle(title)
	wantArtist := g.normalizer.NormalizeArtist(artist)

	bestID := string(tracks[0].ID)
	bestScore := -1.0

	for i := range tracks {
		gotTitle := g.normalizer.NormalizeTitle(tracks[i].Name)
		gotArtist := ""
		if len(tracks[i].Artists) > 0 {
			gotArtist = g.normalizer.NormalizeArtist(tracks[i].Artists[0].Name)
		}

		score := 0.7*g.normalizer.CalculateSimilarity(gotTitle, wantTitle) +
			0.3*g.normalizer.CalculateSimilarity(gotArtist, wantArtist)
		if score > bestScore {
			bestScore = score
			bestID = string(tracks[i].ID)
		}
	}

	return bestID
}

// withAuthRetry runs fn, and on a 401-class failure invalidates the
// credential and retries exactly once.
func (g *Gateway) withAuthRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isUnauthorized(err) {
		return err
	}

	g.logger.Warn("Got 401 from Spotify, forcing token refresh and retrying")
	g.creds.Invalidate()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fn()
}

func isUnauthorized(err error) bool {
	var se spotify.Error
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}
