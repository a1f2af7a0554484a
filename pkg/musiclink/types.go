// Package musiclink resolves music provider URLs to canonical Spotify
// track IDs, either by direct parsing (Spotify links) or by delegating to
// external lookup services.
package musiclink

import (
	"context"
	"errors"
)

// ErrUnresolvable is returned when no Spotify track ID can be derived from
// a link. It is terminal for that link and never retried.
var ErrUnresolvable = errors.New("musiclink: unresolvable link")

// Resolver maps a provider URL to a Spotify track ID.
type Resolver interface {
	// Resolve returns the canonical track ID for the URL, or an error
	// wrapping ErrUnresolvable.
	Resolve(ctx context.Context, url string) (string, error)

	// CanResolve checks if this resolver can handle the given URL.
	CanResolve(url string) bool
}

// TrackSearcher finds the best catalog match for externally sourced track
// metadata. The Spotify playlist gateway implements it.
type TrackSearcher interface {
	SearchTrack(ctx context.Context, artist, title string) (string, error)
}
