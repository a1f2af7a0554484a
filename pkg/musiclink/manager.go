package musiclink

import (
	"context"
	"fmt"
)

// Manager coordinates the per-provider resolvers. It satisfies the
// pipeline's TrackResolver contract.
type Manager struct {
	resolvers []Resolver
}

// NewManager creates a manager with all supported resolvers. searcher may
// be nil, in which case Qobuz links are unresolvable.
func NewManager(searcher TrackSearcher) *Manager {
	return &Manager{
		resolvers: []Resolver{
			NewSpotifyResolver(),
			NewQobuzResolver(searcher),
			NewOdesliResolver(),
		},
	}
}

// Resolve dispatches the URL to the first capable resolver. Spotify links
// are parsed locally; everything else costs exactly one external lookup.
func (m *Manager) Resolve(ctx context.Context, url string) (string, error) {
	for _, resolver := range m.resolvers {
		if resolver.CanResolve(url) {
			return resolver.Resolve(ctx, url)
		}
	}

	return "", fmt.Errorf("no resolver for %q: %w", url, ErrUnresolvable)
}

// CanResolve checks if any resolver can handle the given URL.
func (m *Manager) CanResolve(url string) bool {
	for _, resolver := range m.resolvers {
		if resolver.CanResolve(url) {
			return true
		}
	}
	return false
}
