// Package spotify provides the credential manager and playlist gateway
// backing the ingestion pipeline.
package spotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"jamcraft/internal/core"
)

// tokenSafetyMargin is how long before expiry a token is refreshed, so an
// in-flight request never rides a token that expires mid-call.
const tokenSafetyMargin = 60 * time.Second

// refreshTimeout bounds the token exchange with accounts.spotify.com.
const refreshTimeout = 10 * time.Second

// CredentialManager owns the single shared access credential. It
// implements oauth2.TokenSource; the playlist gateway's HTTP client pulls
// tokens through it on every request.
//
// Refresh is collapsed through singleflight: when N callers observe an
// expired credential simultaneously, one refresh exchange runs and the
// rest wait for its result. Failures are never cached; the next call
// retries.
type CredentialManager struct {
	conf         *oauth2.Config
	refreshToken string
	logger       *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token

	group singleflight.Group
	now   func() time.Time
}

func NewCredentialManager(config *core.SpotifyConfig, logger *zap.Logger) *CredentialManager {
	return &CredentialManager{
		conf: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		refreshToken: config.RefreshToken,
		logger:       logger,
		now:          time.Now,
	}
}

// Token returns a valid access token, refreshing first when the stored one
// is within the safety margin of expiry. Satisfies oauth2.TokenSource.
func (m *CredentialManager) Token() (*oauth2.Token, error) {
	if tok := m.current(); tok != nil {
		return tok, nil
	}

	v, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		// A concurrent flight may have refreshed while we queued.
		if tok := m.current(); tok != nil {
			return tok, nil
		}
		return m.refresh()
	})
	if err != nil {
		return nil, err
	}

	return v.(*oauth2.Token), nil
}

// Invalidate discards the stored credential so the next Token call
// refreshes. Used after a 401-class upstream response.
func (m *CredentialManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

func (m *CredentialManager) current() *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil || !m.now().Before(m.token.Expiry.Add(-tokenSafetyMargin)) {
		return nil
	}
	return m.token
}

// refresh performs the refresh-token grant. No lock is held across the
// exchange.
func (m *CredentialManager) refresh() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	src := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: m.refreshToken})
	tok, err := src.Token()
	if err != nil {
		m.logger.Warn("Token refresh failed", zap.Error(err))
		return nil, fmt.Errorf("refresh exchange: %v: %w", err, core.ErrAuth)
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	m.logger.Debug("Access token refreshed",
		zap.Time("expiresAt", tok.Expiry))

	return tok, nil
}
