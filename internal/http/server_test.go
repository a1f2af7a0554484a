package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"jamcraft/internal/core"
	"jamcraft/internal/flood"
)

const testSigningSecret = "test-signing-secret"

type stubExtractor struct{}

func (stubExtractor) Extract(text string) []core.RawLink {
	if !strings.Contains(text, "open.spotify.com/track/") {
		return nil
	}
	return []core.RawLink{{Provider: core.ProviderSpotify, URL: text}}
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, url string) (string, error) {
	return url[len(url)-22:], nil
}

type stubDedup struct{}

func (stubDedup) CheckAndMark(string) bool { return true }
func (stubDedup) Size() int                { return 0 }

// signalGateway reports every EnsureAdded call on a channel so tests can
// wait for the async processing goroutine.
type signalGateway struct {
	calls chan string
}

func (g *signalGateway) EnsureAdded(_ context.Context, trackID string) (core.AddResult, error) {
	g.calls <- trackID
	return core.TrackAdded, nil
}

type noopNotifier struct{}

func (noopNotifier) React(context.Context, string, string, string) error { return nil }
func (noopNotifier) Reply(context.Context, string, string, string) error { return nil }

type serverFixture struct {
	server  *Server
	gateway *signalGateway
}

func newServerFixture(floodLimit int) *serverFixture {
	cfg := core.DefaultConfig()
	cfg.Slack.SigningSecret = testSigningSecret
	cfg.Slack.ChannelID = "C123"
	cfg.Spotify = core.SpotifyConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		PlaylistID:   "playlist",
	}

	gateway := &signalGateway{calls: make(chan string, 16)}
	pipeline := core.NewPipeline(
		cfg,
		stubExtractor{},
		stubResolver{},
		stubDedup{},
		gateway,
		noopNotifier{},
		zap.NewNop(),
	)

	return &serverFixture{
		server:  NewServer(cfg, pipeline, flood.NewGate(floodLimit), zap.NewNop(), nil),
		gateway: gateway,
	}
}

func (f *serverFixture) postEvent(body string, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader([]byte(body)))

	timestamp := fmt.Sprint(time.Now().Unix())
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	if signed {
		mac := hmac.New(sha256.New, []byte(testSigningSecret))
		fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
		req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	} else {
		req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	}

	rec := httptest.NewRecorder()
	f.server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func messageEvent(channel, user, text string) string {
	return fmt.Sprintf(`{"type":"event_callback","event_id":"Ev1",
		"event":{"type":"message","channel":%q,"user":%q,"ts":"1.0","text":%q}}`,
		channel, user, text)
}

func (f *serverFixture) waitForAdd(t *testing.T) string {
	t.Helper()
	select {
	case id := <-f.gateway.calls:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async processing")
		return ""
	}
}

func (f *serverFixture) expectNoAdd(t *testing.T) {
	t.Helper()
	select {
	case id := <-f.gateway.calls:
		t.Fatalf("unexpected playlist add of %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestURLVerificationChallenge(t *testing.T) {
	f := newServerFixture(0)

	rec := f.postEvent(`{"type":"url_verification","challenge":"ch4ll3ng3"}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ch4ll3ng3") {
		t.Errorf("challenge missing from response %q", rec.Body.String())
	}
}

func TestURLVerificationAnsweredDespiteBadSignature(t *testing.T) {
	f := newServerFixture(0)

	rec := f.postEvent(`{"type":"url_verification","challenge":"ch4ll3ng3"}`, false)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ch4ll3ng3") {
		t.Error("handshake must succeed regardless of signature")
	}
}

func TestEventRejectedWithBadSignature(t *testing.T) {
	f := newServerFixture(0)

	rec := f.postEvent(messageEvent("C123", "U1", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"), false)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	f.expectNoAdd(t)
}

func TestMessageEventProcessedAsync(t *testing.T) {
	f := newServerFixture(0)

	rec := f.postEvent(messageEvent("C123", "U1", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"), true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.waitForAdd(t); got != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("added %q", got)
	}
}

func TestBotMessagesIgnored(t *testing.T) {
	f := newServerFixture(0)

	body := `{"type":"event_callback","event":
		{"type":"message","channel":"C123","bot_id":"B1","ts":"1.0",
		"text":"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"}}`
	rec := f.postEvent(body, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	f.expectNoAdd(t)
}

func TestOtherChannelIgnored(t *testing.T) {
	f := newServerFixture(0)

	rec := f.postEvent(messageEvent("C999", "U1", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"), true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	f.expectNoAdd(t)
}

func TestFloodLimitDropsExcessMessages(t *testing.T) {
	f := newServerFixture(1)
	link := "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

	f.postEvent(messageEvent("C123", "U1", link), true)
	f.waitForAdd(t)

	f.postEvent(messageEvent("C123", "U1", link), true)
	f.expectNoAdd(t)
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(0)

	rec := httptest.NewRecorder()
	f.server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	f.server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz with nil gate = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	f.server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestReadyzReflectsReadiness(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Slack.SigningSecret = testSigningSecret
	cfg.Slack.ChannelID = "C123"

	ready := false
	s := NewServer(cfg, nil, flood.NewGate(0), zap.NewNop(), func() bool { return ready })

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready = %d, want 503", rec.Code)
	}

	ready = true
	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz after ready = %d", rec.Code)
	}
}

func TestMalformedPayloadRejected(t *testing.T) {
	f := newServerFixture(0)

	rec := f.postEvent(`{not json`, true)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
