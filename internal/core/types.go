package core

import (
	"context"
	"errors"
)

// Provider identifies the music service a link belongs to.
type Provider int

const (
	// ProviderSpotify is the target catalog itself (first-party links).
	ProviderSpotify Provider = iota
	// ProviderYouTube covers youtube.com, music.youtube.com and youtu.be links.
	ProviderYouTube
	// ProviderAppleMusic covers music.apple.com links.
	ProviderAppleMusic
	// ProviderQobuz covers open.qobuz.com links.
	ProviderQobuz
)

func (p Provider) String() string {
	switch p {
	case ProviderSpotify:
		return "spotify"
	case ProviderYouTube:
		return "youtube"
	case ProviderAppleMusic:
		return "applemusic"
	case ProviderQobuz:
		return "qobuz"
	}
	return "unknown"
}

// RawLink is a candidate music URL extracted from message text.
type RawLink struct {
	Provider Provider
	URL      string
}

// Message is one inbound chat message to process.
type Message struct {
	ChannelID string
	ThreadTS  string // timestamp of the message, used as the reply thread anchor
	EventID   string
	Text      string
}

// Status is the terminal state of processing one message.
type Status int

const (
	// StatusNoLinks means the message contained no recognizable music links.
	StatusNoLinks Status = iota
	// StatusAdded means at least one track was appended to the playlist.
	StatusAdded
	// StatusAlreadyPresent means every resolved track was already in the playlist.
	StatusAlreadyPresent
	// StatusDuplicateRecent means every resolved track was seen within the dedup TTL.
	StatusDuplicateRecent
	// StatusUnresolved means no link could be resolved to a track ID.
	StatusUnresolved
	// StatusConfigMissing means no target playlist or credentials are configured.
	StatusConfigMissing
	// StatusTransientError means an upstream failure prevented adding tracks.
	StatusTransientError
)

func (s Status) String() string {
	switch s {
	case StatusNoLinks:
		return "no_links"
	case StatusAdded:
		return "added"
	case StatusAlreadyPresent:
		return "already_present"
	case StatusDuplicateRecent:
		return "duplicate_recent"
	case StatusUnresolved:
		return "unresolved"
	case StatusConfigMissing:
		return "config_missing"
	case StatusTransientError:
		return "transient_error"
	}
	return "unknown"
}

// Outcome summarizes processing of one message.
type Outcome struct {
	Status  Status
	TrackID string // first track added, if any
	Added   int    // number of tracks appended for this message
}

// AddResult reports what EnsureAdded did for a single track.
type AddResult int

const (
	// TrackAdded means the track was appended to the playlist.
	TrackAdded AddResult = iota
	// TrackAlreadyPresent means the playlist already contained the track.
	TrackAlreadyPresent
)

var (
	// ErrNotConfigured indicates the target playlist or Spotify credentials
	// are absent. Static precondition, never retried.
	ErrNotConfigured = errors.New("spotify playlist not configured")

	// ErrUnresolvable indicates a link could not be mapped to a track ID.
	// Terminal per link, never retried.
	ErrUnresolvable = errors.New("link could not be resolved to a track")

	// ErrAuth indicates the credential refresh exchange was rejected.
	ErrAuth = errors.New("credential refresh failed")
)

// Extractor scans free-form message text for candidate music links.
type Extractor interface {
	Extract(text string) []RawLink
}

// TrackResolver maps a provider URL to a canonical Spotify track ID.
// Implementations return an error wrapping ErrUnresolvable when no ID can
// be derived.
type TrackResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// DedupCache is a short-TTL record of already-processed track IDs.
type DedupCache interface {
	// CheckAndMark atomically records id and reports whether this is the
	// first sighting within the TTL window.
	CheckAndMark(id string) bool
	Size() int
}

// PlaylistGateway checks playlist membership and appends missing tracks.
type PlaylistGateway interface {
	EnsureAdded(ctx context.Context, trackID string) (AddResult, error)
}

// Notifier posts reactions and threaded replies back to the chat surface.
// Failures are logged by the pipeline and never affect outcomes.
type Notifier interface {
	React(ctx context.Context, channelID, timestamp, emoji string) error
	Reply(ctx context.Context, channelID, threadTS, text string) error
}

// HistorySource provides bulk message history for backfill, including
// threaded replies.
type HistorySource interface {
	FetchChannelMessages(ctx context.Context, channelID string) ([]string, error)
}
