package core

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Pipeline drives one message through extraction, resolution, dedup,
// playlist mutation and the outcome notification. Every component failure
// is converted into an Outcome at this boundary; nothing escapes the
// handling goroutine.
type Pipeline struct {
	config    *Config
	extractor Extractor
	resolver  TrackResolver
	dedup     DedupCache
	gateway   PlaylistGateway
	notifier  Notifier
	logger    *zap.Logger
}

func NewPipeline(
	config *Config,
	extractor Extractor,
	resolver TrackResolver,
	dedup DedupCache,
	gateway PlaylistGateway,
	notifier Notifier,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		config:    config,
		extractor: extractor,
		resolver:  resolver,
		dedup:     dedup,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
	}
}

// Process handles one live message and notifies the channel about the
// outcome. Notification failures are logged and never change the outcome.
func (p *Pipeline) Process(ctx context.Context, msg *Message) Outcome {
	outcome := p.evaluate(ctx, msg.Text)

	if outcome.Status != StatusNoLinks {
		p.notify(ctx, msg, outcome)
	}

	return outcome
}

// ProcessSilent handles one message without notifications. Used by
// backfill, which would otherwise spam the channel with replies to old
// messages.
func (p *Pipeline) ProcessSilent(ctx context.Context, text string) Outcome {
	return p.evaluate(ctx, text)
}

func (p *Pipeline) evaluate(ctx context.Context, text string) Outcome {
	links := p.extractor.Extract(text)
	if len(links) == 0 {
		return Outcome{Status: StatusNoLinks}
	}

	trackIDs := p.resolveAll(ctx, links)
	if len(trackIDs) == 0 {
		return Outcome{Status: StatusUnresolved}
	}

	// Config is a static precondition: report it independently of link
	// validity or dedup state, before any track is marked as seen.
	if !p.config.SpotifyConfigured() {
		return Outcome{Status: StatusConfigMissing}
	}

	var added, present, duplicate, transient int
	var firstAdded string

	for _, trackID := range trackIDs {
		if !p.dedup.CheckAndMark(trackID) {
			p.logger.Debug("Track seen recently, skipping",
				zap.String("trackID", trackID))
			duplicate++
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, p.config.App.RequestTimeout)
		result, err := p.gateway.EnsureAdded(callCtx, trackID)
		cancel()

		switch {
		case errors.Is(err, ErrNotConfigured):
			return Outcome{Status: StatusConfigMissing}
		case err != nil:
			p.logger.Warn("Failed to add track",
				zap.String("trackID", trackID),
				zap.Error(err))
			transient++
		case result == TrackAdded:
			if firstAdded == "" {
				firstAdded = trackID
			}
			added++
		default:
			present++
		}
	}

	outcome := Outcome{TrackID: firstAdded, Added: added}
	switch {
	case added > 0:
		outcome.Status = StatusAdded
	case transient > 0:
		outcome.Status = StatusTransientError
	case duplicate > 0:
		outcome.Status = StatusDuplicateRecent
	case present > 0:
		outcome.Status = StatusAlreadyPresent
	default:
		outcome.Status = StatusUnresolved
	}

	return outcome
}

// resolveAll maps links to track IDs in extraction order. Resolution
// failures are terminal per link and simply drop out of the result.
func (p *Pipeline) resolveAll(ctx context.Context, links []RawLink) []string {
	var trackIDs []string

	for _, link := range links {
		callCtx, cancel := context.WithTimeout(ctx, p.config.App.RequestTimeout)
		trackID, err := p.resolver.Resolve(callCtx, link.URL)
		cancel()

		if err != nil {
			p.logger.Info("Link did not resolve",
				zap.String("provider", link.Provider.String()),
				zap.String("url", link.URL),
				zap.Error(err))
			continue
		}

		p.logger.Debug("Resolved link",
			zap.String("provider", link.Provider.String()),
			zap.String("url", link.URL),
			zap.String("trackID", trackID))
		trackIDs = append(trackIDs, trackID)
	}

	return trackIDs
}

func (p *Pipeline) notify(ctx context.Context, msg *Message, outcome Outcome) {
	if p.notifier == nil {
		return
	}

	emoji := reactionProblem
	var reply string

	switch outcome.Status {
	case StatusAdded:
		emoji = reactionAdded
		reply = msgAddedCount(outcome.Added)
	case StatusConfigMissing:
		reply = msgNotConfigured
	case StatusUnresolved:
		reply = msgUnresolved
	case StatusTransientError:
		reply = msgUpstreamError
	case StatusDuplicateRecent, StatusAlreadyPresent:
		reply = msgAlreadyAdded
	default:
		return
	}

	if err := p.notifier.React(ctx, msg.ChannelID, msg.ThreadTS, emoji); err != nil {
		p.logger.Warn("Failed to add reaction",
			zap.String("eventID", msg.EventID),
			zap.Error(err))
	}

	if err := p.notifier.Reply(ctx, msg.ChannelID, msg.ThreadTS, reply); err != nil {
		p.logger.Warn("Failed to post reply",
			zap.String("eventID", msg.EventID),
			zap.Error(err))
	}
}
