package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// backfillRate paces per-message processing so a large history scan does
// not burn through upstream API quotas.
const backfillRate = rate.Limit(5)

// Backfill re-processes the full channel history, including threaded
// replies, through the same pipeline as live messages but with
// notifications suppressed. It runs as a background task next to live
// ingestion, sharing only the dedup cache and playlist gateway, and stops
// cooperatively when its context is cancelled.
type Backfill struct {
	pipeline  *Pipeline
	history   HistorySource
	channelID string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

func NewBackfill(pipeline *Pipeline, history HistorySource, channelID string, logger *zap.Logger) *Backfill {
	return &Backfill{
		pipeline:  pipeline,
		history:   history,
		channelID: channelID,
		logger:    logger,
		limiter:   rate.NewLimiter(backfillRate, 1),
	}
}

// Run scans the history once. A failure on one message is logged and
// skipped; the scan continues.
func (b *Backfill) Run(ctx context.Context) error {
	b.logger.Info("Starting backfill scan",
		zap.String("channelID", b.channelID))

	texts, err := b.history.FetchChannelMessages(ctx, b.channelID)
	if err != nil {
		return fmt.Errorf("fetch channel history: %w", err)
	}

	var scanned, resolved, added int
	for _, text := range texts {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		scanned++
		outcome := b.pipeline.ProcessSilent(ctx, text)

		switch outcome.Status {
		case StatusAdded:
			resolved++
			added += outcome.Added
		case StatusAlreadyPresent, StatusDuplicateRecent:
			resolved++
		case StatusNoLinks, StatusUnresolved:
			// Nothing usable in this message.
		case StatusConfigMissing:
			// Static condition; scanning further cannot succeed.
			b.logger.Warn("Backfill aborted: Spotify not configured")
			return nil
		case StatusTransientError:
			b.logger.Warn("Backfill message failed, continuing",
				zap.String("status", outcome.Status.String()))
		}
	}

	b.logger.Info("Backfill complete",
		zap.Int("messagesScanned", scanned),
		zap.Int("tracksResolved", resolved),
		zap.Int("tracksAdded", added))

	return nil
}
