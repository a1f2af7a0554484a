package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"jamcraft/internal/core"
	"jamcraft/internal/slack"
)

const (
	// maxEventBody bounds webhook payloads; Slack events are tiny.
	maxEventBody = 1 << 20
	// processTimeout bounds async handling of a single acknowledged event.
	processTimeout = 60 * time.Second
)

func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		s.metrics.RecordError("webhook", "read_body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	sigErr := slack.VerifySignature(s.config.Slack.SigningSecret, timestamp, signature, body)

	var envelope slack.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.metrics.RecordError("webhook", "decode")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	// The URL verification handshake is answered even with a bad
	// signature, so a mistyped secret still lets the endpoint be
	// registered. The failure is logged either way.
	if envelope.Type == slack.EnvelopeURLVerification {
		if sigErr != nil {
			s.logger.Warn("Signature check failed on URL verification",
				zap.Error(sigErr))
		}
		s.respondJSON(w, map[string]string{"challenge": envelope.Challenge})
		return
	}

	if sigErr != nil {
		s.metrics.RecordError("webhook", "signature")
		s.logger.Warn("Rejected event with bad signature",
			zap.Error(sigErr))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// Acknowledge before processing; Slack retries slow responses and a
	// retry would double-handle the message.
	w.WriteHeader(http.StatusOK)

	if envelope.Type != slack.EnvelopeEventCallback {
		return
	}

	event := envelope.Event
	if event == nil || event.Type != slack.EventMessage || event.BotID != "" || event.Subtype != "" {
		return
	}
	if event.Channel != s.config.Slack.ChannelID {
		s.logger.Debug("Ignoring message from other channel",
			zap.String("channel", event.Channel))
		return
	}

	if !s.gate.Allow(event.Channel, event.User) {
		s.metrics.RecordError("webhook", "flood_limited")
		s.logger.Warn("Dropping message, sender over flood limit",
			zap.String("channel", event.Channel),
			zap.String("user", event.User))
		return
	}

	msg := &core.Message{
		ChannelID: event.Channel,
		ThreadTS:  event.EffectiveTS(),
		EventID:   envelope.EventID,
		Text:      event.Text,
	}

	go s.process(msg)
}

func (s *Server) process(msg *core.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	start := time.Now()
	outcome := s.pipeline.Process(ctx, msg)
	s.metrics.RecordProcessingTime("live", time.Since(start))
	s.metrics.RecordMessage("live", outcome.Status.String())

	switch outcome.Status {
	case core.StatusAdded:
		s.metrics.RecordResolved()
		s.metrics.RecordAdds("live", outcome.Added)
	case core.StatusAlreadyPresent:
		s.metrics.RecordResolved()
	case core.StatusDuplicateRecent:
		s.metrics.RecordResolved()
		s.metrics.RecordDuplicate()
	case core.StatusTransientError:
		s.metrics.RecordError("pipeline", "upstream")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}
