// Package slack provides the Slack Events API envelope types, request
// signature verification, and a Web API client for reactions, threaded
// replies and channel history.
package slack

// Envelope is the outer Events API payload delivered to the webhook.
type Envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

// Event is the inner message event.
type Event struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Channel  string `json:"channel,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
}

// EffectiveTS is the timestamp replies should thread under: the parent
// thread for threaded messages, the message itself otherwise.
func (e *Event) EffectiveTS() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// Envelope types and the event type we act on.
const (
	EnvelopeURLVerification = "url_verification"
	EnvelopeEventCallback   = "event_callback"
	EventMessage            = "message"
)
