package slack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Slack Web API root.
	DefaultBaseURL = "https://slack.com/api"
	// requestTimeout bounds every Web API call.
	requestTimeout = 10 * time.Second
	// historyPageSize is the page size for history and replies listing.
	historyPageSize = 200
	// maxChannelListPages caps conversations.list paging during channel
	// name resolution.
	maxChannelListPages = 5
	// webAPIRate paces calls to stay inside Slack's tier limits; history
	// scans during backfill are the heaviest consumer.
	webAPIRate  = rate.Limit(5)
	webAPIBurst = 5

	maxBodySize = 4 << 20
)

// Client is a minimal Slack Web API client covering what the pipeline
// needs: reactions, threaded replies, channel resolution and history
// paging. All calls are paced through a shared rate limiter.
type Client struct {
	baseURL    string
	botToken   string
	logger     *zap.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(botToken string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		botToken:   botToken,
		logger:     logger,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(webAPIRate, webAPIBurst),
	}
}

// apiResponse is the common Web API response envelope.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Channels []channel      `json:"channels,omitempty"`
	Messages []historyEntry `json:"messages,omitempty"`
	HasMore  bool           `json:"has_more,omitempty"`

	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type historyEntry struct {
	TS         string `json:"ts"`
	ThreadTS   string `json:"thread_ts,omitempty"`
	Text       string `json:"text"`
	ReplyCount int    `json:"reply_count,omitempty"`
	BotID      string `json:"bot_id,omitempty"`
	Subtype    string `json:"subtype,omitempty"`
}

// React adds an emoji reaction to a message.
func (c *Client) React(ctx context.Context, channelID, timestamp, emoji string) error {
	payload := map[string]string{
		"channel":   channelID,
		"timestamp": timestamp,
		"name":      emoji,
	}
	_, err := c.post(ctx, "reactions.add", payload)
	return err
}

// Reply posts a message into the thread anchored at threadTS.
func (c *Client) Reply(ctx context.Context, channelID, threadTS, text string) error {
	payload := map[string]string{
		"channel":   channelID,
		"thread_ts": threadTS,
		"text":      text,
	}
	_, err := c.post(ctx, "chat.postMessage", payload)
	return err
}

// ResolveChannelID finds the ID of a public channel by name, paging
// through conversations.list.
func (c *Client) ResolveChannelID(ctx context.Context, name string) (string, error) {
	cursor := ""

	for page := 0; page < maxChannelListPages; page++ {
		params := url.Values{
			"limit": {fmt.Sprint(historyPageSize)},
			"types": {"public_channel"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		resp, err := c.get(ctx, "conversations.list", params)
		if err != nil {
			return "", err
		}

		for _, ch := range resp.Channels {
			if ch.Name == name {
				return ch.ID, nil
			}
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	return "", fmt.Errorf("channel %q not found", name)
}

// FetchChannelMessages pages through the full channel history, descending
// into threads, and returns the text of every human message. Used by
// backfill.
func (c *Client) FetchChannelMessages(ctx context.Context, channelID string) ([]string, error) {
	var texts []string
	cursor := ""

	for {
		params := url.Values{
			"channel": {channelID},
			"limit":   {fmt.Sprint(historyPageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		resp, err := c.get(ctx, "conversations.history", params)
		if err != nil {
			return nil, err
		}

		for _, msg := range resp.Messages {
			if msg.BotID != "" || msg.Subtype != "" {
				continue
			}
			if msg.Text != "" {
				texts = append(texts, msg.Text)
			}
			if msg.ReplyCount > 0 && msg.TS != "" {
				replies, err := c.fetchThreadReplies(ctx, channelID, msg.TS)
				if err != nil {
					c.logger.Warn("Failed to fetch thread replies",
						zap.String("threadTS", msg.TS),
						zap.Error(err))
					continue
				}
				texts = append(texts, replies...)
			}
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" && !resp.HasMore {
			return texts, nil
		}
		if cursor == "" {
			return texts, nil
		}
	}
}

func (c *Client) fetchThreadReplies(ctx context.Context, channelID, threadTS string) ([]string, error) {
	var texts []string
	cursor := ""

	for {
		params := url.Values{
			"channel": {channelID},
			"ts":      {threadTS},
			"limit":   {fmt.Sprint(historyPageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		resp, err := c.get(ctx, "conversations.replies", params)
		if err != nil {
			return nil, err
		}

		for _, msg := range resp.Messages {
			if msg.BotID != "" || msg.Subtype != "" {
				continue
			}
			// The parent message comes back first; the caller already
			// captured it from the history page.
			if msg.TS == threadTS {
				continue
			}
			if msg.Text != "" {
				texts = append(texts, msg.Text)
			}
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return texts, nil
		}
	}
}

func (c *Client) post(ctx context.Context, method string, payload interface{}) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.do(req, method)
}

func (c *Client) get(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}

	return c.do(req, method)
}

func (c *Client) do(req *http.Request, method string) (*apiResponse, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}

	if !parsed.OK {
		return nil, fmt.Errorf("slack API error from %s: %s", method, parsed.Error)
	}

	return &parsed, nil
}
