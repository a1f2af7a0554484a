// Package text provides URL extraction and provider classification for
// chat messages.
package text

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"jamcraft/internal/core"
)

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	spotifyURIRegex = regexp.MustCompile(`spotify:track:[a-zA-Z0-9]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// Links are frequently pasted without a scheme; match known provider
	// hosts directly so they are not lost.
	bareHostRegex = regexp.MustCompile(
		`(?:open\.spotify\.com|(?:www\.|m\.|music\.)?youtube\.com|youtu\.be|music\.apple\.com|open\.qobuz\.com)/\S+`)
)

var providerHosts = map[string]core.Provider{
	"open.spotify.com":  core.ProviderSpotify,
	"spotify.com":       core.ProviderSpotify,
	"youtube.com":       core.ProviderYouTube,
	"www.youtube.com":   core.ProviderYouTube,
	"m.youtube.com":     core.ProviderYouTube,
	"music.youtube.com": core.ProviderYouTube,
	"youtu.be":          core.ProviderYouTube,
	"music.apple.com":   core.ProviderAppleMusic,
	"open.qobuz.com":    core.ProviderQobuz,
}

// Parser extracts music links from free-form message text. It is stateless
// and safe for concurrent use.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Extract returns one RawLink per recognized provider URL in text, in
// order of appearance. Duplicate URLs are kept; the dedup layer handles
// them. Unknown hosts are dropped. Never fails.
func (p *Parser) Extract(text string) []core.RawLink {
	text = p.normalizeText(text)

	var links []core.RawLink
	for _, raw := range p.candidateURLs(text) {
		cleaned := p.cleanURL(raw)
		if cleaned == "" {
			continue
		}

		provider, ok := p.classify(cleaned)
		if !ok {
			continue
		}

		links = append(links, core.RawLink{Provider: provider, URL: cleaned})
	}

	for _, uri := range spotifyURIRegex.FindAllString(text, -1) {
		links = append(links, core.RawLink{Provider: core.ProviderSpotify, URL: uri})
	}

	return links
}

func (p *Parser) candidateURLs(text string) []string {
	matches := urlRegex.FindAllString(text, -1)

	// Scheme-less provider links, skipping spans already covered above.
	for _, loc := range bareHostRegex.FindAllStringIndex(text, -1) {
		if loc[0] >= len("https://") {
			prefix := text[:loc[0]]
			if strings.HasSuffix(prefix, "://") || strings.HasSuffix(prefix, "//") {
				continue
			}
		}
		matches = append(matches, "https://"+text[loc[0]:loc[1]])
	}

	return matches
}

func (p *Parser) normalizeText(text string) string {
	text = strings.TrimSpace(text)
	text = norm.NFKC.String(text)

	// Slack wraps URLs in angle brackets, optionally with a |label suffix.
	text = strings.NewReplacer("<", " ", ">", " ", "|", " ").Replace(text)

	return whitespaceRegex.ReplaceAllString(text, " ")
}

func (p *Parser) cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,!?;:)]")

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	q := u.Query()
	for _, param := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "si"} {
		q.Del(param)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (p *Parser) classify(rawURL string) (core.Provider, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}

	provider, ok := providerHosts[strings.ToLower(u.Hostname())]
	if !ok {
		return 0, false
	}

	// spotify.com hosts carry many non-track pages; only track links count.
	if provider == core.ProviderSpotify && !strings.Contains(u.Path, "/track/") {
		return 0, false
	}

	return provider, true
}
