package musiclink

import (
	"errors"
)

const (
	// commonUserAgent is sent on requests to providers that gate on
	// browser-looking clients.
	commonUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// maxHTTPRedirects is the maximum number of HTTP redirects to follow.
	maxHTTPRedirects = 5
)

// ErrTooManyRedirects is returned when too many redirects are encountered.
var ErrTooManyRedirects = errors.New("too many redirects")
