package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// maxTimestampSkew is how far a request timestamp may drift from the local
// clock before the request is rejected as a possible replay.
const maxTimestampSkew = 5 * time.Minute

var (
	// ErrBadTimestamp means the timestamp header was missing, malformed,
	// or outside the allowed skew.
	ErrBadTimestamp = errors.New("slack: bad request timestamp")
	// ErrBadSignature means the v0 HMAC signature did not match.
	ErrBadSignature = errors.New("slack: signature mismatch")
)

// VerifySignature checks the Slack v0 request signature: the hex HMAC
// SHA-256 of "v0:<timestamp>:<body>" keyed with the signing secret,
// compared in constant time.
func VerifySignature(signingSecret, timestamp, signature string, body []byte) error {
	return verifySignatureAt(signingSecret, timestamp, signature, body, time.Now())
}

func verifySignatureAt(signingSecret, timestamp, signature string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadTimestamp, timestamp)
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxTimestampSkew {
		return fmt.Errorf("%w: skew %s", ErrBadTimestamp, skew)
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	computed := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(computed)) {
		return ErrBadSignature
	}

	return nil
}
