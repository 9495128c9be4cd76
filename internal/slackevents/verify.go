package slackevents

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrVerificationFailed marks any signature rejection. The webhook handler
// turns it into a 401 without touching the event.
var ErrVerificationFailed = errors.New("slack request verification failed")

// maxTimestampSkew bounds replay: requests older than this are rejected even
// with a valid signature.
const maxTimestampSkew = 5 * time.Minute

// VerifySignature checks the Slack request signature: HMAC-SHA256 over
// "v0:{timestamp}:{rawBody}" keyed by the signing secret, compared in
// constant time against the "v0=<hex>" header value.
func VerifySignature(signingSecret, timestamp, signature string, rawBody []byte, now time.Time) error {
	if signingSecret == "" {
		return fmt.Errorf("%w: signing secret is not configured", ErrVerificationFailed)
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("%w: missing timestamp or signature header", ErrVerificationFailed)
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrVerificationFailed)
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > maxTimestampSkew {
		return fmt.Errorf("%w: timestamp out of range", ErrVerificationFailed)
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(rawBody)
	computed := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(computed), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrVerificationFailed)
	}
	return nil
}

// Sign computes the signature header value for a body; used by tests and
// local tooling.
func Sign(signingSecret, timestamp string, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(rawBody)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
