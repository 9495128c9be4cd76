package slackevents

import (
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestVerifySignatureAccepts(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"type":"event_callback"}`)
	sig := Sign("secret", ts, body)
	if err := VerifySignature("secret", ts, sig, body, now); err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
}

func TestVerifySignatureRejectsMismatch(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"type":"event_callback"}`)
	sig := Sign("other-secret", ts, body)
	err := VerifySignature("secret", ts, sig, body, now)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("error = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	stale := strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10)
	body := []byte(`{}`)
	sig := Sign("secret", stale, body)
	err := VerifySignature("secret", stale, sig, body, now)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("error = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifySignatureRejectsMissingHeaders(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	if err := VerifySignature("secret", "", "", []byte(`{}`), now); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("error = %v, want ErrVerificationFailed", err)
	}
}
