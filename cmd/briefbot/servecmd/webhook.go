package servecmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/steadylabs/briefbot/internal/slackevents"
)

const maxBodyBytes = 1 << 20

// Dispatcher consumes parsed events; the relay handler implements it.
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev slackevents.InboundEvent)
}

// WebhookHandler serves the Slack Events API endpoint. Once a request is
// verified the response is always 200: failures are reported through the
// chat surface, never via webhook status codes, so Slack's retry logic
// stays quiet.
type WebhookHandler struct {
	signingSecret string
	botUserID     string
	dispatch      Dispatcher
	sem           chan struct{}
	log           *slog.Logger
	now           func() time.Time
}

func NewWebhookHandler(signingSecret, botUserID string, dispatch Dispatcher, maxConcurrency int, log *slog.Logger) *WebhookHandler {
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		signingSecret: signingSecret,
		botUserID:     botUserID,
		dispatch:      dispatch,
		sem:           make(chan struct{}, maxConcurrency),
		log:           log,
		now:           time.Now,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	var body slackevents.CallbackBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// URL verification is answered with the literal challenge and triggers
	// nothing downstream.
	if body.Type == "url_verification" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body.Challenge))
		return
	}

	if err := slackevents.VerifySignature(
		h.signingSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		rawBody,
		h.now(),
	); err != nil {
		h.log.Warn("request_rejected", "error", err.Error())
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	ev, ok, err := slackevents.ParseCallback(body, h.botUserID)
	if err != nil {
		h.log.Warn("event_parse_failed", "error", err.Error())
	} else if ok {
		go h.run(ev)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) run(ev slackevents.InboundEvent) {
	h.sem <- struct{}{}
	defer func() { <-h.sem }()
	h.dispatch.HandleEvent(context.Background(), ev)
}
