// Package slackevents parses and verifies Slack Events API payloads for both
// the HTTP webhook and Socket Mode transports.
package slackevents

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CallbackBody is the outer webhook body. For url_verification only Type and
// Challenge are set; for event_callback Event carries the inner event.
type CallbackBody struct {
	Type           string               `json:"type,omitempty"`
	Token          string               `json:"token,omitempty"`
	Challenge      string               `json:"challenge,omitempty"`
	TeamID         string               `json:"team_id,omitempty"`
	EventID        string               `json:"event_id,omitempty"`
	EventTime      int64                `json:"event_time,omitempty"`
	Event          json.RawMessage      `json:"event,omitempty"`
	Authorizations []EventAuthorization `json:"authorizations,omitempty"`
}

type EventAuthorization struct {
	TeamID string `json:"team_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

// SocketEnvelope is one Socket Mode frame. EnvelopeID must be acknowledged
// before the payload is processed.
type SocketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type rawEvent struct {
	Type        string          `json:"type,omitempty"`
	Subtype     string          `json:"subtype,omitempty"`
	User        string          `json:"user,omitempty"`
	Text        string          `json:"text,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	ChannelType string          `json:"channel_type,omitempty"`
	TS          string          `json:"ts,omitempty"`
	ThreadTS    string          `json:"thread_ts,omitempty"`
	BotID       string          `json:"bot_id,omitempty"`
	BotProfile  json.RawMessage `json:"bot_profile,omitempty"`
	Team        string          `json:"team,omitempty"`
	EventTS     string          `json:"event_ts,omitempty"`

	AssistantThread *assistantThread `json:"assistant_thread,omitempty"`
}

type assistantThread struct {
	ChannelID string `json:"channel_id,omitempty"`
	ThreadTS  string `json:"thread_ts,omitempty"`
}

// Kind classifies an inbound event the bot acts on.
type Kind string

const (
	KindAppMention    Kind = "app_mention"
	KindDirectMessage Kind = "direct_message"
	KindThreadStarted Kind = "assistant_thread_started"
)

// InboundEvent is a parsed, filtered event. ThreadTS falls back to the
// message's own ts so every event addresses a concrete thread.
type InboundEvent struct {
	Kind      Kind
	TeamID    string
	ChannelID string
	UserID    string
	Text      string
	MessageTS string
	ThreadTS  string
	EventID   string
}

// ParseCallback parses a webhook event_callback body into an actionable
// event. ok is false for events the bot ignores: unknown types, subtyped
// messages, bot-authored messages (bot_id or bot_profile present) and the
// bot's own messages.
func ParseCallback(body CallbackBody, botUserID string) (InboundEvent, bool, error) {
	if strings.TrimSpace(body.Type) != "event_callback" || len(body.Event) == 0 {
		return InboundEvent{}, false, nil
	}
	var event rawEvent
	if err := json.Unmarshal(body.Event, &event); err != nil {
		return InboundEvent{}, false, fmt.Errorf("parse slack event: %w", err)
	}

	teamID := strings.TrimSpace(body.TeamID)
	if teamID == "" {
		teamID = strings.TrimSpace(event.Team)
	}
	if teamID == "" && len(body.Authorizations) > 0 {
		teamID = strings.TrimSpace(body.Authorizations[0].TeamID)
	}
	eventID := strings.TrimSpace(body.EventID)

	eventType := strings.TrimSpace(event.Type)
	if eventType == "assistant_thread_started" {
		if event.AssistantThread == nil {
			return InboundEvent{}, false, nil
		}
		channelID := strings.TrimSpace(event.AssistantThread.ChannelID)
		threadTS := strings.TrimSpace(event.AssistantThread.ThreadTS)
		if channelID == "" || threadTS == "" {
			return InboundEvent{}, false, nil
		}
		return InboundEvent{
			Kind:      KindThreadStarted,
			TeamID:    teamID,
			ChannelID: channelID,
			ThreadTS:  threadTS,
			EventID:   eventID,
		}, true, nil
	}

	if eventType != "app_mention" && eventType != "message" {
		return InboundEvent{}, false, nil
	}
	if strings.TrimSpace(event.Subtype) != "" {
		return InboundEvent{}, false, nil
	}
	if strings.TrimSpace(event.BotID) != "" || len(event.BotProfile) > 0 {
		return InboundEvent{}, false, nil
	}
	userID := strings.TrimSpace(event.User)
	if userID == "" || userID == strings.TrimSpace(botUserID) {
		return InboundEvent{}, false, nil
	}

	kind := KindAppMention
	if eventType == "message" {
		// Plain messages are only handled in DMs; channel chatter without a
		// mention is ignored.
		if strings.TrimSpace(event.ChannelType) != "im" {
			return InboundEvent{}, false, nil
		}
		kind = KindDirectMessage
	}

	channelID := strings.TrimSpace(event.Channel)
	messageTS := strings.TrimSpace(event.TS)
	if channelID == "" || messageTS == "" {
		return InboundEvent{}, false, nil
	}
	threadTS := strings.TrimSpace(event.ThreadTS)
	if threadTS == "" {
		threadTS = messageTS
	}

	return InboundEvent{
		Kind:      kind,
		TeamID:    teamID,
		ChannelID: channelID,
		UserID:    userID,
		Text:      strings.TrimSpace(event.Text),
		MessageTS: messageTS,
		ThreadTS:  threadTS,
		EventID:   eventID,
	}, true, nil
}

// ParseSocketEnvelope extracts the events_api payload of a Socket Mode frame
// and routes it through ParseCallback. Non-event frames (hello, disconnect)
// yield ok=false.
func ParseSocketEnvelope(envelope SocketEnvelope, botUserID string) (InboundEvent, bool, error) {
	if strings.TrimSpace(envelope.Type) != "events_api" || len(envelope.Payload) == 0 {
		return InboundEvent{}, false, nil
	}
	var body CallbackBody
	if err := json.Unmarshal(envelope.Payload, &body); err != nil {
		return InboundEvent{}, false, fmt.Errorf("parse socket payload: %w", err)
	}
	if strings.TrimSpace(body.Type) == "" {
		body.Type = "event_callback"
	}
	return ParseCallback(body, botUserID)
}
