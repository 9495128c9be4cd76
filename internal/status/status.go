// Package status manages the single progress message the bot keeps editing
// while it works on a request.
package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrPostFailed is returned when Slack accepted the initial post but gave no
// message ts back, leaving nothing to update later.
var ErrPostFailed = errors.New("status message post failed")

// Messenger is the subset of the Slack client the reporter needs.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) (string, error)
	UpdateMessage(ctx context.Context, channelID, ts, text string) error
}

// Handle identifies the status message for later edits.
type Handle struct {
	Channel   string
	ThreadTS  string
	MessageTS string
}

type Reporter struct {
	messenger Messenger
}

func NewReporter(messenger Messenger) *Reporter {
	return &Reporter{messenger: messenger}
}

// Begin posts the initial status message into the thread and returns a handle
// for subsequent updates.
func (r *Reporter) Begin(ctx context.Context, channelID, threadTS, text string) (*Handle, error) {
	ts, err := r.messenger.PostMessage(ctx, channelID, text, threadTS)
	if err != nil {
		return nil, fmt.Errorf("post status message: %w", err)
	}
	if strings.TrimSpace(ts) == "" {
		return nil, ErrPostFailed
	}
	return &Handle{Channel: channelID, ThreadTS: threadTS, MessageTS: ts}, nil
}

// Update edits the status message in place. All progress and the final result
// land in the same message, so the thread never fills with bot chatter.
func (r *Reporter) Update(ctx context.Context, handle *Handle, text string) error {
	if handle == nil || strings.TrimSpace(handle.MessageTS) == "" {
		return ErrPostFailed
	}
	if err := r.messenger.UpdateMessage(ctx, handle.Channel, handle.MessageTS, text); err != nil {
		return fmt.Errorf("update status message: %w", err)
	}
	return nil
}
