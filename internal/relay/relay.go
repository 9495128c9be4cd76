// Package relay turns parsed Slack events into engine runs and posts the
// results back into the thread they came from.
package relay

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/steadylabs/briefbot/agent"
	"github.com/steadylabs/briefbot/internal/chathistory"
	"github.com/steadylabs/briefbot/internal/mcptools"
	"github.com/steadylabs/briefbot/internal/mrkdwn"
	"github.com/steadylabs/briefbot/internal/slackapi"
	"github.com/steadylabs/briefbot/internal/slackevents"
	"github.com/steadylabs/briefbot/internal/status"
	"github.com/steadylabs/briefbot/llm"
	"github.com/steadylabs/briefbot/tools"
)

const (
	initialStatusText = "Working on it..."
	doneStatusText    = "done"
	greetingText      = "Hi! Ask me anything here. I can search the web and build working UIs from a description."
)

// SlackAPI is the slice of the Slack client the relay needs.
type SlackAPI interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) (string, error)
	UpdateMessage(ctx context.Context, channelID, ts, text string) error
	ConversationsReplies(ctx context.Context, channelID, threadTS string, limit int) ([]slackapi.ThreadMessage, error)
}

// Engine generates the reply for a conversation.
type Engine interface {
	Run(ctx context.Context, conversation []llm.Message, opts agent.RunOptions) (*agent.Final, error)
}

type Handler struct {
	slack        SlackAPI
	engine       Engine
	botUserID    string
	historyLimit int
	log          *slog.Logger
	tools        *tools.Registry
	mcp          *mcptools.Server
}

type Option func(*Handler)

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithHistoryLimit(limit int) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.historyLimit = limit
		}
	}
}

// WithTools sets the base tool registry cloned for each event.
func WithTools(registry *tools.Registry) Option {
	return func(h *Handler) {
		h.tools = registry
	}
}

// WithMCP attaches an MCP server; each event gets a session with a fresh
// step budget.
func WithMCP(server *mcptools.Server) Option {
	return func(h *Handler) {
		h.mcp = server
	}
}

func New(slack SlackAPI, engine Engine, botUserID string, opts ...Option) *Handler {
	h := &Handler{
		slack:        slack,
		engine:       engine,
		botUserID:    strings.TrimSpace(botUserID),
		historyLimit: 50,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleEvent processes one parsed inbound event end to end. Failures are
// reported through the status message, never returned to the transport.
func (h *Handler) HandleEvent(ctx context.Context, ev slackevents.InboundEvent) {
	log := h.log.With("correlation_id", uuid.NewString(), "channel_id", ev.ChannelID, "kind", string(ev.Kind))
	switch ev.Kind {
	case slackevents.KindThreadStarted:
		if _, err := h.slack.PostMessage(ctx, ev.ChannelID, greetingText, ev.ThreadTS); err != nil {
			log.Error("greeting_post_failed", "error", err.Error())
		}
	case slackevents.KindAppMention, slackevents.KindDirectMessage:
		h.respond(ctx, ev, log)
	default:
		log.Warn("unhandled_event_kind")
	}
}

func (h *Handler) respond(ctx context.Context, ev slackevents.InboundEvent, log *slog.Logger) {
	reporter := status.NewReporter(h.slack)
	handle, err := reporter.Begin(ctx, ev.ChannelID, ev.ThreadTS, initialStatusText)
	if err != nil {
		// No status message means no way to reach the user; log and stop.
		log.Error("status_begin_failed", "error", err.Error())
		return
	}

	registry, session := h.eventTools()
	defer func() { _ = session.Close() }()

	conversation := h.conversation(ctx, ev, log)
	final, err := h.engine.Run(ctx, conversation, agent.RunOptions{
		Status: func(text string) {
			if updateErr := reporter.Update(ctx, handle, text); updateErr != nil {
				log.Warn("status_update_failed", "error", updateErr.Error())
			}
		},
		Tools: registry,
	})
	if err != nil {
		log.Error("generation_failed", "error", err.Error())
		if updateErr := reporter.Update(ctx, handle, "failed: "+failureReason(err)); updateErr != nil {
			log.Warn("status_update_failed", "error", updateErr.Error())
		}
		return
	}

	// Translate exactly once, on the final assembled text. The reply is its
	// own message; the status message is then marked done.
	text := mrkdwn.Translate(final.Render())
	if _, err := h.slack.PostMessage(ctx, ev.ChannelID, text, ev.ThreadTS); err != nil {
		log.Error("final_post_failed", "error", err.Error())
		if updateErr := reporter.Update(ctx, handle, "failed: "+failureReason(err)); updateErr != nil {
			log.Warn("status_update_failed", "error", updateErr.Error())
		}
		return
	}
	if err := reporter.Update(ctx, handle, doneStatusText); err != nil {
		log.Warn("status_update_failed", "error", err.Error())
	}
	log.Info("reply_posted", "links", len(final.Links), "follow_ups", len(final.FollowUps))
}

// eventTools assembles the tool set for one event: a clone of the base
// registry plus MCP tools bound to a fresh step budget. A nil registry lets
// the engine fall back to its own.
func (h *Handler) eventTools() (*tools.Registry, *mcptools.Session) {
	session := h.mcp.NewSession()
	if h.tools == nil && session == nil {
		return nil, nil
	}
	registry := h.tools.Clone()
	for _, tool := range session.Tools() {
		registry.Register(tool)
	}
	return registry, session
}

// conversation rebuilds the thread context. When the thread cannot be
// fetched the triggering message alone is used so the user still gets an
// answer.
func (h *Handler) conversation(ctx context.Context, ev slackevents.InboundEvent, log *slog.Logger) []llm.Message {
	replies, err := h.slack.ConversationsReplies(ctx, ev.ChannelID, ev.ThreadTS, h.historyLimit)
	if err != nil {
		log.Warn("thread_fetch_failed", "error", err.Error())
	}
	if len(replies) > 0 {
		threadReplies := make([]chathistory.ThreadReply, 0, len(replies))
		for _, reply := range replies {
			threadReplies = append(threadReplies, chathistory.ThreadReply{
				UserID: reply.User,
				BotID:  reply.BotID,
				Text:   reply.Text,
			})
		}
		if conv := chathistory.BuildConversation(threadReplies, h.botUserID); len(conv) > 0 {
			return conv
		}
	}
	return []llm.Message{{
		Role:    "user",
		Content: chathistory.StripMention(strings.TrimSpace(ev.Text), h.botUserID),
	}}
}

func failureReason(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown error"
	}
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}
