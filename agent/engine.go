// Package agent implements the response generation loop: draft with tools,
// extract structure, retry when the structure is thin, then render.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/steadylabs/briefbot/internal/jsonutil"
	"github.com/steadylabs/briefbot/llm"
	"github.com/steadylabs/briefbot/tools"
)

type Config struct {
	Model        string
	MaxAttempts  int
	MaxToolSteps int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxToolSteps <= 0 {
		c.MaxToolSteps = 10
	}
	return c
}

type Engine struct {
	client   llm.Client
	registry *tools.Registry
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithNow overrides the clock used to date the system directive.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(client llm.Client, registry *tools.Registry, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		registry: registry,
		cfg:      cfg.withDefaults(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions carries per-call hooks. Status receives short progress lines
// meant for the user-facing status message; nil disables reporting. Tools
// overrides the engine's registry for this run so callers can attach
// event-scoped tools with their own budgets.
type RunOptions struct {
	Status func(text string)
	Tools  *tools.Registry
}

// Final is one accepted extraction. Links and FollowUps keep the model's
// order; only the first link is ever surfaced.
type Final struct {
	Summary   string   `json:"summary"`
	Links     []string `json:"links,omitempty"`
	FollowUps []string `json:"followUps,omitempty"`
}

// Render assembles the reply text: summary, then the first link, then a
// bulleted follow-up block. Absent sections are omitted entirely.
func (f *Final) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(f.Summary))
	if len(f.Links) > 0 {
		if link := strings.TrimSpace(f.Links[0]); link != "" {
			b.WriteString("\n\n")
			b.WriteString(link)
		}
	}
	if len(f.FollowUps) > 0 {
		b.WriteString("\n\n**Follow-up questions:**")
		for _, q := range f.FollowUps {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			b.WriteString("\n- ")
			b.WriteString(q)
		}
	}
	return strings.TrimSpace(b.String())
}

func (f *Final) thin() bool {
	return len(f.Links) == 0 && len(f.FollowUps) == 0
}

const systemDirective = `You are a helpful assistant replying inside a team chat.
Answer concisely and concretely. Use the available tools when the question
needs current information or when the user asks you to build something.
Write plain markdown; keep replies short enough to read in a chat window.`

const retryDirective = `Your previous answer lacked structure. This time you MUST include at least
one actionable link or one concrete follow-up question the user could ask next.`

const extractDirective = `Extract structure from the assistant reply you are given.
Respond with a single JSON object: {"summary": string, "links": [string], "followUps": [string]}.
"summary" is required and restates the reply in at most three sentences,
keeping any markdown formatting. "links" lists every URL in the reply in
order of appearance. "followUps" lists questions the user would plausibly
ask next. Use empty arrays when nothing applies. Output only the JSON object.`

// Run drives Drafting, Extracting and the Accept/Retry decision for one
// conversation. It performs at most MaxAttempts drafting phases and exactly
// one extraction per draft; the first extraction with a link or follow-up is
// accepted, and after the last attempt whatever was extracted is accepted as
// is.
func (e *Engine) Run(ctx context.Context, conversation []llm.Message, opts RunOptions) (*Final, error) {
	if len(conversation) == 0 {
		return nil, fmt.Errorf("conversation is empty")
	}
	registry := opts.Tools
	if registry == nil {
		registry = e.registry
	}
	base := fmt.Sprintf("%s\nCurrent date is: %s.", systemDirective, e.now().Format("2006-01-02"))
	directive := base
	var final *Final
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt == 1 {
			report(opts, "is thinking...")
		} else {
			report(opts, "is gathering more info...")
		}
		draft, err := e.draft(ctx, registry, directive, conversation)
		if err != nil {
			return nil, fmt.Errorf("draft response: %w", err)
		}

		report(opts, "is structuring the answer...")
		final, err = e.extract(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("extract structure: %w", err)
		}
		if !final.thin() {
			e.log.Info("attempt_accepted", "attempt", attempt, "links", len(final.Links), "follow_ups", len(final.FollowUps))
			return final, nil
		}
		e.log.Info("attempt_thin", "attempt", attempt)
		directive = base + "\n\n" + retryDirective
	}
	// Out of attempts. A thin answer is still an answer.
	return final, nil
}

// draft runs one model invocation with tools. Tool failures are fed back to
// the model as tool results; once the step budget is spent remaining calls
// fail without executing and the next request goes out without tools so the
// model has to conclude in text.
func (e *Engine) draft(ctx context.Context, registry *tools.Registry, directive string, conversation []llm.Message) (string, error) {
	messages := make([]llm.Message, 0, len(conversation)+1)
	messages = append(messages, llm.Message{Role: "system", Content: directive})
	messages = append(messages, conversation...)

	specs := toolSpecs(registry)
	steps := 0
	for {
		request := llm.Request{Model: e.cfg.Model, Messages: messages}
		if steps < e.cfg.MaxToolSteps {
			request.Tools = specs
		}
		result, err := e.client.Chat(ctx, request)
		if err != nil {
			return "", err
		}
		if len(result.ToolCalls) == 0 {
			return result.Text, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			var output string
			// One model turn can carry more calls than the budget allows;
			// overflow calls are rejected without executing.
			if steps >= e.cfg.MaxToolSteps {
				e.log.Warn("tool_step_limit", "tool", call.Name, "limit", e.cfg.MaxToolSteps)
				output = fmt.Sprintf("tool error: tool step limit of %d reached", e.cfg.MaxToolSteps)
			} else if out, execErr := e.executeTool(ctx, registry, call); execErr != nil {
				e.log.Warn("tool_call_failed", "tool", call.Name, "error", execErr.Error())
				output = "tool error: " + execErr.Error()
				steps++
			} else {
				e.log.Info("tool_call", "tool", call.Name, "step", steps+1)
				output = out
				steps++
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}
}

func (e *Engine) executeTool(ctx context.Context, registry *tools.Registry, call llm.ToolCall) (string, error) {
	if registry == nil {
		return "", fmt.Errorf("no tools registered")
	}
	tool, ok := registry.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	args := call.Args
	if args == nil && strings.TrimSpace(call.RawArguments) != "" {
		if err := json.Unmarshal([]byte(call.RawArguments), &args); err != nil {
			return "", fmt.Errorf("parse tool arguments: %w", err)
		}
	}
	return tool.Execute(ctx, args)
}

func (e *Engine) extract(ctx context.Context, draft string) (*Final, error) {
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return nil, fmt.Errorf("draft is empty")
	}
	result, err := e.client.Chat(ctx, llm.Request{
		Model: e.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: extractDirective},
			{Role: "user", Content: draft},
		},
		ForceJSON: true,
	})
	if err != nil {
		return nil, err
	}
	var final Final
	if err := jsonutil.DecodeWithFallback(result.Text, &final); err != nil {
		e.log.Warn("extract_parse_failed", "error", err.Error())
		return &Final{Summary: draft}, nil
	}
	if strings.TrimSpace(final.Summary) == "" {
		final.Summary = draft
	}
	return &final, nil
}

func toolSpecs(registry *tools.Registry) []llm.ToolSpec {
	if registry == nil {
		return nil
	}
	all := registry.All()
	specs := make([]llm.ToolSpec, 0, len(all))
	for _, tool := range all {
		specs = append(specs, llm.ToolSpec{
			Name:            tool.Name(),
			Description:     tool.Description(),
			ParameterSchema: tool.ParameterSchema(),
		})
	}
	return specs
}

func report(opts RunOptions, text string) {
	if opts.Status != nil {
		opts.Status(text)
	}
}
