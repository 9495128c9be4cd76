// Package mcptools bridges MCP server tools into the bot's tool registry
// with a per-conversation step budget.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/steadylabs/briefbot/tools"
)

// StepLimitError is returned by every tool execution once the shared budget
// is spent. The engine feeds it back to the model as a tool result so the
// model can wrap up without tools.
type StepLimitError struct {
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("tool step limit of %d reached", e.Limit)
}

// RawTool is a provider-agnostic tool handle. Connect produces these from a
// live MCP session; tests construct them directly.
type RawTool struct {
	Name        string
	Description string
	Schema      map[string]any
	Call        func(ctx context.Context, args map[string]any) (string, error)
}

// Server is a live MCP connection whose tools get wrapped with a fresh step
// budget per event. The connection outlives any single session.
type Server struct {
	raws  []RawTool
	limit int

	closeOnce sync.Once
	closer    func() error
}

// NewServer builds a Server over raw tools; closer may be nil. limit is the
// per-session execution budget.
func NewServer(raws []RawTool, closer func() error, limit int) *Server {
	return &Server{raws: raws, closer: closer, limit: limit}
}

// NewSession wraps the server's tools with a fresh budget. Every inbound
// event gets its own session so one conversation cannot starve another.
func (s *Server) NewSession() *Session {
	if s == nil || len(s.raws) == 0 {
		return nil
	}
	return Wrap(s.raws, nil, s.limit)
}

// Close shuts down the underlying MCP connection. Safe to call more than
// once and on a nil server.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}

// Session is a set of budget-sharing tools serving one inbound event.
type Session struct {
	tools []tools.Tool

	mu    sync.Mutex
	used  int
	limit int

	closeOnce sync.Once
	closer    func() error
}

// Wrap builds a Session over raw tools. limit bounds the total number of
// executions across all tools of the session; closer may be nil.
func Wrap(raws []RawTool, closer func() error, limit int) *Session {
	if limit <= 0 {
		limit = 10
	}
	s := &Session{limit: limit, closer: closer}
	for _, raw := range raws {
		s.tools = append(s.tools, &boundTool{raw: raw, session: s})
	}
	return s
}

// Tools returns the budget-enforcing tool set for registry registration.
func (s *Session) Tools() []tools.Tool {
	if s == nil {
		return nil
	}
	return s.tools
}

// StepsUsed reports how many executions the session has consumed.
func (s *Session) StepsUsed() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Close shuts down the underlying MCP connection. Safe to call more than
// once and on a nil session.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}

// take reserves one step. Check and increment are one critical section so a
// rejected call never consumes budget.
func (s *Session) take() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used >= s.limit {
		return &StepLimitError{Limit: s.limit}
	}
	s.used++
	return nil
}

type boundTool struct {
	raw     RawTool
	session *Session
}

func (t *boundTool) Name() string        { return t.raw.Name }
func (t *boundTool) Description() string { return t.raw.Description }

func (t *boundTool) ParameterSchema() string {
	if len(t.raw.Schema) == 0 {
		return `{"type":"object","properties":{}}`
	}
	raw, err := json.Marshal(t.raw.Schema)
	if err != nil {
		return `{"type":"object","properties":{}}`
	}
	return string(raw)
}

func (t *boundTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.session.take(); err != nil {
		return "", err
	}
	return t.raw.Call(ctx, args)
}

// Options configures an MCP stdio connection. An empty Command means no MCP
// server is configured and Connect returns a nil server.
type Options struct {
	Command   string
	Args      []string
	Env       []string
	StepLimit int
}

// Connect launches the MCP server process, initializes the protocol and
// lists its tools. Sessions are minted from the returned Server per event.
func Connect(ctx context.Context, opts Options) (*Server, error) {
	command := strings.TrimSpace(opts.Command)
	if command == "" {
		return nil, nil
	}
	mcpClient, err := client.NewStdioMCPClient(command, opts.Env, opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("start mcp server: %w", err)
	}
	if _, err := mcpClient.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "briefbot",
				Version: "1.0.0",
			},
		},
	}); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("initialize mcp server: %w", err)
	}
	listed, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}

	raws := make([]RawTool, 0, len(listed.Tools))
	for _, remote := range listed.Tools {
		remote := remote
		schema := map[string]any{
			"type":       "object",
			"properties": remote.InputSchema.Properties,
		}
		if len(remote.InputSchema.Required) > 0 {
			schema["required"] = remote.InputSchema.Required
		}
		raws = append(raws, RawTool{
			Name:        remote.Name,
			Description: remote.Description,
			Schema:      schema,
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				result, err := mcpClient.CallTool(ctx, mcptypes.CallToolRequest{
					Params: mcptypes.CallToolParams{
						Name:      remote.Name,
						Arguments: args,
					},
				})
				if err != nil {
					return "", fmt.Errorf("call mcp tool %s: %w", remote.Name, err)
				}
				raw, err := json.Marshal(result.Content)
				if err != nil {
					return "", err
				}
				if result.IsError {
					return "", fmt.Errorf("mcp tool %s failed: %s", remote.Name, string(raw))
				}
				return string(raw), nil
			},
		})
	}
	limit := opts.StepLimit
	if limit <= 0 {
		limit = 10
	}
	return NewServer(raws, mcpClient.Close, limit), nil
}
