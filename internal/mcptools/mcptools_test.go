package mcptools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func countingTool(name string, calls *atomic.Int32) RawTool {
	return RawTool{
		Name:        name,
		Description: "counts calls",
		Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
		Call: func(context.Context, map[string]any) (string, error) {
			calls.Add(1)
			return "ok", nil
		},
	}
}

func TestBudgetAllowsLimitExecutions(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := Wrap([]RawTool{countingTool("a", &calls), countingTool("b", &calls)}, nil, 4)
	all := s.Tools()
	if len(all) != 2 {
		t.Fatalf("len(tools) = %d, want 2", len(all))
	}
	for i := 0; i < 4; i++ {
		if _, err := all[i%2].Execute(context.Background(), nil); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 4", calls.Load())
	}
	if s.StepsUsed() != 4 {
		t.Fatalf("StepsUsed() = %d, want 4", s.StepsUsed())
	}
}

func TestBudgetRejectsOverLimitWithoutExecuting(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := Wrap([]RawTool{countingTool("a", &calls)}, nil, 2)
	tool := s.Tools()[0]
	for i := 0; i < 2; i++ {
		if _, err := tool.Execute(context.Background(), nil); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	_, err := tool.Execute(context.Background(), nil)
	var limitErr *StepLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error = %v, want StepLimitError", err)
	}
	if limitErr.Limit != 2 {
		t.Fatalf("Limit = %d, want 2", limitErr.Limit)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, rejected execution must not run the tool", calls.Load())
	}
	if s.StepsUsed() != 2 {
		t.Fatalf("StepsUsed() = %d, rejected execution must not consume budget", s.StepsUsed())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	var closes atomic.Int32
	s := Wrap(nil, func() error {
		closes.Add(1)
		return nil
	}, 1)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if closes.Load() != 1 {
		t.Fatalf("closes = %d, want 1", closes.Load())
	}

	var nilSession *Session
	if err := nilSession.Close(); err != nil {
		t.Fatalf("nil Close() error = %v", err)
	}
}

func TestServerSessionsHaveIndependentBudgets(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := NewServer([]RawTool{countingTool("a", &calls)}, nil, 1)

	first := server.NewSession()
	second := server.NewSession()
	if _, err := first.Tools()[0].Execute(context.Background(), nil); err != nil {
		t.Fatalf("first session execute: %v", err)
	}
	if _, err := second.Tools()[0].Execute(context.Background(), nil); err != nil {
		t.Fatalf("second session must have its own budget: %v", err)
	}
	if _, err := first.Tools()[0].Execute(context.Background(), nil); err == nil {
		t.Fatalf("first session budget must stay spent")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestServerCloseIsIdempotentAndNilSafe(t *testing.T) {
	t.Parallel()

	var closes atomic.Int32
	server := NewServer(nil, func() error {
		closes.Add(1)
		return nil
	}, 1)
	if err := server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if closes.Load() != 1 {
		t.Fatalf("closes = %d, want 1", closes.Load())
	}

	var nilServer *Server
	if nilServer.NewSession() != nil {
		t.Fatalf("nil server must yield a nil session")
	}
	if err := nilServer.Close(); err != nil {
		t.Fatalf("nil Close() error = %v", err)
	}
}

func TestParameterSchemaFallsBackToEmptyObject(t *testing.T) {
	t.Parallel()

	s := Wrap([]RawTool{{Name: "bare", Call: func(context.Context, map[string]any) (string, error) { return "", nil }}}, nil, 1)
	got := s.Tools()[0].ParameterSchema()
	if got != `{"type":"object","properties":{}}` {
		t.Fatalf("ParameterSchema() = %s", got)
	}
}
