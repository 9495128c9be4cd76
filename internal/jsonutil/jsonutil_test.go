package jsonutil

import (
	"errors"
	"testing"
)

func TestDecodeWithFallbackDirectJSON(t *testing.T) {
	var out struct {
		Summary string   `json:"summary"`
		Links   []string `json:"links"`
	}
	err := DecodeWithFallback(`{"summary":"ok","links":["https://a.test"]}`, &out)
	if err != nil {
		t.Fatalf("DecodeWithFallback() error = %v", err)
	}
	if out.Summary != "ok" || len(out.Links) != 1 {
		t.Fatalf("unexpected decode: %#v", out)
	}
}

func TestDecodeWithFallbackCodeFenceJSON(t *testing.T) {
	var out struct {
		Status string `json:"status"`
	}
	err := DecodeWithFallback("```json\n{\"status\":\"ok\"}\n```", &out)
	if err != nil {
		t.Fatalf("DecodeWithFallback() error = %v", err)
	}
	if out.Status != "ok" {
		t.Fatalf("status = %q, want ok", out.Status)
	}
}

func TestDecodeWithFallbackProseWrappedJSON(t *testing.T) {
	var out struct {
		FollowUps []string `json:"follow_ups"`
	}
	raw := "Here is the structured result you asked for:\n{\"follow_ups\":[\"Want a dark mode?\"]}\nLet me know if that works."
	if err := DecodeWithFallback(raw, &out); err != nil {
		t.Fatalf("DecodeWithFallback() error = %v", err)
	}
	if len(out.FollowUps) != 1 || out.FollowUps[0] != "Want a dark mode?" {
		t.Fatalf("unexpected follow_ups: %#v", out.FollowUps)
	}
}

func TestDecodeWithFallbackBracesInsideStrings(t *testing.T) {
	var out map[string]any
	raw := `noise {"text":"a } inside a string"} trailing`
	if err := DecodeWithFallback(raw, &out); err != nil {
		t.Fatalf("DecodeWithFallback() error = %v", err)
	}
	if out["text"] != "a } inside a string" {
		t.Fatalf("text = %#v", out["text"])
	}
}

func TestDecodeWithFallbackEmptyInput(t *testing.T) {
	var out map[string]any
	err := DecodeWithFallback(" \n\t ", &out)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestDecodeWithFallbackRejectsInvalidInput(t *testing.T) {
	var out map[string]any
	if err := DecodeWithFallback("not a json payload", &out); err == nil {
		t.Fatalf("expected error for invalid input")
	}
}
