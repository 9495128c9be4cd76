package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebSearchReturnsResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "go generics" {
			t.Errorf("q = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Heading":      "Generics",
			"AbstractText": "Type parameters for Go.",
			"AbstractURL":  "https://go.dev/doc/tutorial/generics",
			"RelatedTopics": []map[string]any{
				{"Text": "Go 1.18 release", "FirstURL": "https://go.dev/blog/go1.18"},
			},
		})
	}))
	defer srv.Close()

	tool := NewWebSearchTool()
	tool.HTTP = srv.Client()
	tool.BaseURL = srv.URL

	out, err := tool.Execute(context.Background(), map[string]any{"query": "go generics"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var parsed struct {
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if len(parsed.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(parsed.Results))
	}
	if parsed.Results[0].URL != "https://go.dev/doc/tutorial/generics" {
		t.Fatalf("results[0].URL = %q", parsed.Results[0].URL)
	}
}

func TestWebSearchEmptyAnswer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	tool := NewWebSearchTool()
	tool.HTTP = srv.Client()
	tool.BaseURL = srv.URL

	out, err := tool.Execute(context.Background(), map[string]any{"query": "nothing"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "no results found") {
		t.Fatalf("output = %s", out)
	}
}

func TestWebSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	tool := NewWebSearchTool()
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected error for missing query")
	}
}
