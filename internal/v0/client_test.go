package v0

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(srv *httptest.Server, opts Options) *Client {
	opts.BaseURL = srv.URL
	if opts.APIKey == "" {
		opts.APIKey = "v0-key"
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return NewClient(srv.Client(), opts)
}

func TestSubmitCreatesChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chats" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer v0-key" {
			t.Errorf("authorization = %q", got)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["message"] != "build a landing page" || req["projectId"] != "prj_1" {
			t.Errorf("unexpected payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chat_1",
			"latestVersion": map[string]any{
				"id":     "v_1",
				"status": "pending",
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectID: "prj_1"})
	job, err := c.Submit(context.Background(), "build a landing page", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.ChatID != "chat_1" || job.Status != StatusPending || job.VersionID != "v_1" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSubmitContinuesExistingChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chats/chat_7/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "chat_7"})
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectID: "prj_1"})
	job, err := c.Submit(context.Background(), "make the header sticky", "chat_7")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.ChatID != "chat_7" {
		t.Fatalf("ChatID = %q", job.ChatID)
	}
}

func TestPollUntilTerminalCompletesThenDeploysOnce(t *testing.T) {
	t.Parallel()

	var polls, deploys atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/chats/chat_1":
			n := polls.Add(1)
			version := map[string]any{"id": "v_1", "status": StatusRunning}
			if n >= 11 {
				version = map[string]any{"id": "v_1", "status": StatusCompleted, "demoUrl": "https://demo.v0.dev/x"}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "chat_1", "latestVersion": version})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/deployments":
			deploys.Add(1)
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["chatId"] != "chat_1" || req["versionId"] != "v_1" {
				t.Errorf("unexpected deployment payload: %v", req)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "dep_1", "webUrl": "https://app.v0.dev/x"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectID: "prj_1"})
	job, err := c.PollUntilTerminal(context.Background(), Job{ChatID: "chat_1", Status: StatusRunning})
	if err != nil {
		t.Fatalf("PollUntilTerminal() error = %v", err)
	}
	if polls.Load() != 11 {
		t.Fatalf("polls = %d, want 11", polls.Load())
	}
	if job.Status != StatusCompleted || job.DemoURL == "" {
		t.Fatalf("unexpected job: %+v", job)
	}

	job, err = c.Deploy(context.Background(), job)
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if deploys.Load() != 1 {
		t.Fatalf("deploys = %d, want 1", deploys.Load())
	}
	if job.WebURL != "https://app.v0.dev/x" {
		t.Fatalf("WebURL = %q", job.WebURL)
	}
}

func TestPollUntilTerminalTimesOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "chat_1",
			"latestVersion": map[string]any{"id": "v_1", "status": StatusRunning},
		})
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectID: "prj_1", MaxPollAttempts: 3})
	_, err := c.PollUntilTerminal(context.Background(), Job{ChatID: "chat_1", Status: StatusRunning})
	if !errors.Is(err, ErrBuildTimeout) {
		t.Fatalf("error = %v, want ErrBuildTimeout", err)
	}
}

func TestPollUntilTerminalFailedBuildNeverDeploys(t *testing.T) {
	t.Parallel()

	var deploys atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/deployments" {
			deploys.Add(1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "chat_1",
			"latestVersion": map[string]any{"id": "v_1", "status": StatusFailed},
		})
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectID: "prj_1"})
	job, err := c.PollUntilTerminal(context.Background(), Job{ChatID: "chat_1", Status: StatusRunning})
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("error = %v, want ErrBuildFailed", err)
	}
	if _, err := c.Deploy(context.Background(), job); err == nil {
		t.Fatalf("Deploy() should reject a failed build")
	}
	if deploys.Load() != 0 {
		t.Fatalf("deploys = %d, want 0", deploys.Load())
	}
}

func TestResolveProjectLooksUpByName(t *testing.T) {
	t.Parallel()

	var lists, creates atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/projects":
			lists.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": "prj_a", "name": "Other"},
					{"id": "prj_b", "name": "Briefbot Builds"},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/projects":
			creates.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "prj_new"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectName: "Briefbot Builds"})
	id, err := c.ResolveProject(context.Background())
	if err != nil {
		t.Fatalf("ResolveProject() error = %v", err)
	}
	if id != "prj_b" {
		t.Fatalf("id = %q, want prj_b", id)
	}
	// cached after the first resolution
	if _, err := c.ResolveProject(context.Background()); err != nil {
		t.Fatalf("ResolveProject() error = %v", err)
	}
	if lists.Load() != 1 || creates.Load() != 0 {
		t.Fatalf("lists = %d creates = %d", lists.Load(), creates.Load())
	}
}

func TestResolveProjectCreatesWhenMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.EqualFold(req["name"].(string), "Briefbot Builds") {
			t.Errorf("name = %v", req["name"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "prj_new"})
	}))
	defer srv.Close()

	c := testClient(srv, Options{ProjectName: "Briefbot Builds"})
	id, err := c.ResolveProject(context.Background())
	if err != nil {
		t.Fatalf("ResolveProject() error = %v", err)
	}
	if id != "prj_new" {
		t.Fatalf("id = %q, want prj_new", id)
	}
}
