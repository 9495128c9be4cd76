// Package v0 is a client for the v0 Platform API: chat creation, completion
// polling, deployments and project resolution.
package v0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrBuildTimeout is returned when a build stays non-terminal past the
	// poll attempt ceiling.
	ErrBuildTimeout = errors.New("v0 build timed out")
	// ErrBuildFailed is returned when the build reaches the failed status.
	ErrBuildFailed = errors.New("v0 build failed")
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is the tracked state of one builder chat. Polling replaces the whole
// value; fields are never patched individually.
type Job struct {
	ChatID    string
	VersionID string
	Status    string
	DemoURL   string
	WebURL    string
}

func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string

	projectID   string
	projectName string
	modelID     string

	pollInterval    time.Duration
	maxPollAttempts int

	mu              sync.Mutex
	resolvedProject string
}

type Options struct {
	BaseURL     string
	APIKey      string
	ProjectID   string
	ProjectName string
	ModelID     string

	PollInterval    time.Duration
	MaxPollAttempts int
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = "https://api.v0.dev"
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = "v0-1.5-md"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	attempts := opts.MaxPollAttempts
	if attempts <= 0 {
		attempts = 45
	}
	return &Client{
		http:            httpClient,
		baseURL:         baseURL,
		apiKey:          strings.TrimSpace(opts.APIKey),
		projectID:       strings.TrimSpace(opts.ProjectID),
		projectName:     strings.TrimSpace(opts.ProjectName),
		modelID:         modelID,
		pollInterval:    interval,
		maxPollAttempts: attempts,
	}
}

type chatVersion struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
	DemoURL string `json:"demoUrl,omitempty"`
}

type chatResponse struct {
	ID            string       `json:"id,omitempty"`
	LatestVersion *chatVersion `json:"latestVersion,omitempty"`
}

func (c *Client) jobFromChat(chat chatResponse, chatID string) Job {
	job := Job{ChatID: strings.TrimSpace(chat.ID), Status: StatusPending}
	if job.ChatID == "" {
		job.ChatID = chatID
	}
	if chat.LatestVersion != nil {
		job.VersionID = strings.TrimSpace(chat.LatestVersion.ID)
		if s := strings.TrimSpace(chat.LatestVersion.Status); s != "" {
			job.Status = s
		}
		job.DemoURL = strings.TrimSpace(chat.LatestVersion.DemoURL)
	}
	return job
}

// Submit starts a build. With a continuation chat id the prompt is appended
// to the existing chat; otherwise a new chat is created in the resolved
// project.
func (c *Client) Submit(ctx context.Context, prompt, continuation string) (Job, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Job{}, fmt.Errorf("prompt is required")
	}
	continuation = strings.TrimSpace(continuation)
	if continuation != "" {
		var chat chatResponse
		err := c.doJSON(ctx, http.MethodPost, "/v1/chats/"+continuation+"/messages", map[string]any{
			"message":      prompt,
			"responseMode": "async",
			"modelConfiguration": map[string]any{
				"modelId": c.modelID,
			},
		}, &chat)
		if err != nil {
			return Job{}, err
		}
		return c.jobFromChat(chat, continuation), nil
	}

	projectID, err := c.ResolveProject(ctx)
	if err != nil {
		return Job{}, err
	}
	var chat chatResponse
	err = c.doJSON(ctx, http.MethodPost, "/v1/chats", map[string]any{
		"message":      prompt,
		"projectId":    projectID,
		"responseMode": "async",
		"modelConfiguration": map[string]any{
			"modelId": c.modelID,
		},
	}, &chat)
	if err != nil {
		return Job{}, err
	}
	return c.jobFromChat(chat, ""), nil
}

// PollUntilTerminal re-fetches the chat on a fixed interval until the latest
// version completes or fails. The interval is constant; builder jobs have a
// bounded, known duration so backoff buys nothing.
func (c *Client) PollUntilTerminal(ctx context.Context, job Job) (Job, error) {
	if strings.TrimSpace(job.ChatID) == "" {
		return job, fmt.Errorf("chat_id is required")
	}
	attempts := 0
	for !job.Terminal() {
		attempts++
		if attempts > c.maxPollAttempts {
			return job, ErrBuildTimeout
		}
		if err := sleepWithContext(ctx, c.pollInterval); err != nil {
			return job, err
		}
		var chat chatResponse
		if err := c.doJSON(ctx, http.MethodGet, "/v1/chats/"+job.ChatID, nil, &chat); err != nil {
			return job, err
		}
		job = c.jobFromChat(chat, job.ChatID)
	}
	if job.Status == StatusFailed {
		return job, ErrBuildFailed
	}
	return job, nil
}

type deploymentResponse struct {
	ID     string `json:"id,omitempty"`
	WebURL string `json:"webUrl,omitempty"`
}

// Deploy publishes the completed version and returns the job with WebURL
// filled in. Only valid for completed jobs with a version id.
func (c *Client) Deploy(ctx context.Context, job Job) (Job, error) {
	if job.Status != StatusCompleted {
		return job, fmt.Errorf("deploy requires a completed build, got %q", job.Status)
	}
	if strings.TrimSpace(job.VersionID) == "" {
		return job, nil
	}
	projectID, err := c.ResolveProject(ctx)
	if err != nil {
		return job, err
	}
	var dep deploymentResponse
	err = c.doJSON(ctx, http.MethodPost, "/v1/deployments", map[string]any{
		"projectId": projectID,
		"chatId":    job.ChatID,
		"versionId": job.VersionID,
	}, &dep)
	if err != nil {
		return job, err
	}
	job.WebURL = strings.TrimSpace(dep.WebURL)
	return job, nil
}

type project struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type projectListResponse struct {
	Data []project `json:"data,omitempty"`
}

// ResolveProject returns the project id builds belong to. A configured id
// wins; otherwise the project is looked up by name and created when absent.
// The result is cached; concurrent first calls resolve to the same value
// since resolution is deterministic.
func (c *Client) ResolveProject(ctx context.Context) (string, error) {
	if c.projectID != "" {
		return c.projectID, nil
	}
	c.mu.Lock()
	cached := c.resolvedProject
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	if c.projectName == "" {
		return "", fmt.Errorf("v0 project id or project name is required")
	}

	var list projectListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects", nil, &list); err != nil {
		return "", err
	}
	var id string
	for _, p := range list.Data {
		if strings.EqualFold(strings.TrimSpace(p.Name), c.projectName) {
			id = strings.TrimSpace(p.ID)
			break
		}
	}
	if id == "" {
		var created project
		if err := c.doJSON(ctx, http.MethodPost, "/v1/projects", map[string]any{
			"name": c.projectName,
		}, &created); err != nil {
			return "", err
		}
		id = strings.TrimSpace(created.ID)
		if id == "" {
			return "", fmt.Errorf("v0 project creation returned empty id")
		}
	}
	c.mu.Lock()
	c.resolvedProject = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("v0 api key is required")
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("v0 request failed %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
