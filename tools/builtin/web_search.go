package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebSearchTool answers queries with DuckDuckGo's instant answer API. The
// API only covers encyclopedic and instant answers, which is enough for the
// fact lookups the model reaches for mid-conversation.
type WebSearchTool struct {
	HTTP       *http.Client
	BaseURL    string
	MaxResults int
}

func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		BaseURL:    "https://api.duckduckgo.com",
		MaxResults: 5,
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Use for facts, documentation or anything that may be newer than your training data. Returns a JSON array of results with title, description and url."
}

func (t *WebSearchTool) ParameterSchema() string {
	return `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "query": { "type": "string", "description": "Search query string." }
  },
  "required": ["query"]
}`
}

type searchResult struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type instantAnswerResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
	Results []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"Results"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := strings.TrimSpace(getString(params, "query"))
	if query == "" {
		return "", fmt.Errorf("missing query")
	}
	maxResults := t.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	searchURL := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		strings.TrimRight(t.BaseURL, "/"), url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "briefbot/1.0")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search request failed: %w", err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("web search http %d", resp.StatusCode)
	}

	var answer instantAnswerResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return "", fmt.Errorf("parse web search response: %w", err)
	}

	var results []searchResult
	if strings.TrimSpace(answer.AbstractText) != "" {
		results = append(results, searchResult{
			Title:       answer.Heading,
			Description: answer.AbstractText,
			URL:         answer.AbstractURL,
		})
	}
	if strings.TrimSpace(answer.Answer) != "" {
		results = append(results, searchResult{
			Title:       "Instant Answer",
			Description: answer.Answer,
		})
	}
	for _, topic := range answer.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if strings.TrimSpace(topic.Text) == "" {
			continue
		}
		results = append(results, searchResult{Description: topic.Text, URL: topic.FirstURL})
	}
	for _, direct := range answer.Results {
		if len(results) >= maxResults {
			break
		}
		if strings.TrimSpace(direct.Text) == "" {
			continue
		}
		results = append(results, searchResult{Description: direct.Text, URL: direct.FirstURL})
	}

	if len(results) == 0 {
		return `{"results":[],"note":"no results found"}`, nil
	}
	raw, err := json.Marshal(map[string]any{"results": results})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
