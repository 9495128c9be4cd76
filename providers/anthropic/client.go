// Package anthropic adapts the Anthropic Messages API to the llm.Client
// contract. System messages move to the system parameter, tool results
// become tool_result blocks and strict user/assistant alternation is
// enforced by merging adjacent same-role turns.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/steadylabs/briefbot/llm"
)

const defaultMaxTokens = 4096

// The Messages API has no JSON response mode; extraction calls get this
// appended to the system prompt instead.
const forceJSONSuffix = "Respond with a single valid JSON object and nothing else: no prose, no code fences."

type Client struct {
	api sdk.Client
}

func New(endpoint, apiKey string, timeout time.Duration) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &Client{api: sdk.NewClient(opts...)}, nil
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	if strings.TrimSpace(req.Model) == "" {
		return llm.Result{}, fmt.Errorf("model is required")
	}
	system, messages, err := buildMessages(req.Messages)
	if err != nil {
		return llm.Result{}, err
	}
	if req.ForceJSON {
		if system != "" {
			system += "\n\n"
		}
		system += forceJSONSuffix
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system, Type: "text"}}
	}
	if tools := buildTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	start := time.Now()
	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return llm.Result{}, fmt.Errorf("anthropic message: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.Result{}, fmt.Errorf("anthropic message returned no content")
	}

	result := llm.Result{
		Usage: llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Duration: time.Since(start),
	}
	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			use := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(use.Input, &args); err != nil {
				return llm.Result{}, fmt.Errorf("parse tool input: %w", err)
			}
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:           use.ID,
				Name:         use.Name,
				RawArguments: string(use.Input),
				Args:         args,
			})
		}
	}
	result.Text = text.String()
	return result, nil
}

// buildMessages converts the shared message shape into alternating Anthropic
// turns. Tool results ride in user turns; consecutive same-role turns are
// merged block-wise.
func buildMessages(messages []llm.Message) (string, []sdk.MessageParam, error) {
	var systemParts []string
	var out []sdk.MessageParam

	appendBlocks := func(role sdk.MessageParamRole, blocks ...sdk.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, sdk.MessageParam{Role: role, Content: blocks})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				systemParts = append(systemParts, txt)
			}
		case "tool":
			content := msg.Content
			if strings.TrimSpace(content) == "" {
				content = "{}"
			}
			isError := strings.HasPrefix(content, "tool error:")
			appendBlocks(sdk.MessageParamRoleUser, sdk.NewToolResultBlock(msg.ToolCallID, content, isError))
		case "assistant":
			var blocks []sdk.ContentBlockParamUnion
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				blocks = append(blocks, sdk.NewTextBlock(txt))
			}
			for _, call := range msg.ToolCalls {
				input := json.RawMessage(strings.TrimSpace(call.RawArguments))
				if len(input) == 0 {
					raw, err := json.Marshal(call.Args)
					if err != nil {
						return "", nil, err
					}
					input = raw
				}
				blocks = append(blocks, sdk.NewToolUseBlock(call.ID, input, call.Name))
			}
			appendBlocks(sdk.MessageParamRoleAssistant, blocks...)
		default:
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				appendBlocks(sdk.MessageParamRoleUser, sdk.NewTextBlock(txt))
			}
		}
	}

	if len(out) == 0 {
		return "", nil, fmt.Errorf("no user or assistant messages to send")
	}
	if out[0].Role != sdk.MessageParamRoleUser {
		out = append([]sdk.MessageParam{{
			Role:    sdk.MessageParamRoleUser,
			Content: []sdk.ContentBlockParamUnion{sdk.NewTextBlock("(continuing the conversation)")},
		}}, out...)
	}
	return strings.Join(systemParts, "\n\n"), out, nil
}

func buildTools(specs []llm.ToolSpec) []sdk.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema := sdk.ToolInputSchemaParam{Type: "object"}
		if raw := strings.TrimSpace(spec.ParameterSchema); raw != "" {
			var parsed struct {
				Properties any      `json:"properties"`
				Required   []string `json:"required"`
			}
			if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
				schema.Properties = parsed.Properties
				schema.Required = parsed.Required
			}
		}
		out = append(out, sdk.ToolUnionParamOfTool(schema, spec.Name))
	}
	return out
}
