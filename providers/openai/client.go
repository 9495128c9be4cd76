// Package openai adapts the OpenAI chat completions API to the llm.Client
// contract, including tool calling and JSON-mode extraction calls.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/steadylabs/briefbot/llm"
)

type Client struct {
	api sdk.Client
}

func New(endpoint, apiKey string, timeout time.Duration) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
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
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: buildMessages(req.Messages),
	}
	if tools := buildTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	if req.ForceJSON {
		obj := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &obj}
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Result{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Result{}, fmt.Errorf("openai chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	result := llm.Result{
		Text: msg.Content,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Duration: time.Since(start),
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			_ = json.Unmarshal([]byte(raw), &args)
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
			Args:         args,
		})
	}
	return result, nil
}

func buildMessages(messages []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, sdk.SystemMessage(msg.Content))
		case "tool":
			content := msg.Content
			if strings.TrimSpace(content) == "" {
				content = "{}"
			}
			out = append(out, sdk.ToolMessage(content, msg.ToolCallID))
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := sdk.ChatCompletionAssistantMessageParam{
				ToolCalls: buildToolCallReplay(msg.ToolCalls),
			}
			if content := strings.TrimSpace(msg.Content); content != "" {
				assistant.Content = sdk.ChatCompletionAssistantMessageParamContentUnion{
					OfString: sdk.String(content),
				}
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		default:
			out = append(out, sdk.UserMessage(msg.Content))
		}
	}
	return out
}

func buildToolCallReplay(calls []llm.ToolCall) []sdk.ChatCompletionMessageToolCallUnionParam {
	out := make([]sdk.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, call := range calls {
		args := strings.TrimSpace(call.RawArguments)
		if args == "" && call.Args != nil {
			if raw, err := json.Marshal(call.Args); err == nil {
				args = string(raw)
			}
		}
		if args == "" {
			args = "{}"
		}
		out = append(out, sdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: args,
				},
			},
		})
	}
	return out
}

func buildTools(specs []llm.ToolSpec) []sdk.ChatCompletionToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		params := sdk.FunctionParameters{"type": "object", "properties": map[string]any{}}
		if raw := strings.TrimSpace(spec.ParameterSchema); raw != "" {
			var schema map[string]any
			if err := json.Unmarshal([]byte(raw), &schema); err == nil {
				params = sdk.FunctionParameters(schema)
			}
		}
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: sdk.String(spec.Description),
			Parameters:  params,
		}))
	}
	return out
}
