// Package anthropic 通过 Messages API 对接 Claude 系列模型。
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ag-cli/internal/agent"
	"ag-cli/internal/logger"
	"ag-cli/internal/tools"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultMaxTokens 是单次回复的 token 上限。
const DefaultMaxTokens = 4096

// missingResult 用于补齐没有对应 tool 消息的 tool_use（例如模型请求了不存在的工具）。
const missingResult = "no result: tool was not executed"

var log = logger.Named("anthropic")

type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

type Client struct {
	model      string
	maxTokens  int64
	newMessage func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

var _ agent.ModelClient = (*Client)(nil)

func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("missing api key")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if base := normalizeBaseURL(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	api := anthropic.NewClient(reqOpts...)
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{
		model:     strings.TrimSpace(opts.Model),
		maxTokens: maxTokens,
		newMessage: func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
			return api.Messages.New(ctx, params)
		},
	}, nil
}

func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/messages")
	base = strings.TrimSuffix(base, "/v1")
	return strings.TrimRight(base, "/")
}

func (c *Client) resolveModel(m string) anthropic.Model {
	if strings.TrimSpace(m) != "" {
		return anthropic.Model(strings.TrimSpace(m))
	}
	return anthropic.Model(c.model)
}

// Complete 发送一次非流式请求，并把 text 与 tool_use 块合并为一条 assistant 消息。
func (c *Client) Complete(ctx context.Context, prompt agent.Prompt) (agent.Message, error) {
	params := buildMessageParams(prompt, c.resolveModel(prompt.Model))
	params.MaxTokens = c.maxTokens
	msg, err := c.newMessage(ctx, params)
	if err != nil {
		return agent.Message{}, wrapHTTPError(err)
	}
	log.WithFields(logger.Fields{"stop_reason": msg.StopReason, "blocks": len(msg.Content)}).Debug("message received")
	return fromContent(msg.Content), nil
}

func buildMessageParams(prompt agent.Prompt, model anthropic.Model) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion
	var pending []string

	flushResults := func() {
		for _, id := range pending {
			results = append(results, anthropic.NewToolResultBlock(id, missingResult, true))
		}
		pending = nil
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range prompt.Messages {
		if msg.Role == agent.RoleTool {
			pending = removeID(pending, msg.ToolCallID)
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			continue
		}
		flushResults()

		text := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case agent.RoleSystem:
			if text != "" {
				system = append(system, anthropic.TextBlockParam{Text: text})
			}
		case agent.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, toolInput(call.Arguments), call.Name))
				pending = append(pending, call.ID)
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			if text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}
	flushResults()

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: DefaultMaxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(prompt.Tools) > 0 {
		params.Tools = toTools(prompt.Tools)
	}
	return params
}

func toTools(specs []tools.Spec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema := spec.Parameters.Map()
		tool := &anthropic.ToolParam{
			Name: spec.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   schema["required"].([]string),
			},
		}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			tool.Description = anthropic.String(desc)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out
}

// toolInput 将参数原文转为 tool_use.input；input 必须是对象，非法内容退化为空对象。
func toolInput(raw string) any {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") || !json.Valid([]byte(raw)) {
		return map[string]any{}
	}
	return json.RawMessage(raw)
}

func fromContent(blocks []anthropic.ContentBlockUnion) agent.Message {
	msg := agent.Message{Role: agent.RoleAssistant}
	var sb strings.Builder
	for _, block := range blocks {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			args := strings.TrimSpace(string(v.Input))
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}
	msg.Content = strings.TrimSpace(sb.String())
	return msg
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func wrapHTTPError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		if raw := strings.TrimSpace(apiErr.RawJSON()); raw != "" {
			return fmt.Errorf("http_%d: %s", apiErr.StatusCode, raw)
		}
		return fmt.Errorf("http_%d: %v", apiErr.StatusCode, err)
	}
	return err
}
