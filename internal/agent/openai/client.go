// Package openai 通过 chat completions 接口对接 OpenAI 兼容服务与 Azure OpenAI。
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ag-cli/internal/agent"
	"ag-cli/internal/logger"
	"ag-cli/internal/tools"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultAzureAPIVersion 是 Azure 部署默认使用的 api-version。
const DefaultAzureAPIVersion = "2024-03-01-preview"

// LogIDHeader 随每个 Azure 请求发送，便于在网关侧定位调用。
const LogIDHeader = "X-TT-LOGID"

var log = logger.Named("openai")

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Azure      bool
	APIVersion string
	LogID      string
}

type Client struct {
	api   *openai.Client
	model string
}

var _ agent.ModelClient = (*Client)(nil)

// New 创建客户端。SDK 自带的重试被关闭，重试统一交给 agent.RetryClient。
func New(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("missing api key")
	}
	base := strings.TrimSpace(opts.BaseURL)
	cfg := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.Azure {
		if base == "" {
			return nil, errors.New("azure endpoint is required")
		}
		version := strings.TrimSpace(opts.APIVersion)
		if version == "" {
			version = DefaultAzureAPIVersion
		}
		logID := strings.TrimSpace(opts.LogID)
		if logID == "" {
			logID = uuid.NewString()
		}
		cfg = append(cfg,
			azure.WithEndpoint(strings.TrimRight(base, "/"), version),
			azure.WithAPIKey(key),
			option.WithHeader(LogIDHeader, logID),
		)
	} else {
		cfg = append(cfg, option.WithAPIKey(key))
		if base != "" {
			cfg = append(cfg, option.WithBaseURL(strings.TrimRight(normalizeBaseURL(base), "/")))
		}
	}
	client := openai.NewClient(cfg...)
	log.WithFields(logger.Fields{"azure": opts.Azure, "model": opts.Model}).Debug("client created")
	return &Client{
		api:   &client,
		model: strings.TrimSpace(opts.Model),
	}, nil
}

func (c *Client) resolveModel(m string) string {
	if strings.TrimSpace(m) != "" {
		return strings.TrimSpace(m)
	}
	return c.model
}

// Complete 发送完整历史与工具列表，返回第一个 choice 对应的 assistant 消息。
func (c *Client) Complete(ctx context.Context, prompt agent.Prompt) (agent.Message, error) {
	params := buildChatParams(prompt, c.resolveModel(prompt.Model))
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return agent.Message{}, wrapHTTPError(err)
	}
	if len(resp.Choices) == 0 {
		return agent.Message{}, errors.New("chat completion returned no choices")
	}
	return fromChatMessage(resp.Choices[0].Message), nil
}

func buildChatParams(prompt agent.Prompt, model string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toChatMessages(prompt.Messages),
	}
	if len(prompt.Tools) > 0 {
		params.Tools = toChatTools(prompt.Tools)
	}
	return params
}

func toChatMessages(msgs []agent.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case agent.RoleAssistant:
			out = append(out, toAssistantMessage(msg))
		case agent.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func toAssistantMessage(msg agent.Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}
	asst := openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		asst.Content.OfString = openai.String(msg.Content)
	}
	for _, call := range msg.ToolCalls {
		args := call.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: args,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

func toChatTools(specs []tools.Spec) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:       spec.Name,
			Parameters: shared.FunctionParameters(spec.Parameters.Map()),
		}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			fn.Description = openai.String(desc)
		}
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{Function: fn},
		})
	}
	return out
}

func fromChatMessage(m openai.ChatCompletionMessage) agent.Message {
	msg := agent.Message{Role: agent.RoleAssistant, Content: m.Content}
	for _, call := range m.ToolCalls {
		if call.Function.Name == "" {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
			ID:        callID(call.ID),
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	// 旧式 function_call 没有 id，补一个以便 tool 消息回填。
	if fc := m.FunctionCall; fc.Name != "" {
		msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
			ID:        callID(""),
			Name:      fc.Name,
			Arguments: fc.Arguments,
		})
	}
	return msg
}

func callID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

func wrapHTTPError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		respDump := strings.TrimSpace(string(apiErr.DumpResponse(true)))
		if respDump != "" {
			return fmt.Errorf("http_%d: %s", apiErr.StatusCode, respDump)
		}
		raw := strings.TrimSpace(apiErr.RawJSON())
		if raw != "" {
			return fmt.Errorf("http_%d: %s", apiErr.StatusCode, raw)
		}
		return fmt.Errorf("http_%d: %v", apiErr.StatusCode, err)
	}
	return err
}
