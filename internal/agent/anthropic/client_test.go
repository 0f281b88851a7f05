package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ag-cli/internal/agent"
	"ag-cli/internal/schema"
	"ag-cli/internal/tools"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

func bashSpec() tools.Spec {
	return tools.Spec{
		Name:        "bash",
		Description: "Run a shell command",
		Parameters: schema.CompileParameters([]schema.Parameter{
			schema.Param("command", schema.String),
			schema.Optional("timeout_secs", schema.Integer, 120),
		}),
	}
}

func TestBuildMessageParamsRegistersToolsAndEncodesToolBlocks(t *testing.T) {
	prompt := agent.Prompt{
		Model: "claude-test",
		Tools: []tools.Spec{bashSpec()},
		Messages: []agent.Message{
			agent.SystemMessage("system"),
			agent.UserMessage("list files"),
			{
				Role:    agent.RoleAssistant,
				Content: "let me look",
				ToolCalls: []agent.ToolCall{
					{ID: "toolu_1", Name: "bash", Arguments: `{"command":"ls"}`},
					{ID: "toolu_2", Name: "bash", Arguments: `{"command":"pwd"}`},
				},
			},
			agent.ToolMessage("toolu_1", "a.txt"),
			agent.ToolMessage("toolu_2", "/tmp"),
		},
	}

	params := buildMessageParams(prompt, anthropic.Model("claude-test"))

	if len(params.Tools) != 1 || params.Tools[0].OfTool == nil {
		t.Fatalf("tools = %#v", params.Tools)
	}
	tool := params.Tools[0].OfTool
	if tool.Name != "bash" {
		t.Fatalf("tool name = %q", tool.Name)
	}
	if got := tool.InputSchema.Required; len(got) != 1 || got[0] != "command" {
		t.Fatalf("required = %#v, want [command]", got)
	}

	if len(params.System) != 1 || params.System[0].Text != "system" {
		t.Fatalf("system = %#v, want single system block", params.System)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("messages count = %d, want 3", len(params.Messages))
	}

	asst := params.Messages[1]
	if asst.Role != anthropic.MessageParamRoleAssistant {
		t.Fatalf("messages[1].role = %s, want assistant", asst.Role)
	}
	if len(asst.Content) != 3 || asst.Content[0].OfText == nil || asst.Content[1].OfToolUse == nil {
		t.Fatalf("messages[1] content = %#v", asst.Content)
	}
	if use := asst.Content[1].OfToolUse; use.ID != "toolu_1" || use.Name != "bash" {
		t.Fatalf("unexpected tool_use payload: %#v", use)
	}

	results := params.Messages[2]
	if results.Role != anthropic.MessageParamRoleUser {
		t.Fatalf("messages[2].role = %s, want user", results.Role)
	}
	if len(results.Content) != 2 {
		t.Fatalf("tool results should share one user message, got %#v", results.Content)
	}
	first := results.Content[0].OfToolResult
	if first == nil || first.ToolUseID != "toolu_1" {
		t.Fatalf("tool_result[0] = %#v", first)
	}
	if len(first.Content) != 1 || first.Content[0].OfText == nil || first.Content[0].OfText.Text != "a.txt" {
		t.Fatalf("tool_result.content = %#v, want text a.txt", first.Content)
	}
}

func TestBuildMessageParamsFillsMissingToolResults(t *testing.T) {
	prompt := agent.Prompt{
		Messages: []agent.Message{
			agent.UserMessage("go"),
			{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
				{ID: "toolu_1", Name: "nope", Arguments: `{}`},
				{ID: "toolu_2", Name: "bash", Arguments: `{"command":"ls"}`},
			}},
			agent.ToolMessage("toolu_2", "ok"),
		},
	}

	params := buildMessageParams(prompt, anthropic.Model("claude-test"))

	if len(params.Messages) != 3 {
		t.Fatalf("messages count = %d, want 3", len(params.Messages))
	}
	content := params.Messages[2].Content
	if len(content) != 2 {
		t.Fatalf("results = %#v, want 2 blocks", content)
	}
	var missing *anthropic.ToolResultBlockParam
	for _, block := range content {
		if block.OfToolResult != nil && block.OfToolResult.ToolUseID == "toolu_1" {
			missing = block.OfToolResult
		}
	}
	if missing == nil {
		t.Fatalf("missing synthesized result for toolu_1: %#v", content)
	}
	if !missing.IsError.Valid() || !missing.IsError.Value {
		t.Fatalf("synthesized result should be an error: %#v", missing)
	}
}

func mustMessage(t *testing.T, raw string) *anthropic.Message {
	t.Helper()
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return &msg
}

func TestCompleteParsesTextAndToolUse(t *testing.T) {
	var gotParams anthropic.MessageNewParams
	client := &Client{
		model:     "claude-test",
		maxTokens: 256,
		newMessage: func(_ context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
			gotParams = params
			return mustMessage(t, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
"content":[{"type":"text","text":"checking "},{"type":"tool_use","id":"toolu_9","name":"bash","input":{"command":"ls"}}],
"stop_reason":"tool_use","stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":1}}`), nil
		},
	}

	msg, err := client.Complete(context.Background(), agent.Prompt{Messages: []agent.Message{agent.UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if gotParams.Model != anthropic.Model("claude-test") || gotParams.MaxTokens != 256 {
		t.Fatalf("params = model %q max_tokens %d", gotParams.Model, gotParams.MaxTokens)
	}
	if msg.Role != agent.RoleAssistant || msg.Content != "checking" {
		t.Fatalf("message = %#v", msg)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %#v", msg.ToolCalls)
	}
	call := msg.ToolCalls[0]
	if call.ID != "toolu_9" || call.Name != "bash" {
		t.Fatalf("tool call = %#v", call)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || args["command"] != "ls" {
		t.Fatalf("arguments = %q (%v)", call.Arguments, err)
	}
}

func TestCompletePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	client := &Client{
		model: "claude-test",
		newMessage: func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
			return nil, boom
		},
	}
	if _, err := client.Complete(context.Background(), agent.Prompt{}); !errors.Is(err, boom) {
		t.Fatalf("Complete() error = %v, want boom", err)
	}
}

func TestToolInput(t *testing.T) {
	if got, ok := toolInput(`{"a":1}`).(json.RawMessage); !ok || string(got) != `{"a":1}` {
		t.Fatalf("toolInput(object) = %#v", got)
	}
	for _, raw := range []string{"", "[1]", "{bad"} {
		if _, ok := toolInput(raw).(map[string]any); !ok {
			t.Fatalf("toolInput(%q) should fall back to empty object", raw)
		}
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                                     "",
		"https://api.anthropic.com":            "https://api.anthropic.com",
		"https://api.anthropic.com/v1/":        "https://api.anthropic.com",
		"https://proxy.example.com/v1/messages": "https://proxy.example.com",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("New() without key = nil error")
	}
	c, err := New(Options{APIKey: "k", Model: "claude-test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.maxTokens != DefaultMaxTokens {
		t.Fatalf("maxTokens = %d", c.maxTokens)
	}
}
