package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"ag-cli/internal/schema"
	"ag-cli/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReply struct {
	msg Message
	err error
}

// scriptedClient 依次返回预设回复；脚本用完后重复最后一条。
type scriptedClient struct {
	replies []scriptedReply
	prompts []Prompt
}

func (c *scriptedClient) Complete(_ context.Context, prompt Prompt) (Message, error) {
	c.prompts = append(c.prompts, prompt)
	idx := len(c.prompts) - 1
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	r := c.replies[idx]
	return r.msg, r.err
}

type recordingOutput struct {
	events []string
}

func (o *recordingOutput) ToolStarted(name, summary string) {
	o.events = append(o.events, fmt.Sprintf("start %s(%s)", name, summary))
}
func (o *recordingOutput) ToolFinished(name, result string) {
	o.events = append(o.events, fmt.Sprintf("end %s: %s", name, result))
}
func (o *recordingOutput) Message(text string) { o.events = append(o.events, "say "+text) }
func (o *recordingOutput) Warn(text string)    { o.events = append(o.events, "warn "+text) }

func text(content string) scriptedReply {
	return scriptedReply{msg: Message{Role: RoleAssistant, Content: content}}
}

func calls(content string, cs ...ToolCall) scriptedReply {
	return scriptedReply{msg: Message{Role: RoleAssistant, Content: content, ToolCalls: cs}}
}

func echoTool(log *[]string) *tools.Tool {
	return tools.New("echo", "Echo the text back", []schema.Parameter{
		schema.Param("text", schema.String),
	}, func(_ context.Context, args tools.Args) (string, error) {
		if log != nil {
			*log = append(*log, args.String("text"))
		}
		return "echo: " + args.String("text"), nil
	})
}

func newTestAgent(client ModelClient, out Output, ts ...*tools.Tool) *Agent {
	return New(Options{
		SystemPrompt: "You are a test agent.",
		Model:        "test-model",
		Client:       client,
		Tools:        ts,
		Output:       out,
		RunID:        "test-run",
	})
}

func TestRun_EmptyTaskIsNoop(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{text("unused")}}
	a := newTestAgent(client, nil)

	got, err := a.Run(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, client.prompts)
	assert.Equal(t, 0, a.ModelCallCount())
	assert.Len(t, a.History(), 1)
}

func TestRun_WhitespaceTaskIsSent(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{text("nothing to do")}}
	a := newTestAgent(client, nil)

	got, err := a.Run(context.Background(), "   \n", 5)
	require.NoError(t, err)
	assert.Equal(t, "nothing to do", got)
	require.Len(t, client.prompts, 1)
	assert.Equal(t, 1, a.ModelCallCount())
	require.Len(t, a.History(), 3)
	assert.Equal(t, "   \n", a.History()[1].Content)
}

func TestRun_TextReplyTerminatesOnSameStep(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{text("42")}}
	out := &recordingOutput{}
	a := newTestAgent(client, out, echoTool(nil))

	got, err := a.Run(context.Background(), "what is the answer?", 5)
	require.NoError(t, err)
	assert.Equal(t, "42", got)
	assert.Equal(t, 1, a.ModelCallCount())
	assert.Equal(t, 0, a.ToolCallCount())
	assert.Equal(t, []string{"say 42"}, out.events)

	require.Len(t, client.prompts, 1)
	p := client.prompts[0]
	assert.Equal(t, "test-model", p.Model)
	require.Len(t, p.Tools, 1)
	assert.Equal(t, "echo", p.Tools[0].Name)
	require.Len(t, p.Messages, 2)
	assert.Equal(t, RoleSystem, p.Messages[0].Role)
	assert.Equal(t, UserMessage("what is the answer?"), p.Messages[1])
}

func TestRun_EmptyTextReplyReturnsEmpty(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{text("")}}
	out := &recordingOutput{}
	a := newTestAgent(client, out)

	got, err := a.Run(context.Background(), "hi", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, out.events)
}

func TestRun_ToolRoundTripBuildsOrderedHistory(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		calls("let me check", ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":"ping"}`}),
		text("done"),
	}}
	out := &recordingOutput{}
	a := newTestAgent(client, out, echoTool(nil))

	got, err := a.Run(context.Background(), "say ping", 5)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 2, a.ModelCallCount())
	assert.Equal(t, 1, a.ToolCallCount())

	history := a.History()
	require.Len(t, history, 5)
	assert.Equal(t, RoleSystem, history[0].Role)
	assert.Equal(t, RoleUser, history[1].Role)
	assert.Equal(t, RoleAssistant, history[2].Role)
	assert.Len(t, history[2].ToolCalls, 1)
	assert.Equal(t, ToolMessage("call_1", "echo: ping"), history[3])
	assert.Equal(t, RoleAssistant, history[4].Role)

	// 第二次请求看到完整的因果历史。
	require.Len(t, client.prompts, 2)
	assert.Len(t, client.prompts[1].Messages, 4)

	assert.Equal(t, []string{
		"say let me check",
		"start Echo(ping)",
		"end Echo: echo: ping",
		"say done",
	}, out.events)
}

func TestRun_MaxStepsSentinel(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		calls("", ToolCall{ID: "c", Name: "echo", Arguments: `{"text":"again"}`}),
	}}
	a := newTestAgent(client, nil, echoTool(nil))

	got, err := a.Run(context.Background(), "loop forever", 3)
	require.NoError(t, err)
	assert.Equal(t, "Max steps 3 reached", got)
	assert.Equal(t, MaxStepsMessage(3), got)
	assert.Equal(t, 3, a.ModelCallCount())
	assert.Equal(t, 3, a.ToolCallCount())
	assert.Len(t, client.prompts, 3)
}

func TestRun_DefaultStepBudget(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		calls("", ToolCall{ID: "c", Name: "echo", Arguments: `{"text":"x"}`}),
	}}
	a := newTestAgent(client, nil, echoTool(nil))

	got, err := a.Run(context.Background(), "loop", 0)
	require.NoError(t, err)
	assert.Equal(t, MaxStepsMessage(DefaultMaxSteps), got)
	assert.Equal(t, DefaultMaxSteps, a.ModelCallCount())
}

func TestRun_UnknownToolIsSkippedWithoutHistory(t *testing.T) {
	var seen []string
	client := &scriptedClient{replies: []scriptedReply{
		calls("",
			ToolCall{ID: "c1", Name: "eho", Arguments: `{"text":"lost"}`},
			ToolCall{ID: "c2", Name: "echo", Arguments: `{"text":"kept"}`},
		),
		text("finished"),
	}}
	out := &recordingOutput{}
	a := newTestAgent(client, out, echoTool(&seen))

	got, err := a.Run(context.Background(), "go", 5)
	require.NoError(t, err)
	assert.Equal(t, "finished", got)
	assert.Equal(t, []string{"kept"}, seen)
	assert.Equal(t, 1, a.ToolCallCount())
	assert.Equal(t, 2, a.ModelCallCount())

	for _, msg := range a.History() {
		assert.NotEqual(t, "c1", msg.ToolCallID)
	}
	require.NotEmpty(t, out.events)
	assert.Equal(t, "warn Tool eho not found (did you mean echo?)", out.events[0])
}

func TestRun_ToolCallsDispatchedInOrder(t *testing.T) {
	var seen []string
	client := &scriptedClient{replies: []scriptedReply{
		calls("",
			ToolCall{ID: "1", Name: "echo", Arguments: `{"text":"a"}`},
			ToolCall{ID: "2", Name: "echo", Arguments: `{"text":"b"}`},
			ToolCall{ID: "3", Name: "echo", Arguments: `{"text":"c"}`},
		),
		text("ok"),
	}}
	a := newTestAgent(client, nil, echoTool(&seen))

	_, err := a.Run(context.Background(), "abc", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	var ids []string
	for _, msg := range a.History() {
		if msg.Role == RoleTool {
			ids = append(ids, msg.ToolCallID)
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestRun_ToolFailureIsFedBackToModel(t *testing.T) {
	failing := tools.New("flaky", "", nil, func(context.Context, tools.Args) (string, error) {
		return "", errors.New("permission denied")
	})
	client := &scriptedClient{replies: []scriptedReply{
		calls("", ToolCall{ID: "f1", Name: "flaky", Arguments: `{}`}),
		text("recovered"),
	}}
	a := newTestAgent(client, nil, failing)

	got, err := a.Run(context.Background(), "try it", 5)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 1, a.ToolCallCount())

	history := a.History()
	assert.Equal(t, ToolMessage("f1", "Tool flaky failed: permission denied"), history[3])
}

func TestRun_MalformedArgumentsAreFatal(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{
		calls("", ToolCall{ID: "bad", Name: "echo", Arguments: `{"text":`}),
		text("never reached"),
	}}
	a := newTestAgent(client, nil, echoTool(nil))

	_, err := a.Run(context.Background(), "break it", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, tools.ErrMalformedArguments)
	assert.Equal(t, 1, a.ModelCallCount())
	assert.Equal(t, 0, a.ToolCallCount())
}

func TestRun_ModelFailureIsFatal(t *testing.T) {
	boom := errors.New("upstream exploded")
	client := &scriptedClient{replies: []scriptedReply{{err: boom}}}
	a := newTestAgent(client, nil)

	_, err := a.Run(context.Background(), "hello", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, a.ModelCallCount())
	// 用户消息已经写入历史，失败的回复不会。
	assert.Len(t, a.History(), 2)
}

func TestRun_NoClient(t *testing.T) {
	a := New(Options{})
	_, err := a.Run(context.Background(), "hello", 1)
	assert.ErrorIs(t, err, ErrNoClient)
}

type scriptedReader struct {
	lines []string
	err   error
	reads int
}

func (r *scriptedReader) ReadLine(context.Context, string) (string, error) {
	r.reads++
	if len(r.lines) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func TestChat_SkipsBlankLinesAndStopsOnExit(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{text("hi there")}}
	a := newTestAgent(client, nil)
	in := &scriptedReader{lines: []string{"", "   ", "hello", "exit", "never read"}}

	require.NoError(t, a.Chat(context.Background(), in))
	assert.Equal(t, 1, a.ModelCallCount())
	assert.Equal(t, 4, in.reads)
}

func TestChat_InterruptAndEOFEndCleanly(t *testing.T) {
	for _, stop := range []error{ErrInterrupted, io.EOF, context.Canceled} {
		client := &scriptedClient{replies: []scriptedReply{text("ok")}}
		a := newTestAgent(client, nil)
		in := &scriptedReader{lines: []string{"one", "two"}, err: stop}

		require.NoError(t, a.Chat(context.Background(), in))
		assert.Equal(t, 2, a.ModelCallCount())
	}
}

func TestChat_PropagatesFatalErrors(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{{err: errors.New("offline")}}}
	a := newTestAgent(client, nil)

	err := a.Chat(context.Background(), &scriptedReader{lines: []string{"hello", "exit"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")

	readErr := errors.New("tty gone")
	err = a.Chat(context.Background(), &scriptedReader{err: readErr})
	assert.ErrorIs(t, err, readErr)
}

func TestSubAgentTool_RunsFreshAgent(t *testing.T) {
	var built []*Agent
	factory := func() *Agent {
		sub := newTestAgent(&scriptedClient{replies: []scriptedReply{text("sub result")}}, nil)
		built = append(built, sub)
		return sub
	}
	parentClient := &scriptedClient{replies: []scriptedReply{
		calls("", ToolCall{ID: "s1", Name: SubAgentToolName, Arguments: `{"task":"dig"}`}),
		calls("", ToolCall{ID: "s2", Name: SubAgentToolName, Arguments: `{"task":"dig deeper"}`}),
		text("parent done"),
	}}
	a := newTestAgent(parentClient, nil, SubAgentTool(factory))

	got, err := a.Run(context.Background(), "delegate", 5)
	require.NoError(t, err)
	assert.Equal(t, "parent done", got)
	require.Len(t, built, 2)
	assert.NotSame(t, built[0], built[1])
	assert.Equal(t, 1, built[0].ModelCallCount())

	history := a.History()
	assert.Equal(t, ToolMessage("s1", "sub result"), history[3])
	assert.True(t, strings.HasPrefix(history[1].Content, "delegate"))
}

func TestSubAgentTool_FailureBecomesResult(t *testing.T) {
	factory := func() *Agent {
		return newTestAgent(&scriptedClient{replies: []scriptedReply{{err: errors.New("no quota")}}}, nil)
	}
	out, err := SubAgentTool(factory).Invoke(context.Background(), `{"task":"x"}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "Tool agent failed: model call at step 1: no quota", out)
}

func TestNew_DuplicateToolNamesLastWins(t *testing.T) {
	first := tools.New("dup", "first", nil, func(context.Context, tools.Args) (string, error) { return "1", nil })
	second := tools.New("dup", "second", nil, func(context.Context, tools.Args) (string, error) { return "2", nil })
	a := newTestAgent(&scriptedClient{replies: []scriptedReply{text("")}}, nil, first, second)

	specs := a.Tools()
	require.Len(t, specs, 1)
	assert.Equal(t, "second", specs[0].Description)
}
