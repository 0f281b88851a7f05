// Package agent 实现 ReAct 循环：调用模型、按顺序分发工具调用、回填结果，
// 直到模型给出不含工具调用的回复或步数耗尽。
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ag-cli/internal/logger"
	"ag-cli/internal/tools"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// DefaultMaxSteps 是 Run 在 maxSteps <= 0 时使用的步数上限。
const DefaultMaxSteps = 20

var (
	// ErrNoClient 表示没有配置模型客户端。
	ErrNoClient = errors.New("model client not configured")
	// ErrInterrupted 由 LineReader 在用户中断输入时返回。
	ErrInterrupted = errors.New("interrupted")
)

// MaxStepsMessage 是步数耗尽时 Run 返回的固定文本。
func MaxStepsMessage(maxSteps int) string {
	return fmt.Sprintf("Max steps %d reached", maxSteps)
}

// Options 定义 Agent 的可注入依赖。
type Options struct {
	SystemPrompt string
	Model        string
	Client       ModelClient
	// Tools 的顺序即公布给模型的顺序；同名时后者覆盖前者。
	Tools  []*tools.Tool
	Output Output
	RunID  string
}

// Agent 拥有一个会话，单线程驱动模型与工具。不可并发使用。
type Agent struct {
	model    string
	client   ModelClient
	registry *tools.Registry
	out      Output
	session  *Session
	log      *logger.LogEntry
}

func New(opts Options) *Agent {
	out := opts.Output
	if out == nil {
		out = nopOutput{}
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Agent{
		model:    opts.Model,
		client:   opts.Client,
		registry: tools.NewRegistry(opts.Tools...),
		out:      out,
		session:  NewSession(opts.SystemPrompt),
		log:      log.WithField("run_id", runID),
	}
}

// ModelCallCount 返回成功完成的模型请求次数。
func (a *Agent) ModelCallCount() int { return a.session.ModelCalls() }

// ToolCallCount 返回实际执行的工具次数，不含未知工具。
func (a *Agent) ToolCallCount() int { return a.session.ToolCalls() }

// History 返回完整会话历史的副本。
func (a *Agent) History() []Message { return a.session.Messages() }

// Tools 返回按公布顺序排列的工具描述。
func (a *Agent) Tools() []tools.Spec { return a.registry.Specs() }

// Run 执行一次任务。
//
// 空字符串任务直接返回。模型回复不含工具调用时返回其文本；步数耗尽时返回
// MaxStepsMessage。模型请求在重试后仍失败、或工具参数无法解析时返回 error。
func (a *Agent) Run(ctx context.Context, task string, maxSteps int) (string, error) {
	if task == "" {
		return "", nil
	}
	if a.client == nil {
		return "", ErrNoClient
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	a.session.append(UserMessage(task))

	for step := 1; step <= maxSteps; step++ {
		reply, err := a.client.Complete(ctx, Prompt{
			Model:    a.model,
			Messages: a.session.Messages(),
			Tools:    a.registry.Specs(),
		})
		if err != nil {
			a.log.WithError(err).WithField("step", step).Error("model call failed")
			return "", fmt.Errorf("model call at step %d: %w", step, err)
		}
		a.session.modelCalls++
		reply.Role = RoleAssistant
		reply.ToolCallID = ""
		a.session.append(reply)
		a.log.WithFields(logger.Fields{
			"step":       step,
			"tool_calls": len(reply.ToolCalls),
		}).Info("assistant reply")

		if strings.TrimSpace(reply.Content) != "" {
			a.out.Message(reply.Content)
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}
		if err := a.dispatch(ctx, reply.ToolCalls); err != nil {
			return "", err
		}
	}

	a.log.WithField("max_steps", maxSteps).Warn("step budget exhausted")
	return MaxStepsMessage(maxSteps), nil
}

// dispatch 按收到的顺序逐个执行工具调用。
func (a *Agent) dispatch(ctx context.Context, calls []ToolCall) error {
	for _, call := range calls {
		tool, ok := a.registry.Lookup(call.Name)
		if !ok {
			a.log.WithField("tool", call.Name).Warn("tool not found")
			a.out.Warn(a.notFound(call.Name))
			continue
		}
		result, err := tool.Invoke(ctx, call.Arguments, a.out)
		if err != nil {
			a.log.WithError(err).WithField("tool", call.Name).Error("tool call rejected")
			return err
		}
		a.session.toolCalls++
		a.session.append(ToolMessage(call.ID, result))
	}
	return nil
}

func (a *Agent) notFound(name string) string {
	msg := fmt.Sprintf("Tool %s not found", name)
	if name == "" {
		return msg
	}
	if matches := fuzzy.Find(name, a.registry.Names()); len(matches) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", matches[0].Str)
	}
	return msg
}

// LineReader 每次读取一行用户输入。用户中断时返回 ErrInterrupted，输入结束时返回 io.EOF。
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Chat 是交互式循环：输入 "exit"、中断或输入结束时退出，空行被忽略。
// 只有致命错误（模型请求最终失败等）会返回 error。
func (a *Agent) Chat(ctx context.Context, in LineReader) error {
	for {
		line, err := in.ReadLine(ctx, "> ")
		switch {
		case errors.Is(err, ErrInterrupted), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}
		if line == "exit" {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := a.Run(ctx, line, DefaultMaxSteps); err != nil {
			return err
		}
	}
}
