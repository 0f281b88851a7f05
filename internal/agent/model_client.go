package agent

import (
	"context"

	"ag-cli/internal/tools"
)

// Prompt 代表一次模型调用的完整请求：模型、完整历史与可用工具。
type Prompt struct {
	Model    string
	Messages []Message
	Tools    []tools.Spec
}

// ModelClient 发出一次 chat completion 请求并返回唯一的 assistant 回复。
type ModelClient interface {
	Complete(ctx context.Context, prompt Prompt) (Message, error)
}

// ModelClientFunc 允许用普通函数实现 ModelClient。
type ModelClientFunc func(ctx context.Context, prompt Prompt) (Message, error)

func (f ModelClientFunc) Complete(ctx context.Context, prompt Prompt) (Message, error) {
	return f(ctx, prompt)
}
