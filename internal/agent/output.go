package agent

import "ag-cli/internal/tools"

// Output 是 transcript 的输出端，由 Agent 与工具调用共享。
type Output interface {
	tools.Notifier
	// Message 展示 assistant 的文本回复。
	Message(text string)
	// Warn 展示不会中断循环的提示，例如未知工具或重试。
	Warn(text string)
}

// Indicator 在模型请求期间显示等待状态。Start 返回的 stop 必须可重复调用。
type Indicator interface {
	Start(label string) (stop func())
}

type nopOutput struct{}

func (nopOutput) ToolStarted(string, string)  {}
func (nopOutput) ToolFinished(string, string) {}
func (nopOutput) Message(string)              {}
func (nopOutput) Warn(string)                 {}

type nopIndicator struct{}

func (nopIndicator) Start(string) func() { return func() {} }
