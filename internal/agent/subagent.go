package agent

import (
	"context"

	"ag-cli/internal/schema"
	"ag-cli/internal/tools"
)

// SubAgentToolName 是子 agent 工具的名字。
const SubAgentToolName = "agent"

// SubAgentTool 返回一个工具：每次调用用 factory 构造全新的 Agent 来完成任务，
// 返回其最终文本。递归深度只受每个子 agent 自身的步数限制。
func SubAgentTool(factory func() *Agent) *tools.Tool {
	return tools.New(SubAgentToolName, "Run a new agent to solve a task",
		[]schema.Parameter{
			schema.Param("task", schema.Describe(schema.String, "The task for the new agent")),
		},
		func(ctx context.Context, args tools.Args) (string, error) {
			sub := factory()
			return sub.Run(ctx, args.String("task"), DefaultMaxSteps)
		},
	)
}
