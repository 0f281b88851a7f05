package agent

import "ag-cli/internal/logger"

// log 记录 agent 循环。
var log = logger.Named("agent")

// llmLog 标记模型请求相关日志。
var llmLog = logger.Named("llm")
