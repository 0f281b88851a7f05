package main

import (
	"fmt"
	"io"
	"os"

	"ag-cli/internal/agent"
	anthropicmodel "ag-cli/internal/agent/anthropic"
	openaimodel "ag-cli/internal/agent/openai"
	"ag-cli/internal/config"
	"ag-cli/internal/console"
	"ag-cli/internal/instructions"
	"ag-cli/internal/prompt"
	"ag-cli/internal/tools"
	"ag-cli/internal/tools/bash"

	"golang.org/x/term"
)

// runtime 持有一次进程运行共享的依赖：同一个带重试的模型客户端与同一个 transcript。
type runtime struct {
	cfg     config.Config
	client  agent.ModelClient
	console *console.Console
	runID   string
	workdir string
	system  string
}

func newRuntime(cfg config.Config, runID string, stdout, stderr io.Writer) (*runtime, error) {
	base, err := newModelClient(cfg, runID)
	if err != nil {
		return nil, err
	}
	out := console.New(stdout)
	backoff := cfg.Backoff()
	if backoff == 0 {
		// backoff_secs = 0 表示重试不等待
		backoff = agent.NoBackoff
	}
	client := agent.NewRetryClient(base, agent.RetryOptions{
		Attempts:  cfg.Retries,
		Backoff:   backoff,
		Indicator: console.NewSpinner(out, isTerminal(stdout)),
		Warner:    out,
	})
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "warning: cannot resolve working directory: %v\n", err)
	}
	home, _ := os.UserHomeDir()
	return &runtime{
		cfg:     cfg,
		client:  client,
		console: out,
		runID:   runID,
		workdir: wd,
		system:  instructions.WithInstructions(systemPrompt, instructions.Discover(home, wd)),
	}, nil
}

func newModelClient(cfg config.Config, runID string) (agent.ModelClient, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropicmodel.New(anthropicmodel.Options{
			APIKey:  cfg.APIKey,
			BaseURL: providerBaseURL(cfg),
			Model:   cfg.Model,
		})
	case config.ProviderAzure:
		return openaimodel.New(openaimodel.Options{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Azure:      true,
			APIVersion: cfg.APIVersion,
			LogID:      runID,
		})
	case config.ProviderOpenAI, "":
		return openaimodel.New(openaimodel.Options{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// providerBaseURL 返回实际请求的地址；anthropic 沿用默认 OpenRouter 地址没有意义，交给 SDK 默认值。
func providerBaseURL(cfg config.Config) string {
	if cfg.Provider == config.ProviderAnthropic && cfg.BaseURL == config.DefaultBaseURL {
		return ""
	}
	return cfg.BaseURL
}

// newAgent 构造顶层 agent：可用工具为 agent（子 agent）与 bash，子 agent 只有 bash。
func (rt *runtime) newAgent() *agent.Agent {
	sub := func() *agent.Agent {
		return agent.New(agent.Options{
			SystemPrompt: rt.system,
			Model:        rt.cfg.Model,
			Client:       rt.client,
			Tools:        []*tools.Tool{bash.New(rt.workdir)},
			Output:       rt.console,
			RunID:        rt.runID,
		})
	}
	return agent.New(agent.Options{
		SystemPrompt: rt.system,
		Model:        rt.cfg.Model,
		Client:       rt.client,
		Tools:        []*tools.Tool{agent.SubAgentTool(sub), bash.New(rt.workdir)},
		Output:       rt.console,
		RunID:        rt.runID,
	})
}

func newLineReader(in io.Reader, out io.Writer) agent.LineReader {
	if isTerminal(in) && isTerminal(out) {
		return prompt.New(in, out)
	}
	return prompt.NewPlain(in, out)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
