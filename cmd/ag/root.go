package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ag-cli/internal/agent"
	"ag-cli/internal/config"
	"ag-cli/internal/logger"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type rootArgs struct {
	cfgPath   string
	overrides []string
	prompt    string
	copy      bool
	model     string
	maxSteps  int
	logLevel  string
}

func newRootCmd() *cobra.Command {
	var args rootArgs
	cmd := &cobra.Command{
		Use:   "ag",
		Short: "AG - AI Agent CLI Tool",
		Long: `AG runs a ReAct agent in your terminal.

Usage modes:
  ag                 Start an interactive chat session
  ag -p "<task>"     Run one task headless and print the result`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, closeLog, err := setup(args, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			if strings.TrimSpace(args.prompt) != "" {
				return runHeadless(ctx, rt, args.prompt, args.copy)
			}
			return runChat(ctx, rt, newLineReader(cmd.InOrStdin(), cmd.OutOrStdout()))
		},
	}

	cmd.PersistentFlags().StringVar(&args.cfgPath, "config", "", "Path to config file (default ~/.ag/config.toml)")
	cmd.PersistentFlags().StringArrayVarP(&args.overrides, "set", "c", nil, "Override a config value (key=value), repeatable")
	cmd.PersistentFlags().StringVar(&args.model, "model", "", "Model name (overrides config)")
	cmd.PersistentFlags().StringVar(&args.logLevel, "log-level", "info", "Log level for the log file")
	cmd.Flags().StringVarP(&args.prompt, "prompt", "p", "", "Run in headless mode with the given prompt")
	cmd.Flags().BoolVar(&args.copy, "copy", false, "Copy the headless result to the clipboard")
	cmd.Flags().IntVar(&args.maxSteps, "max-steps", 0, "Step budget for headless mode (default from config)")

	cmd.AddCommand(newConfigCmd(&args), newPingCmd(&args))
	return cmd
}

// loadConfig 按 文件 < 环境变量 < -c < 专用 flag 的顺序合并配置。
func loadConfig(args rootArgs) (config.Config, error) {
	cfg, err := config.Load(args.cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	cfg = config.ApplyKVOverrides(cfg, args.overrides)
	if m := strings.TrimSpace(args.model); m != "" {
		cfg.Model = m
	}
	if args.maxSteps > 0 {
		cfg.MaxSteps = args.maxSteps
	}
	return cfg, nil
}

func setup(args rootArgs, stdout, stderr io.Writer) (*runtime, func(), error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			return nil, nil, fmt.Errorf("%w: set API_KEY or api_key in %s", err, cfg.Source)
		}
		return nil, nil, err
	}

	logger.Configure(args.logLevel)
	closeLog := func() {}
	if f, path, err := logger.SetupFile(cfg.LogPath); err != nil {
		fmt.Fprintf(stderr, "warning: failed to open log file: %v\n", err)
	} else {
		closeLog = func() { _ = f.Close() }
		logger.Named("cli").WithField("path", path).Debug("logging to file")
	}

	rt, err := newRuntime(cfg, uuid.NewString(), stdout, stderr)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return rt, closeLog, nil
}

func runHeadless(ctx context.Context, rt *runtime, task string, copyResult bool) error {
	ag := rt.newAgent()
	defer func() { rt.console.Costs(ag.ModelCallCount(), ag.ToolCallCount()) }()

	result, err := ag.Run(ctx, task, rt.cfg.MaxSteps)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			rt.console.Println("\nInterrupted!")
			return nil
		}
		return err
	}
	if result == "" {
		return nil
	}
	rt.console.Result(result)
	if copyResult {
		if err := clipboard.WriteAll(result); err != nil {
			rt.console.Warn(fmt.Sprintf("copy to clipboard failed: %v", err))
		}
	}
	return nil
}

func runChat(ctx context.Context, rt *runtime, in agent.LineReader) error {
	rt.console.Banner(rt.cfg.Model, rt.workdir)
	ag := rt.newAgent()
	err := ag.Chat(ctx, in)
	rt.console.Costs(ag.ModelCallCount(), ag.ToolCallCount())
	rt.console.Println("\nBye!")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
