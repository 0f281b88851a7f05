package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ag-cli/internal/agent"
	openaimodel "ag-cli/internal/agent/openai"
	"ag-cli/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newPingCmd(root *rootArgs) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured model endpoint answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*root)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			reply, err := ping(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", reply)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	return cmd
}

// ping 先做 TCP 探测，再发一次不带工具、不重试的请求。
func ping(ctx context.Context, cfg config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := openaimodel.CheckReachable(ctx, providerBaseURL(cfg)); err != nil {
		return "", err
	}
	client, err := newModelClient(cfg, uuid.NewString())
	if err != nil {
		return "", err
	}
	reply, err := client.Complete(ctx, agent.Prompt{
		Model: cfg.Model,
		Messages: []agent.Message{
			agent.SystemMessage("Reply with exactly: pong"),
			agent.UserMessage("ping"),
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Content), nil
}
