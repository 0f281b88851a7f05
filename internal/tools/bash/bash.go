// Package bash 提供在伪终端中执行 shell 命令的内置工具。
package bash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"ag-cli/internal/schema"
	"ag-cli/internal/tools"

	"github.com/creack/pty"
)

const (
	Name = "bash"

	// DefaultTimeout 是 timeout_secs 未给出时的执行上限。
	DefaultTimeout = 120
)

// New 返回 bash 工具。workdir 为空时使用当前目录。
func New(workdir string) *tools.Tool {
	return tools.New(Name,
		"Run a bash command; please clarify your rationale when running the bash command.",
		[]schema.Parameter{
			schema.Param("command", schema.Describe(schema.String, "The bash command to run")),
			schema.Optional("timeout_secs", schema.Describe(schema.Integer, "Seconds before the command is killed"), DefaultTimeout),
		},
		func(ctx context.Context, args tools.Args) (string, error) {
			return Run(ctx, workdir, args.String("command"), time.Duration(args.Int("timeout_secs"))*time.Second)
		},
	)
}

// Run 执行命令并返回去掉首尾空白的输出。非零退出码追加在输出末尾，不视为失败。
func Run(ctx context.Context, workdir, command string, timeout time.Duration) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", errors.New("empty command")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = workdir
	// pty.Start 以 setsid 启动子进程，超时时杀掉整个进程组，避免孙进程占住 pty。
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	out, err := runWithPTY(ctx, cmd)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	text := strings.TrimSpace(strings.ReplaceAll(out, "\r\n", "\n"))

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return text, nil
	case errors.As(err, &exitErr):
		if text != "" {
			text += "\n"
		}
		return text + fmt.Sprintf("(exit code %d)", exitErr.ExitCode()), nil
	default:
		return "", err
	}
}

// runWithPTY 让命令以为自己连接着终端；无法分配 pty 时退回普通管道。
func runWithPTY(ctx context.Context, cmd *exec.Cmd) (string, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		fallback := exec.CommandContext(ctx, cmd.Path, cmd.Args[1:]...)
		fallback.Dir = cmd.Dir
		out, runErr := fallback.CombinedOutput()
		return string(out), runErr
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil && !errors.Is(err, syscall.EIO) {
		_ = cmd.Wait()
		return buf.String(), err
	}
	return buf.String(), cmd.Wait()
}
