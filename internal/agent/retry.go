package agent

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	DefaultAttempts = 5
	DefaultBackoff  = time.Second
	// NoBackoff 表示重试之间不等待。
	NoBackoff     time.Duration = -1
	thinkingLabel               = "Thinking..."
)

// Warner 接收重试与最终失败的可见提示。
type Warner interface {
	Warn(text string)
}

// RetryOptions 配置 RetryClient。零值使用默认值（5 次尝试，退避 1s）；
// Backoff 为负数（如 NoBackoff）时不等待。
type RetryOptions struct {
	Attempts  int
	Backoff   time.Duration
	Indicator Indicator
	Warner    Warner
}

// RetryClient 为任意 ModelClient 加上指数退避重试：
// 第 n 次（从 0 开始）失败后等待 Backoff * 2^n，最后一次失败直接返回错误。
type RetryClient struct {
	client    ModelClient
	attempts  int
	backoff   time.Duration
	indicator Indicator
	warner    Warner
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ ModelClient = (*RetryClient)(nil)

func NewRetryClient(client ModelClient, opts RetryOptions) *RetryClient {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	backoff := opts.Backoff
	switch {
	case backoff == 0:
		backoff = DefaultBackoff
	case backoff < 0:
		backoff = 0
	}
	var indicator Indicator = nopIndicator{}
	if opts.Indicator != nil {
		indicator = opts.Indicator
	}
	var warner Warner = nopOutput{}
	if opts.Warner != nil {
		warner = opts.Warner
	}
	return &RetryClient{
		client:    client,
		attempts:  attempts,
		backoff:   backoff,
		indicator: indicator,
		warner:    warner,
		sleep:     sleepContext,
	}
}

// Complete 在整个请求期间（包括所有重试）保持等待指示，任何路径退出都会关闭它。
func (c *RetryClient) Complete(ctx context.Context, prompt Prompt) (Message, error) {
	if c.client == nil {
		return Message{}, ErrNoClient
	}
	stop := c.indicator.Start(thinkingLabel)
	defer stop()

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		llmLog.Infof("-> request attempt=%d/%d model=%s messages=%d tools=%d", attempt+1, c.attempts, prompt.Model, len(prompt.Messages), len(prompt.Tools))
		msg, err := c.client.Complete(ctx, prompt)
		if err == nil {
			llmLog.Infof("<- reply attempt=%d content_len=%d tool_calls=%d", attempt+1, len(msg.Content), len(msg.ToolCalls))
			return msg, nil
		}
		lastErr = err
		llmLog.Errorf("!! error attempt=%d model=%s err=%v", attempt+1, prompt.Model, err)

		if attempt == c.attempts-1 {
			c.warner.Warn(fmt.Sprintf("Final failure: model call failed after %d attempts - %v", c.attempts, err))
			break
		}
		delay := backoffDelay(c.backoff, attempt)
		c.warner.Warn(fmt.Sprintf("Retry %d/%d: model call failed - %v, waiting %.1fs", attempt+1, c.attempts, err, delay.Seconds()))
		if err := c.sleep(ctx, delay); err != nil {
			return Message{}, fmt.Errorf("retry aborted: %w (last error: %v)", err, lastErr)
		}
	}
	return Message{}, lastErr
}

// backoffDelay 返回 base * 2^attempt，溢出时饱和到最大值。
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt >= 62 || base > time.Duration(math.MaxInt64>>attempt) {
		return time.Duration(math.MaxInt64)
	}
	return base << attempt
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
