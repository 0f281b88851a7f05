package console

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// Spinner 实现 agent.Indicator：在后台 goroutine 中逐帧重绘一行状态，stop 时擦除该行。
// 与 Console 共用锁和输出，动画期间打印的 transcript 行会先擦掉状态行。
type Spinner struct {
	c       *Console
	frames  spinner.Spinner
	style   lipgloss.Style
	enabled bool
	clock   func() time.Time
}

// NewSpinner 创建指示器。enabled 为 false 时（例如输出不是终端）Start 不做任何事。
func NewSpinner(c *Console, enabled bool) *Spinner {
	return &Spinner{
		c:       c,
		frames:  spinner.Dot,
		style:   c.st.accent,
		enabled: enabled,
		clock:   time.Now,
	}
}

// Start 开始动画，返回的 stop 幂等，并且会等待 goroutine 退出后才返回。
func (s *Spinner) Start(label string) func() {
	if s == nil || !s.enabled || len(s.frames.Frames) == 0 {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	started := s.clock()
	fps := s.frames.FPS
	if fps <= 0 {
		fps = 100 * time.Millisecond
	}

	go func() {
		defer close(finished)
		ticker := time.NewTicker(fps)
		defer ticker.Stop()
		for i := 0; ; i++ {
			frame := s.frames.Frames[i%len(s.frames.Frames)]
			elapsed := uint64(s.clock().Sub(started).Seconds())
			s.c.status(fmt.Sprintf("%s %s %s", s.style.Render(frame), label, fmtElapsed(elapsed)))
			select {
			case <-done:
				s.c.clearStatus()
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

// fmtElapsed 将秒数格式化为 (12s)、(1m 05s)、(1h 02m 03s)。
func fmtElapsed(secs uint64) string {
	switch {
	case secs < 60:
		return fmt.Sprintf("(%ds)", secs)
	case secs < 3600:
		return fmt.Sprintf("(%dm %02ds)", secs/60, secs%60)
	default:
		return fmt.Sprintf("(%dh %02dm %02ds)", secs/3600, (secs%3600)/60, secs%60)
	}
}
