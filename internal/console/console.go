// Package console 渲染面向用户的 transcript：assistant 消息、工具调用、提示与统计。
// 日志不经过这里，见 internal/logger。
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	messageMark = "⏺"
	resultMark  = "⎿"
	indentStep  = 2
)

// 与终端浅色主题搭配的配色。
var (
	orange = lipgloss.Color("#C97D5C")
	gray   = lipgloss.Color("#898883")
	red    = lipgloss.Color("#9E3942")
	green  = lipgloss.Color("#417840")
)

type styles struct {
	mark    lipgloss.Style
	warn    lipgloss.Style
	tool    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	accent  lipgloss.Style
	bold    lipgloss.Style
	panel   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		mark:    r.NewStyle(),
		warn:    r.NewStyle().Foreground(red),
		tool:    r.NewStyle().Foreground(green),
		muted:   r.NewStyle().Foreground(gray),
		success: r.NewStyle().Foreground(green),
		accent:  r.NewStyle().Foreground(orange),
		bold:    r.NewStyle().Bold(true),
		panel:   r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(orange).Padding(0, 1),
	}
}

// Console 实现 agent.Output。工具调用期间的输出按嵌套深度缩进，
// 因此子 agent 的 transcript 会出现在父工具调用下方。
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	indent int
	st     styles
	// statusShown 表示当前行被 Spinner 的状态行占用。
	statusShown bool
}

// New 创建写入 w 的 Console；颜色能力按 w 自动探测，非终端输出不带 ANSI 序列。
func New(w io.Writer) *Console {
	return &Console{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

// Message 输出 assistant 文本，后跟一个空行。
func (c *Console) Message(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.row(c.st.mark.Render(messageMark), text)
	c.blank()
}

// Warn 输出红色提示。
func (c *Console) Warn(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.row(c.st.warn.Render(messageMark), c.st.warn.Render(text))
	c.blank()
}

// ToolStarted 输出 `Name(summary)` 并增加缩进，直到对应的 ToolFinished。
func (c *Console) ToolStarted(name, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.row(c.st.tool.Render(messageMark), c.st.bold.Render(name)+"("+summary+")")
	c.indent += indentStep
}

func (c *Console) ToolFinished(_ string, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.row(c.st.muted.Render(resultMark), result)
	c.indent -= indentStep
	if c.indent < 0 {
		c.indent = 0
	}
}

// Costs 输出本次运行的调用统计。
func (c *Console) Costs(modelCalls, toolCalls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(c.st.muted.Render(fmt.Sprintf("Total model calls: %d", modelCalls)))
	c.line(c.st.muted.Render(fmt.Sprintf("Total tool calls: %d", toolCalls)))
}

// Result 输出 headless 模式的最终结果。
func (c *Console) Result(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blank()
	c.line(c.st.success.Render("Result:") + " " + text)
}

// Banner 输出启动面板。
func (c *Console) Banner(model, cwd string) {
	body := strings.Join([]string{
		c.st.accent.Render("✻") + " Welcome to " + c.st.bold.Render("Agent CLI") + "!",
		"",
		c.st.muted.Render("  model: " + model),
		c.st.muted.Render("  cwd: " + cwd),
	}, "\n")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(c.st.panel.Render(body))
}

// Println 输出一行普通文本。
func (c *Console) Println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(text)
}

// row 输出 "mark content"，多行内容悬挂缩进到 mark 之后。
func (c *Console) row(mark, content string) {
	hang := strings.Repeat(" ", lipgloss.Width(mark)+1)
	lines := strings.Split(content, "\n")
	c.line(mark + " " + lines[0])
	for _, l := range lines[1:] {
		c.line(hang + l)
	}
}

func (c *Console) line(text string) {
	c.eraseStatus()
	pad := strings.Repeat(" ", c.indent)
	for _, l := range strings.Split(text, "\n") {
		fmt.Fprintln(c.w, pad+l)
	}
}

func (c *Console) blank() {
	c.eraseStatus()
	fmt.Fprintln(c.w)
}

// status 在当前行绘制状态文本（不换行）。
func (c *Console) status(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, "\r\x1b[2K"+text)
	c.statusShown = true
}

func (c *Console) clearStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eraseStatus()
}

func (c *Console) eraseStatus() {
	if c.statusShown {
		fmt.Fprint(c.w, "\r\x1b[2K")
		c.statusShown = false
	}
}
