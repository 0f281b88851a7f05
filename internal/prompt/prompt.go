// Package prompt 提供 agent.LineReader 的实现：终端下使用 bubbletea 输入框，否则逐行读取。
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"ag-cli/internal/agent"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted 在用户按下 Ctrl-C 或 Esc 时返回。
var ErrInterrupted = agent.ErrInterrupted

type model struct {
	input   textinput.Model
	history *inputHistory
	value   string
	err     error
	done    bool
}

func newModel(prompt string, history *inputHistory) model {
	in := textinput.New()
	in.Prompt = prompt
	in.Focus()
	if history == nil {
		history = &inputHistory{}
	}
	history.reset()
	return model{input: in, history: history}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.err = ErrInterrupted
			return m, tea.Quit
		case tea.KeyCtrlD:
			if m.input.Value() == "" {
				m.err = io.EOF
				return m, tea.Quit
			}
		case tea.KeyEnter:
			m.value = m.input.Value()
			m.done = true
			m.history.add(m.value)
			return m, tea.Quit
		case tea.KeyUp:
			if text, ok := m.history.older(m.input.Value()); ok {
				m.input.SetValue(text)
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyDown:
			if text, ok := m.history.newer(); ok {
				m.input.SetValue(text)
				m.input.CursorEnd()
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done || m.err != nil {
		return ""
	}
	return m.input.View() + "\n"
}

// Reader 每次 ReadLine 运行一个短生命周期的 bubbletea 程序，输入历史在多次调用间保留。
type Reader struct {
	in      io.Reader
	out     io.Writer
	history inputHistory
}

func New(in io.Reader, out io.Writer) *Reader {
	return &Reader{in: in, out: out}
}

func (r *Reader) ReadLine(ctx context.Context, prompt string) (string, error) {
	p := tea.NewProgram(newModel(prompt, &r.history),
		tea.WithContext(ctx),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	m, ok := final.(model)
	if !ok {
		return "", errors.New("prompt: unexpected model type")
	}
	if m.err != nil {
		return "", m.err
	}
	// 输入框在退出时被清空，这里把提交的内容留在 transcript 中。
	fmt.Fprintln(r.out, prompt+m.value)
	return m.value, nil
}

// Plain 用于 stdin 不是终端的场景（管道、脚本）。
// 读取在后台 goroutine 中进行，ctx 取消时 ReadLine 立即返回，未取走的行留给下一次调用。
type Plain struct {
	in    io.Reader
	out   io.Writer
	once  sync.Once
	lines chan scanned
}

type scanned struct {
	line string
	err  error
}

func NewPlain(in io.Reader, out io.Writer) *Plain {
	return &Plain{in: in, out: out, lines: make(chan scanned)}
}

func (p *Plain) scan() {
	sc := bufio.NewScanner(p.in)
	for sc.Scan() {
		p.lines <- scanned{line: strings.TrimRight(sc.Text(), "\r")}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	p.lines <- scanned{err: err}
	close(p.lines)
}

func (p *Plain) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	p.once.Do(func() { go p.scan() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

var (
	_ agent.LineReader = (*Reader)(nil)
	_ agent.LineReader = (*Plain)(nil)
)
