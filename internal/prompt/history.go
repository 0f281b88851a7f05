package prompt

import "strings"

// inputHistory 保存本进程内提交过的输入，供上下箭头浏览。
// pos == len(lines) 表示不在浏览状态，draft 保存开始浏览前正在编辑的内容。
type inputHistory struct {
	lines []string
	pos   int
	draft string
}

func (h *inputHistory) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if n := len(h.lines); n > 0 && h.lines[n-1] == text {
		h.reset()
		return
	}
	h.lines = append(h.lines, text)
	h.reset()
}

func (h *inputHistory) reset() {
	h.pos = len(h.lines)
	h.draft = ""
}

// older 返回更早的一条；已在最早一条时停留不动。
func (h *inputHistory) older(current string) (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	if h.pos == len(h.lines) {
		h.draft = current
	}
	if h.pos > 0 {
		h.pos--
	}
	return h.lines[h.pos], true
}

// newer 返回更新的一条；越过最新一条时恢复草稿。
func (h *inputHistory) newer() (string, bool) {
	if h.pos >= len(h.lines) {
		return "", false
	}
	h.pos++
	if h.pos == len(h.lines) {
		return h.draft, true
	}
	return h.lines[h.pos], true
}
