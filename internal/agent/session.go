package agent

// Session 持有一个 Agent 的全部可变状态：只追加的消息历史与调用计数。
type Session struct {
	messages   []Message
	modelCalls int
	toolCalls  int
}

// NewSession 创建会话，system 非空时作为第一条消息。
func NewSession(system string) *Session {
	s := &Session{}
	if system != "" {
		s.messages = append(s.messages, SystemMessage(system))
	}
	return s
}

func (s *Session) append(msg Message) {
	s.messages = append(s.messages, msg)
}

// Messages 返回历史的副本。
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) ModelCalls() int { return s.modelCalls }

func (s *Session) ToolCalls() int { return s.toolCalls }
