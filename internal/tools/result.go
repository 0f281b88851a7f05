package tools

import "fmt"

// Result 是一次调用的结果：成功时为 Output，失败时 Err 非空。
type Result struct {
	Tool   string
	Output string
	Err    error
}

func (r Result) Failed() bool { return r.Err != nil }

// String 归一化为回传给模型的字符串。
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("Tool %s failed: %v", r.Tool, r.Err)
	}
	return r.Output
}
