package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ag-cli/internal/logger"
	"ag-cli/internal/schema"

	"github.com/mattn/go-runewidth"
)

// ErrMalformedArguments 表示参数载荷无法解析为 JSON 对象。
// 这类错误不会被转换成工具结果，而是直接返回给调用方。
var ErrMalformedArguments = errors.New("malformed tool arguments")

// SummaryWidth 是调用开始提示中参数摘要的最大显示宽度。
const SummaryWidth = 120

// Notifier 接收每次调用的开始与结束提示。
type Notifier interface {
	ToolStarted(name, summary string)
	ToolFinished(name, result string)
}

type nopNotifier struct{}

func (nopNotifier) ToolStarted(string, string)  {}
func (nopNotifier) ToolFinished(string, string) {}

// Invoke 解析 payload 并执行工具。payload 可以是 JSON 字符串、[]byte、
// json.RawMessage 或已解析的 map。
//
// 只有解析失败会返回 error；执行期间的任何失败（参数不匹配、类型错误、
// 返回 error、panic）都会被转换成 "Tool <name> failed: ..." 字符串。
// 开始与结束提示各发送一次，顺序固定。
func (t *Tool) Invoke(ctx context.Context, payload any, notify Notifier) (string, error) {
	input, err := ParseArguments(payload)
	if err == nil && blankPayload(payload) && len(t.spec.Parameters.Required) > 0 {
		err = fmt.Errorf("%w: empty payload, required: %s", ErrMalformedArguments, strings.Join(t.spec.Parameters.Required, ", "))
	}
	if err != nil {
		toolsLog.WithError(err).WithField("tool", t.Name()).Warn("argument payload rejected")
		return "", fmt.Errorf("tool %s: %w", t.Name(), err)
	}
	if notify == nil {
		notify = nopNotifier{}
	}

	notify.ToolStarted(t.niceName, t.summarize(input))
	started := time.Now()
	res := t.execute(ctx, input)
	out := res.String()
	notify.ToolFinished(t.niceName, out)

	entry := toolsLog.WithFields(logger.Fields{
		"tool":        t.Name(),
		"duration_ms": time.Since(started).Milliseconds(),
		"output_len":  len(out),
	})
	if res.Failed() {
		entry.WithError(res.Err).Warn("tool failed")
	} else {
		entry.Info("tool completed")
	}
	return out, nil
}

func (t *Tool) execute(ctx context.Context, input map[string]any) (res Result) {
	res.Tool = t.Name()
	defer func() {
		if r := recover(); r != nil {
			res.Output = ""
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	args, err := t.bind(input)
	if err != nil {
		res.Err = err
		return res
	}
	if t.fn == nil {
		res.Err = errors.New("tool has no implementation")
		return res
	}
	res.Output, res.Err = t.fn(ctx, args)
	return res
}

// bind 按声明顺序绑定参数：缺失的必填参数、未声明的参数和类型不符都是失败。
func (t *Tool) bind(input map[string]any) (Args, error) {
	declared := make(map[string]struct{}, len(t.params))
	for _, p := range t.params {
		declared[p.Name] = struct{}{}
	}
	var unexpected []string
	for key := range input {
		if _, ok := declared[key]; !ok {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, fmt.Errorf("got unexpected argument(s): %s", strings.Join(unexpected, ", "))
	}

	args := make(Args, len(t.params))
	var missing []string
	for _, p := range t.params {
		v, ok := input[p.Name]
		if !ok {
			if p.HasDefault {
				args[p.Name] = p.Default
				continue
			}
			missing = append(missing, p.Name)
			continue
		}
		node, _ := t.spec.Parameters.Property(p.Name)
		if err := checkValue(node, v); err != nil {
			return nil, fmt.Errorf("argument %s: %w", p.Name, err)
		}
		args[p.Name] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required argument(s): %s", strings.Join(missing, ", "))
	}
	return args, nil
}

func checkValue(s *schema.Schema, v any) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case schema.KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string but got %s", jsonKind(v))
		}
	case schema.KindInteger:
		if _, ok := toInt(v); !ok {
			return fmt.Errorf("expected integer but got %s", jsonKind(v))
		}
	case schema.KindBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean but got %s", jsonKind(v))
		}
	case schema.KindArray:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected array but got %s", jsonKind(v))
		}
		for i, item := range items {
			if err := checkValue(s.Items, item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case schema.KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object but got %s", jsonKind(v))
		}
		for key, item := range m {
			if err := checkValue(s.Values, item); err != nil {
				return fmt.Errorf("[%q]: %w", key, err)
			}
		}
	}
	return nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// blankPayload 判断载荷是否为空白文本。
func blankPayload(payload any) bool {
	switch v := payload.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case json.RawMessage:
		return len(bytes.TrimSpace(v)) == 0
	case []byte:
		return len(bytes.TrimSpace(v)) == 0
	}
	return false
}

// ParseArguments 将模型给出的参数载荷解析为对象。空字符串视为无参数，
// 但 Invoke 对声明了必填参数的工具会拒绝空载荷。
func ParseArguments(payload any) (map[string]any, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case Args:
		return map[string]any(v), nil
	case string:
		raw = []byte(v)
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		return nil, fmt.Errorf("%w: unsupported payload type %T", ErrMalformedArguments, payload)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: expected a JSON object, got null", ErrMalformedArguments)
	}
	return out, nil
}

// summarize 生成单行参数摘要：单个参数只显示值，多个参数显示 "k: v"。
func (t *Tool) summarize(input map[string]any) string {
	if len(input) == 1 {
		for _, v := range input {
			return singleLine(formatValue(v))
		}
	}
	keys := make([]string, 0, len(input))
	seen := make(map[string]struct{}, len(input))
	for _, p := range t.params {
		if _, ok := input[p.Name]; ok {
			keys = append(keys, p.Name)
			seen[p.Name] = struct{}{}
		}
	}
	var extra []string
	for k := range input {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(input[k])))
	}
	return singleLine(strings.Join(parts, ", "))
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func singleLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, SummaryWidth, "…")
}
