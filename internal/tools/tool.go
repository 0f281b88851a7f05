// Package tools 定义可被模型调用的工具：名字、说明、编译后的参数 schema 与执行体。
package tools

import (
	"context"
	"strings"
	"unicode"

	"ag-cli/internal/schema"
)

// Func 是工具的执行体。参数已经按 schema 校验并补齐默认值。
type Func func(ctx context.Context, args Args) (string, error)

// Spec 是向模型公布的工具描述。
type Spec struct {
	Name        string
	Description string
	Parameters  *schema.Object
}

// Definition 返回 function 工具的通用 JSON 结构。
func (s Spec) Definition() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  s.Parameters.Map(),
		},
	}
}

// Tool 将执行体与其 schema 绑定为一个不可变单元。
type Tool struct {
	spec     Spec
	params   []schema.Parameter
	fn       Func
	niceName string
}

// New 构造工具。description 为空时回退为 "<NiceName> tool"。
func New(name, description string, params []schema.Parameter, fn Func) *Tool {
	nice := NiceName(name)
	if strings.TrimSpace(description) == "" {
		description = nice + " tool"
	}
	declared := append([]schema.Parameter(nil), params...)
	return &Tool{
		spec: Spec{
			Name:        name,
			Description: description,
			Parameters:  schema.CompileParameters(declared),
		},
		params:   declared,
		fn:       fn,
		niceName: nice,
	}
}

func (t *Tool) Name() string { return t.spec.Name }

// NiceName 是 transcript 中展示的 PascalCase 名字。
func (t *Tool) NiceName() string { return t.niceName }

func (t *Tool) Spec() Spec { return t.spec }

// NiceName 把 snake_case 转为 PascalCase，例如 run_shell -> RunShell。
func NiceName(name string) string {
	var sb strings.Builder
	for _, word := range strings.Split(name, "_") {
		if word == "" {
			continue
		}
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}
	return sb.String()
}
