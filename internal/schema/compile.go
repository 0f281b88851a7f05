// Package schema 将工具参数的声明类型编译为模型 function calling 使用的结构化 schema。
package schema

import "fmt"

// Parameter 是工具签名中的一个参数。
type Parameter struct {
	Name string
	Type Type
	// Default 只有在 HasDefault 为 true 时有效。默认值不写入 schema，
	// 只在绑定参数时补齐缺失的 key。
	Default    any
	HasDefault bool
}

// Param 声明一个必填参数。
func Param(name string, t Type) Parameter {
	return Parameter{Name: name, Type: t}
}

// Optional 声明一个带默认值的参数。
func Optional(name string, t Type, def any) Parameter {
	return Parameter{Name: name, Type: t, Default: def, HasDefault: true}
}

// Compile 将声明类型编译为 schema 节点，永远不会失败。
func Compile(t Type) *Schema {
	description := ""
	actual := t
	for {
		d, ok := actual.(Described)
		if !ok {
			break
		}
		if description == "" {
			description = d.Description
		}
		actual = d.Type
	}

	s := &Schema{Description: description}
	switch v := actual.(type) {
	case Primitive:
		switch v.Kind {
		case KindInteger, KindString, KindBoolean:
			s.Type = v.Kind
		default:
			unsupported(s, actual)
		}
	case Array:
		s.Type = KindArray
		if v.Items != nil {
			s.Items = Compile(v.Items)
		}
	case Map:
		s.Type = KindObject
		if v.Key != nil && v.Value != nil && isString(v.Key) {
			s.Values = Compile(v.Value)
		} else {
			// JSON 只支持 string key，其余情况退化为任意对象。
			s.AnyValues = true
		}
	default:
		unsupported(s, actual)
	}
	return s
}

// CompileParameters 编译整个参数列表。required 为没有默认值的参数，保持声明顺序。
func CompileParameters(params []Parameter) *Object {
	obj := &Object{
		Properties: make([]Property, 0, len(params)),
		Required:   []string{},
	}
	for _, p := range params {
		node := Compile(p.Type)
		node.Required = !p.HasDefault
		obj.Properties = append(obj.Properties, Property{Name: p.Name, Schema: node})
		if node.Required {
			obj.Required = append(obj.Required, p.Name)
		}
	}
	return obj
}

func unsupported(s *Schema, t Type) {
	s.Type = KindString
	if s.Description == "" {
		s.Description = fmt.Sprintf("Unsupported type: %s", typeName(t))
	}
}

func typeName(t Type) string {
	if t == nil {
		return "None"
	}
	if name := t.TypeName(); name != "" {
		return name
	}
	return fmt.Sprintf("%T", t)
}

// isString 判断 key 类型是否为 string，允许带说明的包装。
func isString(t Type) bool {
	if d, ok := t.(Described); ok {
		return isString(d.Type)
	}
	p, ok := t.(Primitive)
	return ok && p.Kind == KindString
}
