package schema

import "fmt"

// Type 是工具参数的声明类型。内置实现构成一个封闭集合：
// 基础类型、Described、Array、Map；其它实现一律视为不支持的类型。
type Type interface {
	TypeName() string
}

// Kind 是编译后节点的结构类型。
type Kind string

const (
	KindInteger Kind = "integer"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// Primitive 是 int/str/bool 三种标量。
type Primitive struct {
	Kind Kind
}

func (p Primitive) TypeName() string {
	switch p.Kind {
	case KindInteger:
		return "int"
	case KindString:
		return "str"
	case KindBoolean:
		return "bool"
	default:
		return string(p.Kind)
	}
}

var (
	Integer Type = Primitive{Kind: KindInteger}
	String  Type = Primitive{Kind: KindString}
	Boolean Type = Primitive{Kind: KindBoolean}
)

// Described 给任意类型附加一段可读说明。
type Described struct {
	Type        Type
	Description string
}

func (d Described) TypeName() string {
	if d.Type == nil {
		return "Annotated"
	}
	return d.Type.TypeName()
}

// Describe 返回带说明的类型。
func Describe(t Type, description string) Type {
	return Described{Type: t, Description: description}
}

// Array 是数组类型，Items 为 nil 时表示元素类型未声明。
type Array struct {
	Items Type
}

func (a Array) TypeName() string {
	if a.Items == nil {
		return "list"
	}
	return fmt.Sprintf("list[%s]", a.Items.TypeName())
}

// ArrayOf 返回元素类型为 items 的数组。
func ArrayOf(items Type) Type {
	return Array{Items: items}
}

// Map 是映射类型。Key 或 Value 为 nil 时表示未声明类型参数。
type Map struct {
	Key   Type
	Value Type
}

func (m Map) TypeName() string {
	if m.Key == nil || m.Value == nil {
		return "dict"
	}
	return fmt.Sprintf("dict[%s, %s]", m.Key.TypeName(), m.Value.TypeName())
}

// MapOf 返回 key/value 类型都已声明的映射。
func MapOf(key, value Type) Type {
	return Map{Key: key, Value: value}
}

// Named 表示编译器不认识的具名类型，例如 "float" 或 "datetime"。
type Named string

func (n Named) TypeName() string {
	return string(n)
}
