package schema

import (
	"bytes"
	"encoding/json"
)

// Schema 是编译后的参数结构节点，构建后不再修改。
type Schema struct {
	Type        Kind
	Description string
	// Items 仅用于 array；nil 表示元素类型未声明。
	Items *Schema
	// Values 仅用于 object，表示所有 string key 对应值的统一 schema。
	Values *Schema
	// AnyValues 表示 object 接受任意附加属性。
	AnyValues bool
	// Required 仅对顶层参数有意义。
	Required bool
}

// Map 转换为 JSON schema 片段，供模型 SDK 直接使用。
func (s *Schema) Map() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Items != nil {
		out["items"] = s.Items.Map()
	}
	switch {
	case s.Values != nil:
		out["additionalProperties"] = s.Values.Map()
	case s.AnyValues:
		out["additionalProperties"] = true
	}
	return out
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	if err := writeJSON(&buf, string(s.Type)); err != nil {
		return nil, err
	}
	if s.Description != "" {
		buf.WriteString(`,"description":`)
		if err := writeJSON(&buf, s.Description); err != nil {
			return nil, err
		}
	}
	if s.Items != nil {
		buf.WriteString(`,"items":`)
		if err := writeJSON(&buf, s.Items); err != nil {
			return nil, err
		}
	}
	switch {
	case s.Values != nil:
		buf.WriteString(`,"additionalProperties":`)
		if err := writeJSON(&buf, s.Values); err != nil {
			return nil, err
		}
	case s.AnyValues:
		buf.WriteString(`,"additionalProperties":true`)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Property 是对象 schema 中的一个具名参数。
type Property struct {
	Name   string
	Schema *Schema
}

// Object 是一个工具的完整参数 schema：有序的 properties 与 required 列表。
type Object struct {
	Properties []Property
	Required   []string
}

// Property 按名字查找参数节点。
func (o *Object) Property(name string) (*Schema, bool) {
	if o == nil {
		return nil, false
	}
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}

// Map 返回 {"type":"object","properties":{...},"required":[...]}。
func (o *Object) Map() map[string]any {
	props := map[string]any{}
	required := []string{}
	if o != nil {
		for _, p := range o.Properties {
			props[p.Name] = p.Schema.Map()
		}
		required = append(required, o.Required...)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// MarshalJSON 保持参数声明顺序。
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","properties":{`)
	if o != nil {
		for i, p := range o.Properties {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, p.Name); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := writeJSON(&buf, p.Schema); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteString(`},"required":`)
	required := []string{}
	if o != nil && o.Required != nil {
		required = o.Required
	}
	if err := writeJSON(&buf, required); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
