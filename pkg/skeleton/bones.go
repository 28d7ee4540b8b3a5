package skeleton

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// 配置中使用的 bone 类型名.
const (
	TypeString    = "string"
	TypeText      = "text"
	TypeNumeric   = "numeric"
	TypeBool      = "bool"
	TypeSelect    = "select"
	TypeSortIndex = "sortindex"
	TypeFile      = "file"
)

// DefaultMaxLength 字符串 bone 的默认最大长度.
const DefaultMaxLength = 254

// StringBone 单行文本，可多值.
type StringBone struct {
	BaseBone
	MaxLength     int
	CaseSensitive bool
}

// NewStringBone 创建区分大小写的字符串 bone.
func NewStringBone(base BaseBone) *StringBone {
	return &StringBone{BaseBone: base, MaxLength: DefaultMaxLength, CaseSensitive: true}
}

func (b *StringBone) Type() string { return TypeString }

func (b *StringBone) FromClient(raw []string) (any, error) {
	for _, r := range raw {
		if b.MaxLength > 0 && utf8.RuneCountInString(r) > b.MaxLength {
			return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidValue, b.MaxLength)
		}

		if err := b.checkRule(r); err != nil {
			return nil, err
		}
	}

	if b.Multiple {
		return slices.Clone(raw), nil
	}

	return raw[0], nil
}

func (b *StringBone) Unserialize(v any) any {
	if b.Multiple {
		return toStrings(v)
	}

	s, _ := v.(string)

	return s
}

func (b *StringBone) normalize(s string) string {
	if b.CaseSensitive {
		return s
	}

	return strings.ToLower(s)
}

func (b *StringBone) IndexValues(v any) []IndexValue {
	values := toStrings(v)
	out := make([]IndexValue, 0, len(values))

	for _, s := range values {
		out = append(out, IndexValue{Value: b.normalize(s)})
	}

	return out
}

func (b *StringBone) FilterValue(raw string) (IndexValue, error) {
	return IndexValue{Value: b.normalize(raw)}, nil
}

func (b *StringBone) Params() map[string]any {
	return map[string]any{"maxlength": b.MaxLength, "casesensitive": b.CaseSensitive}
}

// TextBone 多行文本，不参与检索.
type TextBone struct {
	BaseBone
	MaxLength int
}

func NewTextBone(base BaseBone) *TextBone {
	base.Indexed = false
	base.Multiple = false

	return &TextBone{BaseBone: base}
}

func (b *TextBone) Type() string { return TypeText }

func (b *TextBone) FromClient(raw []string) (any, error) {
	text := strings.Join(raw, "\n")
	if b.MaxLength > 0 && utf8.RuneCountInString(text) > b.MaxLength {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidValue, b.MaxLength)
	}

	if err := b.checkRule(text); err != nil {
		return nil, err
	}

	return text, nil
}

func (b *TextBone) Unserialize(v any) any {
	s, _ := v.(string)

	return s
}

func (b *TextBone) IndexValues(any) []IndexValue { return nil }

func (b *TextBone) FilterValue(string) (IndexValue, error) {
	return IndexValue{}, fmt.Errorf("%w: text bone %q is not searchable", ErrInvalidValue, b.Name)
}

// BoolBone 布尔值.
type BoolBone struct {
	BaseBone
}

func NewBoolBone(base BaseBone) *BoolBone {
	base.Multiple = false
	if base.Default == nil {
		base.Default = false
	}

	return &BoolBone{BaseBone: base}
}

func (b *BoolBone) Type() string { return TypeBool }

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (b *BoolBone) FromClient(raw []string) (any, error) {
	return parseBool(raw[0]), nil
}

func (b *BoolBone) Unserialize(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return parseBool(t)
	case float64:
		return t != 0
	default:
		return false
	}
}

func boolIndex(v bool) IndexValue {
	if v {
		return IndexValue{Value: "1"}
	}

	return IndexValue{Value: "0"}
}

func (b *BoolBone) IndexValues(v any) []IndexValue {
	return []IndexValue{boolIndex(b.Unserialize(v).(bool))}
}

func (b *BoolBone) FilterValue(raw string) (IndexValue, error) {
	return boolIndex(parseBool(raw)), nil
}

// SelectBone 从预定义取值中选择.
type SelectBone struct {
	BaseBone
	Values []string
}

func NewSelectBone(base BaseBone, values ...string) *SelectBone {
	return &SelectBone{BaseBone: base, Values: values}
}

func (b *SelectBone) Type() string { return TypeSelect }

func (b *SelectBone) FromClient(raw []string) (any, error) {
	for _, r := range raw {
		if !slices.Contains(b.Values, r) {
			return nil, fmt.Errorf("%w: %q is not one of %v", ErrInvalidValue, r, b.Values)
		}
	}

	if b.Multiple {
		return slices.Clone(raw), nil
	}

	return raw[0], nil
}

func (b *SelectBone) Unserialize(v any) any {
	if b.Multiple {
		return toStrings(v)
	}

	s, _ := v.(string)

	return s
}

func (b *SelectBone) IndexValues(v any) []IndexValue {
	values := toStrings(v)
	out := make([]IndexValue, 0, len(values))

	for _, s := range values {
		out = append(out, IndexValue{Value: s})
	}

	return out
}

func (b *SelectBone) FilterValue(raw string) (IndexValue, error) {
	return IndexValue{Value: raw}, nil
}

func (b *SelectBone) Params() map[string]any {
	return map[string]any{"values": b.Values}
}
