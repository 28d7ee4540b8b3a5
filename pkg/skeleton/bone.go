// Package skeleton 描述模块的数据结构：由若干 bone 组成的 skeleton，负责客户端输入校验、
// 序列化与索引值生成，持久化由 service.EntityStore 完成.
//
// Example:
//
//	f, _ := skeleton.NewFactory("page", "page",
//		skeleton.NewStringBone(skeleton.BaseBone{Name: "title", Required: true, Indexed: true}),
//		skeleton.NewNumericBone(skeleton.BaseBone{Name: "price"}, 2),
//	)
//
//	skel := f.New()
//	if !skel.FromClient(map[string][]string{"title": {"hello"}, "price": {"1,5"}}) {
//		fmt.Println(skel.Errors())
//	}
package skeleton

import (
	"errors"
	"math"
	"strings"

	"github.com/yeisme/skelvault/pkg/rule"
)

var (
	// ErrUnknownBone 访问了未声明的 bone.
	ErrUnknownBone = errors.New("skeleton: unknown bone")
	// ErrRequired 必填字段为空.
	ErrRequired = errors.New("required")
	// ErrInvalidValue 字段值无法解析.
	ErrInvalidValue = errors.New("invalid value")
)

// IndexValue 单个可检索值，Num 非空时按数值比较.
type IndexValue struct {
	Value string
	Num   *float64
}

// Bone 单个字段定义.
type Bone interface {
	// Base 返回公共字段属性.
	Base() *BaseBone
	// Type 字段类型名，与配置中的 type 对应.
	Type() string
	// FromClient 解析非空的客户端原始值.
	FromClient(raw []string) (any, error)
	// Serialize 将内存值转换为可写入 JSON 的值.
	Serialize(v any) any
	// Unserialize 将 JSON 解码后的值还原为内存值.
	Unserialize(v any) any
	// IndexValues 返回写入索引表的值.
	IndexValues(v any) []IndexValue
	// FilterValue 将查询参数转换为索引比较值.
	FilterValue(raw string) (IndexValue, error)
	// DefaultValue 新建 skeleton 时的初始值.
	DefaultValue() any
	// Params 类型相关的结构描述.
	Params() map[string]any
}

// BaseBone 各类 bone 共享的属性.
type BaseBone struct {
	Name       string
	Descr      string
	Required   bool
	ReadOnly   bool
	Indexed    bool
	Searchable bool
	Multiple   bool
	Default    any
	// Rule 额外的 validator 规则，作用于解析后的值.
	Rule string
}

func (b *BaseBone) Base() *BaseBone { return b }

func (b *BaseBone) DefaultValue() any { return b.Default }

func (b *BaseBone) Serialize(v any) any { return v }

func (b *BaseBone) Params() map[string]any { return nil }

// checkRule 按 Rule 校验单个值.
func (b *BaseBone) checkRule(v any) error {
	if b.Rule == "" {
		return nil
	}

	if err := rule.ValidateVar(v, b.Rule); err != nil {
		if errs := rule.Errors(err); len(errs) > 0 {
			for _, msg := range errs {
				return errors.New(msg)
			}
		}

		return err
	}

	return nil
}

// Structure bone 的结构描述，供渲染器输出.
type Structure struct {
	Name     string         `json:"name"                yaml:"name"`
	Type     string         `json:"type"                yaml:"type"`
	Descr    string         `json:"descr,omitempty"     yaml:"descr,omitempty"`
	Required bool           `json:"required"            yaml:"required"`
	ReadOnly bool           `json:"readonly"            yaml:"readonly"`
	Indexed  bool           `json:"indexed"             yaml:"indexed"`
	Multiple bool           `json:"multiple"            yaml:"multiple"`
	Params   map[string]any `json:"params,omitempty"    yaml:"params,omitempty"`
}

// StructureOf 生成 bone 的结构描述.
func StructureOf(b Bone) Structure {
	base := b.Base()

	return Structure{
		Name:     base.Name,
		Type:     b.Type(),
		Descr:    base.Descr,
		Required: base.Required,
		ReadOnly: base.ReadOnly,
		Indexed:  base.Indexed,
		Multiple: base.Multiple,
		Params:   b.Params(),
	}
}

// IsEmpty 判断值是否视为未填写.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// nonEmpty 去掉空白的原始值.
func nonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}

	return out
}

// toStrings 将 JSON 解码得到的值转换为字符串切片.
func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	case string:
		if t == "" {
			return nil
		}

		return []string{t}
	default:
		return nil
	}
}
