package skeleton

import (
	"fmt"
	"time"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/rule"
)

// UnixNow 以浮点 Unix 时间作为排序索引默认值.
func UnixNow() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}

// FromConfig 按模块声明生成模板.
func FromConfig(mc configs.ModuleConfig) (*Factory, error) {
	bones := make([]Bone, 0, len(mc.Bones))

	for _, bc := range mc.Bones {
		b, err := BoneFromConfig(bc)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mc.Name, err)
		}

		bones = append(bones, b)
	}

	return NewFactory(mc.Name, mc.KindName(), bones...)
}

// BoneFromConfig 按字段声明生成 bone.
func BoneFromConfig(bc configs.BoneConfig) (Bone, error) {
	if bc.Rule != "" {
		if err := rule.ParseTag(bc.Rule); err != nil {
			return nil, fmt.Errorf("bone %s: %w", bc.Name, err)
		}
	}

	base := BaseBone{
		Name:       bc.Name,
		Descr:      bc.Descr,
		Required:   bc.Required,
		ReadOnly:   bc.ReadOnly,
		Indexed:    bc.Indexed || bc.Searchable,
		Searchable: bc.Searchable,
		Multiple:   bc.Multiple,
		Default:    bc.Default,
		Rule:       bc.Rule,
	}

	switch bc.Type {
	case TypeString:
		b := NewStringBone(base)
		if bc.MaxLength > 0 {
			b.MaxLength = bc.MaxLength
		}

		if bc.CaseSensitive != nil {
			b.CaseSensitive = *bc.CaseSensitive
		}

		return b, nil
	case TypeText:
		b := NewTextBone(base)
		b.MaxLength = bc.MaxLength

		return b, nil
	case TypeNumeric:
		b := NewNumericBone(base, bc.Precision)
		if bc.Min != nil {
			b.Min = *bc.Min
		}

		if bc.Max != nil {
			b.Max = *bc.Max
		}

		if b.Min > b.Max {
			return nil, fmt.Errorf("bone %s: min %g above max %g", bc.Name, b.Min, b.Max)
		}

		return b, nil
	case TypeBool:
		return NewBoolBone(base), nil
	case TypeSelect:
		if len(bc.Values) == 0 {
			return nil, fmt.Errorf("bone %s: select without values", bc.Name)
		}

		return NewSelectBone(base, bc.Values...), nil
	case TypeSortIndex:
		return NewSortIndexBone(base, UnixNow), nil
	case TypeFile:
		return NewFileBone(base), nil
	default:
		return nil, fmt.Errorf("bone %s: unknown type %q", bc.Name, bc.Type)
	}
}
