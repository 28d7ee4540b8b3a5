package skeleton

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 数值 bone 的默认取值范围.
const (
	DefaultNumericMin = -1e11
	DefaultNumericMax = 1e11
)

// sortIndexPrecision 排序索引保留的小数位.
const sortIndexPrecision = 8

// NumericBone 数值字段，Precision 为 0 时只接受整数.
type NumericBone struct {
	BaseBone
	Precision int
	Min       float64
	Max       float64
}

// NewNumericBone 创建使用默认范围的数值 bone.
func NewNumericBone(base BaseBone, precision int) *NumericBone {
	base.Multiple = false

	return &NumericBone{BaseBone: base, Precision: precision, Min: DefaultNumericMin, Max: DefaultNumericMax}
}

func (b *NumericBone) Type() string { return TypeNumeric }

// parse 接受逗号作为小数分隔符并按精度取整.
func (b *NumericBone) parse(raw string) (float64, error) {
	s := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)

	if b.Precision == 0 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, raw)
		}

		return float64(n), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
	}

	return round(f, b.Precision), nil
}

func round(f float64, precision int) float64 {
	p := math.Pow(10, float64(precision))

	return math.Round(f*p) / p
}

func (b *NumericBone) FromClient(raw []string) (any, error) {
	f, err := b.parse(raw[0])
	if err != nil {
		return nil, err
	}

	if f < b.Min || f > b.Max {
		return nil, fmt.Errorf("%w: must be between %g and %g", ErrInvalidValue, b.Min, b.Max)
	}

	if err := b.checkRule(f); err != nil {
		return nil, err
	}

	return f, nil
}

// Serialize NaN 写为 null.
func (b *NumericBone) Serialize(v any) any {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return nil
	}

	return f
}

func (b *NumericBone) Unserialize(v any) any {
	var f float64

	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}

		f = parsed
	default:
		return nil
	}

	if b.Precision == 0 {
		return math.Trunc(f)
	}

	return f
}

func (b *NumericBone) IndexValues(v any) []IndexValue {
	f, ok := b.Unserialize(v).(float64)
	if !ok {
		return nil
	}

	return []IndexValue{{Value: strconv.FormatFloat(f, 'f', -1, 64), Num: &f}}
}

func (b *NumericBone) FilterValue(raw string) (IndexValue, error) {
	f, err := b.parse(raw)
	if err != nil {
		return IndexValue{}, err
	}

	return IndexValue{Value: strconv.FormatFloat(f, 'f', -1, 64), Num: &f}, nil
}

func (b *NumericBone) Params() map[string]any {
	return map[string]any{"precision": b.Precision, "min": b.Min, "max": b.Max}
}

// SortIndexBone 列表排序用的浮点索引，同时写入实体的 sort_index 列.
type SortIndexBone struct {
	NumericBone
	now func() float64
}

// NewSortIndexBone 创建排序索引，默认值为当前 Unix 时间.
func NewSortIndexBone(base BaseBone, now func() float64) *SortIndexBone {
	base.Indexed = true
	if base.Name == "" {
		base.Name = "sortindex"
	}

	b := &SortIndexBone{
		NumericBone: *NewNumericBone(base, sortIndexPrecision),
		now:         now,
	}

	return b
}

func (b *SortIndexBone) Type() string { return TypeSortIndex }

func (b *SortIndexBone) DefaultValue() any {
	if b.Default != nil {
		return b.Unserialize(b.Default)
	}

	if b.now != nil {
		return b.now()
	}

	return float64(0)
}
