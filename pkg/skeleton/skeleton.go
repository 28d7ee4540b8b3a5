package skeleton

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// KeyField 客户端视图中实体 key 的字段名，不可作为 bone 名称.
const KeyField = "key"

// LockPolicy 计算 skeleton 持久化时需要加锁的 blob key.
type LockPolicy func(s *Skeleton) []string

// Factory 某一实体类型的 skeleton 模板.
type Factory struct {
	module string
	kind   string
	bones  []Bone
	byName map[string]Bone
	locks  LockPolicy
}

// NewFactory 创建模板，bone 名称必须唯一.
func NewFactory(module, kind string, bones ...Bone) (*Factory, error) {
	f := &Factory{
		module: module,
		kind:   kind,
		bones:  bones,
		byName: make(map[string]Bone, len(bones)),
	}

	for _, b := range bones {
		name := b.Base().Name
		if name == "" || name == KeyField {
			return nil, fmt.Errorf("skeleton %s: invalid bone name %q", kind, name)
		}

		if _, dup := f.byName[name]; dup {
			return nil, fmt.Errorf("skeleton %s: bone %q declared twice", kind, name)
		}

		f.byName[name] = b
	}

	return f, nil
}

// MustFactory 同 NewFactory，声明错误时 panic，仅用于静态声明.
func MustFactory(module, kind string, bones ...Bone) *Factory {
	f, err := NewFactory(module, kind, bones...)
	if err != nil {
		panic(err)
	}

	return f
}

// WithLockPolicy 替换默认的 blob 加锁规则.
func (f *Factory) WithLockPolicy(p LockPolicy) *Factory {
	f.locks = p

	return f
}

func (f *Factory) Module() string { return f.module }

func (f *Factory) Kind() string { return f.kind }

func (f *Factory) Bones() []Bone { return f.bones }

// Bone 按名称查找 bone.
func (f *Factory) Bone(name string) (Bone, bool) {
	b, ok := f.byName[name]

	return b, ok
}

// Structure 返回所有 bone 的结构描述.
func (f *Factory) Structure() []Structure {
	out := make([]Structure, 0, len(f.bones))
	for _, b := range f.bones {
		out = append(out, StructureOf(b))
	}

	return out
}

// New 创建填充默认值的空 skeleton.
func (f *Factory) New() *Skeleton {
	s := &Skeleton{
		factory: f,
		values:  make(map[string]any, len(f.bones)),
		errors:  map[string]string{},
	}

	for _, b := range f.bones {
		s.values[b.Base().Name] = b.Unserialize(b.DefaultValue())
	}

	if si := f.sortIndexBone(); si != nil {
		if v, ok := s.values[si.Name].(float64); ok {
			s.sortIndex = v
		}
	}

	return s
}

// All 返回针对该类型的空查询.
func (f *Factory) All() *Query {
	return &Query{factory: f, Kind: f.kind}
}

func (f *Factory) sortIndexBone() *BaseBone {
	for _, b := range f.bones {
		if _, ok := b.(*SortIndexBone); ok {
			return b.Base()
		}
	}

	return nil
}

// Skeleton 一条实体记录.
type Skeleton struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time

	factory   *Factory
	values    map[string]any
	errors    map[string]string
	sortIndex float64
}

func (s *Skeleton) Factory() *Factory { return s.factory }

func (s *Skeleton) Kind() string { return s.factory.kind }

func (s *Skeleton) Module() string { return s.factory.module }

// Get 返回字段值，未声明的字段返回 nil.
func (s *Skeleton) Get(name string) any {
	return s.values[name]
}

// String 以字符串读取字段值.
func (s *Skeleton) String(name string) string {
	v, _ := s.values[name].(string)

	return v
}

// Float 以数值读取字段值.
func (s *Skeleton) Float(name string) float64 {
	v, _ := s.values[name].(float64)

	return v
}

// Bool 以布尔读取字段值.
func (s *Skeleton) Bool(name string) bool {
	v, _ := s.values[name].(bool)

	return v
}

// Set 服务端直接写入字段值，不做客户端校验也不受只读限制.
func (s *Skeleton) Set(name string, v any) error {
	b, ok := s.factory.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownBone, s.factory.kind, name)
	}

	s.values[name] = b.Unserialize(b.Serialize(v))
	if _, isSort := b.(*SortIndexBone); isSort {
		if f, ok := s.values[name].(float64); ok {
			s.sortIndex = f
		}
	}

	return nil
}

// SetValues 批量写入，遇到未声明字段立即返回错误.
func (s *Skeleton) SetValues(values map[string]any) error {
	var errs []error

	for _, name := range slices.Sorted(maps.Keys(values)) {
		if err := s.Set(name, values[name]); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SortIndex 返回排序索引.
func (s *Skeleton) SortIndex() float64 {
	return s.sortIndex
}

// SetSortIndex 修改排序索引，存在排序 bone 时同步其值.
func (s *Skeleton) SetSortIndex(v float64) {
	s.sortIndex = round(v, sortIndexPrecision)
	if si := s.factory.sortIndexBone(); si != nil {
		s.values[si.Name] = s.sortIndex
	}
}

// FromClient 读取客户端提交的字段，只读字段被忽略，返回是否所有字段校验通过.
// 未提交的字段保留当前值，提交空值等同于清空.
func (s *Skeleton) FromClient(fields map[string][]string) bool {
	s.errors = map[string]string{}

	for _, b := range s.factory.bones {
		base := b.Base()
		if base.ReadOnly {
			continue
		}

		raw, submitted := fields[base.Name]
		raw = nonEmpty(raw)

		if len(raw) == 0 {
			if submitted {
				s.values[base.Name] = b.Unserialize(nil)
			}

			if base.Required && IsEmpty(s.values[base.Name]) {
				s.errors[base.Name] = ErrRequired.Error()
			}

			continue
		}

		v, err := b.FromClient(raw)
		if err != nil {
			s.errors[base.Name] = err.Error()

			continue
		}

		s.values[base.Name] = v
		if _, isSort := b.(*SortIndexBone); isSort {
			s.sortIndex, _ = v.(float64)
		}
	}

	return len(s.errors) == 0
}

// Errors 最近一次 FromClient 的字段错误.
func (s *Skeleton) Errors() map[string]string {
	return s.errors
}

// Data 返回序列化后的字段值，用于持久化.
func (s *Skeleton) Data() map[string]any {
	out := make(map[string]any, len(s.factory.bones))
	for _, b := range s.factory.bones {
		name := b.Base().Name
		out[name] = b.Serialize(s.values[name])
	}

	return out
}

// Load 从持久化数据还原，未知字段被丢弃.
func (s *Skeleton) Load(key string, sortIndex float64, data map[string]any) {
	s.Key = key
	s.sortIndex = sortIndex

	for _, b := range s.factory.bones {
		name := b.Base().Name
		if raw, ok := data[name]; ok {
			s.values[name] = b.Unserialize(raw)
		}
	}

	if si := s.factory.sortIndexBone(); si != nil {
		s.values[si.Name] = sortIndex
	}
}

// Values 客户端视图，包含 key.
func (s *Skeleton) Values() map[string]any {
	out := s.Data()
	out[KeyField] = s.Key

	return out
}

// IndexValues 返回所有可检索字段的索引值.
func (s *Skeleton) IndexValues() map[string][]IndexValue {
	out := make(map[string][]IndexValue)

	for _, b := range s.factory.bones {
		base := b.Base()
		if !base.Indexed {
			continue
		}

		if values := b.IndexValues(s.values[base.Name]); len(values) > 0 {
			out[base.Name] = values
		}
	}

	return out
}

// BlobKeys 返回需要加锁的 blob key，去重并排序.
func (s *Skeleton) BlobKeys() []string {
	var keys []string

	if s.factory.locks != nil {
		keys = s.factory.locks(s)
	} else {
		keys = s.ReferencedBlobs()
	}

	keys = slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return k == "" })
	slices.Sort(keys)

	return slices.Compact(keys)
}

// ReferencedBlobs 返回 FileBone 字段中的 blob key.
func (s *Skeleton) ReferencedBlobs() []string {
	var keys []string

	for _, b := range s.factory.bones {
		if ref, ok := b.(BlobReferrer); ok {
			keys = append(keys, ref.BlobKeys(s.values[b.Base().Name])...)
		}
	}

	return keys
}

// List 查询结果.
type List struct {
	Skels  []*Skeleton
	Cursor string
}
