package skeleton

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Op 过滤比较符.
type Op string

const (
	OpEq     Op = "="
	OpLt     Op = "$lt"
	OpGt     Op = "$gt"
	OpPrefix Op = "$lk"
)

// 分页参数.
const (
	DefaultAmount = 30
	MaxAmount     = 100
)

// 可直接排序的实体列.
const (
	OrderSortIndex    = "sortindex"
	OrderCreationDate = "creationdate"
	OrderChangeDate   = "changedate"
)

// Filter 针对单个索引字段的条件.
type Filter struct {
	Name  string
	Op    Op
	Value IndexValue
}

// Order 排序字段.
type Order struct {
	Name string
	Desc bool
}

// Query 列表查询描述，由 service.EntityStore 翻译为 SQL.
type Query struct {
	Kind    string
	Keys    []string
	Filters []Filter
	Orders  []Order
	Amount  int
	Cursor  string
	// Unsatisfiable 为 true 时查询不返回任何结果.
	Unsatisfiable bool

	factory *Factory
}

func (q *Query) Factory() *Factory { return q.factory }

// Clone 深拷贝查询.
func (q *Query) Clone() *Query {
	c := *q
	c.Keys = slices.Clone(q.Keys)
	c.Filters = slices.Clone(q.Filters)
	c.Orders = slices.Clone(q.Orders)

	return &c
}

// Key 限定实体 key.
func (q *Query) Key(key string) *Query {
	q.Keys = append(q.Keys, key)

	return q
}

// Filter 添加条件，字段未声明或未索引时查询变为不可满足.
func (q *Query) Filter(name string, op Op, raw string) *Query {
	b, ok := q.factory.Bone(name)
	if !ok || !b.Base().Indexed || !validOp(op) {
		q.Unsatisfiable = true

		return q
	}

	v, err := b.FilterValue(raw)
	if err != nil {
		q.Unsatisfiable = true

		return q
	}

	q.Filters = append(q.Filters, Filter{Name: name, Op: op, Value: v})

	return q
}

// Order 追加排序字段.
func (q *Query) Order(name string, desc bool) *Query {
	if q.orderable(name) {
		q.Orders = append(q.Orders, Order{Name: name, Desc: desc})
	}

	return q
}

// Limit 设置每页数量.
func (q *Query) Limit(n int) *Query {
	q.Amount = clampAmount(n)

	return q
}

// MergeExternalFilter 合并来自客户端的查询参数.
// 形如 name、name$lt、name$gt、name$lk 的参数作为条件，
// orderby/orderdir/amount/cursor 控制排序与分页，未识别的参数被忽略.
func (q *Query) MergeExternalFilter(params map[string][]string) *Query {
	var (
		orderBy string
		desc    bool
	)

	for _, key := range slices.Sorted(maps.Keys(params)) {
		values := params[key]
		if len(values) == 0 {
			continue
		}

		switch key {
		case "orderby":
			orderBy = values[0]
		case "orderdir":
			desc = values[0] == "1" || strings.EqualFold(values[0], "desc")
		case "amount":
			if n, err := strconv.Atoi(values[0]); err == nil {
				q.Amount = clampAmount(n)
			}
		case "cursor":
			q.Cursor = values[0]
		default:
			name, op := splitFilterKey(key)

			b, ok := q.factory.Bone(name)
			if !ok || !b.Base().Indexed {
				continue
			}

			for _, raw := range values {
				v, err := b.FilterValue(raw)
				if err != nil {
					q.Unsatisfiable = true

					continue
				}

				q.Filters = append(q.Filters, Filter{Name: name, Op: op, Value: v})
			}
		}
	}

	if orderBy != "" {
		q.Order(orderBy, desc)
	}

	return q
}

// EffectiveAmount 返回生效的每页数量.
func (q *Query) EffectiveAmount() int {
	if q.Amount <= 0 {
		return DefaultAmount
	}

	return q.Amount
}

// Offset 解析游标中的偏移量.
func (q *Query) Offset() int {
	n, err := strconv.Atoi(q.Cursor)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

func (q *Query) orderable(name string) bool {
	switch name {
	case OrderSortIndex, OrderCreationDate, OrderChangeDate:
		return true
	}

	b, ok := q.factory.Bone(name)

	return ok && b.Base().Indexed && !b.Base().Multiple
}

func splitFilterKey(key string) (string, Op) {
	name, suffix, found := strings.Cut(key, "$")
	if !found {
		return key, OpEq
	}

	op := Op("$" + suffix)
	if !validOp(op) {
		return key, OpEq
	}

	return name, op
}

func validOp(op Op) bool {
	switch op {
	case OpEq, OpLt, OpGt, OpPrefix:
		return true
	default:
		return false
	}
}

func clampAmount(n int) int {
	switch {
	case n <= 0:
		return DefaultAmount
	case n > MaxAmount:
		return MaxAmount
	default:
		return n
	}
}
