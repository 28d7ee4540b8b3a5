// Package access 定义用户权限表与模块访问守卫.
package access

import (
	"context"
	"slices"
	"strings"
)

// Root 拥有全部权限.
const Root = "root"

// Verb 模块操作.
type Verb string

const (
	VerbAdd    Verb = "add"
	VerbEdit   Verb = "edit"
	VerbView   Verb = "view"
	VerbDelete Verb = "delete"
)

// Verbs 每个模块声明的全部操作.
var Verbs = []Verb{VerbAdd, VerbEdit, VerbView, VerbDelete}

// Right 返回 "<module>-<verb>" 形式的权限名.
func Right(module string, verb Verb) string {
	return module + "-" + string(verb)
}

// User 当前请求的用户.
type User struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Access []string `json:"access"`
}

// Has 判断用户是否持有权限.
func (u *User) Has(right string) bool {
	return u != nil && slices.Contains(u.Access, right)
}

// IsRoot 判断用户是否为 root.
func (u *User) IsRoot() bool {
	return u.Has(Root)
}

// Table 启动时根据模块声明生成的权限表，创建后不可修改.
type Table struct {
	rights  map[string]struct{}
	modules []string
}

// NewTable 为每个模块生成 add/edit/view/delete 权限.
func NewTable(modules ...string) *Table {
	t := &Table{
		rights:  map[string]struct{}{Root: {}},
		modules: slices.Clone(modules),
	}

	slices.Sort(t.modules)
	t.modules = slices.Compact(t.modules)

	for _, m := range t.modules {
		for _, v := range Verbs {
			t.rights[Right(m, v)] = struct{}{}
		}
	}

	return t
}

// Known 判断权限是否在表中.
func (t *Table) Known(right string) bool {
	_, ok := t.rights[right]

	return ok
}

// Modules 已声明的模块.
func (t *Table) Modules() []string {
	return slices.Clone(t.modules)
}

// Rights 所有权限，按名称排序.
func (t *Table) Rights() []string {
	out := make([]string, 0, len(t.rights))
	for r := range t.rights {
		out = append(out, r)
	}

	slices.Sort(out)

	return out
}

// Filter 丢弃表中不存在的权限.
func (t *Table) Filter(rights []string) []string {
	out := make([]string, 0, len(rights))
	for _, r := range rights {
		r = strings.TrimSpace(r)
		if t.Known(r) && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}

	return out
}

// Grants 判断用户能否对模块执行操作，未知权限永远不授予.
func (t *Table) Grants(u *User, module string, verb Verb) bool {
	if u == nil {
		return false
	}

	if u.IsRoot() {
		return true
	}

	right := Right(module, verb)

	return t.Known(right) && u.Has(right)
}

type userKey struct{}

// WithUser 将用户放入 context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom 取出 context 中的用户，匿名请求返回 nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)

	return u
}
