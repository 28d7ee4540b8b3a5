package access

import (
	"context"

	"github.com/yeisme/skelvault/pkg/skeleton"
)

// Guard 模块级访问判断，user 为 nil 时一律拒绝.
type Guard interface {
	CanAdd(ctx context.Context, u *User, parent *skeleton.Skeleton) bool
	CanEdit(ctx context.Context, u *User, skel *skeleton.Skeleton) bool
	CanDelete(ctx context.Context, u *User, skel *skeleton.Skeleton) bool
	CanPreview(ctx context.Context, u *User) bool
	// ListFilter 返回 nil 表示无权列出.
	ListFilter(ctx context.Context, u *User, q *skeleton.Query) *skeleton.Query
}

// ModuleGuard 按权限表判断的默认守卫.
type ModuleGuard struct {
	Module string
	Table  *Table
}

// NewModuleGuard 创建模块守卫.
func NewModuleGuard(module string, table *Table) *ModuleGuard {
	return &ModuleGuard{Module: module, Table: table}
}

func (g *ModuleGuard) CanAdd(_ context.Context, u *User, _ *skeleton.Skeleton) bool {
	return g.Table.Grants(u, g.Module, VerbAdd)
}

func (g *ModuleGuard) CanEdit(_ context.Context, u *User, _ *skeleton.Skeleton) bool {
	return g.Table.Grants(u, g.Module, VerbEdit)
}

func (g *ModuleGuard) CanDelete(_ context.Context, u *User, _ *skeleton.Skeleton) bool {
	return g.Table.Grants(u, g.Module, VerbDelete)
}

func (g *ModuleGuard) CanPreview(_ context.Context, u *User) bool {
	return g.Table.Grants(u, g.Module, VerbAdd) || g.Table.Grants(u, g.Module, VerbEdit)
}

func (g *ModuleGuard) ListFilter(_ context.Context, u *User, q *skeleton.Query) *skeleton.Query {
	if !g.Table.Grants(u, g.Module, VerbView) {
		return nil
	}

	return q
}

// ViewPolicy 模块查看单个条目的方式.
type ViewPolicy interface {
	viewPolicy()
}

// ListFilterOnly 先以 ListFilter 限制查询再加载.
type ListFilterOnly struct{}

func (ListFilterOnly) viewPolicy() {}

// CustomView 先加载条目再由 CanView 判断.
type CustomView struct {
	CanView func(ctx context.Context, u *User, skel *skeleton.Skeleton) bool
}

func (CustomView) viewPolicy() {}

// PublicActive 任何人可查看 active 为 true 的条目，其余条目按 view 权限判断.
func PublicActive(g Guard, activeBone string) CustomView {
	return CustomView{CanView: func(ctx context.Context, u *User, skel *skeleton.Skeleton) bool {
		if skel.Bool(activeBone) {
			return true
		}

		return g.ListFilter(ctx, u, skel.Factory().All()) != nil
	}}
}
