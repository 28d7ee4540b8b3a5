package service

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// RootNodeKey 用户个人根目录的固定 key，重复创建会落到同一条记录.
func RootNodeKey(userKey string) string {
	return fmt.Sprintf("root%022x", xxhash.Sum64String(userKey))
}

// FileGuard 在模块权限之外要求条目位于用户自己的根目录下，root 用户不受限制.
type FileGuard struct {
	*access.ModuleGuard
}

// NewFileGuard 创建文件模块守卫.
func NewFileGuard(module string, table *access.Table) *FileGuard {
	return &FileGuard{ModuleGuard: access.NewModuleGuard(module, table)}
}

func owns(u *access.User, skel *skeleton.Skeleton) bool {
	if u.IsRoot() {
		return true
	}

	return skel != nil && skel.String(BoneParentRepo) == RootNodeKey(u.Key)
}

// CanAdd parent 为 nil 时只检查模块权限（匿名上传、获取上传地址）.
func (g *FileGuard) CanAdd(ctx context.Context, u *access.User, parent *skeleton.Skeleton) bool {
	if !g.ModuleGuard.CanAdd(ctx, u, parent) {
		return false
	}

	return parent == nil || owns(u, parent)
}

func (g *FileGuard) CanEdit(ctx context.Context, u *access.User, skel *skeleton.Skeleton) bool {
	return g.ModuleGuard.CanEdit(ctx, u, skel) && owns(u, skel)
}

func (g *FileGuard) CanDelete(ctx context.Context, u *access.User, skel *skeleton.Skeleton) bool {
	return g.ModuleGuard.CanDelete(ctx, u, skel) && owns(u, skel)
}

// ListFilter 非 root 用户只能看到自己根目录下的条目.
func (g *FileGuard) ListFilter(ctx context.Context, u *access.User, q *skeleton.Query) *skeleton.Query {
	q = g.ModuleGuard.ListFilter(ctx, u, q)
	if q == nil || u.IsRoot() {
		return q
	}

	return q.Filter(BoneParentRepo, skeleton.OpEq, RootNodeKey(u.Key))
}
