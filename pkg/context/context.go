// Package context 在请求 context 中携带进程级依赖：存储管理器与调度器.
package context

import (
	"context"

	"github.com/yeisme/skelvault/pkg/internal/storage"
	"github.com/yeisme/skelvault/pkg/scheduler"
)

type (
	managerKey   struct{}
	schedulerKey struct{}
)

// WithManager 写入存储管理器，mgr 为 nil 时原样返回.
func WithManager(ctx context.Context, mgr *storage.Manager) context.Context {
	if mgr == nil {
		return ctx
	}

	return context.WithValue(ctx, managerKey{}, mgr)
}

// Manager 读取存储管理器，未写入时为 nil.
func Manager(ctx context.Context) *storage.Manager {
	mgr, _ := ctx.Value(managerKey{}).(*storage.Manager)

	return mgr
}

// WithScheduler 写入调度器，sched 为 nil 时原样返回.
func WithScheduler(ctx context.Context, sched *scheduler.Scheduler) context.Context {
	if sched == nil {
		return ctx
	}

	return context.WithValue(ctx, schedulerKey{}, sched)
}

// Scheduler 读取调度器，未写入时为 nil.
func Scheduler(ctx context.Context) *scheduler.Scheduler {
	sched, _ := ctx.Value(schedulerKey{}).(*scheduler.Scheduler)

	return sched
}
