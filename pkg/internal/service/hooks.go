package service

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	nlog "github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/queue"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

// Event 条目状态变化.
type Event string

const (
	EventAdded   Event = "added"
	EventEdited  Event = "edited"
	EventViewed  Event = "viewed"
	EventDeleted Event = "deleted"
)

// HookEvent 回调参数.
type HookEvent struct {
	Module string
	Event  Event
	User   *access.User
	Skel   *skeleton.Skeleton
}

// Hook 状态变化提交后执行的回调，不能影响请求结果.
type Hook func(ctx context.Context, ev HookEvent)

// Hooks 按顺序执行的回调列表.
type Hooks []Hook

// Fire 依次执行回调，panic 被记录后忽略.
func (h Hooks) Fire(ctx context.Context, ev HookEvent) {
	for _, hook := range h {
		runHook(ctx, hook, ev)
	}
}

func runHook(ctx context.Context, hook Hook, ev HookEvent) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Ctx(ctx).Error().
				Str("module", ev.Module).
				Str("event", string(ev.Event)).
				Str("panic", fmt.Sprint(r)).
				Msg("hook panicked")
		}
	}()

	hook(ctx, ev)
}

func userKey(u *access.User) string {
	if u == nil {
		return ""
	}

	return u.Key
}

// AuditHook 以结构化日志记录每次变化.
func AuditHook(l zerolog.Logger) Hook {
	return func(_ context.Context, ev HookEvent) {
		e := l.Info()
		if ev.Event == EventViewed {
			e = l.Debug()
		}

		e.Str("module", ev.Module).
			Str("event", string(ev.Event)).
			Str("kind", ev.Skel.Kind()).
			Str("key", ev.Skel.Key).
			Str("user", userKey(ev.User)).
			Msg("entity " + string(ev.Event))
	}
}

var entityTopics = map[Event]string{
	EventAdded:   queue.TopicEntityAdded,
	EventEdited:  queue.TopicEntityEdited,
	EventViewed:  queue.TopicEntityViewed,
	EventDeleted: queue.TopicEntityDeleted,
}

// EventHook 将变化发布到消息队列，按配置过滤事件类型.
func EventHook(pub message.Publisher, cfg configs.EventsConfig) Hook {
	enabled := map[Event]bool{
		EventAdded:   cfg.Entity.Added,
		EventEdited:  cfg.Entity.Edited,
		EventViewed:  cfg.Entity.Viewed,
		EventDeleted: cfg.Entity.Deleted,
	}

	return func(ctx context.Context, ev HookEvent) {
		if pub == nil || !cfg.Enabled || !enabled[ev.Event] {
			return
		}

		payload := queue.EntityEventPayload{
			Module: ev.Module,
			Kind:   ev.Skel.Kind(),
			Key:    ev.Skel.Key,
			User:   userKey(ev.User),
		}

		if err := queue.PublishEntityEvent(pub, entityTopics[ev.Event], payload, publishOpts(ctx)...); err != nil {
			nlog.Ctx(ctx).Warn().Err(err).Str("module", ev.Module).Msg("publish entity event failed")
		}
	}
}

// publishOpts 填充生产者与链路信息.
func publishOpts(ctx context.Context) []queue.Option {
	return []queue.Option{queue.WithProducer("skelvault"), queue.WithContext(ctx)}
}
