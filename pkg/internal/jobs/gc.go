// Package jobs 负责注册与实现后台任务：按间隔触发 blob 回收，并消费回收请求.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/queue"
	"github.com/yeisme/skelvault/pkg/scheduler"
)

// producer 回收请求的来源标识.
const producer = "scheduler"

// RunSweep 执行一轮扫描或清理.
func RunSweep(ctx context.Context, gc *service.BlobGC, sweep string) error {
	l := log.Ctx(ctx).With().Str("job", "gc."+sweep).Logger()

	switch sweep {
	case service.SweepScan:
		stats, err := gc.Scan(ctx)
		if err != nil {
			return err
		}

		l.Debug().Int("locks", stats.Locks).Int("staged", stats.Staged).Int("errors", stats.Errors).Msg("scan done")
	case service.SweepCleanup:
		stats, err := gc.Cleanup(ctx)
		if err != nil {
			return err
		}

		l.Debug().
			Int("markers", stats.Markers).
			Int("released", stats.Released).
			Int("deferred", stats.Deferred).
			Int("deleted", stats.Deleted).
			Int("errors", stats.Errors).
			Msg("cleanup done")
	default:
		return fmt.Errorf("unknown sweep %q", sweep)
	}

	return nil
}

// Trigger 把回收请求投递到消息队列，由 Worker 执行；没有 publisher 时直接执行.
type Trigger struct {
	gc  *service.BlobGC
	pub message.Publisher
}

// NewTrigger 创建触发器.
func NewTrigger(gc *service.BlobGC, pub message.Publisher) *Trigger {
	return &Trigger{gc: gc, pub: pub}
}

// Fire 请求执行一轮 sweep.
func (t *Trigger) Fire(ctx context.Context, sweep string, requestedBy string) error {
	topic, ok := sweepTopics[sweep]
	if !ok {
		return fmt.Errorf("unknown sweep %q", sweep)
	}

	if t.pub == nil {
		return RunSweep(ctx, t.gc, sweep)
	}

	return queue.PublishGCRequested(t.pub, topic,
		queue.GCRequestedPayload{Sweep: sweep, RequestedBy: requestedBy},
		queue.WithProducer(producer), queue.WithContext(ctx))
}

// RegisterGCJobs 按配置注册扫描与清理任务：
//   - 每 scan_interval 触发一次失效引用扫描
//   - 每 cleanup_interval 触发一次删除标记处理
func RegisterGCJobs(ctx context.Context, sched *scheduler.Scheduler, cfg configs.GCConfig, trigger *Trigger) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if trigger == nil {
		return errors.New("gc trigger is nil")
	}

	if !cfg.Enabled {
		log.Logger().Info().Msg("blob gc disabled")
		return nil
	}

	fire := func(sweep string) scheduler.Job {
		return func(ctx context.Context) error {
			return trigger.Fire(ctx, sweep, producer)
		}
	}

	if err := sched.AddInterval(ctx, JobGCScan, cfg.ScanInterval, fire(service.SweepScan)); err != nil {
		return err
	}

	return sched.AddInterval(ctx, JobGCCleanup, cfg.CleanupInterval, fire(service.SweepCleanup))
}
