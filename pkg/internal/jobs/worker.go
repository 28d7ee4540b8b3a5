package jobs

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/queue"
	"github.com/yeisme/skelvault/pkg/tracing"
)

// Subscriber 回收请求的订阅来源.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Worker 消费回收请求，成功 ack，失败 nack 以便重投.
type Worker struct {
	gc  *service.BlobGC
	sub Subscriber
}

// NewWorker 创建回收消费者.
func NewWorker(gc *service.BlobGC, sub Subscriber) *Worker {
	return &Worker{gc: gc, sub: sub}
}

// Run 订阅全部回收主题直到 ctx 结束.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, topic := range queue.GCTopics {
		ch, err := w.sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		g.Go(func() error {
			for msg := range ch {
				w.handle(ctx, topic, msg)
			}

			return nil
		})
	}

	log.Logger().Info().Strs("topics", queue.GCTopics).Msg("gc worker started")

	return g.Wait()
}

// handle 处理单条请求，sweep 以主题为准，负载中的 sweep 仅用于校验.
func (w *Worker) handle(ctx context.Context, topic string, msg *message.Message) {
	l := log.Ctx(ctx).With().Str("topic", topic).Str("msg_id", msg.UUID).Logger()

	env, err := queue.ParseGCRequested(msg)
	if err != nil {
		// 无法解析的消息重投也不会成功
		l.Error().Err(err).Msg("drop malformed gc request")
		msg.Ack()

		return
	}

	sweep := service.SweepScan
	if topic == queue.TopicGCCleanupRequested {
		sweep = service.SweepCleanup
	}

	if env.Payload.Sweep != "" && env.Payload.Sweep != sweep {
		l.Warn().Str("payload_sweep", env.Payload.Sweep).Msg("sweep mismatch, using topic")
	}

	sctx, span := tracing.StartSpan(env.Header.Context(msg.Context()), "gc.consume "+topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(tracing.AttrSweep.String(sweep), attribute.String("messaging.message.id", msg.UUID)))

	err = RunSweep(sctx, w.gc, sweep)
	tracing.End(span, err)

	if err != nil {
		l.Error().Err(err).Str("sweep", sweep).Msg("gc sweep failed")
		msg.Nack()

		return
	}

	msg.Ack()
}
