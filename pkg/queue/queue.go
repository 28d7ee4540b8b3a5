// Package queue 定义消息信封、主题与负载，服务实体事件与 blob 垃圾回收触发.
//
// 概览
//   - 采用发布/订阅模型，请求路径与后台清理只通过数据库与消息交互
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - JSON 编解码使用 bytedance/sonic
//
// 消息信封（Envelope）JSON 结构
//
//	{
//	  "header": {
//	    "topic": "sv.entity.added",
//	    "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
//	    "carrier": {"traceparent": "00-4bf9...-00f0...-01"},
//	    "producer": "skelvault",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { ... 取决于具体主题 ... }
//	}
//
// 发布/订阅示例
//
//	msg, _ := queue.NewWatermillMessage(
//	  queue.TopicEntityAdded,
//	  queue.EntityEventPayload{Module: "page", Key: "01h..."},
//	  queue.WithProducer("skelvault"), queue.WithContext(ctx),
//	)
//	_ = client.Publish(ctx, queue.TopicEntityAdded, msg)
//
//	ch, _ := client.Subscribe(ctx, queue.TopicGCScanRequested)
//	for m := range ch {
//	    env, _ := queue.ParseWatermillMessage[queue.GCRequestedPayload](m)
//	    ctx := env.Header.Context(m.Context()) // 延续发布方的链路
//	    m.Ack()
//	}
//
// 注意事项
//  1. occurred_at 为 UTC，RFC3339 格式
//  2. 消息至少投递一次，消费者需保证幂等
//  3. Header.topic 与消息中间件的 Subject/Topic 重复，意在离线可追踪
package queue

import (
	"context"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const PayloadVersionV1 = "v1"

// Option 修改事件头.
type Option func(*EventHeader)

// WithTraceID 设置 TraceID.
func WithTraceID(id string) Option { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) Option { return func(h *EventHeader) { h.Producer = p } }

// WithContext 从 ctx 中的 span 取 TraceID，并按全局 propagator 写入 Carrier.
func WithContext(ctx context.Context) Option {
	return func(h *EventHeader) {
		sc := trace.SpanContextFromContext(ctx)
		if !sc.IsValid() {
			return
		}

		h.TraceID = sc.TraceID().String()

		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)

		if len(carrier) > 0 {
			h.Carrier = carrier
		}
	}
}

// Context 把 Carrier 中的链路信息还原到 ctx，没有时原样返回.
func (h EventHeader) Context(ctx context.Context) context.Context {
	if len(h.Carrier) == 0 {
		return ctx
	}

	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(h.Carrier))
}

// NewEventHeader 创建事件头，OccurredAt 为当前 UTC 时间.
func NewEventHeader(topic string, opts ...Option) EventHeader {
	h := EventHeader{Topic: topic, OccurredAt: time.Now().UTC(), Version: PayloadVersionV1}
	for _, opt := range opts {
		opt(&h)
	}

	return h
}

// Encode 编码信封.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 解码信封.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造 watermill 消息，头部字段同时写入 metadata，便于不解码负载的中间件读取.
func NewWatermillMessage[T any](topic string, payload T, opts ...Option) (*message.Message, error) {
	h := NewEventHeader(topic, opts...)

	data, err := Encode(Message[T]{Header: h, Payload: payload})
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	for k, v := range map[string]string{
		"topic":       topic,
		"trace_id":    h.TraceID,
		"producer":    h.Producer,
		"version":     h.Version,
		"occurred_at": h.OccurredAt.Format(time.RFC3339Nano),
	} {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	for k, v := range h.Carrier {
		msg.Metadata.Set(k, v)
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}
