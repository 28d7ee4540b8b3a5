// Package mq 提供基于 Watermill 库的统一消息队列操作接口.
// 支持发布/订阅模式，并通过工厂模式抽象不同的 MQ 实现.
//
// 支持的 MQ 类型：
//   - NATS（支持 JetStream）
//   - Redis（pub/sub）
//   - gochannel（进程内，默认与测试使用）
//
// 使用示例：
//
//	client, err := mq.New(ctx, &configs.GetConfig().MQ)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), []byte("hello world"))
//	err = client.Publish(ctx, "topic", msg)
//
//	ch, err := client.Subscribe(ctx, "topic")
//	for msg := range ch {
//		fmt.Println(string(msg.Payload))
//		msg.Ack()
//	}
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/skelvault/pkg/configs"
	nlog "github.com/yeisme/skelvault/pkg/log"
	appmetrics "github.com/yeisme/skelvault/pkg/metrics"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型.
func GetRegisteredMQTypes() []configs.MQType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	mqType     configs.MQType
	publisher  message.Publisher
	subscriber message.Subscriber
	closeOnce  sync.Once
}

// Type 返回 MQ 类型.
func (c *Client) Type() configs.MQType {
	return c.mqType
}

// Publisher 返回底层 watermill Publisher.
func (c *Client) Publisher() message.Publisher {
	return c.publisher
}

// Publish 便捷发布.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 便捷订阅，ctx 结束时通道关闭.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, errors.New("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Close 关闭资源，可重复调用.
func (c *Client) Close() error {
	var errs []error

	c.closeOnce.Do(func() {
		if c.publisher != nil {
			errs = append(errs, c.publisher.Close())
		}

		if c.subscriber != nil && any(c.subscriber) != any(c.publisher) {
			errs = append(errs, c.subscriber.Close())
		}
	})

	return errors.Join(errs...)
}

// New 按配置初始化消息队列.
func New(ctx context.Context, cfg *configs.MQConfig) (*Client, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Type]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLogger(nlog.Logger())

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	client := &Client{mqType: cfg.Type, publisher: pub, subscriber: sub}

	if reg := appmetrics.Registerer(); reg != nil && cfg.Metrics {
		if err := client.decorateMetrics(reg); err != nil {
			_ = client.Close()

			return nil, err
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("MQ 管理器已初始化")

	return client, nil
}

// decorateMetrics 为 publisher / subscriber 装饰 prometheus 指标，指标登记到应用的 /metrics.
func (c *Client) decorateMetrics(reg prometheus.Registerer) error {
	var err error

	builder := metrics.NewPrometheusMetricsBuilder(reg, "skelvault", "mq")

	if c.publisher, err = builder.DecoratePublisher(c.publisher); err != nil {
		return fmt.Errorf("decorate publisher with metrics: %w", err)
	}

	if c.subscriber, err = builder.DecorateSubscriber(c.subscriber); err != nil {
		return fmt.Errorf("decorate subscriber with metrics: %w", err)
	}

	return nil
}
