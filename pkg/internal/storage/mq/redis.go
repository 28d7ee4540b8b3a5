package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/skelvault/pkg/configs"
)

// redisEnvelope redis pub/sub 只传字符串，消息 UUID 与 metadata 随负载一起编码.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher Redis Publisher 实现.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Subscriber 实现，每次 Subscribe 建立独立的 PubSub.
type RedisSubscriber struct {
	client  *redis.Client
	logger  watermill.LoggerAdapter
	buffer  int
	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建 Redis Publisher & Subscriber.
func redisFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	pubClient := redis.NewClient(opts)
	if err := pubClient.Ping(ctx).Err(); err != nil {
		_ = pubClient.Close()

		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = configs.DefaultMQBufferSize
	}

	sub := &RedisSubscriber{
		client:  redis.NewClient(opts),
		logger:  logger,
		buffer:  buffer,
		closeCh: make(chan struct{}),
	}

	return &RedisPublisher{client: pubClient}, sub, nil
}

// Publish 实现 Publisher 接口.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return fmt.Errorf("encode message %s: %w", msg.UUID, err)
		}

		ctx := msg.Context()
		if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
	}

	return nil
}

// Close 实现 Publisher 接口.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Subscribe 实现 Subscriber 接口.
// pub/sub 没有重投机制，Nack 的消息会在本地重新投递一次.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("redis subscriber closed")
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()

		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.subs = append(s.subs, ps)

	out := make(chan *message.Message, s.buffer)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}

				msg, err := decodeRedisMessage(raw.Payload)
				if err != nil {
					s.logger.Error("drop undecodable message", err, watermill.LogFields{"topic": topic})

					continue
				}

				if !s.deliver(ctx, out, msg) {
					return
				}
			}
		}
	}()

	return out, nil
}

// deliver 投递并等待 Ack/Nack，Nack 时重投一次.
func (s *RedisSubscriber) deliver(ctx context.Context, out chan<- *message.Message, msg *message.Message) bool {
	for attempt := 0; attempt < 2; attempt++ {
		m := msg.Copy()
		m.SetContext(ctx)

		select {
		case out <- m:
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}

		select {
		case <-m.Acked():
			return true
		case <-m.Nacked():
			continue
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}

	return true
}

func decodeRedisMessage(payload string) (*message.Message, error) {
	var env redisEnvelope
	if err := sonic.UnmarshalString(payload, &env); err != nil {
		return nil, err
	}

	if env.UUID == "" {
		env.UUID = watermill.NewUUID()
	}

	msg := message.NewMessage(env.UUID, env.Payload)
	for k, v := range env.Metadata {
		msg.Metadata.Set(k, v)
	}

	return msg, nil
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error
	for _, ps := range s.subs {
		errs = append(errs, ps.Close())
	}

	s.mu.Unlock()

	s.wg.Wait()

	errs = append(errs, s.client.Close())

	return errors.Join(errs...)
}
