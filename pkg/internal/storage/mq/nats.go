package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/skelvault/pkg/configs"
)

const natsDrainTimeout = 10 * time.Second

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// natsOptions 连接、重连与认证选项，JWT 优先于用户名密码.
func natsOptions(cfg configs.MQNATSConfig, bufferKB int) []nc.Option {
	opts := []nc.Option{
		nc.Name(cfg.Name),
		nc.MaxReconnects(cfg.MaxReconnects),
		nc.RetryOnFailedConnect(true),
		nc.DrainTimeout(natsDrainTimeout),
	}

	if cfg.ReconnectWait > 0 {
		opts = append(opts, nc.ReconnectWait(cfg.ReconnectWait))
	}

	if cfg.PingInterval > 0 {
		opts = append(opts, nc.PingInterval(cfg.PingInterval))
	}

	if bufferKB > 0 {
		opts = append(opts, nc.ReconnectBufSize(bufferKB*1024))
	}

	switch {
	case cfg.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.JWT, cfg.NKeySeed))
	case cfg.User != "":
		opts = append(opts, nc.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

func jetStreamConfig(cfg configs.MQNATSConfig) nats.JetStreamConfig {
	if !cfg.JetStream {
		return nats.JetStreamConfig{Disabled: true}
	}

	return nats.JetStreamConfig{
		AutoProvision: cfg.AutoProvision,
		TrackMsgId:    cfg.TrackMsgID,
		AckAsync:      cfg.AckAsync,
		DurablePrefix: cfg.DurablePrefix,
	}
}

// natsFactory 建立 NATS 发布与订阅端.
//
// 设置了 QueueGroup 时多个实例共享订阅，一次回收触发只由一个实例执行.
func natsFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error,
) {
	n := cfg.NATS
	url := strings.Join(n.URLs, ",")
	opts := natsOptions(n, cfg.BufferSize)
	js := jetStreamConfig(n)
	marshaler := &nats.JSONMarshaler{}

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		JetStream:   js,
		Marshaler:   marshaler,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              url,
		NatsOptions:      opts,
		JetStream:        js,
		Unmarshaler:      marshaler,
		QueueGroupPrefix: n.QueueGroup,
		AckWaitTimeout:   n.AckWait,
		SubscribersCount: n.Subscribers,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, err
	}

	logger.Info("nats pub/sub ready", watermill.LogFields{
		"url":         url,
		"jetstream":   n.JetStream,
		"queue_group": n.QueueGroup,
	})

	return pub, sub, nil
}
