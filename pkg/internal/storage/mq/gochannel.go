package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/skelvault/pkg/configs"
)

func init() {
	RegisterFactory(configs.MQTypeGoChannel, goChannelFactory)
}

// goChannelFactory 进程内 pub/sub，同一个实例同时作为 Publisher 与 Subscriber.
func goChannelFactory(
	_ context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	buffer := int64(configs.DefaultMQBufferSize)
	if cfg != nil && cfg.BufferSize > 0 {
		buffer = int64(cfg.BufferSize)
	}

	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, logger)

	return ps, ps, nil
}

// NewInProcess 创建进程内客户端，测试使用.
func NewInProcess() *Client {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: configs.DefaultMQBufferSize}, watermill.NopLogger{})

	return &Client{mqType: configs.MQTypeGoChannel, publisher: ps, subscriber: ps}
}
