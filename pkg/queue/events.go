package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// Publish 构造信封并发布到 topic.
func Publish[T any](pub message.Publisher, topic string, payload T, opts ...Option) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

// PublishEntityEvent 发布实体事件，topic 为 EntityTopics 之一.
func PublishEntityEvent(pub message.Publisher, topic string, payload EntityEventPayload, opts ...Option) error {
	return Publish(pub, topic, payload, opts...)
}

// PublishBlobUploaded 发布 sv.blob.uploaded 事件.
func PublishBlobUploaded(pub message.Publisher, payload BlobUploadedPayload, opts ...Option) error {
	return Publish(pub, TopicBlobUploaded, payload, opts...)
}

// PublishGCRequested 请求执行扫描或清理，sweep 为主题对应的名称.
func PublishGCRequested(pub message.Publisher, topic string, payload GCRequestedPayload, opts ...Option) error {
	return Publish(pub, topic, payload, opts...)
}

// ParseEntityEvent 解析实体事件.
func ParseEntityEvent(msg *message.Message) (Message[EntityEventPayload], error) {
	return ParseWatermillMessage[EntityEventPayload](msg)
}

// ParseGCRequested 解析清理请求.
func ParseGCRequested(msg *message.Message) (Message[GCRequestedPayload], error) {
	return ParseWatermillMessage[GCRequestedPayload](msg)
}
