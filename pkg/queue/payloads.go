package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
	// Carrier W3C trace context，消费方据此延续链路.
	Carrier map[string]string `json:"carrier,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 实体领域 --------------------------

// EntityEventPayload 条目状态变化.
type EntityEventPayload struct {
	Module string `json:"module"`
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	User   string `json:"user,omitempty"`
}

// -------------------------- blob 领域 --------------------------

// BlobRef 标识 blob 服务中的对象.
type BlobRef struct {
	Key         string `json:"key"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// BlobUploadedPayload 上传写入文件条目.
type BlobUploadedPayload struct {
	Blob    BlobRef `json:"blob"`
	LeafKey string  `json:"leaf_key"`
	Node    string  `json:"node,omitempty"`
	Weak    bool    `json:"weak"`
	User    string  `json:"user,omitempty"`
}

// BlobStagedPayload blob 被标记待删除.
type BlobStagedPayload struct {
	Keys   []string `json:"keys"`
	Reason string   `json:"reason,omitempty"`
}

// BlobDeletedPayload blob 被物理删除，LeafKeys 为同时移除的文件条目.
type BlobDeletedPayload struct {
	Key      string   `json:"key"`
	LeafKeys []string `json:"leaf_keys,omitempty"`
}

// -------------------------- 垃圾回收 --------------------------

// GCRequestedPayload 请求执行一次清理.
type GCRequestedPayload struct {
	Sweep       string `json:"sweep"`
	RequestedBy string `json:"requested_by,omitempty"`
}
