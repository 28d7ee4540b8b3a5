package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeNATS      MQType = "nats"
	MQTypeRedis     MQType = "redis"
	MQTypeGoChannel MQType = "gochannel" // 进程内，单实例部署与测试使用
)

// MQ 默认值.
const (
	DefaultMQBufferSize     = 1024
	DefaultNATSURL          = "nats://localhost:4222"
	DefaultNATSQueueGroup   = "skelvault"
	DefaultNATSAckWait      = 30 * time.Second
	DefaultNATSReconnects   = 5
	DefaultNATSReconnWait   = 2 * time.Second
	DefaultNATSPingInterval = 20 * time.Second
)

// MQConfig 消息队列配置，承载 blob 回收触发与领域事件.
type MQConfig struct {
	Type MQType `mapstructure:"type" rule:"oneof=nats redis gochannel"`
	// BufferSize gochannel 的输出缓冲，以及 nats 断线期间的发送缓冲（KB）.
	BufferSize int `mapstructure:"buffer_size" rule:"min=0"`
	// Metrics 为 true 且全局指标启用时，发布与订阅的计数并入 /metrics.
	Metrics bool          `mapstructure:"metrics"`
	NATS    MQNATSConfig  `mapstructure:"nats"`
	Redis   MQRedisConfig `mapstructure:"redis"`
}

// MQNATSConfig NATS 连接与 JetStream 配置.
type MQNATSConfig struct {
	URLs     []string `mapstructure:"urls"`
	Name     string   `mapstructure:"name"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	JWT      string   `mapstructure:"jwt"`
	NKeySeed string   `mapstructure:"nkey_seed"`

	MaxReconnects int           `mapstructure:"max_reconnects" rule:"min=-1"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`

	JetStream     bool   `mapstructure:"jetstream"`
	AutoProvision bool   `mapstructure:"auto_provision"`
	TrackMsgID    bool   `mapstructure:"track_msg_id"`
	AckAsync      bool   `mapstructure:"ack_async"`
	DurablePrefix string `mapstructure:"durable_prefix"`

	// QueueGroup 多副本共用的队列组，每条回收触发只被一个实例处理；为空时每个实例都会收到.
	QueueGroup  string        `mapstructure:"queue_group"`
	AckWait     time.Duration `mapstructure:"ack_wait"`
	Subscribers int           `mapstructure:"subscribers" rule:"min=0"`
}

// MQRedisConfig Redis pub/sub 配置.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeGoChannel)
	v.SetDefault("mq.buffer_size", DefaultMQBufferSize)
	v.SetDefault("mq.metrics", true)

	v.SetDefault("mq.nats.urls", []string{DefaultNATSURL})
	v.SetDefault("mq.nats.name", "skelvault")
	v.SetDefault("mq.nats.max_reconnects", DefaultNATSReconnects)
	v.SetDefault("mq.nats.reconnect_wait", DefaultNATSReconnWait)
	v.SetDefault("mq.nats.ping_interval", DefaultNATSPingInterval)
	v.SetDefault("mq.nats.jetstream", true)
	v.SetDefault("mq.nats.auto_provision", true)
	v.SetDefault("mq.nats.track_msg_id", true)
	v.SetDefault("mq.nats.ack_async", false)
	v.SetDefault("mq.nats.durable_prefix", "skelvault")
	v.SetDefault("mq.nats.queue_group", DefaultNATSQueueGroup)
	v.SetDefault("mq.nats.ack_wait", DefaultNATSAckWait)
	v.SetDefault("mq.nats.subscribers", 1)

	v.SetDefault("mq.redis.addr", "localhost:6379")
	v.SetDefault("mq.redis.db", 0)
}
