package configs

import (
	"time"

	"github.com/spf13/viper"
)

// 追踪默认值.
const (
	DefaultTracingEndpoint = "http://localhost:4318"
	DefaultBatchTimeout    = 5 * time.Second
	DefaultMaxBatchSize    = 512
	DefaultMaxQueueSize    = 2048
)

// TracingConfig OpenTelemetry 追踪配置.
//
// 未启用时不创建导出器，otel 全局 provider 保持 noop，span 调用没有开销.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"    rule:"required_if=Enabled true"`
	ServiceVersion string  `mapstructure:"service_version"`
	ExporterType   string  `mapstructure:"exporter_type"   rule:"oneof=otlp-http otlp-grpc zipkin"`
	Endpoint       string  `mapstructure:"endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate"     rule:"min=0,max=1"`

	// 批处理导出参数，0 使用 otel 默认值.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxBatchSize int           `mapstructure:"max_batch_size"`
	MaxQueueSize int           `mapstructure:"max_queue_size"`

	// ResourceLabels 附加的资源属性，例如 deployment.environment.
	ResourceLabels map[string]string `mapstructure:"resource_labels"`
}

func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "skelvault")
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter_type", "otlp-http")
	v.SetDefault("tracing.endpoint", DefaultTracingEndpoint)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.batch_timeout", DefaultBatchTimeout)
	v.SetDefault("tracing.max_batch_size", DefaultMaxBatchSize)
	v.SetDefault("tracing.max_queue_size", DefaultMaxQueueSize)
	v.SetDefault("tracing.resource_labels", map[string]string{})
}
