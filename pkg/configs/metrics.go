package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Prometheus 指标配置.
//
// 启用后 /metrics 挂在 Endpoint 指定的独立监听地址上，不经过业务路由的鉴权与限流.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint 调试引擎监听地址，pprof 也挂在这里.
	Endpoint string `mapstructure:"endpoint" rule:"required_if=Enabled true"`
	// RuntimeMetrics 是否注册 Go 运行时与进程收集器.
	RuntimeMetrics bool `mapstructure:"runtime_metrics"`
	// Labels 附加到所有应用指标上的常量标签.
	Labels map[string]string `mapstructure:"labels"`
	// DBStats 是否由 gorm prometheus 插件上报连接池状态.
	DBStats bool `mapstructure:"db_stats"`
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", ":9090")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.labels", map[string]string{"service": "skelvault"})
	v.SetDefault("metrics.db_stats", true)
}
