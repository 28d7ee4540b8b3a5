package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultGCScanInterval    = 60 * time.Second
	DefaultGCCleanupInterval = 240 * time.Second
	DefaultGCGraceSweeps     = 2
)

// GCConfig blob 延迟回收配置.
type GCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ScanInterval    time.Duration `mapstructure:"scan_interval"    rule:"min=1s"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" rule:"min=1s,gtfield=ScanInterval"`
	// GraceSweeps 标记被清理前需要经过的清理轮次.
	GraceSweeps int `mapstructure:"grace_sweeps" rule:"min=0"`
	// BatchSize 单次扫描处理的最大记录数.
	BatchSize int `mapstructure:"batch_size" rule:"min=1"`
}

func (c *GCConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("gc.enabled", true)
	v.SetDefault("gc.scan_interval", DefaultGCScanInterval)
	v.SetDefault("gc.cleanup_interval", DefaultGCCleanupInterval)
	v.SetDefault("gc.grace_sweeps", DefaultGCGraceSweeps)
	v.SetDefault("gc.batch_size", 500)
}
