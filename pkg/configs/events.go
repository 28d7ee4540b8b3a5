package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）.
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	Entity  EntityEventsConfig `mapstructure:"entity"`
	Blob    BlobEventsConfig   `mapstructure:"blob"`
}

// EntityEventsConfig 实体生命周期事件开关.
type EntityEventsConfig struct {
	Added   bool `mapstructure:"added"`
	Edited  bool `mapstructure:"edited"`
	Viewed  bool `mapstructure:"viewed"`
	Deleted bool `mapstructure:"deleted"`
}

// BlobEventsConfig blob 生命周期事件开关.
type BlobEventsConfig struct {
	Uploaded bool `mapstructure:"uploaded"`
	Staged   bool `mapstructure:"staged"`
	Deleted  bool `mapstructure:"deleted"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.entity.added", true)
	v.SetDefault("events.entity.edited", true)
	v.SetDefault("events.entity.deleted", true)
	// 查看事件量可能很大，默认关闭
	v.SetDefault("events.entity.viewed", false)

	v.SetDefault("events.blob.uploaded", true)
	v.SetDefault("events.blob.staged", false)
	v.SetDefault("events.blob.deleted", true)
}
