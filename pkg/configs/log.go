package configs

import (
	"github.com/spf13/viper"
)

// 日志默认值.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogOutput     = "stderr"
	DefaultLogFilePath   = "logs/skelvault.log"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 7
	DefaultLogMaxAge     = 28 // 天
)

// LogConfig 日志配置.
//
// 终端输出按 Format 选择人类可读或 JSON；EnableFile 时另写一份 JSON 到轮转文件.
type LogConfig struct {
	Level  string `mapstructure:"level"  rule:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `mapstructure:"format" rule:"oneof=console json"`
	Output string `mapstructure:"output" rule:"oneof=stderr stdout none"`

	EnableFile bool   `mapstructure:"enable_file"`
	FilePath   string `mapstructure:"file_path"    rule:"required_if=EnableFile true"`
	MaxSize    int    `mapstructure:"max_size_mb"  rule:"min=0"`
	MaxBackups int    `mapstructure:"max_backups"  rule:"min=0"`
	MaxAge     int    `mapstructure:"max_age_days" rule:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output", DefaultLogOutput)
	v.SetDefault("log.enable_file", false)
	v.SetDefault("log.file_path", DefaultLogFilePath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.compress", true)
}
