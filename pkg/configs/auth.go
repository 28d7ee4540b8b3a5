package configs

import (
	"time"

	"github.com/spf13/viper"
)

// AuthConfig 控制请求身份识别（优先支持 oauth2-proxy 注入的请求头）.
type AuthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`         // 关闭时所有请求视为匿名
	SkipPaths     []string      `mapstructure:"skip_paths"`      // 跳过身份识别的路径前缀（如 /metrics、/api/v1/health）
	DevAllowQuery bool          `mapstructure:"dev_allow_query"` // 开发模式允许用 ?user= 便于本地调试
	Headers       []string      `mapstructure:"headers"`         // 依次尝试的身份请求头
	AutoProvision bool          `mapstructure:"auto_provision"`  // 首次出现的身份自动建档（无任何权限）
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`       // 用户档案缓存时长
	RootUsers     []string      `mapstructure:"root_users"`      // 启动时确保拥有 root 权限的用户
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.dev_allow_query", false)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/api/v1/health",
		"/swagger",
	})
	v.SetDefault("auth.headers", []string{"X-Auth-Request-Email", "X-Forwarded-Email"})
	v.SetDefault("auth.auto_provision", true)
	v.SetDefault("auth.cache_ttl", "1m")
	v.SetDefault("auth.root_users", []string{})
}
