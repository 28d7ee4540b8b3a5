package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort         = 8080      // 监听端口
	DefaultHost         = "0.0.0.0" // 监听地址
	DefaultReloadConfig = true      // 是否启用配置热重载
	DefaultDebug        = false     // 是否启用调试模式
	DefaultTimeout      = 30        // 超时时间，单位秒
	DefaultForceSSL     = true      // 变更类接口要求传输加密
)

type (
	// ServerConfig 服务器配置.
	ServerConfig struct {
		Port         int    `mapstructure:"port"          rule:"min=1,max=65535"`
		Host         string `mapstructure:"host"          rule:"ip"`
		ReloadConfig bool   `mapstructure:"reload_config"`
		Debug        bool   `mapstructure:"debug"`
		Timeout      int    `mapstructure:"timeout"       rule:"min=1,max=300"`
		Pprof        bool   `mapstructure:"pprof"`
		// ForceSSL 为 true 时 add/edit/delete/upload 等接口只接受 TLS 或 X-Forwarded-Proto=https 的请求.
		ForceSSL bool `mapstructure:"force_ssl"`
		// BasePath 模块路由前缀.
		BasePath string     `mapstructure:"base_path" rule:"startswith=/"`
		CORS     CORSConfig `mapstructure:"cors"`
	}

	// CORSConfig 跨域配置，AllowOrigins 为空或包含 * 时允许任意来源且不携带凭据.
	CORSConfig struct {
		AllowOrigins []string      `mapstructure:"allow_origins"`
		MaxAge       time.Duration `mapstructure:"max_age"`
	}
)

// Addr 返回监听地址.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetTimeoutDuration 返回超时时间作为time.Duration.
func (s *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// setDefaults 设置服务器配置的默认值.
func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.reload_config", DefaultReloadConfig)
	v.SetDefault("server.debug", DefaultDebug)
	v.SetDefault("server.timeout", DefaultTimeout)
	v.SetDefault("server.pprof", false)
	v.SetDefault("server.force_ssl", DefaultForceSSL)
	v.SetDefault("server.base_path", "/api/v1")
	v.SetDefault("server.cors.allow_origins", []string{"*"})
	v.SetDefault("server.cors.max_age", 12*time.Hour)
}
