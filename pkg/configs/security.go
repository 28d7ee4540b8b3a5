package configs

import (
	"time"

	"github.com/spf13/viper"
)

// SecurityConfig skey（一次性防重放令牌）配置.
type SecurityConfig struct {
	SKeyTTL    time.Duration `mapstructure:"skey_ttl"    rule:"min=1s"`
	SessionTTL time.Duration `mapstructure:"session_ttl" rule:"min=1s"`
	// SessionHeader 会话标识请求头，缺省时以用户 key 作为会话.
	SessionHeader string `mapstructure:"session_header"`
}

func (c *SecurityConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("security.skey_ttl", "1h")
	v.SetDefault("security.session_ttl", "24h")
	v.SetDefault("security.session_header", "X-Session-ID")
}
