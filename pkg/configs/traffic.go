package configs

import (
	"time"

	"github.com/spf13/viper"
)

// 限流与熔断的默认值.
const (
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitKey     = "user"
	DefaultUploadRPS        = 2.0
	DefaultUploadBurst      = 10
	DefaultLimiterIdleAfter = 10 * time.Minute

	DefaultCBFailureRate = 0.5
	DefaultCBMinRequests = 20
	DefaultCBInterval    = 60 * time.Second
	DefaultCBTimeout     = 30 * time.Second
	DefaultCBHalfOpen    = 5
)

// RateLimitConfig 请求限流.
//
// 普通请求与上传分开计数：上传会写 blob 服务，配额单独收紧.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"gte=0"`
	Burst   int     `mapstructure:"burst" rule:"gte=0"`
	// Key 限流维度：global、ip、user（匿名回退到 ip）或 header:<Name>.
	Key         string        `mapstructure:"key"`
	UploadRPS   float64       `mapstructure:"upload_rps"   rule:"gte=0"`
	UploadBurst int           `mapstructure:"upload_burst" rule:"gte=0"`
	IdleAfter   time.Duration `mapstructure:"idle_after"`
}

// CircuitBreakerConfig 按模块熔断，某个模块持续 5xx 时不拖累其它模块.
type CircuitBreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	FailureRate float64       `mapstructure:"failure_rate" rule:"min=0,max=1"`
	MinRequests uint32        `mapstructure:"min_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// HalfOpenRequests 半开状态放行的请求数.
	HalfOpenRequests uint32 `mapstructure:"half_open_requests"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.upload_rps", DefaultUploadRPS)
	v.SetDefault("rate_limit.upload_burst", DefaultUploadBurst)
	v.SetDefault("rate_limit.idle_after", DefaultLimiterIdleAfter)
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_rate", DefaultCBFailureRate)
	v.SetDefault("circuit_breaker.min_requests", DefaultCBMinRequests)
	v.SetDefault("circuit_breaker.interval", DefaultCBInterval)
	v.SetDefault("circuit_breaker.timeout", DefaultCBTimeout)
	v.SetDefault("circuit_breaker.half_open_requests", DefaultCBHalfOpen)
}
