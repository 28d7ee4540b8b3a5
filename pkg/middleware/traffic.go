package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/tracing"
)

const moduleKey = "module"

// Module 在路由组上标记所属模块，供日志、追踪与熔断使用.
func Module(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(moduleKey, name)
		trace.SpanFromContext(c.Request.Context()).SetAttributes(tracing.AttrModule.String(name))
		c.Next()
	}
}

// GetModule 当前请求所属的模块，非模块路由为空.
func GetModule(c *gin.Context) string {
	return c.GetString(moduleKey)
}

// limiterSet 按 key 维护令牌桶，闲置超过 idle 的条目在下次清理时移除.
type limiterSet struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	entries  map[string]*limiterEntry
	lastScan time.Time
}

type limiterEntry struct {
	*rate.Limiter
	seen time.Time
}

func newLimiterSet(rps float64, burst int, idle time.Duration) *limiterSet {
	if idle <= 0 {
		idle = configs.DefaultLimiterIdleAfter
	}

	return &limiterSet{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		entries: map[string]*limiterEntry{},
	}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastScan) > s.idle {
		for k, e := range s.entries {
			if now.Sub(e.seen) > s.idle {
				delete(s.entries, k)
			}
		}

		s.lastScan = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{Limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}

	e.seen = now

	return e.AllowN(now, 1)
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// RateLimitMiddleware 全局请求限流，维度见 RateLimitConfig.Key.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return limitBy(newLimiterSet(cfg.RPS, cfg.Burst, cfg.IdleAfter), strings.ToLower(strings.TrimSpace(cfg.Key)))
}

// UploadRateLimit 上传接口的独立配额，总是按用户（匿名按 ip）计数.
func UploadRateLimit(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.UploadRPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return limitBy(newLimiterSet(cfg.UploadRPS, cfg.UploadBurst, cfg.IdleAfter), "user")
}

func limitBy(set *limiterSet, mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !set.allow(limitKey(c, mode), time.Now()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded", "message": "request too frequent, please try again later"})

			return
		}

		c.Next()
	}
}

func limitKey(c *gin.Context, mode string) string {
	switch {
	case mode == "global" || mode == "":
		return "global"
	case strings.HasPrefix(mode, "header:"):
		if v := c.GetHeader(strings.TrimPrefix(mode, "header:")); v != "" {
			return "h:" + v
		}
	case mode == "user":
		if u := CurrentUser(c); u != nil {
			return "u:" + u.Key
		}
	}

	return "ip:" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	return c.Request.RemoteAddr
}

// errServerStatus 让 gobreaker 把 5xx 响应计为失败.
var errServerStatus = errors.New("server error status")

// Breakers 每个模块一个熔断器，惰性创建.
type Breakers struct {
	cfg configs.CircuitBreakerConfig

	mu sync.Mutex
	m  map[string]*gobreaker.CircuitBreaker
}

// NewBreakers 创建熔断器集合，未启用时返回 nil，nil 集合的中间件直接放行.
func NewBreakers(cfg configs.CircuitBreakerConfig) *Breakers {
	if !cfg.Enabled {
		return nil
	}

	return &Breakers{cfg: cfg, m: map[string]*gobreaker.CircuitBreaker{}}
}

// For 返回模块的熔断器.
func (b *Breakers) For(module string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.m[module]; ok {
		return cb
	}

	cfg := b.cfg
	l := log.Component("breaker")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        module,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("module", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	b.m[module] = cb

	return cb
}

// Middleware 以模块熔断器包裹后续处理器，5xx 计为失败，熔断打开时返回 503.
func (b *Breakers) Middleware(module string) gin.HandlerFunc {
	if b == nil {
		return func(c *gin.Context) { c.Next() }
	}

	cb := b.For(module)

	return func(c *gin.Context) {
		_, err := cb.Execute(func() (any, error) {
			c.Next()

			if c.Writer.Status() >= http.StatusInternalServerError {
				return nil, errServerStatus
			}

			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "service unavailable", "message": module + " is temporarily unavailable"})
		}
	}
}
