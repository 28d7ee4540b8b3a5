package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/rule"
)

// UserResolver 按身份名称解析用户.
type UserResolver interface {
	Resolve(ctx context.Context, name string, provision bool) (*access.User, error)
}

// AuthMiddleware 基于 oauth2-proxy 注入的请求头识别用户并放入 request context.
//   - 按 conf.Headers 顺序取第一个非空身份，身份必须是 email
//   - 未携带身份的请求按匿名处理，由模块守卫决定是否拒绝
//   - 未知身份在 auto_provision 打开时建档，否则按匿名处理
//   - 开发模式可允许 query user 兜底（由 configs.auth.dev_allow_query 控制）
//   - cache 非空时按 conf.CacheTTL 缓存解析结果.
func AuthMiddleware(conf configs.AuthConfig, users UserResolver, cache *appcache.Cache) gin.HandlerFunc {
	var group singleflight.Group

	resolve := func(ctx context.Context, name string) (*access.User, error) {
		v, err, _ := group.Do(name, func() (any, error) {
			if cache == nil || conf.CacheTTL <= 0 {
				return users.Resolve(ctx, name, conf.AutoProvision)
			}

			return appcache.GetOrSet(ctx, cache, appcache.UserKey(name), func() (*access.User, error) {
				return users.Resolve(ctx, name, conf.AutoProvision)
			}, conf.CacheTTL)
		})
		if err != nil {
			return nil, err
		}

		return v.(*access.User), nil
	}

	return func(c *gin.Context) {
		if !conf.Enabled || isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		identity := identityOf(c, conf)
		if identity == "" {
			c.Next()
			return
		}

		if err := rule.ValidateVar(identity, "required,email"); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid identity"})
			return
		}

		u, err := resolve(c.Request.Context(), identity)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.Next()
				return
			}

			log.Ctx(c.Request.Context()).Error().Err(err).Str("user", identity).Msg("resolve user failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "resolve user failed"})

			return
		}

		c.Request = c.Request.WithContext(access.WithUser(c.Request.Context(), u))
		c.Next()
	}
}

// identityOf 取请求中的身份名称.
func identityOf(c *gin.Context, conf configs.AuthConfig) string {
	for _, h := range conf.Headers {
		if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
			return v
		}
	}

	if conf.DevAllowQuery && gin.Mode() != gin.ReleaseMode {
		return strings.TrimSpace(c.Query("user"))
	}

	return ""
}

// CurrentUser 返回当前请求的用户，匿名时为 nil.
func CurrentUser(c *gin.Context) *access.User {
	return access.UserFrom(c.Request.Context())
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
