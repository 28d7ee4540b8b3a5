package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/skelvault/pkg/log"
)

// quietPaths 这些路由只在出错时记录.
var quietPaths = []string{"/health", "/metrics"}

// GinLoggerMiddleware 使用 zerolog 记录请求日志，4xx 为 warn，5xx 为 error.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()

		level := zerolog.InfoLevel

		switch {
		case status >= http.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zerolog.WarnLevel
		case quiet(route):
			level = zerolog.DebugLevel
		}

		event := log.Ctx(c.Request.Context()).WithLevel(level).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size())

		if route != "" {
			event = event.Str("route", route)
		}

		if m := GetModule(c); m != "" {
			event = event.Str("module", m)
		}

		if id := GetRequestID(c); id != "" {
			event = event.Str("request_id", id)
		}

		if u := CurrentUser(c); u != nil {
			event = event.Str("user", u.Name)
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}

func quiet(route string) bool {
	for _, p := range quietPaths {
		if strings.HasSuffix(route, p) {
			return true
		}
	}

	return false
}
