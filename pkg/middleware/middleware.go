// Package middleware 提供 gin 中间件：身份、传输要求、缓存、限流、熔断、日志、指标与追踪.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求 id 的请求/响应头.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID 沿用客户端的请求 id，缺省时生成.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 当前请求的 id.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// IsSecure 请求是否经由 TLS 到达，包括前置代理终止 TLS 的情况.
func IsSecure(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}

	return strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}

// ForceSSL enabled 时拒绝非加密请求.
func ForceSSL(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enabled && !IsSecure(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "insecure connection"})
			return
		}

		c.Next()
	}
}

// ForcePost 只接受 POST.
func ForcePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed", "message": "use POST"})
			return
		}

		c.Next()
	}
}
