package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/internal/access"
)

// RequireRight 要求当前用户持有 right，root 用户总是放行.
// 匿名请求返回 401，权限不足返回 403.
func RequireRight(right string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !u.IsRoot() && !u.Has(right) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: missing right " + right})
			return
		}

		c.Next()
	}
}

// RequireRoot 要求当前用户为 root.
func RequireRoot() gin.HandlerFunc {
	return RequireRight(access.Root)
}
