package middleware

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/configs"
)

// CORSMiddleware 跨域中间件.
//
// 暴露 ETag 与 X-Cache 便于前端做条件请求，暴露 Content-Disposition 以读取下载文件名.
// 调试模式下放开全部来源.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", RequestIDHeader, bypassHeader)
	config.ExposeHeaders = []string{"ETag", "X-Cache", "Content-Disposition", RequestIDHeader}
	config.AllowFiles = true

	if cfg.CORS.MaxAge > 0 {
		config.MaxAge = cfg.CORS.MaxAge
	}

	origins := cfg.CORS.AllowOrigins
	if cfg.Debug || len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}

	return cors.New(config)
}
