// Package api 把模块、文件、系统、健康检查、调度器与文档路由挂载到 gin 引擎.
package api

import (
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/handle"
	"github.com/yeisme/skelvault/pkg/internal/router"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/middleware"
)

// Mount 在 cfg.Server.BasePath 下注册全部业务路由，cache 可为空.
//
//	<base>/<module>/...     列表模块
//	<base>/file/...         文件模块
//	<base>/skey, /access/rights, /user/me
//	<base>/health/*         健康检查
//	<base>/scheduler/*      调度器（root）
//	/swagger/*any           调试模式下的文档
func Mount(e *gin.Engine, reg *service.Registry, cfg *configs.AppConfig, cache *appcache.Cache) *gin.RouterGroup {
	g := e.Group(cfg.Server.BasePath)

	router.Register(g, handle.New(reg, cfg), router.Options{
		ForceSSL:  cfg.Server.ForceSSL,
		Cache:     cache,
		Breakers:  middleware.NewBreakers(cfg.CircuitBreaker),
		RateLimit: cfg.RateLimit,
	})
	router.RegisterHealthCheckRoute(g)
	router.RegisterSchedulerRoutes(g)
	router.RegisterSwaggerRoute(e, cfg.Server)

	return g
}
