package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/yeisme/skelvault/docs"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/handle"
	"github.com/yeisme/skelvault/pkg/middleware"
)

// RegisterHealthCheckRoute 注册健康检查:
//
//	GET /health             汇总所有依赖
//	GET /health/:component  db、blob、kv 或 mq
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	g.GET("/health", handle.Health)
	g.GET("/health/:component", handle.HealthComponent)
}

// RegisterSchedulerRoutes 注册调度器路由，仅 root 可用.
func RegisterSchedulerRoutes(api *gin.RouterGroup) {
	g := api.Group("/scheduler", middleware.RequireRoot())

	g.GET("/jobs", handle.SchedulerJobs)
	g.POST("/jobs/stop", handle.SchedulerStopJobs)
	g.DELETE("/jobs/:id", handle.SchedulerRemoveJob)
	g.POST("/run/:name", handle.SchedulerRunJob)
	g.GET("/queue/waiting", handle.SchedulerQueueWaiting)
}

// RegisterSwaggerRoute 调试模式下注册 Swagger 文档.
func RegisterSwaggerRoute(r *gin.Engine, cfg configs.ServerConfig) {
	if !cfg.Debug {
		return
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	docs.SwaggerInfo.BasePath = "/"
	docs.SwaggerInfo.Version = configs.AppVersion

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
