package middleware

import (
	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/skelvault/pkg/context"
	"github.com/yeisme/skelvault/pkg/internal/storage"
	"github.com/yeisme/skelvault/pkg/scheduler"
)

// Inject 把存储管理器与调度器放入请求 context，供健康检查与调度器接口读取.
// 任一参数可为空.
func Inject(manager *storage.Manager, sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxPkg.WithManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctxPkg.WithScheduler(ctx, sched))
		c.Next()
	}
}

// GetScheduler 请求 context 中的调度器，未注入时为 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	return ctxPkg.Scheduler(c.Request.Context())
}
