package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeisme/skelvault/pkg/middleware"
	"github.com/yeisme/skelvault/pkg/scheduler"
)

// withScheduler 调度器未注入时统一返回 503.
func withScheduler(fn func(c *gin.Context, sched *scheduler.Scheduler)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sched := middleware.GetScheduler(c)
		if sched == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
			return
		}

		fn(c, sched)
	}
}

// SchedulerJobs 返回所有任务，包括 blob 回收的 scan 与 cleanup.
//
//	@Summary	定时任务列表
//	@Tags		调度器
//	@Produce	json
//	@Success	200	{object}	map[string][]scheduler.JobInfo
//	@Failure	503	{object}	map[string]string	"调度器未运行"
//	@Router		/api/v1/scheduler/jobs [get]
var SchedulerJobs = withScheduler(func(c *gin.Context, sched *scheduler.Scheduler) {
	c.JSON(http.StatusOK, gin.H{"jobs": sched.Jobs()})
})

// SchedulerStopJobs 停止所有任务.
var SchedulerStopJobs = withScheduler(func(c *gin.Context, sched *scheduler.Scheduler) {
	if err := sched.StopJobs(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "jobs stopped"})
})

// SchedulerRemoveJob 根据 id 删除任务.
var SchedulerRemoveJob = withScheduler(func(c *gin.Context, sched *scheduler.Scheduler) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := sched.RemoveByID(id); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrJobNotFound) {
			code = http.StatusNotFound
		}

		c.JSON(code, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job removed"})
})

// SchedulerRunJob 立即执行一次指定任务，例如手动触发 blob 回收.
//
//	@Summary	立即执行任务
//	@Tags		调度器
//	@Produce	json
//	@Param		name	path		string	true	"任务名称"
//	@Success	200		{object}	map[string]string
//	@Failure	404		{object}	map[string]string	"任务不存在"
//	@Router		/api/v1/scheduler/run/{name} [post]
var SchedulerRunJob = withScheduler(func(c *gin.Context, sched *scheduler.Scheduler) {
	name := c.Param("name")

	if err := sched.RunNow(name); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrJobNotFound) {
			code = http.StatusNotFound
		}

		c.JSON(code, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job triggered", "job": name})
})

// SchedulerQueueWaiting 返回队列中等待的任务数.
var SchedulerQueueWaiting = withScheduler(func(c *gin.Context, sched *scheduler.Scheduler) {
	c.JSON(http.StatusOK, gin.H{"waiting": sched.JobsWaitingInQueue()})
})
