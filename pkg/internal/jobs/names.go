package jobs

import (
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/queue"
)

// 任务名称常量，便于统一管理与引用.
const (
	JobGCScan    = "gc.scan"
	JobGCCleanup = "gc.cleanup"
)

// sweepTopics 每种回收对应的触发主题.
var sweepTopics = map[string]string{
	service.SweepScan:    queue.TopicGCScanRequested,
	service.SweepCleanup: queue.TopicGCCleanupRequested,
}
