package queue

// 主题命名规范：sv.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：entity(模块实体)、blob(二进制对象)、gc(垃圾回收)

const (
	// 实体领域.
	TopicEntityAdded   = "sv.entity.added"   // 条目已创建
	TopicEntityEdited  = "sv.entity.edited"  // 条目已修改（含排序索引）
	TopicEntityViewed  = "sv.entity.viewed"  // 条目被查看
	TopicEntityDeleted = "sv.entity.deleted" // 条目已删除

	// blob 领域.
	TopicBlobUploaded = "sv.blob.uploaded" // 上传完成并写入文件条目
	TopicBlobStaged   = "sv.blob.staged"   // blob 已标记待删除
	TopicBlobDeleted  = "sv.blob.deleted"  // blob 已从存储中移除

	// 垃圾回收触发.
	TopicGCScanRequested    = "sv.gc.scan.requested"    // 扫描失效引用
	TopicGCCleanupRequested = "sv.gc.cleanup.requested" // 处理删除标记
)

// 主题分组，用于批量操作或权限控制.
var (
	EntityTopics = []string{
		TopicEntityAdded, TopicEntityEdited, TopicEntityViewed, TopicEntityDeleted,
	}

	BlobTopics = []string{
		TopicBlobUploaded, TopicBlobStaged, TopicBlobDeleted,
	}

	GCTopics = []string{
		TopicGCScanRequested, TopicGCCleanupRequested,
	}
)

// AllTopics 返回全部主题.
func AllTopics() []string {
	out := make([]string, 0, len(EntityTopics)+len(BlobTopics)+len(GCTopics))
	out = append(out, EntityTopics...)
	out = append(out, BlobTopics...)

	return append(out, GCTopics...)
}
