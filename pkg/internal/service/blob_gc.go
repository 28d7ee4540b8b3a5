package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	nlog "github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/metrics"
	"github.com/yeisme/skelvault/pkg/queue"
	"github.com/yeisme/skelvault/pkg/tracing"
)

// GC 轮次名称.
const (
	SweepScan    = "scan"
	SweepCleanup = "cleanup"
)

// ScanStats 一次 scan 的结果.
type ScanStats struct {
	Locks  int `json:"locks"`
	Staged int `json:"staged"`
	Errors int `json:"errors"`
}

// CleanupStats 一次 cleanup 的结果.
type CleanupStats struct {
	Markers  int `json:"markers"`
	Released int `json:"released"`
	Deferred int `json:"deferred"`
	Deleted  int `json:"deleted"`
	Errors   int `json:"errors"`
}

// BlobGC 延迟回收不再被引用的 blob.
//
// scan 把失去全部引用的 blob key 写入删除标记；cleanup 在标记经过 grace 轮后
// 删除 blob 和引用它的文件条目。期间重新被引用的 key 会被放弃回收.
type BlobGC struct {
	store    *EntityStore
	blobs    blob.Store
	leafKind string
	grace    int
	batch    int

	pub    message.Publisher
	events configs.EventsConfig
}

// NewBlobGC 创建回收器，leafKind 为持有 dlkey 的文件条目 kind.
func NewBlobGC(store *EntityStore, blobs blob.Store, leafKind string, cfg configs.GCConfig) *BlobGC {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}

	return &BlobGC{
		store:    store,
		blobs:    blobs,
		leafKind: leafKind,
		grace:    cfg.GraceSweeps,
		batch:    batch,
	}
}

// WithPublisher 发布 staged / deleted 事件.
func (g *BlobGC) WithPublisher(pub message.Publisher, events configs.EventsConfig) *BlobGC {
	g.pub = pub
	g.events = events

	return g
}

// Stage 为 keys 写入删除标记，已有标记的 key 保持原计数.
func (g *BlobGC) Stage(ctx context.Context, db *gorm.DB, reason string, keys ...string) error {
	keys = slices.Compact(slices.Sorted(slices.Values(keys)))
	keys = slices.DeleteFunc(keys, func(k string) bool { return k == "" })

	if len(keys) == 0 {
		return nil
	}

	for _, k := range keys {
		marker := model.DeletedFile{DLKey: &k}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
			return fmt.Errorf("stage blob %s: %w", k, err)
		}
	}

	metrics.GCBlobs.WithLabelValues("staged").Add(float64(len(keys)))

	if g.pub != nil && g.events.Enabled && g.events.Blob.Staged {
		payload := queue.BlobStagedPayload{Keys: keys, Reason: reason}
		if err := queue.Publish(g.pub, queue.TopicBlobStaged, payload, publishOpts(ctx)...); err != nil {
			nlog.Ctx(ctx).Warn().Err(err).Msg("publish blob staged failed")
		}
	}

	return nil
}

// activelyReferenced key 是否仍被某个锁的有效引用持有.
func (g *BlobGC) activelyReferenced(ctx context.Context, key string) (bool, error) {
	var n int64

	err := g.store.DB().WithContext(ctx).Model(&model.BlobReference{}).
		Where("blob_key = ? AND active = ?", key, true).
		Count(&n).Error

	return n > 0, err
}

// Scan 处理带失效引用的锁记录.
func (g *BlobGC) Scan(ctx context.Context) (ScanStats, error) {
	ctx, span := tracing.StartModuleSpan(ctx, "gc", SweepScan)
	stats, err := g.scan(ctx)
	tracing.End(span, err)

	return stats, err
}

func (g *BlobGC) scan(ctx context.Context) (ScanStats, error) {
	var (
		stats ScanStats
		ids   []string
	)

	l := nlog.Ctx(ctx).With().Str("sweep", SweepScan).Logger()

	err := g.store.DB().WithContext(ctx).Model(&model.BlobLock{}).
		Where("has_stale_references = ?", true).
		Order("id").Limit(g.batch).
		Pluck("id", &ids).Error
	if err != nil {
		metrics.GCSweeps.WithLabelValues(SweepScan, "error").Inc()

		return stats, fmt.Errorf("list stale locks: %w", err)
	}

	for _, id := range ids {
		stale, err := g.clearStale(ctx, id)
		if err != nil {
			stats.Errors++

			l.Error().Err(err).Str("lock", id).Msg("clear stale references failed")

			continue
		}

		stats.Locks++

		for _, key := range stale {
			active, err := g.activelyReferenced(ctx, key)
			if err != nil {
				stats.Errors++

				l.Error().Err(err).Str("blob", key).Msg("reference check failed")

				continue
			}

			if active {
				continue
			}

			if err := g.Stage(ctx, g.store.DB(), "unreferenced", key); err != nil {
				stats.Errors++

				l.Error().Err(err).Str("blob", key).Msg("stage blob failed")

				continue
			}

			stats.Staged++
		}
	}

	metrics.GCSweeps.WithLabelValues(SweepScan, "ok").Inc()
	l.Debug().Int("locks", stats.Locks).Int("staged", stats.Staged).Int("errors", stats.Errors).Msg("gc scan done")

	return stats, nil
}

// clearStale 在事务中读取并清除锁的失效引用，整体失效的锁一并删除.
func (g *BlobGC) clearStale(ctx context.Context, id string) ([]string, error) {
	var stale []string

	err := g.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lock model.BlobLock
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&lock).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}

			return err
		}

		if err := tx.Model(&model.BlobReference{}).
			Where("lock_id = ? AND active = ?", id, false).
			Distinct().Pluck("blob_key", &stale).Error; err != nil {
			return err
		}

		if lock.IsStale {
			if err := tx.Where("lock_id = ?", id).Delete(&model.BlobReference{}).Error; err != nil {
				return err
			}

			return tx.Delete(&lock).Error
		}

		if err := tx.Where("lock_id = ? AND active = ?", id, false).Delete(&model.BlobReference{}).Error; err != nil {
			return err
		}

		return tx.Model(&lock).Update("has_stale_references", false).Error
	})

	return stale, err
}

// Cleanup 处理一批删除标记.
func (g *BlobGC) Cleanup(ctx context.Context) (CleanupStats, error) {
	ctx, span := tracing.StartModuleSpan(ctx, "gc", SweepCleanup)
	stats, err := g.cleanup(ctx)
	tracing.End(span, err)

	return stats, err
}

func (g *BlobGC) cleanup(ctx context.Context) (CleanupStats, error) {
	var (
		stats   CleanupStats
		markers []model.DeletedFile
	)

	l := nlog.Ctx(ctx).With().Str("sweep", SweepCleanup).Logger()

	if err := g.store.DB().WithContext(ctx).Order("id").Limit(g.batch).Find(&markers).Error; err != nil {
		metrics.GCSweeps.WithLabelValues(SweepCleanup, "error").Inc()

		return stats, fmt.Errorf("list deletion markers: %w", err)
	}

	for i := range markers {
		stats.Markers++

		if err := g.cleanupOne(ctx, &markers[i], &stats); err != nil {
			stats.Errors++

			l.Error().Err(err).Uint("marker", markers[i].ID).Msg("cleanup marker failed")
		}
	}

	metrics.GCSweeps.WithLabelValues(SweepCleanup, "ok").Inc()
	l.Debug().
		Int("markers", stats.Markers).
		Int("released", stats.Released).
		Int("deleted", stats.Deleted).
		Int("errors", stats.Errors).
		Msg("gc cleanup done")

	return stats, nil
}

func (g *BlobGC) cleanupOne(ctx context.Context, m *model.DeletedFile, stats *CleanupStats) error {
	db := g.store.DB().WithContext(ctx)

	if m.DLKey == nil || *m.DLKey == "" {
		stats.Released++

		return db.Delete(&model.DeletedFile{}, m.ID).Error
	}

	key := *m.DLKey

	active, err := g.activelyReferenced(ctx, key)
	if err != nil {
		return err
	}

	if active {
		stats.Released++
		metrics.GCBlobs.WithLabelValues("released").Inc()

		return db.Delete(&model.DeletedFile{}, m.ID).Error
	}

	if err := db.Model(&model.DeletedFile{}).Where("id = ?", m.ID).
		UpdateColumn("iter_count", gorm.Expr("iter_count + ?", 1)).Error; err != nil {
		return err
	}

	m.IterCount++
	if m.IterCount <= g.grace {
		stats.Deferred++

		return nil
	}

	if err := g.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}

	leaves, err := g.store.HardDeleteByIndex(ctx, g.leafKind, BoneDLKey, key)
	if err != nil {
		return err
	}

	if err := db.Delete(&model.DeletedFile{}, m.ID).Error; err != nil {
		return err
	}

	stats.Deleted++
	metrics.GCBlobs.WithLabelValues("deleted").Inc()

	nlog.Ctx(ctx).Info().Str("blob", key).Strs("leaves", leaves).Msg("blob deleted")

	if g.pub != nil && g.events.Enabled && g.events.Blob.Deleted {
		payload := queue.BlobDeletedPayload{Key: key, LeafKeys: leaves}
		if err := queue.Publish(g.pub, queue.TopicBlobDeleted, payload, publishOpts(ctx)...); err != nil {
			nlog.Ctx(ctx).Warn().Err(err).Msg("publish blob deleted failed")
		}
	}

	return nil
}
