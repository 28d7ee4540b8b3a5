package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

const indexBatchSize = 100

var (
	keyEntropyMu sync.Mutex
	keyEntropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEntityKey 生成新的实体 key.
func NewEntityKey() string {
	keyEntropyMu.Lock()
	defer keyEntropyMu.Unlock()

	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), keyEntropy).String())
}

// EntityStore 将 skeleton 持久化到 entities / entity_indices，并维护 blob 锁.
type EntityStore struct {
	db *gorm.DB
}

// NewEntityStore 创建实体存储.
func NewEntityStore(db *gorm.DB) *EntityStore {
	return &EntityStore{db: db}
}

// DB 返回底层连接.
func (s *EntityStore) DB() *gorm.DB {
	return s.db
}

// Transaction 在事务中执行 fn，嵌套调用使用 savepoint.
func (s *EntityStore) Transaction(ctx context.Context, fn func(tx *EntityStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&EntityStore{db: tx})
	})
}

// Get 按 key 加载，不存在或类型不符时返回 ErrNotFound.
func (s *EntityStore) Get(ctx context.Context, f *skeleton.Factory, key string) (*skeleton.Skeleton, error) {
	if key == "" {
		return nil, ErrNotFound
	}

	var ent model.Entity

	err := s.db.WithContext(ctx).Where("id = ? AND kind = ?", key, f.Kind()).Take(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %s: %w", f.Kind(), key, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", f.Kind(), key, err)
	}

	return toSkeleton(f, &ent)
}

func toSkeleton(f *skeleton.Factory, ent *model.Entity) (*skeleton.Skeleton, error) {
	data := map[string]any{}
	if ent.Data != "" {
		if err := sonic.UnmarshalString(ent.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", ent.Kind, ent.ID, err)
		}
	}

	skel := f.New()
	skel.Load(ent.ID, ent.SortIndex, data)
	skel.CreatedAt = ent.CreatedAt
	skel.UpdatedAt = ent.UpdatedAt

	return skel, nil
}

// Put 写入 skeleton，Key 为空时分配新 key；索引与 blob 锁在同一事务中更新.
func (s *EntityStore) Put(ctx context.Context, skel *skeleton.Skeleton) error {
	data, err := sonic.MarshalString(skel.Data())
	if err != nil {
		return fmt.Errorf("encode %s: %w", skel.Kind(), err)
	}

	if skel.Key == "" {
		skel.Key = NewEntityKey()
	}

	return s.Transaction(ctx, func(tx *EntityStore) error {
		ent := model.Entity{ID: skel.Key, Kind: skel.Kind(), SortIndex: skel.SortIndex(), Data: data}

		var n int64
		// 已软删除的 key 再次写入时恢复原记录.
		if err := tx.db.Unscoped().Model(&model.Entity{}).Where("id = ?", skel.Key).Count(&n).Error; err != nil {
			return fmt.Errorf("check %s %s: %w", skel.Kind(), skel.Key, err)
		}

		if n == 0 {
			if err := tx.db.Create(&ent).Error; err != nil {
				return fmt.Errorf("create %s %s: %w", skel.Kind(), skel.Key, err)
			}
		} else {
			err := tx.db.Unscoped().Model(&model.Entity{}).Where("id = ?", skel.Key).Updates(map[string]any{
				"kind":       ent.Kind,
				"sort_index": ent.SortIndex,
				"data":       ent.Data,
				"deleted_at": nil,
			}).Error
			if err != nil {
				return fmt.Errorf("update %s %s: %w", skel.Kind(), skel.Key, err)
			}

			if err := tx.db.Where("id = ?", skel.Key).Take(&ent).Error; err != nil {
				return fmt.Errorf("reload %s %s: %w", skel.Kind(), skel.Key, err)
			}
		}

		skel.CreatedAt = ent.CreatedAt
		skel.UpdatedAt = ent.UpdatedAt

		if err := tx.writeIndex(skel); err != nil {
			return err
		}

		return tx.updateLocks(skel.Key, skel.BlobKeys())
	})
}

func (s *EntityStore) writeIndex(skel *skeleton.Skeleton) error {
	if err := s.db.Where("entity_id = ?", skel.Key).Delete(&model.EntityIndex{}).Error; err != nil {
		return fmt.Errorf("clear index %s: %w", skel.Key, err)
	}

	var rows []model.EntityIndex

	for name, values := range skel.IndexValues() {
		for _, v := range values {
			rows = append(rows, model.EntityIndex{
				EntityID: skel.Key,
				Kind:     skel.Kind(),
				Name:     name,
				Value:    v.Value,
				Num:      v.Num,
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}

	if err := s.db.CreateInBatches(rows, indexBatchSize).Error; err != nil {
		return fmt.Errorf("write index %s: %w", skel.Key, err)
	}

	return nil
}

// updateLocks 使锁中的活动引用与 keys 一致，移除的引用转为失效引用等待扫描.
func (s *EntityStore) updateLocks(lockID string, keys []string) error {
	var refs []model.BlobReference

	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lock_id = ? AND active = ?", lockID, true).
		Find(&refs).Error
	if err != nil {
		return fmt.Errorf("load locks %s: %w", lockID, err)
	}

	current := make([]string, 0, len(refs))
	for _, r := range refs {
		current = append(current, r.BlobKey)
	}

	var removed, added []string

	for _, k := range current {
		if !slices.Contains(keys, k) {
			removed = append(removed, k)
		}
	}

	for _, k := range keys {
		if !slices.Contains(current, k) {
			added = append(added, k)
		}
	}

	if len(removed) == 0 && len(added) == 0 {
		return nil
	}

	lock := model.BlobLock{ID: lockID}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock).Error; err != nil {
		return fmt.Errorf("create lock %s: %w", lockID, err)
	}

	if len(removed) > 0 {
		err := s.db.Model(&model.BlobReference{}).
			Where("lock_id = ? AND active = ? AND blob_key IN ?", lockID, true, removed).
			Update("active", false).Error
		if err != nil {
			return fmt.Errorf("release refs %s: %w", lockID, err)
		}

		if err := s.db.Model(&model.BlobLock{}).Where("id = ?", lockID).
			Update("has_stale_references", true).Error; err != nil {
			return fmt.Errorf("flag lock %s: %w", lockID, err)
		}
	}

	if len(added) > 0 {
		rows := make([]model.BlobReference, 0, len(added))
		for _, k := range added {
			rows = append(rows, model.BlobReference{LockID: lockID, BlobKey: k, Active: true})
		}

		if err := s.db.Create(&rows).Error; err != nil {
			return fmt.Errorf("add refs %s: %w", lockID, err)
		}
	}

	return nil
}

// Delete 软删除实体，其全部 blob 引用转为失效引用.
func (s *EntityStore) Delete(ctx context.Context, skel *skeleton.Skeleton) error {
	return s.Transaction(ctx, func(tx *EntityStore) error {
		res := tx.db.Where("id = ? AND kind = ?", skel.Key, skel.Kind()).Delete(&model.Entity{})
		if res.Error != nil {
			return fmt.Errorf("delete %s %s: %w", skel.Kind(), skel.Key, res.Error)
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("%s %s: %w", skel.Kind(), skel.Key, ErrNotFound)
		}

		return tx.releaseLock(skel.Key)
	})
}

func (s *EntityStore) releaseLock(lockID string) error {
	res := s.db.Model(&model.BlobLock{}).Where("id = ?", lockID).
		Updates(map[string]any{"has_stale_references": true, "is_stale": true})
	if res.Error != nil {
		return fmt.Errorf("release lock %s: %w", lockID, res.Error)
	}

	if res.RowsAffected == 0 {
		return nil
	}

	err := s.db.Model(&model.BlobReference{}).
		Where("lock_id = ? AND active = ?", lockID, true).
		Update("active", false).Error
	if err != nil {
		return fmt.Errorf("release refs %s: %w", lockID, err)
	}

	return nil
}

// HardDeleteByIndex 物理删除 kind 下索引值等于 value 的实体（含已软删除），返回被删除的 key.
func (s *EntityStore) HardDeleteByIndex(ctx context.Context, kind, name, value string) ([]string, error) {
	var keys []string

	err := s.Transaction(ctx, func(tx *EntityStore) error {
		if err := tx.db.Model(&model.EntityIndex{}).
			Where("kind = ? AND name = ? AND value = ?", kind, name, value).
			Distinct().Pluck("entity_id", &keys).Error; err != nil {
			return err
		}

		if len(keys) == 0 {
			return nil
		}

		if err := tx.db.Unscoped().Where("id IN ?", keys).Delete(&model.Entity{}).Error; err != nil {
			return err
		}

		if err := tx.db.Where("entity_id IN ?", keys).Delete(&model.EntityIndex{}).Error; err != nil {
			return err
		}

		for _, k := range keys {
			if err := tx.releaseLock(k); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("purge %s %s=%s: %w", kind, name, value, err)
	}

	return keys, nil
}

// Fetch 执行列表查询，结果数超过一页时返回下一页游标.
func (s *EntityStore) Fetch(ctx context.Context, q *skeleton.Query) (*skeleton.List, error) {
	list := &skeleton.List{}
	if q.Unsatisfiable {
		return list, nil
	}

	f := q.Factory()
	db := s.db.WithContext(ctx).Model(&model.Entity{}).Where("kind = ?", q.Kind)

	if len(q.Keys) > 0 {
		db = db.Where("id IN ?", q.Keys)
	}

	for _, flt := range q.Filters {
		db = db.Where("id IN (?)", s.filterSubquery(q.Kind, flt))
	}

	db = db.Order(orderBy(f, q.Orders))

	amount := q.EffectiveAmount()
	offset := q.Offset()

	var ents []model.Entity
	if err := db.Limit(amount + 1).Offset(offset).Find(&ents).Error; err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Kind, err)
	}

	if len(ents) > amount {
		ents = ents[:amount]
		list.Cursor = strconv.Itoa(offset + amount)
	}

	list.Skels = make([]*skeleton.Skeleton, 0, len(ents))

	for i := range ents {
		skel, err := toSkeleton(f, &ents[i])
		if err != nil {
			return nil, err
		}

		list.Skels = append(list.Skels, skel)
	}

	return list, nil
}

// First 返回查询的第一条结果，不存在时返回 ErrNotFound.
func (s *EntityStore) First(ctx context.Context, q *skeleton.Query) (*skeleton.Skeleton, error) {
	q = q.Clone().Limit(1)
	q.Cursor = ""

	list, err := s.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(list.Skels) == 0 {
		return nil, fmt.Errorf("%s: %w", q.Kind, ErrNotFound)
	}

	return list.Skels[0], nil
}

func (s *EntityStore) filterSubquery(kind string, flt skeleton.Filter) *gorm.DB {
	sub := s.db.Model(&model.EntityIndex{}).Select("entity_id").Where("kind = ? AND name = ?", kind, flt.Name)

	col, val := "value", any(flt.Value.Value)
	if flt.Value.Num != nil {
		col, val = "num", *flt.Value.Num
	}

	switch flt.Op {
	case skeleton.OpLt:
		return sub.Where(col+" < ?", val)
	case skeleton.OpGt:
		return sub.Where(col+" > ?", val)
	case skeleton.OpPrefix:
		return sub.Where("value LIKE ? ESCAPE '!'", likePrefix(flt.Value.Value))
	default:
		return sub.Where(col+" = ?", val)
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

var orderColumns = map[string]string{
	skeleton.OrderSortIndex:    "sort_index",
	skeleton.OrderCreationDate: "created_at",
	skeleton.OrderChangeDate:   "updated_at",
}

// orderBy 把全部排序条件与 id 兜底合成一个表达式.
// gorm 合并多个 OrderBy 子句时只保留 Columns，Expression 会被后来的 Order 覆盖.
func orderBy(f *skeleton.Factory, orders []skeleton.Order) clause.OrderBy {
	parts := make([]string, 0, len(orders)+1)
	vars := make([]any, 0, len(orders))

	for _, o := range orders {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}

		if col, ok := orderColumns[o.Name]; ok {
			parts = append(parts, "entities."+col+dir)
			continue
		}

		col := "value"
		if b, ok := f.Bone(o.Name); ok {
			switch b.(type) {
			case *skeleton.NumericBone, *skeleton.SortIndexBone:
				col = "num"
			}
		}

		parts = append(parts, "(SELECT MIN("+col+") FROM entity_indices WHERE entity_indices.entity_id = entities.id"+
			" AND entity_indices.name = ?)"+dir)
		vars = append(vars, o.Name)
	}

	parts = append(parts, "entities.id ASC")

	return clause.OrderBy{Expression: clause.Expr{
		SQL:                strings.Join(parts, ", "),
		Vars:               vars,
		WithoutParentheses: true,
	}}
}
