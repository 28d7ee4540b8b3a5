package model

import "time"

// BlobLock 一个实体对 blob 的引用集合，主键与实体 key 相同.
type BlobLock struct {
	ID string `gorm:"primaryKey;size:26"`
	// HasStaleReferences 存在待扫描的失效引用
	HasStaleReferences bool `gorm:"index"`
	// IsStale 实体已删除，扫描后整条锁记录可移除
	IsStale    bool
	References []BlobReference `gorm:"foreignKey:LockID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BlobReference 锁中的单个 blob key，Active 为 false 表示失效引用.
type BlobReference struct {
	ID      uint   `gorm:"primaryKey"`
	LockID  string `gorm:"size:26;index"`
	BlobKey string `gorm:"size:64;index:idx_blob_ref_key_active,priority:1"`
	Active  bool   `gorm:"index:idx_blob_ref_key_active,priority:2"`
}

// DeletedFile blob 删除标记，每个 blob key 至多一条.
type DeletedFile struct {
	ID        uint    `gorm:"primaryKey"`
	DLKey     *string `gorm:"size:64;uniqueIndex"`
	IterCount int     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
