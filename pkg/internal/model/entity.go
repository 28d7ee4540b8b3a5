// Package model 定义持久化到数据库的表结构.
package model

import (
	"time"

	"gorm.io/gorm"
)

// Entity 模块实体：字段值以 JSON 文本存储，可检索的值另存于 EntityIndex.
type Entity struct {
	// 小写 ULID
	ID        string  `gorm:"primaryKey;size:26" json:"key"`
	Kind      string  `gorm:"size:64;index"      json:"kind"`
	SortIndex float64 `gorm:"index"              json:"sortindex"`
	Data      string  `gorm:"type:text"          json:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// EntityIndex 实体的单个索引值，多值字段对应多行.
type EntityIndex struct {
	ID       uint     `gorm:"primaryKey"`
	EntityID string   `gorm:"size:26;index"`
	Kind     string   `gorm:"size:64;index:idx_entity_index_lookup,priority:1"`
	Name     string   `gorm:"size:64;index:idx_entity_index_lookup,priority:2"`
	Value    string   `gorm:"size:512;index:idx_entity_index_lookup,priority:3"`
	Num      *float64 `gorm:"index"`
}
