package model

import "gorm.io/gorm"

// All 返回需要迁移的全部模型.
func All() []any {
	return []any{
		&Entity{},
		&EntityIndex{},
		&BlobLock{},
		&BlobReference{},
		&DeletedFile{},
		&User{},
	}
}

// AutoMigrate 创建或更新所有表.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
