package model

import (
	"strings"
	"time"
)

// User 用户及其权限，Access 以逗号分隔存储.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;uniqueIndex"`
	Access    string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccessList 返回权限列表.
func (u *User) AccessList() []string {
	if u.Access == "" {
		return nil
	}

	parts := strings.Split(u.Access, ",")
	out := parts[:0]

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// SetAccess 写入权限列表.
func (u *User) SetAccess(rights []string) {
	u.Access = strings.Join(rights, ",")
}
