package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/model"
	nlog "github.com/yeisme/skelvault/pkg/log"
)

// UserStore 用户档案，权限在读取时按权限表过滤.
type UserStore struct {
	db    *gorm.DB
	table *access.Table
}

// NewUserStore 创建用户存储.
func NewUserStore(db *gorm.DB, table *access.Table) *UserStore {
	return &UserStore{db: db, table: table}
}

func (s *UserStore) toUser(m *model.User) *access.User {
	return &access.User{
		Key:    strconv.FormatUint(uint64(m.ID), 10),
		Name:   m.Name,
		Access: s.table.Filter(m.AccessList()),
	}
}

func (s *UserStore) find(ctx context.Context, name string) (*model.User, error) {
	var m model.User

	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", name, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", name, err)
	}

	return &m, nil
}

// Resolve 按身份名称查找用户，provision 时为首次出现的身份建立无权限档案.
func (s *UserStore) Resolve(ctx context.Context, name string, provision bool) (*access.User, error) {
	m, err := s.find(ctx, name)
	if err == nil {
		return s.toUser(m), nil
	}

	if !errors.Is(err, ErrNotFound) || !provision {
		return nil, err
	}

	created := model.User{Name: name}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("provision user %s: %w", name, err)
	}

	nlog.Ctx(ctx).Info().Str("user", name).Msg("user provisioned")

	if m, err = s.find(ctx, name); err != nil {
		return nil, err
	}

	return s.toUser(m), nil
}

// Add 新建用户，名称已存在时报错.
func (s *UserStore) Add(ctx context.Context, name string, rights ...string) (*access.User, error) {
	if _, err := s.find(ctx, name); err == nil {
		return nil, fmt.Errorf("user %s already exists", name)
	}

	m := model.User{Name: name}
	m.SetAccess(s.table.Filter(rights))

	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", name, err)
	}

	return s.toUser(&m), nil
}

// Grant 追加权限，未知权限被忽略.
func (s *UserStore) Grant(ctx context.Context, name string, rights ...string) (*access.User, error) {
	m, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}

	merged := s.table.Filter(append(m.AccessList(), rights...))
	slices.Sort(merged)
	m.SetAccess(merged)

	if err := s.db.WithContext(ctx).Model(m).Update("access", m.Access).Error; err != nil {
		return nil, fmt.Errorf("grant %s: %w", name, err)
	}

	return s.toUser(m), nil
}

// Revoke 收回权限，用户未持有的权限被忽略.
func (s *UserStore) Revoke(ctx context.Context, name string, rights ...string) (*access.User, error) {
	m, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}

	kept := slices.DeleteFunc(m.AccessList(), func(r string) bool { return slices.Contains(rights, r) })
	m.SetAccess(kept)

	if err := s.db.WithContext(ctx).Model(m).Update("access", m.Access).Error; err != nil {
		return nil, fmt.Errorf("revoke %s: %w", name, err)
	}

	return s.toUser(m), nil
}

// EnsureRoot 确保 names 中的用户存在并持有 root.
func (s *UserStore) EnsureRoot(ctx context.Context, names ...string) error {
	var errs []error

	for _, name := range names {
		if _, err := s.Resolve(ctx, name, true); err != nil {
			errs = append(errs, err)

			continue
		}

		if _, err := s.Grant(ctx, name, access.Root); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// List 按名称列出用户.
func (s *UserStore) List(ctx context.Context) ([]*access.User, error) {
	var rows []model.User
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]*access.User, 0, len(rows))
	for i := range rows {
		out = append(out, s.toUser(&rows[i]))
	}

	return out, nil
}
