// Package storage 聚合服务依赖的存储资源：数据库、blob 服务、KV 与消息队列.
//
// Example:
//
//	mgr, err := storage.Init(ctx, configs.GetConfig())
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
//
//	db := mgr.DB.GetDB()
//	blobs := mgr.Blob
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/skelvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/skelvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/skelvault/pkg/internal/storage/mq"
	// 注册 minio blob 后端.
	_ "github.com/yeisme/skelvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/skelvault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB   *dbc.Client
	Blob blob.Store
	KV   *kvc.Client
	MQ   *mqc.Client
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 使用全局配置初始化默认存储，重复调用只返回已初始化实例.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	mgrOnce.Do(func() {
		mgr, mgrErr = NewManager(ctx, cfg)
	})

	return mgr, mgrErr
}

// NewManager 按配置建立各存储连接，任一失败时关闭已建立的连接.
func NewManager(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	var err error

	if m.DB, err = dbc.New(ctx, &cfg.DB); err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	if m.Blob, err = blob.New(ctx, cfg); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init blob: %w", err)
	}

	if m.KV, err = kvc.NewKVClient(ctx, &cfg.KV); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init kv: %w", err)
	}

	if m.MQ, err = mqc.New(ctx, &cfg.MQ); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init mq: %w", err)
	}

	nlog.Logger().Info().
		Str("db", string(cfg.DB.Dialect())).
		Str("blob", string(cfg.Blob.Type)).
		Str("kv", string(cfg.KV.Type)).
		Str("mq", string(cfg.MQ.Type)).
		Msg("storage manager initialized")

	return m, nil
}

// Close 关闭所有已建立的连接.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
