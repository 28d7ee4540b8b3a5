// Package db 处理数据库存储操作.
package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/skelvault/pkg/configs"
	nlog "github.com/yeisme/skelvault/pkg/log"
)

// DialectorFactory 定义创建 dialector 的函数类型.
type DialectorFactory func(dsn string) gorm.Dialector

var (
	factoriesMu sync.RWMutex
	// dialectorFactories 存储数据库类型到 dialector 工厂的映射.
	dialectorFactories = map[configs.DBType]DialectorFactory{}
)

// RegisterDialectorFactory 注册数据库 dialector 工厂函数.
func RegisterDialectorFactory(factory DialectorFactory, dbTypes ...configs.DBType) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	for _, t := range dbTypes {
		dialectorFactories[t] = factory
	}
}

// GetRegisteredDBTypes 返回已注册的数据库类型列表.
func GetRegisteredDBTypes() []configs.DBType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]configs.DBType, 0, len(dialectorFactories))
	for dbType := range dialectorFactories {
		types = append(types, dbType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB
}

// gormLevels 配置中的日志级别.
var gormLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

func gormLogLevel(cfg *configs.DBConfig, debug bool) logger.LogLevel {
	if l, ok := gormLevels[cfg.LogLevel]; ok {
		return l
	}

	if debug {
		return logger.Info
	}

	return logger.Warn
}

// New 按配置建立数据库连接并配置连接池.
func New(ctx context.Context, cfg *configs.DBConfig) (*Client, error) {
	dialect := cfg.Dialect()

	factoriesMu.RLock()
	factory, ok := dialectorFactories[dialect]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s (built: %v)", cfg.Type, GetRegisteredDBTypes())
	}

	dsn := cfg.GetDSN()
	if dsn == "" {
		return nil, fmt.Errorf("empty dsn for database type %s", dialect)
	}

	l := nlog.Component("db")
	gormLogger := logger.New(&l, logger.Config{
		SlowThreshold:             cfg.SlowThreshold,
		LogLevel:                  gormLogLevel(cfg, configs.GetConfig().Server.Debug),
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(factory(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if dialect == configs.DBSQLite {
		// sqlite 只允许单写连接
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	client := &Client{DB: db}
	if m := configs.GetConfig().Metrics; m.Enabled && m.DBStats {
		if err := client.RegisterGORMMetrics(cfg.Database); err != nil {
			_ = sqlDB.Close()

			return nil, err
		}
	}

	l.Info().Str("type", string(dialect)).Str("target", cfg.Target()).Msg("database connected")

	return client, nil
}

// Wrap 包装已有的 gorm 连接，测试使用.
func Wrap(db *gorm.DB) *Client {
	return &Client{DB: db}
}

// GetDB 返回 GORM DB 实例.
func (c *Client) GetDB() *gorm.DB {
	return c.DB
}

// Ping 检查连接可用.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

const defaultGORMMetricsRefreshInterval = 15 // 秒

// RegisterGORMMetrics 注册GORM指标到现有注册表.
func (c *Client) RegisterGORMMetrics(dbName string) error {
	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: defaultGORMMetricsRefreshInterval,
		StartServer:     false,
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("register gorm prometheus plugin: %w", err)
	}

	return nil
}
