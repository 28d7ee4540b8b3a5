// Package app 提供应用程序的初始化和配置功能.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/skelvault/pkg/api"
	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/jobs"
	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
	"github.com/yeisme/skelvault/pkg/log"
	"github.com/yeisme/skelvault/pkg/metrics"
	"github.com/yeisme/skelvault/pkg/middleware"
	"github.com/yeisme/skelvault/pkg/scheduler"
	"github.com/yeisme/skelvault/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// App 聚合 HTTP 引擎、存储、模块注册表与后台任务.
type App struct {
	Engine   *gin.Engine
	Registry *service.Registry
	Manager  *storage.Manager

	config *configs.AppConfig
	debug  *gin.Engine
	sched  *scheduler.Scheduler
}

// Bootstrap 加载配置并初始化日志、追踪、指标与存储，CLI 子命令与 serve 共用.
func Bootstrap(ctx context.Context, configPath string) (*configs.AppConfig, *storage.Manager, *service.Registry, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, nil, nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()
	log.Init()

	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, nil, nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx, config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	if err := model.AutoMigrate(manager.DB.GetDB()); err != nil {
		_ = manager.Close()

		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	deps := service.Deps{
		DB:     manager.DB.GetDB(),
		KV:     manager.KV,
		Blobs:  manager.Blob,
		Config: config,
	}
	if config.Events.Enabled {
		deps.Publisher = manager.MQ.Publisher()
	}

	reg, err := service.NewRegistry(deps)
	if err != nil {
		_ = manager.Close()

		return nil, nil, nil, fmt.Errorf("build modules: %w", err)
	}

	if err := reg.Users.EnsureRoot(ctx, config.Auth.RootUsers...); err != nil {
		_ = manager.Close()

		return nil, nil, nil, fmt.Errorf("ensure root users: %w", err)
	}

	return config, manager, reg, nil
}

// NewApp 创建应用：中间件、路由与回收任务.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	config, manager, reg, err := Bootstrap(ctx, configPath)
	if err != nil {
		return nil, err
	}

	if !config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		_ = manager.Close()

		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	trigger := jobs.NewTrigger(reg.GC, manager.MQ.Publisher())
	if err := jobs.RegisterGCJobs(ctx, sched, config.GC, trigger); err != nil {
		_ = sched.Shutdown()
		_ = manager.Close()

		return nil, fmt.Errorf("register gc jobs: %w", err)
	}

	cache := appcache.NewCache(manager.KV)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{".*/download/.*", ".*/upload.*"})),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.Inject(manager, sched),
		middleware.AuthMiddleware(config.Auth, reg.Users, cache),
	)

	api.Mount(engine, reg, config, cache)

	a := &App{
		Engine:   engine,
		Registry: reg,
		Manager:  manager,
		config:   config,
		sched:    sched,
	}

	if config.Metrics.Enabled {
		a.debug = gin.New()
		a.debug.Use(gin.Recovery())

		if err := metrics.StartMetricsServer(config.Metrics, config.Server.Pprof, a.debug); err != nil {
			return nil, fmt.Errorf("init metrics server: %w", err)
		}
	}

	return a, nil
}

// Run 启动 HTTP 服务、调度器与回收消费者，ctx 结束后优雅退出.
func (a *App) Run(ctx context.Context) error {
	l := log.Logger()

	srv := &http.Server{
		Addr:              a.config.Server.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	g, ctx := errgroup.WithContext(ctx)

	servers := []*http.Server{srv}
	if a.debug != nil {
		servers = append(servers, &http.Server{
			Addr:              a.config.Metrics.Endpoint,
			Handler:           a.debug,
			ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
		})
	}

	for _, s := range servers {
		g.Go(func() error {
			l.Info().Str("addr", s.Addr).Msg("http server listening")

			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", s.Addr, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		return jobs.NewWorker(a.Registry.GC, a.Manager.MQ).Run(ctx)
	})

	a.sched.Start()

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(shutdownCtx))
		}

		errs = append(errs, a.sched.Shutdown(), tracing.ShutdownTracer(shutdownCtx), a.Manager.Close())
		l.Info().Msg("server stopped")

		return errors.Join(errs...)
	})

	return g.Wait()
}
