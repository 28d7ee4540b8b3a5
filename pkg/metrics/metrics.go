// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集应用和系统指标.
//
// Example:
//
//	import "github.com/yeisme/skelvault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/page/list", "200").Inc()
//	metrics.GuardDenials.WithLabelValues("page", "add").Inc()
package metrics

import (
	"net/http"
	"sync"
	_ "net/http/pprof" // 自动注册pprof端点

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/skelvault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 活跃连接数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of requests currently being served",
		},
	)

	// GuardDenials 访问守卫拒绝次数.
	GuardDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skelvault_guard_denials_total",
			Help: "Number of requests rejected by a module guard",
		},
		[]string{"module", "action"},
	)

	// Uploads 上传的 blob 数量.
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skelvault_uploads_total",
			Help: "Number of uploaded blobs",
		},
		[]string{"result"},
	)

	// GCSweeps 垃圾回收执行次数.
	GCSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skelvault_gc_sweeps_total",
			Help: "Number of blob GC sweeps",
		},
		[]string{"sweep", "result"},
	)

	// GCBlobs 垃圾回收处理的 blob 数量.
	GCBlobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skelvault_gc_blobs_total",
			Help: "Number of blobs staged, released or deleted by the GC",
		},
		[]string{"action"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	// appRegisterer 带常量标签的注册器，InitMetrics 之前为 nil.
	appRegisterer prometheus.Registerer

	initOnce sync.Once
)

// InitMetrics 初始化Metrics，重复调用无副作用.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	initOnce.Do(func() {
		// 常量标签只加在应用指标上，运行时收集器保持原样
		app := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)
		appRegisterer = app

		if config.RuntimeMetrics {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		app.MustRegister(RequestCounter, RequestDuration, ActiveConnections,
			GuardDenials, Uploads, GCSweeps, GCBlobs)
	})

	return nil
}

// Registerer 返回应用指标注册器，供消息队列等组件登记自己的指标；指标未启用时返回 nil.
func Registerer() prometheus.Registerer {
	return appRegisterer
}

// StartMetricsServer 在调试引擎上挂载 /metrics，pprof 为 true 时同时挂载 pprof 端点.
func StartMetricsServer(config configs.MetricsConfig, pprof bool, debugEngine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	debugEngine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if pprof {
		debugEngine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}
