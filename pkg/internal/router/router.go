// Package router 管理路由配置，把模块、文件与系统处理器绑定到 gin 路由组.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/handle"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/middleware"
)

// rightsCacheTTL 权限表运行期不变，缓存时长只影响 KV 占用.
const rightsCacheTTL = 10 * time.Minute

var getPost = []string{http.MethodGet, http.MethodPost}

// Options 路由选项.
type Options struct {
	// ForceSSL 变更类接口要求加密连接.
	ForceSSL bool
	// Cache 非空时缓存只读的系统接口.
	Cache *appcache.Cache
	// Breakers 为空时不熔断.
	Breakers *middleware.Breakers
	// RateLimit 用于上传接口的独立配额.
	RateLimit configs.RateLimitConfig
}

func match(g *gin.RouterGroup, methods []string, path string, handlers ...gin.HandlerFunc) {
	for _, m := range methods {
		g.Handle(m, path, handlers...)
	}
}

// Register 绑定路由，api 通常为 server.base_path 对应的分组:
//
//	GET|POST  /<module>/list
//	GET       /<module>/view/:key
//	POST      /<module>/preview
//	GET|POST  /<module>/add
//	GET|POST  /<module>/edit/:key
//	POST      /<module>/delete/:key
//	POST      /<module>/setSortIndex
//	...       /file/*
//	GET       /skey, /skey/session, /access/rights, /user/me
func Register(api *gin.RouterGroup, h *handle.Handlers, opts Options) {
	secure := middleware.ForceSSL(opts.ForceSSL)
	group := func(name string) *gin.RouterGroup {
		return api.Group("/"+name, middleware.Module(name), opts.Breakers.Middleware(name))
	}

	for _, name := range h.Registry.ListModules() {
		ctrl, ok := h.Registry.List(name)
		if !ok {
			continue
		}

		RegisterModuleRoutes(group(name), h, ctrl, secure)
	}

	upload := middleware.UploadRateLimit(opts.RateLimit)
	RegisterFileRoutes(group(h.Registry.File.Module), h, secure, upload)
	RegisterSystemRoutes(api, h, opts)
}

// RegisterModuleRoutes 注册单个列表模块的路由.
func RegisterModuleRoutes(g *gin.RouterGroup, h *handle.Handlers, ctrl *service.Controller, secure gin.HandlerFunc) {
	post := middleware.ForcePost()

	match(g, getPost, "/list", h.List(ctrl))
	g.GET("/view/:key", h.View(ctrl))
	g.POST("/preview", secure, h.Preview(ctrl))
	match(g, getPost, "/add", secure, h.Add(ctrl))
	match(g, getPost, "/edit/:key", secure, h.Edit(ctrl))
	match(g, getPost, "/delete/:key", secure, post, h.Delete(ctrl))
	match(g, getPost, "/setSortIndex", secure, post, h.SetSortIndex(ctrl))
}

// RegisterFileRoutes 注册文件模块的路由.
func RegisterFileRoutes(g *gin.RouterGroup, h *handle.Handlers, secure, upload gin.HandlerFunc) {
	post := middleware.ForcePost()

	match(g, getPost, "/list/:skelType", h.FileList)
	g.GET("/view/:skelType", h.FileView)
	g.GET("/view/:skelType/:key", h.FileView)
	match(g, getPost, "/add/:skelType/:node", secure, post, h.FileAdd)
	match(g, getPost, "/edit/:skelType/:key", secure, h.FileEdit)
	match(g, getPost, "/delete/:skelType/:key", secure, post, h.FileDelete)
	g.POST("/preview/:skelType", secure, h.FilePreview)
	match(g, getPost, "/upload", secure, post, upload, h.FileUpload)
	match(g, getPost, "/upload/:node", secure, post, upload, h.FileUpload)
	g.GET("/download/:blobKey", h.FileDownload)
	g.GET("/getUploadURL", secure, h.FileUploadURL)
	g.GET("/getAvailableRootNodes", h.FileRootNodes)
}

// RegisterSystemRoutes 注册 skey、权限表与当前用户路由.
func RegisterSystemRoutes(api *gin.RouterGroup, h *handle.Handlers, opts Options) {
	api.GET("/skey", h.SKey)
	api.GET("/skey/session", h.SessionSKey)
	api.GET("/user/me", h.Me)

	if opts.Cache == nil {
		api.GET("/access/rights", h.AccessRights)
		return
	}

	cfg := middleware.DefaultCacheConfig(opts.Cache)
	cfg.TTL = rightsCacheTTL
	api.GET("/access/rights", middleware.CacheMiddleware(cfg), h.AccessRights)
}
