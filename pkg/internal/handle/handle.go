// Package handle 提供 HTTP 请求处理器，把请求参数交给 service 控制器并渲染结果.
package handle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/render"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/log"
)

// multipartMemory 解析 multipart 时保留在内存中的上限，超出部分写入临时文件.
const multipartMemory = 8 << 20

// Handlers 聚合列表模块与文件模块的处理器.
type Handlers struct {
	Registry      *service.Registry
	Render        *render.Renderer
	SessionHeader string
	MaxUploadSize int64
}

// New 创建处理器集合.
func New(reg *service.Registry, cfg *configs.AppConfig) *Handlers {
	return &Handlers{
		Registry:      reg,
		Render:        render.New(),
		SessionHeader: cfg.Security.SessionHeader,
		MaxUploadSize: cfg.Blob.MaxUploadSize,
	}
}

// DefaultHandler 未实现的路由.
func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"message": "Not Implemented"})
}

// currentUser 返回认证中间件放入的用户.
func currentUser(c *gin.Context) *access.User {
	return access.UserFrom(c.Request.Context())
}

// session 返回请求的会话标识.
func (h *Handlers) session(c *gin.Context) string {
	var header string
	if h.SessionHeader != "" {
		header = strings.TrimSpace(c.GetHeader(h.SessionHeader))
	}

	return service.SessionID(header, currentUser(c))
}

// params 合并 query 与表单参数.
func params(c *gin.Context) (map[string][]string, error) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	return c.Request.Form, nil
}

// parseBool 与布尔 bone 的取值规则一致.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// request 把 HTTP 请求转换为控制器输入.
func (h *Handlers) request(c *gin.Context) (service.Request, error) {
	p, err := params(c)
	if err != nil {
		return service.Request{}, err
	}

	req := service.Request{
		User:    currentUser(c),
		Session: h.session(c),
		Method:  c.Request.Method,
		Fields:  service.FieldsFrom(p),
	}

	if v := p["skey"]; len(v) > 0 {
		req.SKey = v[0]
	}

	if v := p["bounce"]; len(v) > 0 {
		req.Bounce = parseBool(v[0])
	}

	return req, nil
}

// badRequest 请求参数无法解析.
func badRequest(c *gin.Context, err error) {
	log.Ctx(c.Request.Context()).Warn().Err(err).Msg("invalid request")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad request", "message": err.Error()})
}

// respond 渲染控制器结果或错误.
func (h *Handlers) respond(c *gin.Context, res *service.Result, err error) {
	if err != nil {
		if status := service.StatusCode(err); status >= http.StatusInternalServerError {
			log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		}

		h.Render.Error(c, err)

		return
	}

	h.Render.Render(c, res)
}
