package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/internal/access"
)

const (
	DefaultMaxBodyBytes = 1 << 20 // 1MB
	defaultTTL          = 30 * time.Second
	bypassHeader        = "X-Cache-Bypass"
)

// CacheConfig 缓存中间件配置.
type CacheConfig struct {
	Cache *appcache.Cache // 必须
	TTL   time.Duration

	// MaxBodyBytes 超过该大小的响应不缓存，0 表示不限制.
	MaxBodyBytes int
	// PerUser 为 true 时缓存键包含当前用户，响应依赖身份的接口必须打开.
	PerUser bool
}

// DefaultCacheConfig 返回一份默认配置.
func DefaultCacheConfig(c *appcache.Cache) CacheConfig {
	return CacheConfig{
		Cache:        c,
		TTL:          defaultTTL,
		MaxBodyBytes: DefaultMaxBodyBytes,
		PerUser:      true,
	}
}

// cachedResponse 序列化存储结构.
type cachedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"c,omitempty"`
	Body        []byte `json:"b,omitempty"`
	ETag        string `json:"e"`
	StoredAt    int64  `json:"t"`
}

// CacheMiddleware 缓存只读接口的 200 响应:
//   - 只处理 GET/HEAD，请求携带 X-Cache-Bypass 时跳过
//   - 支持 If-None-Match，命中时返回 304
//   - 响应带 Cache-Control: no-store/private 时不缓存
//   - 缓存读写失败只降级，不影响主流程
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil {
		panic("CacheMiddleware: Cache cannot be nil")
	}

	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	return func(c *gin.Context) {
		if m := c.Request.Method; (m != http.MethodGet && m != http.MethodHead) || c.GetHeader(bypassHeader) != "" {
			c.Next()
			return
		}

		key := cacheKey(c, cfg.PerUser)
		ctx := c.Request.Context()

		if entry, err := appcache.Get[cachedResponse](ctx, cfg.Cache, key); err == nil {
			serveCached(c, entry)
			return
		}

		bw := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()
		c.Writer = bw.ResponseWriter

		entry, ok := bw.entry(cfg.MaxBodyBytes)
		if ok {
			c.Header("ETag", entry.ETag)
		}

		c.Header("X-Cache", "MISS")
		bw.flush(c.Writer)

		if ok {
			_ = appcache.Set(context.WithoutCancel(ctx), cfg.Cache, key, entry, cfg.TTL)
		}
	}
}

// cacheKey 方法、路由、排序后的 query 与可选的用户 key.
func cacheKey(c *gin.Context, perUser bool) string {
	var b strings.Builder

	b.WriteString(c.Request.Method)
	b.WriteByte(':')

	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}

	b.WriteString(path)

	q := c.Request.URL.Query()
	keys := make([]string, 0, len(q))

	for k := range q {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString("&" + k + "=" + strings.Join(q[k], ","))
	}

	if perUser {
		b.WriteString("|u=")

		if u := access.UserFrom(c.Request.Context()); u != nil {
			b.WriteString(u.Key)
		}
	}

	return fmt.Sprintf("rc:%x", xxhash.Sum64String(b.String()))
}

func serveCached(c *gin.Context, e cachedResponse) {
	h := c.Writer.Header()
	h.Set("ETag", e.ETag)
	h.Set("Age", fmt.Sprintf("%.0f", time.Since(time.Unix(0, e.StoredAt)).Seconds()))
	h.Set("X-Cache", "HIT")

	if c.GetHeader("If-None-Match") == e.ETag {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}

	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}

	c.Status(e.Status)

	if c.Request.Method != http.MethodHead {
		_, _ = c.Writer.Write(e.Body)
	}

	c.Abort()
}

// bufferedWriter 暂存响应，便于在写出前补充 ETag.
type bufferedWriter struct {
	gin.ResponseWriter

	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.status = code
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.buf.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.status != 0 || w.buf.Len() > 0
}

// entry 判断响应能否缓存.
func (w *bufferedWriter) entry(maxBody int) (cachedResponse, bool) {
	if w.Status() != http.StatusOK || (maxBody > 0 && w.buf.Len() > maxBody) {
		return cachedResponse{}, false
	}

	cc := strings.ToLower(w.Header().Get("Cache-Control"))
	if strings.Contains(cc, "no-store") || strings.Contains(cc, "private") {
		return cachedResponse{}, false
	}

	body := bytes.Clone(w.buf.Bytes())

	return cachedResponse{
		Status:      http.StatusOK,
		ContentType: w.Header().Get("Content-Type"),
		Body:        body,
		ETag:        fmt.Sprintf("\"%x\"", xxhash.Sum64(body)),
		StoredAt:    time.Now().UnixNano(),
	}, true
}

func (w *bufferedWriter) flush(out gin.ResponseWriter) {
	out.WriteHeader(w.Status())
	_, _ = out.Write(w.buf.Bytes())
}
