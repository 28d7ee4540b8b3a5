package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubUsers 按名称返回固定用户，记录调用次数.
type stubUsers struct {
	users map[string]*access.User
	err   error
	calls atomic.Int32
}

func (s *stubUsers) Resolve(_ context.Context, name string, provision bool) (*access.User, error) {
	s.calls.Add(1)

	if s.err != nil {
		return nil, s.err
	}

	if u, ok := s.users[name]; ok {
		return u, nil
	}

	if provision {
		return &access.User{Key: "new", Name: name}, nil
	}

	return nil, service.ErrNotFound
}

func authConfig() configs.AuthConfig {
	return configs.AuthConfig{
		Enabled:       true,
		SkipPaths:     []string{"/health"},
		Headers:       []string{"X-Auth-Request-Email", "X-Forwarded-Email"},
		AutoProvision: false,
	}
}

// whoami 返回当前用户名，匿名时为 "-".
func whoami(c *gin.Context) {
	if u := CurrentUser(c); u != nil {
		c.String(http.StatusOK, u.Name)
		return
	}

	c.String(http.StatusOK, "-")
}

func newAuthEngine(conf configs.AuthConfig, users UserResolver, cache *appcache.Cache, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(conf, users, cache))

	handlers := append(extra, whoami)
	r.GET("/whoami", handlers...)
	r.GET("/health/db", whoami)

	return r
}

func TestAuthMiddleware(t *testing.T) {
	users := &stubUsers{users: map[string]*access.User{
		"alice@example.com": {Key: "1", Name: "alice@example.com"},
	}}

	devConf := authConfig()
	devConf.DevAllowQuery = true

	provisionConf := authConfig()
	provisionConf.AutoProvision = true

	disabledConf := authConfig()
	disabledConf.Enabled = false

	tests := []struct {
		name     string
		conf     configs.AuthConfig
		target   string
		headers  map[string]string
		wantCode int
		wantBody string
	}{
		{"anonymous", authConfig(), "/whoami", nil, http.StatusOK, "-"},
		{"first header", authConfig(), "/whoami", map[string]string{"X-Auth-Request-Email": "alice@example.com"}, http.StatusOK, "alice@example.com"},
		{"fallback header", authConfig(), "/whoami", map[string]string{"X-Forwarded-Email": "alice@example.com"}, http.StatusOK, "alice@example.com"},
		{"invalid identity", authConfig(), "/whoami", map[string]string{"X-Auth-Request-Email": "alice"}, http.StatusUnauthorized, ""},
		{"unknown without provision", authConfig(), "/whoami", map[string]string{"X-Auth-Request-Email": "bob@example.com"}, http.StatusOK, "-"},
		{"unknown with provision", provisionConf, "/whoami", map[string]string{"X-Auth-Request-Email": "bob@example.com"}, http.StatusOK, "bob@example.com"},
		{"skipped path", authConfig(), "/health/db", map[string]string{"X-Auth-Request-Email": "alice"}, http.StatusOK, "-"},
		{"disabled", disabledConf, "/whoami", map[string]string{"X-Auth-Request-Email": "alice@example.com"}, http.StatusOK, "-"},
		{"query ignored", authConfig(), "/whoami?user=alice@example.com", nil, http.StatusOK, "-"},
		{"dev query", devConf, "/whoami?user=alice@example.com", nil, http.StatusOK, "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthEngine(tt.conf, users, nil)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}

			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAuthMiddlewareResolveError(t *testing.T) {
	users := &stubUsers{err: errors.New("db down")}
	r := newAuthEngine(authConfig(), users, nil)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Auth-Request-Email", "alice@example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", w.Code)
	}
}

func TestAuthMiddlewareCachesUsers(t *testing.T) {
	store, err := kv.NewMemoryKV(context.Background(), &configs.KVConfig{})
	if err != nil {
		t.Fatalf("memory kv: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	users := &stubUsers{users: map[string]*access.User{
		"alice@example.com": {Key: "1", Name: "alice@example.com", Access: []string{"page-view"}},
	}}

	conf := authConfig()
	conf.CacheTTL = time.Minute
	r := newAuthEngine(conf, users, appcache.NewCache(store))

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Auth-Request-Email", "alice@example.com")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Body.String() != "alice@example.com" {
			t.Fatalf("body = %q", w.Body.String())
		}
	}

	if n := users.calls.Load(); n != 1 {
		t.Fatalf("resolver calls = %d, want 1", n)
	}
}

func TestRequireRight(t *testing.T) {
	users := &stubUsers{users: map[string]*access.User{
		"root@example.com":   {Key: "1", Name: "root@example.com", Access: []string{access.Root}},
		"editor@example.com": {Key: "2", Name: "editor@example.com", Access: []string{"page-edit"}},
		"viewer@example.com": {Key: "3", Name: "viewer@example.com", Access: []string{"page-view"}},
	}}

	r := newAuthEngine(authConfig(), users, nil, RequireRight("page-edit"))

	tests := []struct {
		name     string
		user     string
		wantCode int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"viewer", "viewer@example.com", http.StatusForbidden},
		{"editor", "editor@example.com", http.StatusOK},
		{"root", "root@example.com", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.user != "" {
				req.Header.Set("X-Auth-Request-Email", tt.user)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
