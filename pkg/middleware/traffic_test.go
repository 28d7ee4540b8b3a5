package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
)

func TestLimiterSetEvictsIdle(t *testing.T) {
	s := newLimiterSet(1, 1, time.Minute)
	now := time.Now()

	if !s.allow("a", now) {
		t.Fatal("first request should pass")
	}

	if s.allow("a", now) {
		t.Fatal("second request in the same instant should be limited")
	}

	s.allow("b", now.Add(30*time.Second))

	if !s.allow("c", now.Add(2*time.Minute)) {
		t.Fatal("fresh key should pass")
	}

	if got := s.size(); got != 1 {
		t.Fatalf("entries after eviction = %d, want 1", got)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	cfg := configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1, Key: "user"}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if name := c.GetHeader("X-Test-User"); name != "" {
			ctx := access.WithUser(c.Request.Context(), &access.User{Key: name, Name: name})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}, RateLimitMiddleware(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Test-User", user)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		return w.Code
	}

	if got := do("alice"); got != http.StatusOK {
		t.Fatalf("alice first = %d", got)
	}

	if got := do("alice"); got != http.StatusTooManyRequests {
		t.Fatalf("alice second = %d, want 429", got)
	}

	if got := do("bob"); got != http.StatusOK {
		t.Fatalf("bob first = %d, limits must be per user", got)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimitMiddleware(configs.RateLimitConfig{}), UploadRateLimit(configs.RateLimitConfig{}),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
}

func TestBreakersArePerModule(t *testing.T) {
	b := NewBreakers(configs.CircuitBreakerConfig{
		Enabled:          true,
		FailureRate:      0.5,
		MinRequests:      2,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	})

	r := gin.New()
	r.GET("/broken", Module("broken"), b.Middleware("broken"), func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/page", Module("page"), b.Middleware("page"), func(c *gin.Context) {
		c.String(http.StatusOK, GetModule(c))
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		return w
	}

	get("/broken")
	get("/broken")

	if w := get("/broken"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("broken after trip = %d, want 503", w.Code)
	}

	w := get("/page")
	if w.Code != http.StatusOK || w.Body.String() != "page" {
		t.Fatalf("page = %d %q, other modules must stay closed", w.Code, w.Body.String())
	}
}

func TestNilBreakersPassThrough(t *testing.T) {
	var b *Breakers

	r := gin.New()
	r.GET("/", b.Middleware("page"), func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
}
