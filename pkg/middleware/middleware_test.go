package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	generated := w.Header().Get(RequestIDHeader)
	if generated == "" || generated != w.Body.String() {
		t.Fatalf("generated id = %q, body = %q", generated, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("echoed id = %q, want req-42", got)
	}
}

func TestForceSSL(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		proto    string
		tls      bool
		wantCode int
	}{
		{"disabled", false, "", false, http.StatusOK},
		{"plain", true, "", false, http.StatusForbidden},
		{"forwarded http", true, "http", false, http.StatusForbidden},
		{"forwarded https", true, "https", false, http.StatusOK},
		{"tls", true, "", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/", ForceSSL(tt.enabled), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}

			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestForcePost(t *testing.T) {
	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/delete", ForcePost(), ok)
	r.POST("/delete", ForcePost(), ok)

	for method, want := range map[string]int{
		http.MethodGet:  http.StatusMethodNotAllowed,
		http.MethodPost: http.StatusOK,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, "/delete", nil))

		if w.Code != want {
			t.Fatalf("%s code = %d, want %d", method, w.Code, want)
		}
	}
}
