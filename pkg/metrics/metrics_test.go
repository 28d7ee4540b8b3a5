package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/skelvault/pkg/configs"
)

func TestMetricsEndpoint(t *testing.T) {
	cfg := configs.MetricsConfig{
		Enabled: true,
		Labels:  map[string]string{"service": "skelvault-test"},
	}

	if err := InitMetrics(cfg); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}

	Uploads.WithLabelValues("ok").Inc()
	GCBlobs.WithLabelValues("deleted").Add(2)

	gin.SetMode(gin.TestMode)

	e := gin.New()
	if err := StartMetricsServer(cfg, false, e); err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		`skelvault_uploads_total{result="ok",service="skelvault-test"} 1`,
		`skelvault_gc_blobs_total{action="deleted",service="skelvault-test"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("pprof must not be mounted when disabled, got %d", w.Code)
	}
}

func TestInitMetricsDisabled(t *testing.T) {
	e := gin.New()
	if err := StartMetricsServer(configs.MetricsConfig{}, true, e); err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}

	if len(e.Routes()) != 0 {
		t.Fatalf("routes = %v, want none", e.Routes())
	}
}
