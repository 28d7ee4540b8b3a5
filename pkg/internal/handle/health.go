package handle

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	ctxPkg "github.com/yeisme/skelvault/pkg/context"
)

const healthTimeout = 2 * time.Second

var errNotInitialized = errors.New("not initialized")

// healthChecks 各依赖的探测，返回的 detail 会附在响应里.
var healthChecks = map[string]func(ctx context.Context) (detail string, err error){
	"db": func(ctx context.Context) (string, error) {
		m := ctxPkg.Manager(ctx)
		if m == nil || m.DB == nil || m.DB.DB == nil {
			return "", errNotInitialized
		}

		return m.DB.Dialector.Name(), m.DB.Ping(ctx)
	},
	"blob": func(ctx context.Context) (string, error) {
		m := ctxPkg.Manager(ctx)
		if m == nil || m.Blob == nil {
			return "", errNotInitialized
		}

		_, err := m.Blob.List(ctx, 1)

		return "", err
	},
	"kv": func(ctx context.Context) (string, error) {
		m := ctxPkg.Manager(ctx)
		if m == nil || m.KV == nil || m.KV.KVStore == nil {
			return "", errNotInitialized
		}

		_, err := m.KV.Exists(ctx, "health:probe")

		return string(m.KV.Type()), err
	},
	"mq": func(ctx context.Context) (string, error) {
		m := ctxPkg.Manager(ctx)
		if m == nil || m.MQ == nil || m.MQ.Publisher() == nil {
			return "", errNotInitialized
		}

		return string(m.MQ.Type()), nil
	},
}

type componentHealth struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Type      string `json:"type,omitempty"`
	Error     string `json:"error,omitempty"`
}

func probe(ctx context.Context, name string) componentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	detail, err := healthChecks[name](ctx)
	if err != nil {
		return componentHealth{Component: name, Status: "unhealthy", Type: detail, Error: err.Error()}
	}

	return componentHealth{Component: name, Status: "ok", Type: detail}
}

// Health 并发探测全部依赖，任一异常时返回 503.
//
//	@Summary	健康检查
//	@Tags		系统
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Failure	503	{object}	map[string]any
//	@Router		/api/v1/health [get]
func Health(c *gin.Context) {
	var (
		mu      sync.Mutex
		results []componentHealth
		g       errgroup.Group
	)

	for name := range healthChecks {
		g.Go(func() error {
			r := probe(c.Request.Context(), name)

			mu.Lock()
			results = append(results, r)
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Component < results[j].Component })

	status, code := "ok", http.StatusOK

	for _, r := range results {
		if r.Status != "ok" {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{"status": status, "components": results})
}

// HealthComponent 探测单个依赖.
//
//	@Summary	单项健康检查
//	@Tags		系统
//	@Produce	json
//	@Param		component	path		string	true	"db、blob、kv 或 mq"
//	@Success	200			{object}	map[string]string
//	@Failure	503			{object}	map[string]string
//	@Router		/api/v1/health/{component} [get]
func HealthComponent(c *gin.Context) {
	name := c.Param("component")
	if _, ok := healthChecks[name]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "message": "unknown component " + name})
		return
	}

	r := probe(c.Request.Context(), name)
	if r.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, r)
		return
	}

	c.JSON(http.StatusOK, r)
}
