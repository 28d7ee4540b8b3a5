// Package blob 定义 blob 服务接口：上传地址、写入、读取元数据、下载、删除与可访问地址.
// blob 的 key 由写入方生成，每次上传唯一.
package blob

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/skelvault/pkg/configs"
)

// ErrNotFound blob 不存在.
var ErrNotFound = errors.New("blob: not found")

// Info blob 元数据.
type Info struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsImage 内容类型是否为图片.
func (i Info) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(i.ContentType), "image/")
}

// UploadTarget 客户端直传目标，表单字段需原样提交.
type UploadTarget struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Fields  map[string]string `json:"fields,omitempty"`
	Expires time.Time         `json:"expires"`
}

// Store blob 服务.
type Store interface {
	// CreateUploadURL 生成直传地址，上传完成后客户端携带 blobkey 调用 successPath.
	CreateUploadURL(ctx context.Context, successPath string) (*UploadTarget, error)
	// Put 写入一个新 blob 并返回其元数据.
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (Info, error)
	// Get 读取元数据，不存在时返回 ErrNotFound.
	Get(ctx context.Context, key string) (Info, error)
	// Open 打开内容流，调用方负责关闭.
	Open(ctx context.Context, key string) (io.ReadCloser, Info, error)
	// Delete 删除 blob，不存在时不报错.
	Delete(ctx context.Context, key string) error
	// ServingURL 返回可直接访问的地址.
	ServingURL(ctx context.Context, key string) (string, error)
	// List 按 key 顺序列出 blob.
	List(ctx context.Context, limit int) ([]Info, error)
}

// Factory 按配置创建 Store.
type Factory func(ctx context.Context, cfg *configs.AppConfig) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.BlobType]Factory{}
)

// RegisterFactory 注册 blob 后端.
func RegisterFactory(t configs.BlobType, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[t] = f
}

// GetRegisteredTypes 返回已注册的后端类型.
func GetRegisteredTypes() []configs.BlobType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]configs.BlobType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// New 按配置创建 blob 服务.
func New(ctx context.Context, cfg *configs.AppConfig) (Store, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Blob.Type]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported blob type: %s", cfg.Blob.Type)
	}

	return f(ctx, cfg)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewKey 生成新的 blob key.
func NewKey() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}
