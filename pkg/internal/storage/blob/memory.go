package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/yeisme/skelvault/pkg/configs"
)

// MemoryStore 内存 blob 服务，并发安全，用于本地开发与测试.
type MemoryStore struct {
	baseURL string
	content map[string][]byte
	meta    map[string]Info
	mu      sync.RWMutex
}

// NewMemoryStore 创建内存 blob 服务，baseURL 用于拼接上传与访问地址.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		content: make(map[string][]byte),
		meta:    make(map[string]Info),
	}
}

func init() {
	RegisterFactory(configs.BlobTypeMemory, func(_ context.Context, cfg *configs.AppConfig) (Store, error) {
		return NewMemoryStore(cfg.Server.BasePath), nil
	})
}

// CreateUploadURL 内存实现直接返回本服务的上传接口.
func (m *MemoryStore) CreateUploadURL(_ context.Context, successPath string) (*UploadTarget, error) {
	return &UploadTarget{
		URL:     successPath,
		Method:  "POST",
		Expires: time.Now().Add(15 * time.Minute),
	}, nil
}

// Put 写入 blob，size<0 表示未知长度.
func (m *MemoryStore) Put(_ context.Context, filename, contentType string, r io.Reader, size int64) (Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read content: %w", err)
	}

	if size >= 0 && int64(len(data)) != size {
		return Info{}, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	info := Info{
		Key:         NewKey(),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.content[info.Key] = data
	m.meta[info.Key] = info

	return info, nil
}

// Get 读取元数据.
func (m *MemoryStore) Get(_ context.Context, key string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.meta[key]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return info, nil
}

// Open 打开内容.
func (m *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.meta[key]
	if !ok {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return io.NopCloser(bytes.NewReader(m.content[key])), info, nil
}

// Delete 删除 blob.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.content, key)
	delete(m.meta, key)

	return nil
}

// ServingURL 返回下载接口地址.
func (m *MemoryStore) ServingURL(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, ok := m.meta[key]
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return m.baseURL + "/" + configs.FileModuleName + "/download/" + url.PathEscape(key), nil
}

// List 列出 blob.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.meta))
	for _, info := range m.meta {
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// Len 返回 blob 数量.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.meta)
}
