package kv

import (
	"context"
	"sync"
	"time"

	"github.com/yeisme/skelvault/pkg/configs"
)

// MemoryKV 基于 sync.Map 的内存 KV 实现，值统一经过 TTL 包装.
type MemoryKV struct {
	data sync.Map
}

func newMemoryKV() *MemoryKV {
	return &MemoryKV{}
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(_ context.Context, _ *configs.KVConfig) (KVStore, error) {
	return newMemoryKV(), nil
}

// entry 以指针形式存入 map，CompareAndDelete 需要可比较的值.
type entry struct {
	data []byte
}

func (m *MemoryKV) load(key string, raw any) ([]byte, error) {
	e, ok := raw.(*entry)
	if !ok {
		return nil, notFound(key)
	}

	val, live, err := unseal(e.data, time.Now())
	if err != nil {
		return nil, err
	}

	if !live {
		m.data.CompareAndDelete(key, raw)

		return nil, notFound(key)
	}

	result := make([]byte, len(val))
	copy(result, val)

	return result, nil
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	raw, exists := m.data.Load(key)
	if !exists {
		return nil, notFound(key)
	}

	return m.load(key, raw)
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	encoded := seal(data, ttl, time.Now())

	m.data.Store(key, &entry{data: encoded})

	return nil
}

// Take 原子地取出键.
func (m *MemoryKV) Take(_ context.Context, key string) ([]byte, error) {
	raw, loaded := m.data.LoadAndDelete(key)
	if !loaded {
		return nil, notFound(key)
	}

	return m.load(key, raw)
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := m.Get(ctx, key); err != nil {
		return false, nil
	}

	return true, nil
}

// Keys 获取所有匹配的键.
func (m *MemoryKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, _ any) bool {
		k, ok := key.(string)
		if !ok || !matchKey(pattern, k) {
			return true
		}

		if ok, _ := m.Exists(ctx, k); ok {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(configs.KVTypeMemory, NewMemoryKV)
}
