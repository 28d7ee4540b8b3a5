// Package cache 提供基于键值存储的泛型缓存，值以 sonic 编码.
//
// 缓存与 skey 共用同一个 KV，所有键都落在独立的命名空间下，
// Clear 只会清理本命名空间，不会触及 skey 等业务数据.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore)
//
//	u, err := cache.GetOrSet(ctx, c, "auth-user:"+name, func() (*access.User, error) {
//		return users.Resolve(ctx, name, false)
//	}, time.Minute)
//
// 缓存未命中返回 kv.ErrNotFound；getter 的结果写入失败时仍返回该结果.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
)

// DefaultNamespace 缓存键的默认前缀.
const DefaultNamespace = "cache:"

// UserKey 身份解析结果的缓存键，权限变更后需删除.
func UserKey(name string) string { return "auth-user:" + name }

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore   kv.KVStore
	namespace string
}

// Option 缓存选项.
type Option func(*Cache)

// WithNamespace 替换默认命名空间，空值表示不加前缀.
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		c.namespace = ns
	}
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore, opts ...Option) *Cache {
	c := &Cache{
		kvStore:   kvStore,
		namespace: DefaultNamespace,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Namespace 返回键前缀.
func (c *Cache) Namespace() string {
	return c.namespace
}

func (c *Cache) key(k string) string {
	return c.namespace + k
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.key(key))
	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.key(key))
}

// GetOrSet 获取缓存值，未命中时调用 getter 并写回.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	value, err := getter()
	if err != nil {
		var zero T
		return zero, err
	}

	// 写缓存失败不影响本次结果
	_ = Set(ctx, c, key, value, ttl)

	return value, nil
}

// DeletePrefix 删除命名空间下以 prefix 开头的键，返回删除数量.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	full := c.key(prefix)

	keys, err := c.kvStore.Keys(ctx, full+"*")
	if err != nil {
		return 0, err
	}

	n := 0

	for _, key := range keys {
		// 部分后端的 Keys 忽略模式
		if !strings.HasPrefix(key, full) {
			continue
		}

		if err := c.kvStore.Delete(ctx, key); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

// Clear 删除命名空间下的全部键.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.DeletePrefix(ctx, "")

	return err
}
