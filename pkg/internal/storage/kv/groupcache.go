package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/skelvault/pkg/configs"
)

// GroupcacheKV 本地 map 为权威数据，groupcache 组负责向对等节点提供读穿透.
// 写入、删除与 Take 只作用于本节点.
type GroupcacheKV struct {
	group *groupcache.Group
	peers *groupcache.HTTPPool
	data  map[string][]byte
	mu    sync.Mutex
}

type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(ctx context.Context, key string, dest groupcache.Sink) error {
	val, err := g.kv.local(key, false)
	if err != nil {
		return err
	}

	if err := dest.SetBytes(val); err != nil {
		return fmt.Errorf("failed to set bytes to sink: %w", err)
	}

	return nil
}

// NewGroupcacheKV 创建 Groupcache KV 实例，同名组在进程内只能创建一次.
func NewGroupcacheKV(_ context.Context, cfg *configs.KVConfig) (KVStore, error) {
	gc := cfg.Groupcache

	if groupcache.GetGroup(gc.Name) != nil {
		return nil, fmt.Errorf("groupcache group %q already registered", gc.Name)
	}

	kv := &GroupcacheKV{data: make(map[string][]byte)}
	kv.group = groupcache.NewGroup(gc.Name, gc.CacheBytes, &groupcacheGetter{kv: kv})

	if len(gc.Peers) > 0 {
		kv.peers = groupcache.NewHTTPPoolOpts(gc.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gc.Peers...)
	}

	return kv, nil
}

// local 读取本地数据，take 为 true 时同时删除.
func (g *GroupcacheKV) local(key string, take bool) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	raw, ok := g.data[key]
	if !ok {
		return nil, notFound(key)
	}

	val, live, err := unseal(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if !live || take {
		delete(g.data, key)
	}

	if !live {
		return nil, notFound(key)
	}

	out := make([]byte, len(val))
	copy(out, val)

	return out, nil
}

// Get 优先读本地，本地缺失且配置了对等节点时经由 groupcache 获取.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := g.local(key, false)
	if err == nil || g.peers == nil {
		return val, err
	}

	var data []byte
	if err := g.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, notFound(key)
	}

	return data, nil
}

// Set 设置键的值.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	encoded := seal(data, ttl, time.Now())

	g.mu.Lock()
	g.data[key] = encoded
	g.mu.Unlock()

	return nil
}

// Take 原子地取出本地键.
func (g *GroupcacheKV) Take(_ context.Context, key string) ([]byte, error) {
	return g.local(key, true)
}

// Delete 删除键.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (g *GroupcacheKV) Exists(_ context.Context, key string) (bool, error) {
	_, err := g.local(key, false)

	return err == nil, nil
}

// Keys 获取本地所有匹配的键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(g.data))

	for key, raw := range g.data {
		if !matchKey(pattern, key) {
			continue
		}

		if _, live, err := unseal(raw, now); err != nil || !live {
			continue
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// Close 关闭缓存，groupcache 没有显式的关闭方法.
func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(configs.KVTypeGroupcache, NewGroupcacheKV)
}
