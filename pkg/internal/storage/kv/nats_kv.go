package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeisme/skelvault/pkg/configs"
)

// NATSKV 基于 NATS JetStream KV 的实现，TTL 通过值包装惰性判断.
type NATSKV struct {
	kv     nats.KeyValue
	bucket string
	conn   *nats.Conn
}

// NewNATSKV 创建 NATS KV 实例.
func NewNATSKV(_ context.Context, cfg *configs.KVConfig) (KVStore, error) {
	nc := cfg.NATS

	opts := []nats.Option{nats.Name("skelvault-kv"), nats.RetryOnFailedConnect(false)}
	if nc.User != "" {
		opts = append(opts, nats.UserInfo(nc.User, nc.Password))
	}

	conn, err := nats.Connect(nc.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(nc.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		storage := nats.FileStorage
		if nc.Storage == "memory" {
			storage = nats.MemoryStorage
		}

		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   nc.Bucket,
			History:  1,
			Replicas: nc.Replicas,
			Storage:  storage,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to create/get KV bucket: %w", err)
	}

	return &NATSKV{kv: kv, bucket: nc.Bucket, conn: conn}, nil
}

// entry 读取并解包，过期时惰性删除.
func (n *NATSKV) entry(key string) ([]byte, uint64, error) {
	e, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, 0, notFound(key)
	}

	if err != nil {
		return nil, 0, fmt.Errorf("failed to get key: %w", err)
	}

	val, live, err := unseal(e.Value(), time.Now())
	if err != nil {
		return nil, 0, err
	}

	if !live {
		_ = n.kv.Delete(key, nats.LastRevision(e.Revision()))

		return nil, 0, notFound(key)
	}

	return val, e.Revision(), nil
}

// Get 获取键的值.
func (n *NATSKV) Get(_ context.Context, key string) ([]byte, error) {
	val, _, err := n.entry(key)

	return val, err
}

// Set 设置键的值.
func (n *NATSKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded := seal(value, ttl, time.Now())

	if _, err := n.kv.Put(key, encoded); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

// Take 读取后按修订号删除，修订号不匹配说明已被其他调用者取走.
func (n *NATSKV) Take(_ context.Context, key string) ([]byte, error) {
	val, rev, err := n.entry(key)
	if err != nil {
		return nil, err
	}

	if err := n.kv.Delete(key, nats.LastRevision(rev)); err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", ErrNotFound, key, err)
	}

	return val, nil
}

// Delete 删除键.
func (n *NATSKV) Delete(_ context.Context, key string) error {
	if err := n.kv.Delete(key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Exists 检查键是否存在.
func (n *NATSKV) Exists(_ context.Context, key string) (bool, error) {
	_, _, err := n.entry(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return err == nil, err
}

// Keys 获取所有匹配的键.
func (n *NATSKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get keys: %w", err)
	}

	result := make([]string, 0, len(keys))

	for _, key := range keys {
		if !matchKey(pattern, key) {
			continue
		}

		if _, _, err := n.entry(key); err != nil {
			continue
		}

		result = append(result, key)
	}

	return result, nil
}

// Close 关闭 NATS 连接.
func (n *NATSKV) Close() error {
	n.conn.Close()

	return nil
}

func init() {
	RegisterKVFactory(configs.KVTypeNATS, NewNATSKV)
}
