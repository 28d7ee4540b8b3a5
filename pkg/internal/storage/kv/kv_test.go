package kv_test

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
)

var groupSeq atomic.Int64

// localStores 返回无需外部服务的实现.
func localStores(t testing.TB) map[string]kv.KVStore {
	ctx := context.Background()

	mem, err := kv.NewKVStore(ctx, &configs.KVConfig{Type: configs.KVTypeMemory})
	if err != nil {
		t.Fatalf("create memory kv: %v", err)
	}

	gc, err := kv.NewKVStore(ctx, &configs.KVConfig{
		Type: configs.KVTypeGroupcache,
		Groupcache: configs.GroupcacheKVConfig{
			Name:       fmt.Sprintf("test-groupcache-%d", groupSeq.Add(1)),
			CacheBytes: 1 << 20,
		},
	})
	if err != nil {
		t.Fatalf("create groupcache kv: %v", err)
	}

	return map[string]kv.KVStore{"memory": mem, "groupcache": gc}
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
			}

			if err := store.Set(ctx, "a", []byte("1"), 0); err != nil {
				t.Fatalf("Set: %v", err)
			}

			got, err := store.Get(ctx, "a")
			if err != nil || string(got) != "1" {
				t.Fatalf("Get(a) = %q, %v", got, err)
			}

			if ok, _ := store.Exists(ctx, "a"); !ok {
				t.Fatal("Exists(a) = false")
			}

			if err := store.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete: %v", err)
			}

			if ok, _ := store.Exists(ctx, "a"); ok {
				t.Fatal("Exists(a) after delete = true")
			}
		})
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()

	for name, store := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "short", []byte("x"), 200*time.Millisecond); err != nil {
				t.Fatalf("Set: %v", err)
			}

			if _, err := store.Get(ctx, "short"); err != nil {
				t.Fatalf("Get before expiry: %v", err)
			}

			time.Sleep(300 * time.Millisecond)

			if _, err := store.Get(ctx, "short"); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get after expiry err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()

	for name, store := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "token", []byte("session"), time.Minute); err != nil {
				t.Fatalf("Set: %v", err)
			}

			const workers = 16

			var (
				wg   sync.WaitGroup
				wins atomic.Int32
			)

			for range workers {
				wg.Add(1)

				go func() {
					defer wg.Done()

					if v, err := store.Take(ctx, "token"); err == nil && string(v) == "session" {
						wins.Add(1)
					}
				}()
			}

			wg.Wait()

			if wins.Load() != 1 {
				t.Fatalf("Take succeeded %d times, want 1", wins.Load())
			}

			if _, err := store.Take(ctx, "token"); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("second Take err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestKeysPattern(t *testing.T) {
	ctx := context.Background()

	for name, store := range localStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"skey:a", "skey:b", "user:c"} {
				if err := store.Set(ctx, k, []byte("v"), 0); err != nil {
					t.Fatalf("Set(%s): %v", k, err)
				}
			}

			keys, err := store.Keys(ctx, "skey:*")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}

			sort.Strings(keys)

			if len(keys) != 2 || keys[0] != "skey:a" || keys[1] != "skey:b" {
				t.Fatalf("Keys(skey:*) = %v", keys)
			}
		})
	}
}

func BenchmarkLocalKV(b *testing.B) {
	for name, store := range localStores(b) {
		benchKV(b, name, store)
		benchKVParallel(b, name, store)
		_ = store.Close()
	}
}

// Optional: enable with ENABLE_REDIS_BENCH=1 and REDIS_ADDR set (default 127.0.0.1:6379).
func BenchmarkRedisKV(b *testing.B) {
	if os.Getenv("ENABLE_REDIS_BENCH") == "" {
		b.Skip("set ENABLE_REDIS_BENCH=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	store, err := kv.NewKVStore(context.Background(), &configs.KVConfig{
		Type:  configs.KVTypeRedis,
		Redis: configs.RedisKVConfig{Addr: addr},
	})
	if err != nil {
		b.Skipf("redis not available: %v", err)

		return
	}

	benchKV(b, "redis", store)
	benchKVParallel(b, "redis", store)
	_ = store.Close()
}

// Optional: enable with ENABLE_NATS_BENCH=1 and NATS_URL set (default nats://127.0.0.1:4222).
func BenchmarkNATSKV(b *testing.B) {
	if os.Getenv("ENABLE_NATS_BENCH") == "" {
		b.Skip("set ENABLE_NATS_BENCH=1 to enable")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}

	store, err := kv.NewKVStore(context.Background(), &configs.KVConfig{
		Type: configs.KVTypeNATS,
		NATS: configs.NATSKVConfig{URL: url, Bucket: "bench-kv"},
	})
	if err != nil {
		b.Skipf("nats not available: %v", err)

		return
	}

	benchKV(b, "nats", store)
	benchKVParallel(b, "nats", store)
	_ = store.Close()
}

// randBytes returns n random bytes, seeded reproducibly for bench.
func randBytes(n int) []byte {
	b := make([]byte, n)
	// Try crypto/rand; if it fails (unlikely in tests), fallback to deterministic PRNG.
	if _, err := crand.Read(b); err != nil {
		mr := mrand.New(mrand.NewSource(42))
		for i := range b {
			b[i] = byte(mr.Intn(256))
		}
	}

	return b
}

// benchKV 执行基本的 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	sizes := []int{32, 1024, 64 * 1024}
	ttls := []time.Duration{0, 5 * time.Second}

	for _, size := range sizes {
		payload := randBytes(size)
		for _, ttl := range ttls {
			b.Run(fmt.Sprintf("%s/size=%d/ttl=%s", name, size, ttl), func(b *testing.B) {
				// ensure clean
				b.ReportAllocs()

				for i := 0; b.Loop(); i++ {
					// Use hyphens to ensure keys are valid for NATS KV
					key := fmt.Sprintf("bench-%s-%d", name, i)
					if err := store.Set(ctx, key, payload, ttl); err != nil {
						b.Fatalf("set failed: %v", err)
					}

					if _, err := store.Get(ctx, key); err != nil {
						b.Fatalf("get failed: %v", err)
					}

					if err := store.Delete(ctx, key); err != nil {
						b.Fatalf("delete failed: %v", err)
					}
				}
			})
		}
	}
}

// benchKVParallel 执行并行的 Set/Get/Delete 基准测试.
func benchKVParallel(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	size := 1024
	payload := randBytes(size)

	var ctr uint64

	b.Run(fmt.Sprintf("%s/parallel", name), func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				i := atomic.AddUint64(&ctr, 1)

				// Use hyphens to ensure keys are valid for NATS KV
				key := fmt.Sprintf("bench-%s-p-%d", name, i)
				if err := store.Set(ctx, key, payload, 0); err != nil {
					b.Fatalf("set failed: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get failed: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete failed: %v", err)
				}
			}
		})
	})
}
