package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
)

const testSession = "session-1"

var dbSeq atomic.Int64

var (
	rootUser   = &access.User{Key: "1", Name: "root@example.com", Access: []string{access.Root}}
	editorUser = &access.User{Key: "2", Name: "editor@example.com", Access: []string{
		"page-add", "page-edit", "page-view", "page-delete",
		"file-add", "file-edit", "file-view", "file-delete",
	}}
	viewerUser = &access.User{Key: "3", Name: "viewer@example.com", Access: []string{"page-view", "file-view"}}
)

func newTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service%d?mode=memory&cache=shared", dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

type testEnv struct {
	cfg   configs.AppConfig
	db    *gorm.DB
	kv    kv.KVStore
	blobs *blob.MemoryStore
	reg   *Registry
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()

	cfg := configs.Defaults()
	db := newTestDB(t)

	store, err := kv.NewMemoryKV(context.Background(), &cfg.KV)
	if err != nil {
		t.Fatalf("memory kv: %v", err)
	}

	blobs := blob.NewMemoryStore(cfg.Server.BasePath)

	reg, err := NewRegistry(Deps{DB: db, KV: store, Blobs: blobs, Config: &cfg})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	return &testEnv{cfg: cfg, db: db, kv: store, blobs: blobs, reg: reg}
}

func (e *testEnv) pages(t testing.TB) *Controller {
	t.Helper()

	c, ok := e.reg.List("page")
	if !ok {
		t.Fatal("page module missing")
	}

	return c
}

func (e *testEnv) skey(t testing.TB) string {
	t.Helper()

	token, err := e.reg.SKeys.Create(context.Background(), testSession)
	if err != nil {
		t.Fatalf("create skey: %v", err)
	}

	return token
}

func (e *testEnv) putBlob(t testing.TB, name, contentType, content string) blob.Info {
	t.Helper()

	info, err := e.blobs.Put(context.Background(), name, contentType, strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("put blob: %v", err)
	}

	return info
}

func (e *testEnv) count(t testing.TB, m any, where ...any) int64 {
	t.Helper()

	var n int64

	q := e.db.Model(m)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}

	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}

	return n
}

func (e *testEnv) post(u *access.User, skey string, fields map[string][]string) Request {
	return Request{User: u, Session: testSession, Method: "POST", SKey: skey, Fields: fields}
}
