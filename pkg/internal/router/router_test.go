package router

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/handle"
	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
	"github.com/yeisme/skelvault/pkg/middleware"
)

const (
	editorName = "editor@example.com"
	viewerName = "viewer@example.com"
	emailHdr   = "X-Auth-Request-Email"
)

var dbSeq atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
}

type apiEnv struct {
	engine *gin.Engine
	reg    *service.Registry
	blobs  *blob.MemoryStore
}

func newAPIEnv(t *testing.T, opts Options) *apiEnv {
	t.Helper()

	cfg := configs.Defaults()

	dsn := fmt.Sprintf("file:router%d?mode=memory&cache=shared", dbSeq.Add(1))

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

	store, err := kv.NewMemoryKV(context.Background(), &cfg.KV)
	if err != nil {
		t.Fatalf("memory kv: %v", err)
	}

	blobs := blob.NewMemoryStore(cfg.Server.BasePath)

	reg, err := service.NewRegistry(service.Deps{DB: db, KV: store, Blobs: blobs, Config: &cfg})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	ctx := context.Background()
	if _, err := reg.Users.Add(ctx, editorName,
		"page-add", "page-edit", "page-view", "page-delete",
		"file-add", "file-edit", "file-view", "file-delete"); err != nil {
		t.Fatalf("add editor: %v", err)
	}

	if _, err := reg.Users.Add(ctx, viewerName, "page-view"); err != nil {
		t.Fatalf("add viewer: %v", err)
	}

	auth := cfg.Auth
	auth.AutoProvision = false

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.AuthMiddleware(auth, reg.Users, nil))
	Register(engine.Group(cfg.Server.BasePath), handle.New(reg, &cfg), opts)

	return &apiEnv{engine: engine, reg: reg, blobs: blobs}
}

func (e *apiEnv) do(t *testing.T, method, target, user string, body *strings.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if user != "" {
		req.Header.Set(emailHdr, user)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	return w
}

func (e *apiEnv) form(t *testing.T, target, user string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()

	return e.do(t, http.MethodPost, target, user, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (e *apiEnv) skey(t *testing.T, user string) string {
	t.Helper()

	w := e.do(t, http.MethodGet, "/api/v1/skey", user, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("skey code = %d", w.Code)
	}

	var out struct {
		SKey string `json:"skey"`
	}

	decode(t, w, &out)

	if out.SKey == "" {
		t.Fatal("empty skey")
	}

	return out.SKey
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := sonic.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type itemResponse struct {
	Action string         `json:"action"`
	Values map[string]any `json:"values"`
	Errors map[string]any `json:"errors"`
}

type listResponse struct {
	Action   string           `json:"action"`
	SkelList []map[string]any `json:"skellist"`
}

func TestModuleRoutes(t *testing.T) {
	env := newAPIEnv(t, Options{})

	// 无 skey 时只回显表单
	w := env.form(t, "/api/v1/page/add", editorName, url.Values{"title": {"Hello"}})
	if w.Code != http.StatusOK {
		t.Fatalf("bounce code = %d (%s)", w.Code, w.Body.String())
	}

	var bounced itemResponse
	decode(t, w, &bounced)

	if bounced.Action != string(service.ActionAdd) {
		t.Fatalf("bounce action = %s", bounced.Action)
	}

	w = env.form(t, "/api/v1/page/add", editorName, url.Values{"title": {"Hello"}, "skey": {env.skey(t, editorName)}})
	if w.Code != http.StatusOK {
		t.Fatalf("add code = %d (%s)", w.Code, w.Body.String())
	}

	var added itemResponse
	decode(t, w, &added)

	key, _ := added.Values["key"].(string)
	if added.Action != string(service.ActionAddSuccess) || key == "" {
		t.Fatalf("add response = %+v", added)
	}

	// skey 只能使用一次
	used := url.Values{"title": {"Again"}, "skey": {"not-a-key"}}
	if w := env.form(t, "/api/v1/page/add", editorName, used); w.Code != http.StatusPreconditionFailed {
		t.Fatalf("stale skey code = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/page/list", viewerName, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list code = %d", w.Code)
	}

	var list listResponse
	decode(t, w, &list)

	if len(list.SkelList) != 1 || list.SkelList[0]["title"] != "Hello" {
		t.Fatalf("list = %+v", list.SkelList)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/page/view/"+key, viewerName, nil, ""); w.Code != http.StatusOK {
		t.Fatalf("view code = %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/page/view/missing", viewerName, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing view code = %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/page/delete/"+key+"?skey="+env.skey(t, editorName), editorName, nil, ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET delete code = %d", w.Code)
	}

	if w := env.form(t, "/api/v1/page/delete/"+key, viewerName, url.Values{"skey": {env.skey(t, viewerName)}}); w.Code != http.StatusUnauthorized {
		t.Fatalf("viewer delete code = %d", w.Code)
	}

	w = env.form(t, "/api/v1/page/delete/"+key, editorName, url.Values{"skey": {env.skey(t, editorName)}})
	if w.Code != http.StatusOK {
		t.Fatalf("delete code = %d (%s)", w.Code, w.Body.String())
	}

	var deleted itemResponse
	decode(t, w, &deleted)

	if deleted.Action != string(service.ActionDeleteSuccess) || deleted.Values["key"] != key {
		t.Fatalf("delete response = %+v", deleted)
	}
}

func TestAnonymousDenied(t *testing.T) {
	env := newAPIEnv(t, Options{})

	if w := env.do(t, http.MethodGet, "/api/v1/page/list", "", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list code = %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/user/me", "", nil, "")

	var me struct {
		User any `json:"user"`
	}

	decode(t, w, &me)

	if me.User != nil {
		t.Fatalf("anonymous user = %v", me.User)
	}
}

func TestForceSSLOnMutations(t *testing.T) {
	env := newAPIEnv(t, Options{ForceSSL: true})

	values := url.Values{"title": {"Hello"}, "skey": {env.skey(t, editorName)}}
	if w := env.form(t, "/api/v1/page/add", editorName, values); w.Code != http.StatusForbidden {
		t.Fatalf("insecure add code = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/page/add", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(emailHdr, editorName)
	req.Header.Set("X-Forwarded-Proto", "https")

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("secure add code = %d (%s)", w.Code, w.Body.String())
	}

	// 只读接口不受影响
	if w := env.do(t, http.MethodGet, "/api/v1/page/list", editorName, nil, ""); w.Code != http.StatusOK {
		t.Fatalf("list code = %d", w.Code)
	}
}

func TestAccessRights(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/api/v1/access/rights", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("rights code = %d", w.Code)
	}

	var out struct {
		Modules []string `json:"modules"`
		Rights  []string `json:"rights"`
	}

	decode(t, w, &out)

	want := map[string]bool{"page-view": false, "file-add": false, "root": false}
	for _, r := range out.Rights {
		if _, ok := want[r]; ok {
			want[r] = true
		}
	}

	for r, seen := range want {
		if !seen {
			t.Fatalf("right %s missing from %v", r, out.Rights)
		}
	}
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*strings.Reader, string) {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}

		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	return strings.NewReader(buf.String()), mw.FormDataContentType()
}

func TestFileUploadAndDownload(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/api/v1/file/getAvailableRootNodes", editorName, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("root nodes code = %d", w.Code)
	}

	var roots []service.RootNodeRef
	decode(t, w, &roots)

	if len(roots) != 1 || roots[0].Key == "" {
		t.Fatalf("roots = %+v", roots)
	}

	root := roots[0].Key

	body, ct := multipartBody(t, map[string]string{"notes.txt": "hello world"}, nil)
	w = env.do(t, http.MethodPost, "/api/v1/file/upload/"+root, editorName, body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("upload code = %d (%s)", w.Code, w.Body.String())
	}

	var uploaded listResponse
	decode(t, w, &uploaded)

	if len(uploaded.SkelList) != 1 {
		t.Fatalf("uploaded = %+v", uploaded)
	}

	dlkey, _ := uploaded.SkelList[0][service.BoneDLKey].(string)
	if dlkey == "" {
		t.Fatalf("leaf without dlkey: %+v", uploaded.SkelList[0])
	}

	w = env.do(t, http.MethodGet, "/api/v1/file/download/"+dlkey+"?download=1&fileName=report.txt", editorName, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download code = %d", w.Code)
	}

	if got := w.Body.String(); got != "hello world" {
		t.Fatalf("download body = %q", got)
	}

	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "report.txt") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	// 以 blob key 查看时跳转到下载
	w = env.do(t, http.MethodGet, "/api/v1/file/view/leaf/"+dlkey, editorName, nil, "")
	if w.Code != http.StatusFound || !strings.Contains(w.Header().Get("Location"), "/download/"+dlkey) {
		t.Fatalf("view redirect code = %d location = %q", w.Code, w.Header().Get("Location"))
	}

	if w := env.do(t, http.MethodGet, "/api/v1/file/download/missing", editorName, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing download code = %d", w.Code)
	}
}

func TestFileUploadRejections(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body, ct := multipartBody(t, nil, map[string]string{"node": "x"})
	if w := env.do(t, http.MethodPost, "/api/v1/file/upload", editorName, body, ct); w.Code != http.StatusNotAcceptable {
		t.Fatalf("empty upload code = %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/file/upload", editorName, nil, ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET upload code = %d", w.Code)
	}

	body, ct = multipartBody(t, map[string]string{"a.txt": "a"}, nil)
	if w := env.do(t, http.MethodPost, "/api/v1/file/upload/missing", editorName, body, ct); w.Code != http.StatusNotFound {
		t.Fatalf("missing node code = %d", w.Code)
	}

	if n := env.blobs.Len(); n != 0 {
		t.Fatalf("blobs left after failed upload = %d", n)
	}

	body, ct = multipartBody(t, map[string]string{"a.txt": "a"}, nil)
	if w := env.do(t, http.MethodPost, "/api/v1/file/upload", viewerName, body, ct); w.Code != http.StatusForbidden {
		t.Fatalf("viewer upload code = %d", w.Code)
	}
}

func TestFileUploadRejectionKeepsReferencedBlob(t *testing.T) {
	env := newAPIEnv(t, Options{})

	body, ct := multipartBody(t, map[string]string{"keep.txt": "keep me"}, nil)

	w := env.do(t, http.MethodPost, "/api/v1/file/upload", editorName, body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("upload code = %d (%s)", w.Code, w.Body.String())
	}

	var uploaded listResponse
	decode(t, w, &uploaded)

	if len(uploaded.SkelList) != 1 {
		t.Fatalf("uploaded = %+v", uploaded)
	}

	dlkey, _ := uploaded.SkelList[0][service.BoneDLKey].(string)

	body, ct = multipartBody(t, map[string]string{"x.txt": "x"}, map[string]string{"blobkey": dlkey})
	if w := env.do(t, http.MethodPost, "/api/v1/file/upload", viewerName, body, ct); w.Code != http.StatusForbidden {
		t.Fatalf("viewer upload code = %d", w.Code)
	}

	if _, err := env.blobs.Get(context.Background(), dlkey); err != nil {
		t.Fatalf("referenced blob deleted by rejected upload: %v", err)
	}

	if n := env.blobs.Len(); n != 1 {
		t.Fatalf("blobs = %d, want 1", n)
	}
}

func TestFileAddRequiresPost(t *testing.T) {
	env := newAPIEnv(t, Options{})

	w := env.do(t, http.MethodGet, "/api/v1/file/getAvailableRootNodes", editorName, nil, "")

	var roots []service.RootNodeRef
	decode(t, w, &roots)

	if len(roots) != 1 {
		t.Fatalf("roots = %+v", roots)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/file/add/node/"+roots[0].Key, editorName, nil, ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET add code = %d", w.Code)
	}
}
