package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/model"
)

func pageFields(title string) map[string][]string {
	return map[string][]string{"title": {title}, "content": {"body"}}
}

func TestAddUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)

	for _, u := range []*access.User{nil, viewerUser} {
		_, err := pages.Add(context.Background(), env.post(u, env.skey(t), pageFields("x")))
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Add(%v) err = %v, want ErrUnauthorized", u, err)
		}
	}

	if n := env.count(t, &model.Entity{}); n != 0 {
		t.Fatalf("entities = %d, want 0", n)
	}
}

func TestAddBounce(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  func(skey string) Request
	}{
		{"no fields", func(skey string) Request { return env.post(editorUser, skey, nil) }},
		{"no skey", func(string) Request { return env.post(editorUser, "", pageFields("a")) }},
		{"get request", func(skey string) Request {
			r := env.post(editorUser, skey, pageFields("a"))
			r.Method = http.MethodGet

			return r
		}},
		{"invalid fields", func(skey string) Request {
			return env.post(editorUser, skey, map[string][]string{"title": {""}})
		}},
		{"explicit bounce", func(skey string) Request {
			r := env.post(editorUser, skey, pageFields("a"))
			r.Bounce = true

			return r
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skey := env.skey(t)

			res, err := pages.Add(ctx, tt.req(skey))
			if err != nil {
				t.Fatalf("Add: %v", err)
			}

			if res.Action != ActionAdd {
				t.Fatalf("action = %s, want %s", res.Action, ActionAdd)
			}

			// bounce 不消耗 skey.
			if !env.reg.SKeys.Validate(ctx, skey, testSession, false) {
				t.Fatal("skey consumed by bounce")
			}
		})
	}

	if n := env.count(t, &model.Entity{}); n != 0 {
		t.Fatalf("entities = %d, want 0", n)
	}
}

func TestAddSingleUseSKey(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()
	skey := env.skey(t)

	res, err := pages.Add(ctx, env.post(editorUser, skey, pageFields("first")))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if res.Action != ActionAddSuccess || res.Skel.Key == "" {
		t.Fatalf("Add result = %+v", res)
	}

	_, err = pages.Add(ctx, env.post(editorUser, skey, pageFields("second")))
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("second Add err = %v, want ErrPreconditionFailed", err)
	}

	if n := env.count(t, &model.Entity{}); n != 1 {
		t.Fatalf("entities = %d, want 1", n)
	}
}

func TestSessionKey(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	sk, err := env.reg.SKeys.SessionKey(ctx, testSession)
	if err != nil {
		t.Fatalf("SessionKey: %v", err)
	}

	for i := range 2 {
		if _, err := pages.Add(ctx, env.post(editorUser, sk, pageFields(fmt.Sprint(i)))); err != nil {
			t.Fatalf("Add #%d with session key: %v", i, err)
		}
	}

	// preview 不接受会话级 skey.
	_, err = pages.Preview(ctx, env.post(editorUser, sk, pageFields("p")))
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("Preview err = %v, want ErrPreconditionFailed", err)
	}

	// 其他会话不能使用.
	other := env.post(editorUser, sk, pageFields("x"))
	other.Session = "session-2"

	if _, err := pages.Add(ctx, other); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("Add from other session err = %v, want ErrPreconditionFailed", err)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)

	res, err := pages.Preview(context.Background(), env.post(editorUser, env.skey(t), pageFields("draft")))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if res.Action != ActionPreview || res.Skel.String("title") != "draft" {
		t.Fatalf("Preview result = %+v", res)
	}

	if n := env.count(t, &model.Entity{}); n != 0 {
		t.Fatalf("entities = %d, want 0", n)
	}

	if _, err := pages.Preview(context.Background(), env.post(viewerUser, env.skey(t), nil)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("viewer Preview err = %v, want ErrUnauthorized", err)
	}
}

func TestEditViewDelete(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	added, err := pages.Add(ctx, env.post(editorUser, env.skey(t), pageFields("before")))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	key := added.Skel.Key

	if _, err := pages.Edit(ctx, "", env.post(editorUser, env.skey(t), nil)); !errors.Is(err, ErrNotAcceptable) {
		t.Fatalf("Edit(empty) err = %v, want ErrNotAcceptable", err)
	}

	if _, err := pages.Edit(ctx, "missing", env.post(editorUser, env.skey(t), nil)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Edit(missing) err = %v, want ErrNotFound", err)
	}

	if _, err := pages.Edit(ctx, key, env.post(viewerUser, env.skey(t), pageFields("x"))); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("viewer Edit err = %v, want ErrUnauthorized", err)
	}

	res, err := pages.Edit(ctx, key, env.post(editorUser, env.skey(t), map[string][]string{"title": {"after"}}))
	if err != nil || res.Action != ActionEditSuccess {
		t.Fatalf("Edit = %+v, %v", res, err)
	}

	viewed, err := pages.View(ctx, viewerUser, key)
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	if got := viewed.Skel.String("title"); got != "after" {
		t.Fatalf("title = %q, want after", got)
	}

	if got := viewed.Skel.String("content"); got != "body" {
		t.Fatalf("content = %q, want body (kept when not submitted)", got)
	}

	if _, err := pages.View(ctx, nil, key); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous View err = %v, want ErrUnauthorized", err)
	}

	if _, err := pages.Delete(ctx, key, env.post(viewerUser, env.skey(t), nil)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("viewer Delete err = %v, want ErrUnauthorized", err)
	}

	if _, err := pages.Delete(ctx, key, env.post(editorUser, "bogus", nil)); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("Delete with bad skey err = %v, want ErrPreconditionFailed", err)
	}

	if _, err := pages.Delete(ctx, key, env.post(editorUser, env.skey(t), nil)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := pages.View(ctx, rootUser, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("View after delete err = %v, want ErrNotFound", err)
	}
}

func TestViewStructure(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)

	res, err := pages.View(context.Background(), viewerUser, StructureKey)
	if err != nil || res.Action != ActionStructure {
		t.Fatalf("View(structure) = %+v, %v", res, err)
	}

	if _, err := pages.View(context.Background(), nil, StructureKey); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous View(structure) err = %v, want ErrUnauthorized", err)
	}
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	for _, title := range []string{"alpha", "alpine", "beta"} {
		if _, err := pages.Add(ctx, env.post(editorUser, env.skey(t), pageFields(title))); err != nil {
			t.Fatalf("Add(%s): %v", title, err)
		}
	}

	tests := []struct {
		name    string
		filters map[string][]string
		want    int
	}{
		{"all", nil, 3},
		{"prefix", map[string][]string{"title$lk": {"alp"}}, 2},
		{"equal", map[string][]string{"title": {"beta"}}, 1},
		{"bad amount ignored", map[string][]string{"amount": {"x"}}, 3},
		{"limited", map[string][]string{"amount": {"2"}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := pages.List(ctx, viewerUser, tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}

			if len(res.List.Skels) != tt.want {
				t.Fatalf("List returned %d, want %d", len(res.List.Skels), tt.want)
			}
		})
	}

	if _, err := pages.List(ctx, nil, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous List err = %v, want ErrUnauthorized", err)
	}
}

func TestListCursor(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	for i := range 5 {
		if _, err := pages.Add(ctx, env.post(editorUser, env.skey(t), pageFields(fmt.Sprintf("p%d", i)))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	seen := map[string]bool{}
	cursor := ""

	for range 5 {
		res, err := pages.List(ctx, viewerUser, map[string][]string{"amount": {"2"}, "cursor": {cursor}})
		if err != nil {
			t.Fatalf("List: %v", err)
		}

		for _, s := range res.List.Skels {
			if seen[s.Key] {
				t.Fatalf("key %s returned twice", s.Key)
			}

			seen[s.Key] = true
		}

		if cursor = res.List.Cursor; cursor == "" {
			break
		}
	}

	if len(seen) != 5 {
		t.Fatalf("paged %d entries, want 5", len(seen))
	}
}

func TestSetSortIndex(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	added, err := pages.Add(ctx, env.post(editorUser, env.skey(t), pageFields("s")))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, bad := range []string{"", "abc", "NaN", "Inf"} {
		if _, err := pages.SetSortIndex(ctx, added.Skel.Key, bad, env.post(editorUser, env.skey(t), nil)); !errors.Is(err, ErrNotAcceptable) {
			t.Fatalf("SetSortIndex(%q) err = %v, want ErrNotAcceptable", bad, err)
		}
	}

	if _, err := pages.SetSortIndex(ctx, added.Skel.Key, "7.5", env.post(editorUser, env.skey(t), nil)); err != nil {
		t.Fatalf("SetSortIndex: %v", err)
	}

	got, err := env.reg.Store.Get(ctx, pages.Factory, added.Skel.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.SortIndex() != 7.5 {
		t.Fatalf("sort index = %v, want 7.5", got.SortIndex())
	}
}

func TestHooksRunAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(t)
	ctx := context.Background()

	var events []Event

	pages.Hooks = Hooks{
		func(_ context.Context, ev HookEvent) { events = append(events, ev.Event) },
		func(context.Context, HookEvent) { panic("boom") },
	}

	added, err := pages.Add(ctx, env.post(editorUser, env.skey(t), pageFields("h")))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := pages.View(ctx, viewerUser, added.Skel.Key); err != nil {
		t.Fatalf("View: %v", err)
	}

	if _, err := pages.Delete(ctx, added.Skel.Key, env.post(editorUser, env.skey(t), nil)); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []Event{EventAdded, EventViewed, EventDeleted}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", ErrNotFound), http.StatusNotFound},
		{ErrNotAcceptable, http.StatusNotAcceptable},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrPreconditionFailed, http.StatusPreconditionFailed},
		{fmt.Errorf("%w: %w", ErrInternal, ErrNotFound), http.StatusInternalServerError},
		{&RedirectError{Location: "/x"}, http.StatusFound},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
