package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/yeisme/skelvault/pkg/internal/access"
)

func TestUserStoreLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := env.reg.Users

	if _, err := users.Resolve(ctx, "new@example.com", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve without provision err = %v", err)
	}

	u, err := users.Resolve(ctx, "new@example.com", true)
	if err != nil || len(u.Access) != 0 {
		t.Fatalf("provisioned = %+v, %v", u, err)
	}

	u, err = users.Grant(ctx, "new@example.com", "page-view", "page-edit", "bogus-right")
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if !slices.Equal(u.Access, []string{"page-edit", "page-view"}) {
		t.Fatalf("after grant access = %v", u.Access)
	}

	u, err = users.Revoke(ctx, "new@example.com", "page-edit", "file-add")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if !slices.Equal(u.Access, []string{"page-view"}) {
		t.Fatalf("after revoke access = %v", u.Access)
	}

	if _, err := users.Add(ctx, "new@example.com"); err == nil {
		t.Fatal("duplicate Add accepted")
	}

	if err := users.EnsureRoot(ctx, "admin@example.com"); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}

	admin, err := users.Resolve(ctx, "admin@example.com", false)
	if err != nil || !slices.Contains(admin.Access, access.Root) {
		t.Fatalf("admin = %+v, %v", admin, err)
	}

	list, err := users.List(ctx)
	if err != nil || len(list) != 2 || list[0].Name != "admin@example.com" {
		t.Fatalf("List = %+v, %v", list, err)
	}

	if _, err := users.Revoke(ctx, "ghost@example.com", "page-view"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Revoke unknown user err = %v", err)
	}
}
