package access_test

import (
	"context"
	"testing"

	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

func pageFactory() *skeleton.Factory {
	return skeleton.MustFactory("page", "page",
		skeleton.NewBoolBone(skeleton.BaseBone{Name: "active", Indexed: true}),
	)
}

// TestTable 测试权限表生成.
func TestTable(t *testing.T) {
	table := access.NewTable("page", "news", "page")

	rights := table.Rights()
	if len(rights) != 9 {
		t.Fatalf("rights = %v, want 9 entries", rights)
	}

	if !table.Known("news-delete") || table.Known("news-publish") {
		t.Error("unexpected Known result")
	}

	got := table.Filter([]string{"page-view", "bogus", "page-view", " root "})
	if len(got) != 2 || got[0] != "page-view" || got[1] != "root" {
		t.Errorf("Filter = %v", got)
	}
}

// TestModuleGuard 测试默认守卫.
func TestModuleGuard(t *testing.T) {
	ctx := context.Background()
	table := access.NewTable("page")
	g := access.NewModuleGuard("page", table)
	q := pageFactory().All()

	tests := []struct {
		name    string
		user    *access.User
		add     bool
		edit    bool
		del     bool
		preview bool
		list    bool
	}{
		{"anonymous", nil, false, false, false, false, false},
		{"no rights", &access.User{Key: "u"}, false, false, false, false, false},
		{"root", &access.User{Access: []string{"root"}}, true, true, true, true, true},
		{"adder", &access.User{Access: []string{"page-add"}}, true, false, false, true, false},
		{"editor", &access.User{Access: []string{"page-edit"}}, false, true, false, true, false},
		{"viewer", &access.User{Access: []string{"page-view"}}, false, false, false, false, true},
		{"deleter", &access.User{Access: []string{"page-delete"}}, false, false, true, false, false},
		{"other module", &access.User{Access: []string{"news-add", "news-view"}}, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.CanAdd(ctx, tt.user, nil); got != tt.add {
				t.Errorf("CanAdd = %v", got)
			}

			if got := g.CanEdit(ctx, tt.user, nil); got != tt.edit {
				t.Errorf("CanEdit = %v", got)
			}

			if got := g.CanDelete(ctx, tt.user, nil); got != tt.del {
				t.Errorf("CanDelete = %v", got)
			}

			if got := g.CanPreview(ctx, tt.user); got != tt.preview {
				t.Errorf("CanPreview = %v", got)
			}

			if got := g.ListFilter(ctx, tt.user, q) != nil; got != tt.list {
				t.Errorf("ListFilter allowed = %v", got)
			}
		})
	}
}

// TestPublicActive 测试公开查看策略.
func TestPublicActive(t *testing.T) {
	ctx := context.Background()
	f := pageFactory()
	g := access.NewModuleGuard("page", access.NewTable("page"))
	view := access.PublicActive(g, "active")

	active := f.New()
	_ = active.Set("active", true)

	hidden := f.New()

	if !view.CanView(ctx, nil, active) {
		t.Error("active entries are public")
	}

	if view.CanView(ctx, nil, hidden) {
		t.Error("inactive entries need view rights")
	}

	if !view.CanView(ctx, &access.User{Access: []string{"page-view"}}, hidden) {
		t.Error("viewer should see inactive entries")
	}
}

// TestUserContext 测试 context 存取.
func TestUserContext(t *testing.T) {
	if access.UserFrom(context.Background()) != nil {
		t.Fatal("empty context should carry no user")
	}

	u := &access.User{Key: "1"}
	if access.UserFrom(access.WithUser(context.Background(), u)) != u {
		t.Fatal("user not returned")
	}
}
