package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

func newItemFactory(t *testing.T) *skeleton.Factory {
	t.Helper()

	name := skeleton.NewStringBone(skeleton.BaseBone{Name: "name", Required: true, Indexed: true})
	name.CaseSensitive = false

	f, err := skeleton.NewFactory("item", "item",
		skeleton.NewSortIndexBone(skeleton.BaseBone{}, nil),
		name,
		skeleton.NewNumericBone(skeleton.BaseBone{Name: "price", Indexed: true}, 2),
		skeleton.NewBoolBone(skeleton.BaseBone{Name: "active", Indexed: true, Default: true}),
		skeleton.NewStringBone(skeleton.BaseBone{Name: "tags", Indexed: true, Multiple: true}),
	)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	return f
}

func putItem(t *testing.T, store *EntityStore, f *skeleton.Factory, fields map[string][]string) *skeleton.Skeleton {
	t.Helper()

	skel := f.New()
	if !skel.FromClient(fields) {
		t.Fatalf("FromClient(%v) errors = %v", fields, skel.Errors())
	}

	if err := store.Put(context.Background(), skel); err != nil {
		t.Fatalf("Put: %v", err)
	}

	return skel
}

func TestEntityRoundTrip(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	f := newItemFactory(t)
	ctx := context.Background()

	put := putItem(t, store, f, map[string][]string{
		"name":  {"Widget"},
		"price": {"12,5"},
		"tags":  {"a", "b"},
	})

	got, err := store.Get(ctx, f, put.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.String("name") != "Widget" || got.Float("price") != 12.5 || !got.Bool("active") {
		t.Fatalf("values = %+v", got.Values())
	}

	if tags := got.Get("tags").([]string); len(tags) != 2 || tags[1] != "b" {
		t.Fatalf("tags = %v", tags)
	}

	if got.SortIndex() != put.SortIndex() || got.CreatedAt.IsZero() {
		t.Fatalf("sort index %v / %v, created %v", got.SortIndex(), put.SortIndex(), got.CreatedAt)
	}

	other := skeleton.MustFactory("other", "other", skeleton.NewStringBone(skeleton.BaseBone{Name: "x"}))
	if _, err := store.Get(ctx, other, put.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get with wrong kind err = %v, want ErrNotFound", err)
	}
}

func TestEntityQueries(t *testing.T) {
	store := NewEntityStore(newTestDB(t))
	f := newItemFactory(t)
	ctx := context.Background()

	for _, it := range []struct{ name, price, active string }{
		{"Apple", "1.5", "1"},
		{"apricot", "3", "1"},
		{"Banana", "2", "0"},
		{"100%_off", "9", "1"},
	} {
		putItem(t, store, f, map[string][]string{"name": {it.name}, "price": {it.price}, "active": {it.active}})
	}

	names := func(list *skeleton.List) []string {
		out := make([]string, 0, len(list.Skels))
		for _, s := range list.Skels {
			out = append(out, s.String("name"))
		}

		return out
	}

	tests := []struct {
		name   string
		params map[string][]string
		want   []string
	}{
		{"case insensitive prefix", map[string][]string{"name$lk": {"AP"}, "orderby": {"name"}}, []string{"Apple", "apricot"}},
		{"like wildcards escaped", map[string][]string{"name$lk": {"100%_"}}, []string{"100%_off"}},
		{"numeric greater", map[string][]string{"price$gt": {"2"}, "orderby": {"price"}}, []string{"apricot", "100%_off"}},
		{"numeric less", map[string][]string{"price$lt": {"2"}}, []string{"Apple"}},
		{"bool equal", map[string][]string{"active": {"0"}}, []string{"Banana"}},
		{"order by numeric bone", map[string][]string{"orderby": {"price"}}, []string{"Apple", "Banana", "apricot", "100%_off"}},
		{"order desc", map[string][]string{"orderby": {"price"}, "orderdir": {"desc"}, "amount": {"2"}}, []string{"100%_off", "apricot"}},
		{"unknown bone ignored", map[string][]string{"nope": {"x"}, "name": {"banana"}}, []string{"Banana"}},
		{"invalid value unsatisfiable", map[string][]string{"price": {"abc"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.Fetch(ctx, f.All().MergeExternalFilter(tt.params))
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}

			got := names(list)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}

			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEntityDeleteAndRestore(t *testing.T) {
	db := newTestDB(t)
	store := NewEntityStore(db)
	f := newItemFactory(t)
	ctx := context.Background()

	skel := putItem(t, store, f, map[string][]string{"name": {"gone"}})

	if err := store.Delete(ctx, skel); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := store.Delete(ctx, skel); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}

	if _, err := store.Get(ctx, f, skel.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}

	list, err := store.Fetch(ctx, f.All())
	if err != nil || len(list.Skels) != 0 {
		t.Fatalf("Fetch after delete = %v, %v", list, err)
	}

	// 同一 key 重新写入恢复记录.
	if err := store.Put(ctx, skel); err != nil {
		t.Fatalf("Put after delete: %v", err)
	}

	if _, err := store.Get(ctx, f, skel.Key); err != nil {
		t.Fatalf("Get after restore: %v", err)
	}

	var n int64
	if err := db.Unscoped().Model(&model.Entity{}).Where("id = ?", skel.Key).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("rows for key = %d, %v", n, err)
	}
}
