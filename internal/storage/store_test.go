package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	logx "quotebot/pkg/logx"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	lite, err := Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "queue.db"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	mem, err := Open(ctx, Config{Driver: "memory"}, logx.Nop())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	t.Cleanup(func() {
		_ = lite.Close()
		_ = mem.Close()
	})
	return map[string]Store{"sqlite": lite, "memory": mem}
}

func fill(t *testing.T, st Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		id, err := st.Append(context.Background(), fmt.Sprintf("item %d", i))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func order(t *testing.T, st Store) []int64 {
	t.Helper()
	entries, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := make([]int64, 0, len(entries))
	for i, e := range entries {
		if e.Position != i+1 {
			t.Fatalf("positions not dense: entry %d has position %d", i, e.Position)
		}
		out = append(out, e.Item.ID)
	}
	return out
}

func TestEmptyQueue(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := st.Head(ctx); !errors.Is(err, ErrEmptyQueue) {
				t.Fatalf("Head on empty queue: got %v, want ErrEmptyQueue", err)
			}
			n, err := st.Length(ctx)
			if err != nil || n != 0 {
				t.Fatalf("Length = %d, %v; want 0", n, err)
			}
			if err := st.ApplyRotation(ctx, 1); !errors.Is(err, ErrEmptyQueue) {
				t.Fatalf("ApplyRotation on empty queue: got %v", err)
			}
		})
	}
}

func TestApplyRotationMovesHeadToTarget(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := fill(t, st, 10)

			head, err := st.Head(ctx)
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if head.ID != ids[0] || head.Content != "item 1" {
				t.Fatalf("unexpected head %+v", head)
			}

			if err := st.ApplyRotation(ctx, 8); err != nil {
				t.Fatalf("rotate: %v", err)
			}
			// B C D E F G H A I J
			want := []int64{ids[1], ids[2], ids[3], ids[4], ids[5], ids[6], ids[7], ids[0], ids[8], ids[9]}
			got := order(t, st)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("order after rotation = %v, want %v", got, want)
			}
			if n, _ := st.Length(ctx); n != 10 {
				t.Fatalf("length changed to %d", n)
			}
		})
	}
}

func TestApplyRotationBounds(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := fill(t, st, 3)

			for _, target := range []int{0, 4, -1} {
				if err := st.ApplyRotation(ctx, target); !errors.Is(err, ErrInvalidPosition) {
					t.Fatalf("target %d: got %v, want ErrInvalidPosition", target, err)
				}
			}
			if got := order(t, st); fmt.Sprint(got) != fmt.Sprint(ids) {
				t.Fatalf("rejected rotation changed the queue: %v", got)
			}

			// target 1 is a no-op, target N moves the head to the back.
			if err := st.ApplyRotation(ctx, 1); err != nil {
				t.Fatalf("rotate 1: %v", err)
			}
			if err := st.ApplyRotation(ctx, 3); err != nil {
				t.Fatalf("rotate 3: %v", err)
			}
			want := []int64{ids[1], ids[2], ids[0]}
			if got := order(t, st); fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("order = %v, want %v", got, want)
			}
		})
	}
}

func TestRecordPostAndHistory(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := fill(t, st, 2)
			base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

			if _, err := st.RecordPost(ctx, Post{ExternalID: "100", PostedAt: base, ItemID: ids[0], Metadata: `{"x-rate-limit-remaining":"49"}`}); err != nil {
				t.Fatalf("record 1: %v", err)
			}
			if _, err := st.RecordPost(ctx, Post{ExternalID: "101", PostedAt: base.Add(time.Hour), ItemID: ids[1]}); err != nil {
				t.Fatalf("record 2: %v", err)
			}
			if _, err := st.RecordPost(ctx, Post{ExternalID: "100", PostedAt: base, ItemID: ids[0]}); !errors.Is(err, ErrDuplicatePost) {
				t.Fatalf("duplicate external id: got %v, want ErrDuplicatePost", err)
			}

			posts, err := st.Posts(ctx, 10)
			if err != nil {
				t.Fatalf("posts: %v", err)
			}
			if len(posts) != 2 {
				t.Fatalf("got %d posts, want 2", len(posts))
			}
			if posts[0].ExternalID != "101" || posts[0].Content != "item 2" {
				t.Fatalf("newest post first, got %+v", posts[0])
			}
			if !posts[1].PostedAt.Equal(base) || posts[1].Metadata == "" {
				t.Fatalf("unexpected oldest post %+v", posts[1])
			}

			limited, err := st.Posts(ctx, 1)
			if err != nil || len(limited) != 1 {
				t.Fatalf("limit: got %d posts, err %v", len(limited), err)
			}
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "queue.db")
	cfg := Config{Driver: "sqlite", Path: path}

	st, err := Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ids := fill(t, st, 4)
	if err := st.ApplyRotation(ctx, 3); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	_ = st.Close()

	st, err = Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	want := []int64{ids[1], ids[2], ids[0], ids[3]}
	if got := order(t, st); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order after reopen = %v, want %v", got, want)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestRebind(t *testing.T) {
	t.Parallel()
	d := dialect{numbered: true}
	got := d.rebind(`UPDATE queue SET position = ? WHERE item_id = ?`)
	if got != `UPDATE queue SET position = $1 WHERE item_id = $2` {
		t.Fatalf("rebind = %q", got)
	}
	if q := (dialect{}).rebind("a = ?"); q != "a = ?" {
		t.Fatalf("sqlite dialect must not rebind, got %q", q)
	}
}
