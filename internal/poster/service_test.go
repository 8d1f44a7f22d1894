package poster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"quotebot/internal/eventbus"
	"quotebot/internal/publisher"
	"quotebot/internal/queue"
	"quotebot/internal/schedule"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
	"quotebot/pkg/randx"
)

// fakeClock jumps forward instead of sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type scriptedPublisher struct {
	mu     sync.Mutex
	calls  int
	posted []string
	onCall func(n int) error
}

func (p *scriptedPublisher) Name() string { return "scripted" }

func (p *scriptedPublisher) Post(ctx context.Context, content string) (publisher.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return publisher.Receipt{}, err
	}
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.posted = append(p.posted, content)
	p.mu.Unlock()
	if p.onCall != nil {
		if err := p.onCall(n); err != nil {
			return publisher.Receipt{}, err
		}
	}
	return publisher.Receipt{ExternalID: fmt.Sprintf("ext-%d", n), Metadata: "{}"}, nil
}

func contents(t *testing.T, st storage.Store) string {
	t.Helper()
	entries, err := st.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Item.Content)
	}
	return b.String()
}

func newService(t *testing.T, st storage.Store, pub publisher.Publisher, clock Clock, bus eventbus.Bus, cfg Config) *Service {
	t.Helper()
	svc, err := New(cfg, Deps{
		Store:     st,
		Rotator:   queue.NewRotator(st, randx.NewSequence(0), logx.Nop()),
		Publisher: pub,
		Generator: schedule.NewGenerator(randx.NewSequence(0), logx.Nop()),
		Bus:       bus,
		Clock:     clock,
		Log:       logx.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func fixedNineAndNoon() schedule.Config {
	return schedule.Fixed{Anchors: []schedule.TimeOfDay{schedule.Clock(12, 0, 0), schedule.Clock(9, 0, 0)}}
}

func TestRunPostsRotatesAndRollsOver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := storage.NewMemory()
	for _, c := range []string{"A", "B", "C"} {
		if _, err := st.Append(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	pub := &scriptedPublisher{onCall: func(n int) error {
		switch n {
		case 2:
			return &publisher.PostFailure{Status: 403, Message: "duplicate content"}
		case 3:
			cancel()
		}
		return nil
	}}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	defer unsub()

	logPath := filepath.Join(t.TempDir(), "schedule.log")
	svc := newService(t, st, pub, clock, bus, Config{Schedule: fixedNineAndNoon(), LogFile: logPath})

	err := svc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	if got := strings.Join(pub.posted[:3], ""); got != "ABB" {
		t.Fatalf("posted %q, want ABB (failed item stays at head)", got)
	}
	// A -> position 2 (BAC), B fails, B -> position 2 (ABC).
	if got := contents(t, st); got != "ABC" {
		t.Fatalf("queue = %s, want ABC", got)
	}

	posts, _ := st.Posts(context.Background(), 10)
	if len(posts) != 2 {
		t.Fatalf("recorded %d posts, want 2", len(posts))
	}
	if want := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC); !posts[0].PostedAt.Equal(want) {
		t.Fatalf("third post at %s, want next day 09:00", posts[0].PostedAt)
	}

	counts := map[string]int{}
	for len(events) > 0 {
		counts[(<-events).Type]++
	}
	if counts[eventbus.TypePostSent] != 2 || counts[eventbus.TypePostFailed] != 1 {
		t.Fatalf("unexpected events %v", counts)
	}
	if counts[eventbus.TypeScheduleGenerated] < 3 {
		t.Fatalf("expected at least 3 generated schedules, got %v", counts)
	}

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("schedule log: %v", err)
	}
	if !strings.HasPrefix(string(b), "Computed on [") || !strings.Contains(string(b), "[2024-05-02] 09:00\n[2024-05-02] 12:00\n") {
		t.Fatalf("unexpected schedule log:\n%s", b)
	}
}

func TestRunStopsOnEmptyQueue(t *testing.T) {
	st := storage.NewMemory()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := newService(t, st, &scriptedPublisher{}, clock, nil, Config{Schedule: fixedNineAndNoon()})

	err := svc.Run(context.Background())
	if !errors.Is(err, storage.ErrEmptyQueue) {
		t.Fatalf("Run = %v, want ErrEmptyQueue", err)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	st := storage.NewMemory()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := newService(t, st, &scriptedPublisher{}, clock, nil, Config{Schedule: schedule.Uniform{Count: 0}})

	var ce *schedule.ConfigError
	if err := svc.Run(context.Background()); !errors.As(err, &ce) {
		t.Fatalf("Run = %v, want *schedule.ConfigError", err)
	}
}

type failingRotationStore struct {
	*storage.Memory
}

func (failingRotationStore) ApplyRotation(context.Context, int) error {
	return errors.New("database is locked")
}

func TestPostOnceReturnsRotationFailure(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	_, _ = mem.Append(ctx, "A")
	_, _ = mem.Append(ctx, "B")
	st := failingRotationStore{mem}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := newService(t, st, &scriptedPublisher{}, clock, nil, Config{Schedule: fixedNineAndNoon()})

	err := svc.PostOnce(ctx)
	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Fatalf("PostOnce = %v", err)
	}
}

func TestSetScheduleAppliesToNextCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := storage.NewMemory()
	_, _ = st.Append(ctx, "A")

	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	var svc *Service
	pub := &scriptedPublisher{}
	pub.onCall = func(n int) error {
		switch n {
		case 1:
			// first cycle was 09:00 12:00; the swap must not touch 12:00.
			svc.SetSchedule(schedule.Fixed{Anchors: []schedule.TimeOfDay{schedule.Clock(18, 30, 0)}})
			if cur := svc.Current(); len(cur.Times) != 1 || cur.Times[0].Hour() != 12 {
				t.Errorf("current schedule changed: %v", cur.Times)
			}
		case 3:
			cancel()
		}
		return nil
	}
	svc = newService(t, st, pub, clock, nil, Config{Schedule: fixedNineAndNoon()})

	_ = svc.Run(ctx)
	posts, _ := st.Posts(context.Background(), 10)
	if len(posts) != 3 {
		t.Fatalf("recorded %d posts, want 3", len(posts))
	}
	if h, m := posts[0].PostedAt.Hour(), posts[0].PostedAt.Minute(); h != 18 || m != 30 {
		t.Fatalf("third post at %s, want 18:30", posts[0].PostedAt)
	}
}

func TestRunWithJitterPostsEachAnchorOncePerDay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := storage.NewMemory()
	_, _ = st.Append(ctx, "A")
	_, _ = st.Append(ctx, "B")

	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	pub := &scriptedPublisher{onCall: func(n int) error {
		if n == 3 {
			cancel()
		}
		return nil
	}}
	svc, err := New(Config{Schedule: schedule.Fixed{
		Anchors:       []schedule.TimeOfDay{schedule.Clock(9, 0, 0)},
		JitterMinutes: 30,
	}}, Deps{
		Store:     st,
		Rotator:   queue.NewRotator(st, randx.NewSequence(0), logx.Nop()),
		Publisher: pub,
		// Offsets 0, +20 and +30 minutes: each later draw would still be
		// ahead of the previous post on the same day.
		Generator: schedule.NewGenerator(randx.NewSequence(30, 50, 60), logx.Nop()),
		Clock:     clock,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	posts, _ := st.Posts(context.Background(), 10)
	if len(posts) != 3 {
		t.Fatalf("recorded %d posts, want 3", len(posts))
	}
	want := []time.Time{
		time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 2, 9, 20, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	for i, p := range posts {
		if !p.PostedAt.Equal(want[i]) {
			t.Fatalf("post %d at %s, want %s", i, p.PostedAt, want[i])
		}
	}
}

func TestCycleStart(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 9, 20, 0, 0, time.UTC)
	if got := cycleStart(now, time.Time{}); !got.Equal(now) {
		t.Fatalf("no served day: got %s", got)
	}
	served := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if got := cycleStart(now, served); !got.Equal(want) {
		t.Fatalf("same day: got %s, want %s", got, want)
	}
	later := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	if got := cycleStart(later, served); !got.Equal(later) {
		t.Fatalf("next day: got %s", got)
	}
}
