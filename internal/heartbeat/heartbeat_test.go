package heartbeat

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

func TestBeatReportsQueue(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	id, _ := st.Append(ctx, "first")
	_, _ = st.Append(ctx, "second")
	posted := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if _, err := st.RecordPost(ctx, storage.Post{ExternalID: "77", PostedAt: posted, ItemID: id}); err != nil {
		t.Fatal(err)
	}
	next := posted.Add(3 * time.Hour)

	var buf bytes.Buffer
	s := New(Config{}, st, func() time.Time { return next }, time.UTC, logx.NewJSON(&buf, "info"))
	r, err := s.Beat(ctx)
	if err != nil {
		t.Fatalf("beat: %v", err)
	}
	if r.QueueLength != 2 || r.Head.Content != "first" || r.LastPost == nil || r.LastPost.ExternalID != "77" || !r.NextPost.Equal(next) {
		t.Fatalf("unexpected report %+v", r)
	}
	if out := buf.String(); !strings.Contains(out, `"queue_length":2`) || !strings.Contains(out, `"last_post":"77"`) {
		t.Fatalf("unexpected log %s", out)
	}
}

func TestBeatOnEmptyStore(t *testing.T) {
	t.Parallel()
	s := New(Config{}, storage.NewMemory(), nil, nil, logx.Nop())
	r, err := s.Beat(context.Background())
	if err != nil {
		t.Fatalf("beat: %v", err)
	}
	if r.QueueLength != 0 || r.LastPost != nil {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestValidateSpec(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"0 8 * * *", "*/30 * * * * *", "@daily", "@every 6h"} {
		if err := ValidateSpec(ok); err != nil {
			t.Fatalf("ValidateSpec(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "every day", "61 * * * *"} {
		if err := ValidateSpec(bad); err == nil {
			t.Fatalf("ValidateSpec(%q) accepted", bad)
		}
	}
}

func TestRunFiresOnSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var buf syncBuffer
	s := New(Config{Enabled: true, Spec: "@every 1s"}, storage.NewMemory(), nil, time.UTC, logx.NewJSON(&buf, "info"))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(buf.String(), `"message":"heartbeat"`) {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat never fired")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
}
