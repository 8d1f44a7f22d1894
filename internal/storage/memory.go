package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	closed bool

	nextItem int64
	nextPost int64
	items    map[int64]Item
	queue    []int64 // item ids, index 0 is position 1
	posts    []Post
	external map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		items:    make(map[int64]Item),
		external: make(map[string]struct{}),
	}
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Head(context.Context) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Item{}, ErrClosed
	}
	if len(m.queue) == 0 {
		return Item{}, ErrEmptyQueue
	}
	return m.items[m.queue[0]], nil
}

func (m *Memory) Length(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.queue), nil
}

func (m *Memory) ApplyRotation(_ context.Context, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	n := len(m.queue)
	if n == 0 {
		return ErrEmptyQueue
	}
	if target < 1 || target > n {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidPosition, target, n)
	}
	head := m.queue[0]
	copy(m.queue[:target-1], m.queue[1:target])
	m.queue[target-1] = head
	return nil
}

func (m *Memory) Append(_ context.Context, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.nextItem++
	id := m.nextItem
	m.items[id] = Item{ID: id, Content: content, CreatedAt: time.Now()}
	m.queue = append(m.queue, id)
	return id, nil
}

func (m *Memory) List(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Entry, 0, len(m.queue))
	for i, id := range m.queue {
		out = append(out, Entry{Position: i + 1, Item: m.items[id]})
	}
	return out, nil
}

func (m *Memory) RecordPost(_ context.Context, p Post) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if _, dup := m.external[p.ExternalID]; dup {
		return 0, fmt.Errorf("%w: %s", ErrDuplicatePost, p.ExternalID)
	}
	if p.PostedAt.IsZero() {
		p.PostedAt = time.Now()
	}
	m.nextPost++
	p.ID = m.nextPost
	p.Content = ""
	m.external[p.ExternalID] = struct{}{}
	m.posts = append(m.posts, p)
	return p.ID, nil
}

func (m *Memory) Posts(_ context.Context, limit int) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = defaultPostsLimit
	}
	out := make([]Post, len(m.posts))
	copy(out, m.posts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PostedAt.After(out[j].PostedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Content = m.items[out[i].ItemID].Content
	}
	return out, nil
}
