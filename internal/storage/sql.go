package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "quotebot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dialect captures what differs between the SQL backends.
type dialect struct {
	name      string
	migration string
	// numbered rewrites "?" placeholders to "$1", "$2", ...
	numbered bool
	// isDuplicate reports a unique constraint violation, if the driver exposes it.
	isDuplicate func(error) bool
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// sqlStore implements Store on database/sql for every SQL dialect.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
}

func (s *sqlStore) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	b, err := migrationsFS.ReadFile("migrations/" + s.d.migration)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("migrate %s: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) Head(ctx context.Context) (Item, error) {
	if s == nil || s.db == nil {
		return Item{}, ErrClosed
	}
	var (
		it Item
		ms int64
	)
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		`SELECT i.id, i.content, i.created_at
		 FROM queue q JOIN items i ON i.id = q.item_id
		 WHERE q.position = 1`)).Scan(&it.ID, &it.Content, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrEmptyQueue
	}
	if err != nil {
		return Item{}, fmt.Errorf("read head: %w", err)
	}
	it.CreatedAt = time.UnixMilli(ms)
	return it, nil
}

func (s *sqlStore) Length(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}

func (s *sqlStore) ApplyRotation(ctx context.Context, target int) (err error) {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var n int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		return fmt.Errorf("count queue: %w", err)
	}
	if n == 0 {
		return ErrEmptyQueue
	}
	if target < 1 || target > n {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidPosition, target, n)
	}

	var head int64
	err = tx.QueryRowContext(ctx, s.d.rebind(`SELECT item_id FROM queue WHERE position = ?`), 1).Scan(&head)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEmptyQueue
	}
	if err != nil {
		return fmt.Errorf("read head: %w", err)
	}

	// The head drops to position 0 here and is placed at target below.
	if _, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE queue SET position = position - 1 WHERE position <= ?`), target); err != nil {
		return fmt.Errorf("shift queue: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE queue SET position = ? WHERE item_id = ?`), target, head); err != nil {
		return fmt.Errorf("place head: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

func (s *sqlStore) Append(ctx context.Context, content string) (id int64, err error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UnixMilli()
	if err = tx.QueryRowContext(ctx, s.d.rebind(
		`INSERT INTO items(content, created_at) VALUES(?, ?) RETURNING id`),
		content, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.d.rebind(
		`INSERT INTO queue(item_id, position) SELECT CAST(? AS BIGINT), COALESCE(MAX(position), 0) + 1 FROM queue`),
		id); err != nil {
		return 0, fmt.Errorf("enqueue item: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqlStore) List(ctx context.Context) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.position, i.id, i.content, i.created_at
		 FROM queue q JOIN items i ON i.id = q.item_id
		 ORDER BY q.position`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.Position, &e.Item.ID, &e.Item.Content, &ms); err != nil {
			return nil, err
		}
		e.Item.CreatedAt = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlStore) RecordPost(ctx context.Context, p Post) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	if p.PostedAt.IsZero() {
		p.PostedAt = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		`INSERT INTO posts(external_id, posted_at, item_id, metadata) VALUES(?, ?, ?, ?) RETURNING id`),
		p.ExternalID, p.PostedAt.UnixMilli(), p.ItemID, nullStr(p.Metadata)).Scan(&id)
	if err != nil {
		if s.d.isDuplicate != nil && s.d.isDuplicate(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicatePost, p.ExternalID)
		}
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

func (s *sqlStore) Posts(ctx context.Context, limit int) ([]Post, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = defaultPostsLimit
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT p.id, p.external_id, p.posted_at, p.item_id, COALESCE(i.content, ''), COALESCE(p.metadata, '')
		 FROM posts p LEFT JOIN items i ON i.id = p.item_id
		 ORDER BY p.posted_at DESC, p.id DESC
		 LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var (
			p  Post
			ms int64
		)
		if err := rows.Scan(&p.ID, &p.ExternalID, &ms, &p.ItemID, &p.Content, &p.Metadata); err != nil {
			return nil, err
		}
		p.PostedAt = time.UnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
