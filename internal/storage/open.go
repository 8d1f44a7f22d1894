package storage

import (
	"context"
	"errors"
	"strings"

	logx "quotebot/pkg/logx"
)

// Store is the persistence API used by the queue rotator, the poster and the CLI.
type Store interface {
	// Migrate creates the schema if it does not exist yet.
	Migrate(ctx context.Context) error

	// Head returns the item at position 1, or ErrEmptyQueue.
	Head(ctx context.Context) (Item, error)
	Length(ctx context.Context) (int, error)
	// ApplyRotation moves the head item to position target in one
	// transaction. Items at positions 2..target move up by one.
	ApplyRotation(ctx context.Context, target int) error
	// Append stores a new item at the back of the queue and returns its id.
	Append(ctx context.Context, content string) (int64, error)
	List(ctx context.Context) ([]Entry, error)

	RecordPost(ctx context.Context, p Post) (int64, error)
	// Posts returns the most recent posts first.
	Posts(ctx context.Context, limit int) ([]Post, error)

	Close() error
}

const defaultPostsLimit = 20

// Open initializes the configured store and applies the schema.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("driver", driver))

	var (
		st  Store
		err error
	)
	switch driver {
	case "", "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	case "postgres", "postgresql", "pgx":
		st, err = openPostgres(ctx, cfg, log)
	case "memory", "mem":
		st = NewMemory()
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
