package storage

import (
	"errors"
	"time"
)

var (
	ErrEmptyQueue      = errors.New("queue is empty")
	ErrInvalidPosition = errors.New("invalid queue position")
	ErrDuplicatePost   = errors.New("post already recorded")
	ErrClosed          = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": Path is the database file
//   - "postgres": DSN is a pgx connection string
//   - "memory": nothing is persisted
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Item is one publishable piece of content.
type Item struct {
	ID        int64
	Content   string
	CreatedAt time.Time
}

// Entry is an item at its queue position.
type Entry struct {
	Position int
	Item     Item
}

// Post records one successful publication.
type Post struct {
	ID         int64
	ExternalID string
	PostedAt   time.Time
	ItemID     int64
	// Content is filled by Posts; RecordPost ignores it.
	Content string
	// Metadata is the raw response metadata of the posting API (JSON).
	Metadata string
}
