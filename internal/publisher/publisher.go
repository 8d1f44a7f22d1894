// Package publisher posts items to an external service.
//
// Drivers:
//   - "x": X (Twitter) API v2 create-post endpoint
//   - "telegram": a Telegram channel or chat
//   - "dryrun": logs the item and fabricates a receipt
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "quotebot/pkg/logx"
)

// Publisher posts one item.
type Publisher interface {
	Name() string
	Post(ctx context.Context, content string) (Receipt, error)
}

// Receipt is returned for an accepted post.
type Receipt struct {
	ExternalID string
	PostedAt   time.Time
	// Metadata is raw response metadata (JSON), stored with the post record.
	Metadata string
}

// PostFailure is an error reported by the posting API. The item stays at
// the head of the queue and is not retried before the next slot.
type PostFailure struct {
	Status  int
	Message string
}

func (e *PostFailure) Error() string {
	if e.Status == 0 {
		return "post rejected: " + e.Message
	}
	return fmt.Sprintf("post rejected (status %d): %s", e.Status, e.Message)
}

// IsPostFailure reports whether err carries a *PostFailure.
func IsPostFailure(err error) bool {
	var pf *PostFailure
	return errors.As(err, &pf)
}

type Config struct {
	Driver   string
	X        XConfig
	Telegram TelegramConfig
}

// Open builds the configured publisher.
func Open(cfg Config, log logx.Logger) (Publisher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "x", "twitter":
		return NewX(cfg.X, log.With(logx.String("publisher", "x")))
	case "telegram":
		return NewTelegram(cfg.Telegram, log.With(logx.String("publisher", "telegram")))
	case "", "dryrun", "dry-run":
		return NewDryRun(log.With(logx.String("publisher", "dryrun"))), nil
	default:
		return nil, errors.New("unknown publisher driver: " + driver)
	}
}
