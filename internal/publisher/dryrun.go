package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "quotebot/pkg/logx"
)

// DryRun accepts every item without contacting anything.
type DryRun struct {
	log logx.Logger

	mu    sync.Mutex
	posts []string
}

func NewDryRun(log logx.Logger) *DryRun {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &DryRun{log: log}
}

func (d *DryRun) Name() string { return "dryrun" }

func (d *DryRun) Post(ctx context.Context, content string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	id := "dryrun-" + uuid.NewString()
	d.mu.Lock()
	d.posts = append(d.posts, content)
	d.mu.Unlock()
	d.log.Info("dry run post", logx.String("id", id), logx.String("content", content))
	return Receipt{ExternalID: id, PostedAt: time.Now(), Metadata: `{"dryrun":true}`}, nil
}

// Posted returns the items posted so far, oldest first.
func (d *DryRun) Posted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.posts...)
}
