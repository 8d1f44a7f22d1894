// Package heartbeat logs a periodic queue report on a cron schedule. With the
// Telegram log sink enabled the report reaches the operators' chat.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	Enabled bool
	// Spec is a cron expression ("0 8 * * *", with optional seconds field)
	// or a descriptor ("@daily", "@every 6h").
	Spec    string
	Timeout time.Duration
}

// Source is the read-only view of the store used for reports.
type Source interface {
	Length(ctx context.Context) (int, error)
	Head(ctx context.Context) (storage.Item, error)
	Posts(ctx context.Context, limit int) ([]storage.Post, error)
}

// Report is one heartbeat snapshot.
type Report struct {
	QueueLength int
	Head        storage.Item
	LastPost    *storage.Post
	NextPost    time.Time
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a usable heartbeat schedule.
func ValidateSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return errors.New("heartbeat spec is empty")
	}
	_, err := parser.Parse(spec)
	return err
}

type Service struct {
	src  Source
	next func() time.Time
	loc  *time.Location
	log  logx.Logger

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
}

// New creates the service. next, when set, reports the next scheduled post.
func New(cfg Config, src Source, next func() time.Time, loc *time.Location, log logx.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, src: src, next: next, loc: loc, log: log}
}

// Run schedules the heartbeat and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Apply(ctx, s.config()); err != nil {
		return err
	}
	<-ctx.Done()
	s.stop()
	return ctx.Err()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply replaces the config and reschedules the job.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	if cfg.Enabled {
		if err := ValidateSpec(cfg.Spec); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if !cfg.Enabled {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(cfg.Spec, func() {
		jctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := s.Beat(jctx); err != nil {
			s.log.Warn("heartbeat failed", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	c.Start()
	s.c = c
	if entries := c.Entries(); len(entries) > 0 {
		s.log.Debug("heartbeat scheduled", logx.String("spec", cfg.Spec), logx.Time("next", entries[0].Schedule.Next(time.Now().In(s.loc))))
	}
	return nil
}

func (s *Service) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
}

// Beat builds a report and logs it at info level.
func (s *Service) Beat(ctx context.Context) (Report, error) {
	var r Report
	n, err := s.src.Length(ctx)
	if err != nil {
		return r, err
	}
	r.QueueLength = n

	if n > 0 {
		if r.Head, err = s.src.Head(ctx); err != nil && !errors.Is(err, storage.ErrEmptyQueue) {
			return r, err
		}
	}
	posts, err := s.src.Posts(ctx, 1)
	if err != nil {
		return r, err
	}
	if len(posts) > 0 {
		r.LastPost = &posts[0]
	}
	if s.next != nil {
		r.NextPost = s.next()
	}

	fields := []logx.Field{logx.Int("queue_length", r.QueueLength)}
	if r.Head.ID != 0 {
		fields = append(fields, logx.Int64("head_item", r.Head.ID))
	}
	if r.LastPost != nil {
		fields = append(fields, logx.String("last_post", r.LastPost.ExternalID), logx.Time("last_post_at", r.LastPost.PostedAt))
	}
	if !r.NextPost.IsZero() {
		fields = append(fields, logx.Time("next_post", r.NextPost))
	}
	s.log.Info("heartbeat", fields...)
	return r, nil
}
