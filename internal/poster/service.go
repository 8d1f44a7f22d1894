package poster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quotebot/internal/eventbus"
	"quotebot/internal/publisher"
	"quotebot/internal/queue"
	"quotebot/internal/schedule"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

// emptyScheduleWait is how long the loop pauses before regenerating when a
// cycle produced no instants.
const emptyScheduleWait = time.Second

// Store is the part of storage.Store the loop reads and writes directly.
type Store interface {
	Head(ctx context.Context) (storage.Item, error)
	RecordPost(ctx context.Context, p storage.Post) (int64, error)
}

// Config is the hot-swappable part of the posting loop.
type Config struct {
	Schedule schedule.Config
	// LogFile receives the computed posting times of every cycle. Empty disables it.
	LogFile string
}

// Deps are the collaborators of a Service. Store, Rotator and Publisher are
// required.
type Deps struct {
	Store     Store
	Rotator   *queue.Rotator
	Publisher publisher.Publisher
	Generator *schedule.Generator
	Bus       eventbus.Bus
	Clock     Clock
	Log       logx.Logger
}

// Service is the posting loop: generate a cycle, sleep to each instant, post
// the head item and rotate it.
type Service struct {
	store Store
	rot   *queue.Rotator
	pub   publisher.Publisher
	gen   *schedule.Generator
	bus   eventbus.Bus
	clock Clock
	log   logx.Logger

	mu      sync.Mutex
	cfg     Config
	current schedule.Schedule
	// last is the most recent instant handed to the loop; a regenerated
	// schedule never repeats it.
	last time.Time
	// served is the posting day of the last non-empty cycle. Once it is used
	// up, the next cycle starts on the following day.
	served time.Time
}

// New fills unset optional Deps with defaults.
func New(cfg Config, d Deps) (*Service, error) {
	if d.Store == nil || d.Rotator == nil || d.Publisher == nil {
		return nil, errors.New("poster: store, rotator and publisher are required")
	}
	if d.Generator == nil {
		d.Generator = schedule.NewGenerator(nil, d.Log)
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Service{
		store: d.Store,
		rot:   d.Rotator,
		pub:   d.Publisher,
		gen:   d.Generator,
		bus:   d.Bus,
		clock: d.Clock,
		log:   d.Log,
		cfg:   cfg,
	}, nil
}

// SetSchedule replaces the schedule config. The current cycle keeps its
// instants; the new config applies from the next generation.
func (s *Service) SetSchedule(cfg schedule.Config) {
	s.mu.Lock()
	s.cfg.Schedule = cfg
	s.mu.Unlock()
}

// SetLogFile changes where computed schedules are written, from the next cycle.
func (s *Service) SetLogFile(path string) {
	s.mu.Lock()
	s.cfg.LogFile = path
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Current returns the remaining instants of the cycle in progress.
func (s *Service) Current() schedule.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schedule.Schedule{Day: s.current.Day, Times: append([]time.Time(nil), s.current.Times...)}
}

// Run loops until ctx is canceled or a non-recoverable error occurs (bad
// schedule config, empty queue, store failure).
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("posting loop started", logx.String("publisher", s.pub.Name()))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sch, err := s.generate()
		if err != nil {
			return err
		}

		if sch.Empty() {
			if err := s.wait(ctx, emptyScheduleWait); err != nil {
				return err
			}
			continue
		}

		for {
			t, ok := s.next(&sch)
			if !ok {
				break
			}
			s.log.Debug("sleeping until next post", logx.Time("at", t))
			if err := s.wait(ctx, t.Sub(s.clock.Now())); err != nil {
				return err
			}
			if err := s.PostOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Service) generate() (schedule.Schedule, error) {
	cfg := s.config()
	now := s.clock.Now()

	s.mu.Lock()
	last, served := s.last, s.served
	s.mu.Unlock()

	sch, err := s.gen.Generate(cycleStart(now, served), cfg.Schedule)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("generate schedule: %w", err)
	}

	if !last.IsZero() {
		kept := sch.Times[:0]
		for _, t := range sch.Times {
			if t.After(last) {
				kept = append(kept, t)
			}
		}
		sch.Times = kept
	}

	s.mu.Lock()
	s.current = schedule.Schedule{Day: sch.Day, Times: append([]time.Time(nil), sch.Times...)}
	if !sch.Empty() {
		s.served = sch.Day
	}
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{
		Type: eventbus.TypeScheduleGenerated,
		Time: now,
		Data: eventbus.ScheduleGenerated{Mode: cfg.Schedule.Mode(), Day: sch.Day, Times: append([]time.Time(nil), sch.Times...)},
	})
	if cfg.LogFile != "" {
		if err := writeScheduleLog(cfg.LogFile, now, sch); err != nil {
			s.log.Warn("schedule log not written", logx.String("path", cfg.LogFile), logx.Err(err))
		}
	}
	if !sch.Empty() {
		s.log.Info("posting schedule computed", logx.String("schedule", sch.String()))
	}
	return sch, nil
}

// cycleStart is the instant a new cycle is computed from. While now is still
// on the day of the cycle just used up, that is the last instant of the day,
// so a fresh jitter draw cannot land a used anchor back in the future.
func cycleStart(now, served time.Time) time.Time {
	if served.IsZero() {
		return now
	}
	y, m, d := served.Date()
	end := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(-time.Nanosecond)
	if now.Before(end) {
		return end
	}
	return now
}

func (s *Service) next(sch *schedule.Schedule) (time.Time, bool) {
	t, ok := sch.Next()
	s.mu.Lock()
	s.current.Next()
	if ok {
		s.last = t
	}
	s.mu.Unlock()
	return t, ok
}

func (s *Service) peek() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _ := s.current.Peek()
	return t
}

// wait blocks for d, or returns immediately when d <= 0.
func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

// PostOnce publishes the head item. A rejected post is logged and leaves the
// queue untouched; only store errors are returned.
func (s *Service) PostOnce(ctx context.Context) error {
	item, err := s.store.Head(ctx)
	if err != nil {
		return fmt.Errorf("read queue head: %w", err)
	}

	rc, err := s.pub.Post(ctx, item.Content)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		status := 0
		var pf *publisher.PostFailure
		if errors.As(err, &pf) {
			status = pf.Status
		}
		s.log.Error("posting failed", logx.Int64("item", item.ID), logx.Int("status", status), logx.Err(err))
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypePostFailed,
			Time: s.clock.Now(),
			Data: eventbus.PostFailed{ItemID: item.ID, Status: status, Reason: err.Error(), Next: s.peek()},
		})
		return nil
	}

	if rc.PostedAt.IsZero() {
		rc.PostedAt = s.clock.Now()
	}
	if _, err := s.store.RecordPost(ctx, storage.Post{
		ExternalID: rc.ExternalID,
		PostedAt:   rc.PostedAt,
		ItemID:     item.ID,
		Metadata:   rc.Metadata,
	}); err != nil {
		return fmt.Errorf("record post %s: %w", rc.ExternalID, err)
	}

	rot, err := s.rot.Rotate(ctx)
	if err != nil {
		return fmt.Errorf("rotate queue: %w", err)
	}

	s.log.Info("item posted",
		logx.Int64("item", item.ID),
		logx.String("external_id", rc.ExternalID),
		logx.Int("position", rot.Target),
		logx.Int("queue_length", rot.Length),
	)
	s.bus.Publish(eventbus.Event{
		Type: eventbus.TypePostSent,
		Time: rc.PostedAt,
		Data: eventbus.PostSent{
			ItemID:      item.ID,
			ExternalID:  rc.ExternalID,
			PostedAt:    rc.PostedAt,
			QueueLength: rot.Length,
			Target:      rot.Target,
			Next:        s.peek(),
		},
	})
	return nil
}
