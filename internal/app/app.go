// Package app wires the quotebot daemon: config, logging, store, publisher,
// posting loop, metrics, debug server and heartbeat.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"quotebot/internal/config"
	"quotebot/internal/eventbus"
	"quotebot/internal/heartbeat"
	"quotebot/internal/metrics"
	"quotebot/internal/observability/debug"
	"quotebot/internal/poster"
	"quotebot/internal/publisher"
	"quotebot/internal/queue"
	"quotebot/internal/runtime/supervisor"
	"quotebot/internal/schedule"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
	"quotebot/pkg/randx"
)

const openTimeout = 15 * time.Second

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	pub   publisher.Publisher

	poster  *poster.Service
	metrics *metrics.Metrics
	debug   *debug.Server
	beat    *heartbeat.Service
}

// New loads the config file and builds every component. Nothing runs until
// Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return config.Validate(cfg) })
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfgm, cfg)
}

// NewWithConfig builds the app from an already loaded config.
func NewWithConfig(cfgm *config.ConfigManager, cfg *config.Config) (a *App, err error) {
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	tg, err := TelegramClient(cfg, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the Telegram sink off, set its target, then apply the
	// final config so Apply does not warn about a missing chat.
	logCfg := LoggingConfig(cfg)
	final := logCfg
	logCfg.Telegram.Enabled = false
	var sender logx.Sender
	if tg != nil {
		sender = tg
	}
	logSvc, root := logx.New(logCfg, sender)
	logSvc.SetTelegramTarget(cfg.Telegram.LogChatID, cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(final)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	store, err := OpenStore(ctx, cfg, root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.Close()
			_ = logSvc.Close()
		}
	}()

	pub, err := OpenPublisher(cfg, root.With(logx.String("comp", "publisher")))
	if err != nil {
		return nil, err
	}
	schedCfg, loc, err := ScheduleConfig(cfg)
	if err != nil {
		return nil, err
	}
	debugCfg, err := DebugConfig(cfg)
	if err != nil {
		return nil, err
	}
	beatCfg, err := HeartbeatConfig(cfg)
	if err != nil {
		return nil, err
	}

	rng := randx.Locked(randx.New(time.Now().UnixNano()))
	bus := eventbus.New()
	ps, err := poster.New(poster.Config{Schedule: schedCfg, LogFile: strings.TrimSpace(cfg.Schedule.LogFile)}, poster.Deps{
		Store:     store,
		Rotator:   queue.NewRotator(store, rng, root.With(logx.String("comp", "queue"))),
		Publisher: pub,
		Generator: schedule.NewGenerator(rng, root.With(logx.String("comp", "schedule"))),
		Bus:       bus,
		Clock:     poster.SystemClock{Location: loc},
		Log:       root.With(logx.String("comp", "poster")),
	})
	if err != nil {
		return nil, err
	}

	a = &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		pub:     pub,
		poster:  ps,
		metrics: metrics.New(store),
	}
	a.debug = debug.New(debugCfg, a.metrics.Handler(), a.health, root.With(logx.String("comp", "debug")))
	a.beat = heartbeat.New(beatCfg, store, a.nextPost, loc, root.With(logx.String("comp", "heartbeat")))
	return a, nil
}

func (a *App) nextPost() time.Time {
	cur := a.poster.Current()
	t, _ := cur.Peek()
	return t
}

type health struct {
	Status      string              `json:"status"`
	Publisher   string              `json:"publisher"`
	QueueLength int                 `json:"queue_length"`
	NextPost    *time.Time          `json:"next_post,omitempty"`
	Supervisor  supervisor.Snapshot `json:"supervisor"`
}

func (a *App) health(ctx context.Context) (any, error) {
	h := health{Status: "ok", Publisher: a.pub.Name(), Supervisor: a.sup.Snapshot()}
	if t := a.nextPost(); !t.IsZero() {
		h.NextPost = &t
	}
	n, err := a.store.Length(ctx)
	if err != nil {
		h.Status = "store_error"
		return h, err
	}
	h.QueueLength = n
	if err := a.Err(); err != nil {
		h.Status = "failed"
		return h, err
	}
	return h, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start refuses to run on an empty queue, then launches the posting loop
// and its satellites under one supervisor.
func (a *App) Start(ctx context.Context) error {
	n, err := a.store.Length(ctx)
	if err != nil {
		return fmt.Errorf("queue check: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: import items with `quotebot db import FILE` first", storage.ErrEmptyQueue)
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.sup.Go("metrics", func(c context.Context) error { return a.metrics.Consume(c, a.bus) })
	a.sup.Go("poster", a.poster.Run)
	a.sup.Go("heartbeat", a.beat.Run)
	if err := a.debug.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(context.Background())
		return fmt.Errorf("debug server: %w", err)
	}

	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdogLoop(c, a.log) })

	notifySystemd(a.log, daemon.SdNotifyReady)
	a.log.Info("app started", logx.Int("queue_length", n), logx.String("publisher", a.pub.Name()))
	return nil
}

// applyConfig hot-applies a validated config. Storage, publisher, bot token
// and timezone changes need a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	for _, s := range sections {
		switch s {
		case "storage", "publisher", "telegram":
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}
	if oldCfg != nil && strings.TrimSpace(oldCfg.Schedule.Timezone) != strings.TrimSpace(newCfg.Schedule.Timezone) {
		a.log.Warn("schedule.timezone changed; restart required for changes to take effect")
	}

	a.logs.SetTelegramTarget(newCfg.Telegram.LogChatID, newCfg.Logging.Telegram.ThreadID)
	a.logs.Apply(LoggingConfig(newCfg))

	if sc, _, err := ScheduleConfig(newCfg); err != nil {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	} else {
		a.poster.SetSchedule(sc)
		a.poster.SetLogFile(strings.TrimSpace(newCfg.Schedule.LogFile))
	}

	if dc, err := DebugConfig(newCfg); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else if err := a.debug.Reconfigure(ctx, dc); err != nil {
		a.log.Warn("debug server reconfigure failed", logx.Err(err))
	}

	if hc, err := HeartbeatConfig(newCfg); err != nil {
		a.log.Warn("invalid heartbeat config; keeping previous", logx.Err(err))
	} else if err := a.beat.Apply(ctx, hc); err != nil {
		a.log.Warn("heartbeat reconfigure failed", logx.Err(err))
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

// Stop cancels every component and releases the store and log sinks. Each
// step is bounded so one stuck component cannot stall shutdown.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		_ = a.store.Close()
		return a.logs.Close()
	}
	notifySystemd(a.log, daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		if limit <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	step("supervisor", 3*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}
