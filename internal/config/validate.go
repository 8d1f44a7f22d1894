package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quotebot/internal/heartbeat"
	"quotebot/internal/schedule"
)

// Validate checks a parsed config without touching the network or the store.
// It is installed as the manager's validator so a broken edit never reaches
// the running daemon.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if _, err := cfg.Schedule.Parse(); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if _, err := cfg.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Queue.MaxLength < 0 {
		errs = append(errs, errors.New("queue.max_length: must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(cfg.Storage.DSN) == "" && strings.TrimSpace(cfg.Storage.DSNFile) == "" {
			errs = append(errs, errors.New("storage: postgres requires dsn or dsn_file"))
		}
	case "memory", "mem":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	tokenSet := strings.TrimSpace(cfg.Telegram.Token) != "" || strings.TrimSpace(cfg.Telegram.TokenFile) != ""
	switch strings.ToLower(strings.TrimSpace(cfg.Publisher.Driver)) {
	case "", "dryrun", "dry-run":
	case "x", "twitter":
		for _, ref := range cfg.Publisher.X.Credentials() {
			if !ref.set() {
				errs = append(errs, fmt.Errorf("%s: %s or %s_file is required", ref.Key, ref.Key, ref.Key))
			}
		}
	case "telegram":
		if !tokenSet {
			errs = append(errs, errors.New("publisher.telegram: telegram.token or telegram.token_file is required"))
		}
		if cfg.Publisher.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("publisher.telegram.chat_id: required"))
		}
	default:
		errs = append(errs, fmt.Errorf("publisher.driver: unknown driver %q", cfg.Publisher.Driver))
	}

	if cfg.Logging.Telegram.Enabled {
		if !tokenSet {
			errs = append(errs, errors.New("logging.telegram: telegram.token or telegram.token_file is required"))
		}
		if cfg.Telegram.LogChatID == 0 {
			errs = append(errs, errors.New("logging.telegram: telegram.log_chat_id is required"))
		}
	}

	if cfg.Heartbeat.Enabled {
		if err := heartbeat.ValidateSpec(cfg.Heartbeat.Spec); err != nil {
			errs = append(errs, fmt.Errorf("heartbeat.spec: %w", err))
		}
	}

	durations := map[string]string{
		"telegram.timeout":     cfg.Telegram.Timeout,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
		"publisher.x.timeout":  cfg.Publisher.X.Timeout,
		"debug.read_timeout":   cfg.Debug.ReadTimeout,
		"debug.write_timeout":  cfg.Debug.WriteTimeout,
		"debug.idle_timeout":   cfg.Debug.IdleTimeout,
		"heartbeat.timeout":    cfg.Heartbeat.Timeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Parse converts the section into a schedule.Config.
func (c ScheduleConfig) Parse() (schedule.Config, error) {
	return schedule.ParseConfig(c.Mode, c.Fixed.Anchors, c.Fixed.JitterMinutes, c.Uniform.Count, c.Uniform.WindowStart, c.Uniform.WindowEnd)
}

// Location resolves the schedule timezone. Empty means time.Local.
func (c ScheduleConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}
