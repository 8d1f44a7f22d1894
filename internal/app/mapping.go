package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/heartbeat"
	"quotebot/internal/observability/debug"
	"quotebot/internal/publisher"
	"quotebot/internal/schedule"
	"quotebot/internal/storage"
	"quotebot/internal/telegram"
	logx "quotebot/pkg/logx"
)

const (
	defaultBusyTimeout     = time.Second
	defaultTelegramTimeout = 15 * time.Second
	defaultXTimeout        = 20 * time.Second
)

// ScheduleConfig maps the schedule section to the generator config and the
// zone its clock runs in.
func ScheduleConfig(cfg *config.Config) (schedule.Config, *time.Location, error) {
	sc, err := cfg.Schedule.Parse()
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, nil, err
	}
	return sc, loc, nil
}

func StoreConfig(cfg *config.Config) (storage.Config, error) {
	s := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	dsn, err := config.ResolveSecret("storage.dsn_file", s.DSN, s.DSNFile)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(s.Driver),
		Path:        strings.TrimSpace(s.Path),
		DSN:         dsn,
		BusyTimeout: busy,
	}, nil
}

// OpenStore opens the configured store with its schema applied.
func OpenStore(ctx context.Context, cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := StoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, sc, log)
}

func telegramToken(cfg *config.Config) (string, error) {
	return config.ResolveSecret("telegram.token_file", cfg.Telegram.Token, cfg.Telegram.TokenFile)
}

func telegramTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, defaultTelegramTimeout)
}

func PublisherConfig(cfg *config.Config) (publisher.Config, error) {
	p := cfg.Publisher
	out := publisher.Config{Driver: strings.TrimSpace(p.Driver)}

	switch strings.ToLower(out.Driver) {
	case "x", "twitter":
		var creds [4]string
		for i, ref := range p.X.Credentials() {
			v, err := ref.Resolve()
			if err != nil {
				return out, err
			}
			creds[i] = v
		}
		timeout, err := config.ParseDurationOrDefault("publisher.x.timeout", p.X.Timeout, defaultXTimeout)
		if err != nil {
			return out, err
		}
		out.X = publisher.XConfig{
			Endpoint:       strings.TrimSpace(p.X.Endpoint),
			ConsumerKey:    creds[0],
			ConsumerSecret: creds[1],
			AccessToken:    creds[2],
			AccessSecret:   creds[3],
			Timeout:        timeout,
		}
	case "telegram":
		token, err := telegramToken(cfg)
		if err != nil {
			return out, err
		}
		timeout, err := telegramTimeout(cfg)
		if err != nil {
			return out, err
		}
		out.Telegram = publisher.TelegramConfig{
			Token:     token,
			APIURL:    strings.TrimSpace(cfg.Telegram.APIURL),
			ChatID:    p.Telegram.ChatID,
			ThreadID:  p.Telegram.ThreadID,
			ParseMode: strings.TrimSpace(p.Telegram.ParseMode),
			Timeout:   timeout,
		}
	}
	return out, nil
}

// OpenPublisher builds the configured publisher.
func OpenPublisher(cfg *config.Config, log logx.Logger) (publisher.Publisher, error) {
	pc, err := PublisherConfig(cfg)
	if err != nil {
		return nil, err
	}
	return publisher.Open(pc, log)
}

// TelegramClient returns the bot client used by the log sink, or nil when no
// bot token is configured.
func TelegramClient(cfg *config.Config, log logx.Logger) (*telegram.Client, error) {
	token, err := telegramToken(cfg)
	if err != nil || token == "" {
		return nil, err
	}
	timeout, err := telegramTimeout(cfg)
	if err != nil {
		return nil, err
	}
	return telegram.New(telegram.Config{
		Token:          token,
		APIURL:         strings.TrimSpace(cfg.Telegram.APIURL),
		Timeout:        timeout,
		DisablePreview: true,
	}, log)
}

func LoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func DebugConfig(cfg *config.Config) (debug.Config, error) {
	d := cfg.Debug
	read, err := config.ParseDurationField("debug.read_timeout", d.ReadTimeout)
	if err != nil {
		return debug.Config{}, err
	}
	write, err := config.ParseDurationField("debug.write_timeout", d.WriteTimeout)
	if err != nil {
		return debug.Config{}, err
	}
	idle, err := config.ParseDurationField("debug.idle_timeout", d.IdleTimeout)
	if err != nil {
		return debug.Config{}, err
	}
	return debug.Config{
		Enabled:              d.Enabled,
		Addr:                 strings.TrimSpace(d.Addr),
		Prefix:               strings.TrimSpace(d.Prefix),
		Token:                strings.TrimSpace(d.Token),
		AllowInsecure:        d.AllowInsecure,
		ReadTimeout:          read,
		WriteTimeout:         write,
		IdleTimeout:          idle,
		MutexProfileFraction: d.MutexProfileFraction,
		BlockProfileRate:     d.BlockProfileRate,
	}, nil
}

func HeartbeatConfig(cfg *config.Config) (heartbeat.Config, error) {
	timeout, err := config.ParseDurationField("heartbeat.timeout", cfg.Heartbeat.Timeout)
	if err != nil {
		return heartbeat.Config{}, err
	}
	hc := heartbeat.Config{
		Enabled: cfg.Heartbeat.Enabled,
		Spec:    strings.TrimSpace(cfg.Heartbeat.Spec),
		Timeout: timeout,
	}
	if hc.Enabled {
		if err := heartbeat.ValidateSpec(hc.Spec); err != nil {
			return heartbeat.Config{}, fmt.Errorf("heartbeat.spec: %w", err)
		}
	}
	return hc, nil
}
