package config

import "strings"

const (
	DefaultConfigPath = "./config.yaml"
	DefaultMaxLength  = 280
	DefaultDBPath     = "./quotebot.db"
)

// ApplyDefaults fills omitted values in place.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Schedule.Mode) == "" {
		cfg.Schedule.Mode = "fixed"
	}
	if cfg.Queue.MaxLength == 0 {
		cfg.Queue.MaxLength = DefaultMaxLength
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Driver == "sqlite" && strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultDBPath
	}
	if strings.TrimSpace(cfg.Publisher.Driver) == "" {
		cfg.Publisher.Driver = "dryrun"
	}
	if cfg.Heartbeat.Enabled && strings.TrimSpace(cfg.Heartbeat.Spec) == "" {
		cfg.Heartbeat.Spec = "@daily"
	}
}
