package config

import (
	"reflect"
	"sort"
	"strings"

	logx "quotebot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes secrets like tokens or DSNs).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Telegram (never log token)
	if secretSet(oldCfg.Telegram.Token, oldCfg.Telegram.TokenFile) != secretSet(newCfg.Telegram.Token, newCfg.Telegram.TokenFile) ||
		strings.TrimSpace(oldCfg.Telegram.APIURL) != strings.TrimSpace(newCfg.Telegram.APIURL) ||
		strings.TrimSpace(oldCfg.Telegram.Timeout) != strings.TrimSpace(newCfg.Telegram.Timeout) ||
		oldCfg.Telegram.LogChatID != newCfg.Telegram.LogChatID {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", secretSet(newCfg.Telegram.Token, newCfg.Telegram.TokenFile)),
			logx.Bool("telegram.log_chat_set", newCfg.Telegram.LogChatID != 0),
		)
	}

	// Schedule
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		s := newCfg.Schedule
		attrs = append(attrs,
			logx.String("schedule.mode", strings.TrimSpace(s.Mode)),
			logx.String("schedule.timezone", strings.TrimSpace(s.Timezone)),
		)
		switch strings.ToLower(strings.TrimSpace(s.Mode)) {
		case "fixed":
			attrs = append(attrs,
				logx.String("schedule.anchors", strings.Join(s.Fixed.Anchors, ",")),
				logx.Int("schedule.jitter_minutes", s.Fixed.JitterMinutes),
			)
		case "uniform":
			attrs = append(attrs,
				logx.Int("schedule.count", s.Uniform.Count),
				logx.String("schedule.window", s.Uniform.WindowStart+"-"+s.Uniform.WindowEnd),
			)
		}
	}

	if oldCfg.Queue != newCfg.Queue {
		changed = append(changed, "queue")
		attrs = append(attrs, logx.Int("queue.max_length", newCfg.Queue.MaxLength))
	}

	// Storage (never log dsn)
	oS, nS := oldCfg.Storage, newCfg.Storage
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) ||
		oS.DSN != nS.DSN || oS.DSNFile != nS.DSNFile {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.Bool("storage.dsn_set", secretSet(nS.DSN, nS.DSNFile)),
		)
	}

	// Publisher (never log credentials)
	oP, nP := oldCfg.Publisher, newCfg.Publisher
	if strings.TrimSpace(oP.Driver) != strings.TrimSpace(nP.Driver) ||
		oP.Telegram != nP.Telegram || oP.X != nP.X {
		changed = append(changed, "publisher")
		credsSet := true
		for _, ref := range nP.X.Credentials() {
			credsSet = credsSet && ref.set()
		}
		attrs = append(attrs,
			logx.String("publisher.driver", strings.TrimSpace(nP.Driver)),
			logx.Bool("publisher.x_credentials_set", credsSet),
		)
	}

	// Debug (never log token)
	oD, nD := oldCfg.Debug, newCfg.Debug
	oD.Token, nD.Token = "", ""
	if oD != nD || (strings.TrimSpace(oldCfg.Debug.Token) != "") != (strings.TrimSpace(newCfg.Debug.Token) != "") {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nD.Enabled),
			logx.String("debug.addr", strings.TrimSpace(nD.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(newCfg.Debug.Token) != ""),
			logx.Bool("debug.allow_insecure", nD.AllowInsecure),
		)
	}

	if oldCfg.Heartbeat != newCfg.Heartbeat {
		changed = append(changed, "heartbeat")
		attrs = append(attrs,
			logx.Bool("heartbeat.enabled", newCfg.Heartbeat.Enabled),
			logx.String("heartbeat.spec", strings.TrimSpace(newCfg.Heartbeat.Spec)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func secretSet(inline, file string) bool {
	return strings.TrimSpace(inline) != "" || strings.TrimSpace(file) != ""
}
