package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Queue     QueueConfig     `json:"queue,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Publisher PublisherConfig `json:"publisher"`
	Debug     DebugConfig     `json:"debug,omitempty"`
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log records to telegram.log_chat_id.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig is the bot account shared by the telegram publisher and the
// log sink.
type TelegramConfig struct {
	Token     string `json:"token,omitempty"`
	TokenFile string `json:"token_file,omitempty"`
	APIURL    string `json:"api_url,omitempty"`
	// Timeout is a Go duration string (e.g. "10s").
	Timeout   string `json:"timeout,omitempty"`
	LogChatID int64  `json:"log_chat_id,omitempty"`
}

// ScheduleConfig selects how each day's posting times are generated.
//
// Example (fixed):
//
//	schedule:
//	  mode: fixed
//	  fixed: { anchors: ["09:00", "13:00", "20:00"], jitter_minutes: 10 }
//
// Example (uniform):
//
//	schedule:
//	  mode: uniform
//	  uniform: { count: 3, window_start: "08:00", window_end: "22:00" }
type ScheduleConfig struct {
	Mode string `json:"mode"`
	// Timezone is an IANA zone name; empty means the host's local zone.
	Timezone string          `json:"timezone,omitempty"`
	Fixed    FixedSchedule   `json:"fixed,omitempty"`
	Uniform  UniformSchedule `json:"uniform,omitempty"`
	// LogFile receives the computed times of every generated schedule.
	LogFile string `json:"log_file,omitempty"`
}

type FixedSchedule struct {
	Anchors       []string `json:"anchors,omitempty"`
	JitterMinutes int      `json:"jitter_minutes,omitempty"`
}

type UniformSchedule struct {
	Count       int    `json:"count,omitempty"`
	WindowStart string `json:"window_start,omitempty"`
	WindowEnd   string `json:"window_end,omitempty"`
}

type QueueConfig struct {
	// MaxLength is the longest item (in characters) accepted by db import.
	// Default: 280.
	MaxLength int `json:"max_length,omitempty"`
}

// StorageConfig selects the queue store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./quotebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	DSNFile     string `json:"dsn_file,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type PublisherConfig struct {
	// Driver is "x", "telegram" or "dryrun".
	Driver   string            `json:"driver"`
	X        XPublisher        `json:"x,omitempty"`
	Telegram TelegramPublisher `json:"telegram,omitempty"`
}

// XPublisher holds OAuth 1.0a user-context credentials. Each one is given
// inline or as a file path.
type XPublisher struct {
	Endpoint           string `json:"endpoint,omitempty"`
	ConsumerKey        string `json:"consumer_key,omitempty"`
	ConsumerKeyFile    string `json:"consumer_key_file,omitempty"`
	ConsumerSecret     string `json:"consumer_secret,omitempty"`
	ConsumerSecretFile string `json:"consumer_secret_file,omitempty"`
	AccessToken        string `json:"access_token,omitempty"`
	AccessTokenFile    string `json:"access_token_file,omitempty"`
	AccessSecret       string `json:"access_token_secret,omitempty"`
	AccessSecretFile   string `json:"access_token_secret_file,omitempty"`
	Timeout            string `json:"timeout,omitempty"`
}

// SecretRef is one credential: its config key, inline value and file path.
type SecretRef struct {
	Key    string
	Inline string
	File   string
}

// Credentials lists the four X credentials in consumer key, consumer secret,
// access token, access token secret order.
func (x XPublisher) Credentials() []SecretRef {
	return []SecretRef{
		{Key: "publisher.x.consumer_key", Inline: x.ConsumerKey, File: x.ConsumerKeyFile},
		{Key: "publisher.x.consumer_secret", Inline: x.ConsumerSecret, File: x.ConsumerSecretFile},
		{Key: "publisher.x.access_token", Inline: x.AccessToken, File: x.AccessTokenFile},
		{Key: "publisher.x.access_token_secret", Inline: x.AccessSecret, File: x.AccessSecretFile},
	}
}

// Resolve reads the credential through ResolveSecret.
func (r SecretRef) Resolve() (string, error) {
	return ResolveSecret(r.Key+"_file", r.Inline, r.File)
}

func (r SecretRef) set() bool { return secretSet(r.Inline, r.File) }

type TelegramPublisher struct {
	ChatID    int64  `json:"chat_id"`
	ThreadID  int    `json:"thread_id,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// DebugConfig controls the optional HTTP server for /healthz, /metrics and
// pprof.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so /profile (which can take 30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}

// HeartbeatConfig schedules a periodic queue report in the logs.
// Spec accepts cron expressions (optional seconds field) and descriptors
// such as "@daily" or "@every 6h", evaluated in schedule.timezone.
type HeartbeatConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}
