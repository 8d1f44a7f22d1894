package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quotebot/internal/schedule"
)

const sampleYAML = `
logging:
  level: debug
  console: true
schedule:
  mode: fixed
  timezone: UTC
  fixed:
    anchors: ["09:00", "13:00", "20:00"]
    jitter_minutes: 10
storage:
  driver: memory
publisher:
  driver: dryrun
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	m := NewConfigManager(p)
	m.SetValidator(func(_ context.Context, c *Config) error { return Validate(c) })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Queue.MaxLength != DefaultMaxLength || cfg.Publisher.Driver != "dryrun" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	sc, err := cfg.Schedule.Parse()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	fixed, ok := sc.(schedule.Fixed)
	if !ok || len(fixed.Anchors) != 3 || fixed.JitterMinutes != 10 {
		t.Fatalf("unexpected schedule %#v", sc)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestDecodeRejectsUnknownKeysAndTrailingData(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.yaml", []byte("schedule:\n  mode: fixed\n  anchor: [\"09:00\"]\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := Decode("c.json", []byte(`{"schedule":{"mode":"fixed"}} {}`)); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		c := &Config{Schedule: ScheduleConfig{Mode: "uniform", Uniform: UniformSchedule{Count: 3, WindowStart: "08:00", WindowEnd: "22:00"}}}
		ApplyDefaults(c)
		return c
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name string
		mut  func(c *Config)
		want string
	}{
		{"bad window", func(c *Config) { c.Schedule.Uniform.WindowEnd = "07:00" }, "schedule"},
		{"bad zone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "dsn"},
		{"x without token", func(c *Config) { c.Publisher.Driver = "x" }, "publisher.x.access_token"},
		{"x without consumer secret", func(c *Config) {
			c.Publisher.Driver = "x"
			c.Publisher.X = XPublisher{ConsumerKey: "k", AccessToken: "t", AccessSecretFile: "/run/secrets/s"}
		}, "publisher.x.consumer_secret"},
		{"telegram without chat", func(c *Config) {
			c.Publisher.Driver = "telegram"
			c.Telegram.Token = "t"
		}, "chat_id"},
		{"log sink without chat", func(c *Config) {
			c.Logging.Telegram.Enabled = true
			c.Telegram.Token = "t"
		}, "log_chat_id"},
		{"bad heartbeat", func(c *Config) {
			c.Heartbeat = HeartbeatConfig{Enabled: true, Spec: "sometimes"}
		}, "heartbeat.spec"},
		{"bad duration", func(c *Config) { c.Debug.ReadTimeout = "soon" }, "debug.read_timeout"},
		{"unknown publisher", func(c *Config) { c.Publisher.Driver = "mastodon" }, "publisher.driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mut(c)
			err := Validate(c)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestValidateReportsScheduleConfigError(t *testing.T) {
	t.Parallel()
	c := &Config{Schedule: ScheduleConfig{Mode: "fixed"}}
	ApplyDefaults(c)
	var ce *schedule.ConfigError
	if err := Validate(c); !errors.As(err, &ce) {
		t.Fatalf("expected *schedule.ConfigError, got %v", err)
	}
}

func TestResolveSecret(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "token", "  abc123\n")
	if v, err := ResolveSecret("x", " inline ", p); err != nil || v != "inline" {
		t.Fatalf("inline: %q %v", v, err)
	}
	if v, err := ResolveSecret("x", "", p); err != nil || v != "abc123" {
		t.Fatalf("file: %q %v", v, err)
	}
	if _, err := ResolveSecret("x", "", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Publisher: PublisherConfig{Driver: "x", X: XPublisher{AccessToken: "old-secret"}}}
	newCfg := &Config{
		Publisher: PublisherConfig{Driver: "x", X: XPublisher{AccessToken: "new-secret"}},
		Schedule:  ScheduleConfig{Mode: "fixed", Fixed: FixedSchedule{Anchors: []string{"10:00"}}},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "publisher,schedule" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", sampleYAML)
	m := NewConfigManager(p)
	m.SetValidator(func(_ context.Context, c *Config) error { return Validate(c) })
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is rejected and never published.
	writeFile(t, dir, "config.yaml", strings.Replace(sampleYAML, "mode: fixed", "mode: hourly", 1))
	select {
	case c := <-sub:
		t.Fatalf("invalid config published: %+v", c.Schedule)
	case <-time.After(700 * time.Millisecond):
	}

	writeFile(t, dir, "config.yaml", strings.Replace(sampleYAML, "jitter_minutes: 10", "jitter_minutes: 5", 1))
	select {
	case c := <-sub:
		if c.Schedule.Fixed.JitterMinutes != 5 {
			t.Fatalf("unexpected reload %+v", c.Schedule)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload not published")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("a", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
	if _, err := ParseDurationField("a", "-1s"); err == nil {
		t.Fatal("negative duration accepted")
	}
}

func TestDecodeRejectsMultipleYAMLDocuments(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.yml", []byte("logging: {level: info}\n---\nlogging: {level: debug}\n")); err == nil {
		t.Fatal("expected multi-document error")
	}
	cfg, err := Decode("c.yml", nil)
	if err != nil {
		t.Fatalf("empty yaml: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("defaults not applied: %+v", cfg.Storage)
	}
}
