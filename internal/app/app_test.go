package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/publisher"
	"quotebot/internal/schedule"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

func writeConfig(t *testing.T, dir, extra string) (cfgPath, dbPath string) {
	t.Helper()
	dbPath = filepath.Join(dir, "quotebot.db")
	body := fmt.Sprintf(`
logging:
  level: warn
  console: false
  file: { enabled: true, path: %q }
schedule:
  mode: fixed
  timezone: UTC
  fixed: { anchors: ["09:00", "21:00"], jitter_minutes: 5 }
  log_file: %q
storage:
  driver: sqlite
  path: %q
publisher:
  driver: dryrun
%s`, filepath.Join(dir, "quotebot.log"), filepath.Join(dir, "schedule.log"), dbPath, extra)
	cfgPath = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dbPath
}

func seed(t *testing.T, dbPath string, items ...string) {
	t.Helper()
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "sqlite", Path: dbPath}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for _, it := range items {
		if _, err := st.Append(ctx, it); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStartRefusesEmptyQueue(t *testing.T) {
	cfgPath, _ := writeConfig(t, t.TempDir(), "")
	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = a.Start(context.Background())
	if !errors.Is(err, storage.ErrEmptyQueue) {
		t.Fatalf("Start() = %v, want ErrEmptyQueue", err)
	}
	if err := a.Stop(context.Background(), StopUnknown); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStartServesHealthAndStops(t *testing.T) {
	cfgPath, dbPath := writeConfig(t, t.TempDir(), `
debug:
  enabled: true
  addr: "127.0.0.1:0"
heartbeat:
  enabled: true
  spec: "@hourly"
`)
	seed(t, dbPath, "A", "B", "C")

	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.debug.Addr() == "" {
		t.Fatal("debug server not listening")
	}

	v, err := a.health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h := v.(health); h.QueueLength != 3 || h.Publisher != "dryrun" {
		t.Fatalf("unexpected health %+v", h)
	}

	select {
	case <-a.Done():
		t.Fatalf("app stopped early: %v", a.Err())
	case <-time.After(100 * time.Millisecond):
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestApplyConfigSwapsSchedule(t *testing.T) {
	cfgPath, dbPath := writeConfig(t, t.TempDir(), "")
	seed(t, dbPath, "A")
	a, err := New(cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	oldCfg := a.cfgm.Get()
	newCfg := *oldCfg
	newCfg.Schedule.Mode = "uniform"
	newCfg.Schedule.Uniform = config.UniformSchedule{Count: 2, WindowStart: "08:00", WindowEnd: "20:00"}
	newCfg.Debug = config.DebugConfig{Enabled: true, Addr: "127.0.0.1:0"}

	a.applyConfig(context.Background(), oldCfg, &newCfg)
	if a.debug.Addr() == "" {
		t.Fatal("debug server not started by reload")
	}
	a.debug.Stop(context.Background())
}

func TestMappers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "x_access_token")
	if err := os.WriteFile(tokenFile, []byte("secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Schedule: config.ScheduleConfig{
			Mode:     "uniform",
			Timezone: "Europe/Berlin",
			Uniform:  config.UniformSchedule{Count: 3, WindowStart: "08:00", WindowEnd: "22:00"},
		},
		Publisher: config.PublisherConfig{Driver: "x", X: config.XPublisher{
			ConsumerKey:     "ck",
			ConsumerSecret:  "cs",
			AccessTokenFile: tokenFile,
			AccessSecret:    "as",
			Timeout:         "5s",
		}},
		Storage:   config.StorageConfig{Driver: "sqlite", Path: "q.db", BusyTimeout: "2s"},
		Debug:     config.DebugConfig{Enabled: true, ReadTimeout: "3s"},
	}

	sc, loc, err := ScheduleConfig(cfg)
	if err != nil {
		t.Fatalf("ScheduleConfig: %v", err)
	}
	if u, ok := sc.(schedule.Uniform); !ok || u.Count != 3 || loc.String() != "Europe/Berlin" {
		t.Fatalf("unexpected schedule %#v %v", sc, loc)
	}

	pc, err := PublisherConfig(cfg)
	if err != nil {
		t.Fatalf("PublisherConfig: %v", err)
	}
	if pc.X.AccessToken != "secret" || pc.X.ConsumerKey != "ck" || pc.X.AccessSecret != "as" || pc.X.Timeout != 5*time.Second {
		t.Fatalf("unexpected publisher config %+v", pc.X)
	}
	if _, err := OpenPublisher(cfg, logx.Nop()); err != nil {
		t.Fatalf("OpenPublisher: %v", err)
	}

	st, err := StoreConfig(cfg)
	if err != nil || st.BusyTimeout != 2*time.Second || st.Path != "q.db" {
		t.Fatalf("StoreConfig = %+v, %v", st, err)
	}

	dc, err := DebugConfig(cfg)
	if err != nil || dc.ReadTimeout != 3*time.Second || !dc.Enabled {
		t.Fatalf("DebugConfig = %+v, %v", dc, err)
	}

	cfg.Publisher = config.PublisherConfig{Driver: "dryrun"}
	p, err := OpenPublisher(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*publisher.DryRun); !ok {
		t.Fatalf("got %T, want *publisher.DryRun", p)
	}
}

func TestTelegramClientOptional(t *testing.T) {
	t.Parallel()
	c, err := TelegramClient(&config.Config{}, logx.Nop())
	if err != nil || c != nil {
		t.Fatalf("TelegramClient without token = %v, %v", c, err)
	}
}
