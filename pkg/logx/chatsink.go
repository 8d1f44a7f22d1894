package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender delivers operator log lines to a chat. internal/telegram.Client
// implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, threadID int, text string) (int, error)
}

const (
	chatQueueSize   = 256
	chatMessageMax  = 3500
	chatFieldMax    = 600
	chatStackMax    = 900
	chatDefaultRate = 1
)

type chatLine struct {
	chatID   int64
	threadID int
	text     string
}

// chatSink forwards JSON log lines at or above a level to a chat. Writes
// never block: lines over the rate limit or beyond a full queue are dropped.
type chatSink struct {
	sender Sender
	queue  chan chatLine

	mu       sync.Mutex
	chatID   int64
	threadID int
	minLevel Level
	limiter  *rate.Limiter

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func newChatSink(sender Sender) *chatSink {
	return &chatSink{
		sender:   sender,
		queue:    make(chan chatLine, chatQueueSize),
		minLevel: LevelWarn,
		limiter:  rate.NewLimiter(chatDefaultRate, chatDefaultRate),
	}
}

func (c *chatSink) target(chatID int64, threadID int) {
	c.mu.Lock()
	c.chatID = chatID
	if threadID != 0 {
		c.threadID = threadID
	}
	c.mu.Unlock()
}

func (c *chatSink) configure(cfg TelegramConfig) {
	perSec := max(chatDefaultRate, cfg.RatePerSec)
	c.mu.Lock()
	c.minLevel = parseLevel(cfg.MinLevel, LevelWarn)
	c.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
	if cfg.ThreadID != 0 {
		c.threadID = cfg.ThreadID
	}
	unset := c.chatID == 0
	c.mu.Unlock()
	if cfg.Enabled && unset {
		fmt.Fprintln(os.Stderr, "logx: telegram logging enabled but telegram.log_chat_id is not set")
	}
}

func (c *chatSink) start() {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.cancel = cancel
		c.done = make(chan struct{})
		done := c.done
		c.mu.Unlock()
		go func() {
			defer close(done)
			c.deliver(ctx)
		}()
	})
}

func (c *chatSink) stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *chatSink) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-c.queue:
			if c.sender != nil {
				_, _ = c.sender.SendText(ctx, line.chatID, line.threadID, line.text)
			}
		}
	}
}

func (c *chatSink) Write(p []byte) (int, error) { return c.WriteLevel(LevelInfo, p) }

func (c *chatSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	chatID, threadID, lim, minLevel := c.chatID, c.threadID, c.limiter, c.minLevel
	c.mu.Unlock()

	if chatID == 0 || c.sender == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	text := formatTelegramJSON(p)
	if text == "" {
		return len(p), nil
	}
	select {
	case c.queue <- chatLine{chatID: chatID, threadID: threadID, text: text}:
	default:
	}
	return len(p), nil
}

// formatTelegramJSON renders a zerolog JSON line as
// "[LEVEL] message" followed by one "- key=value" line per field in key
// order. Non-JSON input is passed through trimmed.
func formatTelegramJSON(p []byte) string {
	p = bytes.TrimSpace(p)
	var rec map[string]any
	if err := json.Unmarshal(p, &rec); err != nil {
		return clip(string(p), chatMessageMax)
	}

	msg, _ := rec[zerolog.MessageFieldName].(string)
	var b strings.Builder
	if lvl, _ := rec[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(rec[k])
		if k == "stack" {
			fmt.Fprintf(&b, "\n- stack=\n%s", clip(v, chatStackMax))
			continue
		}
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(v, chatFieldMax))
	}
	return clip(b.String(), chatMessageMax)
}

// clip shortens s to at most n bytes on a rune boundary, marking the cut
// with "...".
func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n - 3
	if cut < 1 {
		cut = n
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == n {
		return s[:cut]
	}
	return s[:cut] + "..."
}
