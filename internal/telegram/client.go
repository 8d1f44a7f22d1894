// Package telegram is a minimal send-only Telegram Bot API client used by the
// telegram publisher and the operator log sink.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "quotebot/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint (tests, local bot API servers).
	APIURL  string
	Timeout time.Duration
	// ParseMode applies to every message; empty sends plain text.
	ParseMode string
	// DisablePreview turns off link previews.
	DisablePreview bool
}

// Message identifies a sent message. For split text it is the first chunk.
type Message struct {
	ID     int
	ChatID int64
	Date   time.Time
}

type Client struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

// New creates a client without contacting Telegram (no getMe on start).
func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(cfg.APIURL, "/"),
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
		OnError: func(err error, _ tele.Context) {
			log.Warn("telebot error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, log: log, bot: b}, nil
}

// Send delivers text to a chat (and forum thread when threadID != 0).
// Long text is split into several messages.
func (c *Client) Send(ctx context.Context, chatID int64, threadID int, text string) (Message, error) {
	chunks := splitText(text, textLimit, c.cfg.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: chatID}

	var first Message
	for i, chunk := range chunks {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return first, ctx.Err()
			default:
			}
		}

		msg, err := c.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             c.cfg.ParseMode,
			DisableWebPagePreview: c.cfg.DisablePreview,
			ThreadID:              threadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = Message{ID: msg.ID, ChatID: chatID, Date: msg.Time()}
		}
	}
	return first, nil
}

// SendText implements logx.Sender.
func (c *Client) SendText(ctx context.Context, chatID int64, threadID int, text string) (int, error) {
	m, err := c.Send(ctx, chatID, threadID, text)
	return m.ID, err
}

// APIError extracts the Bot API error code and description, if err carries them.
func APIError(err error) (code int, description string, ok bool) {
	var te *tele.Error
	if errors.As(err, &te) {
		return te.Code, te.Description, true
	}
	return 0, "", false
}
