package publisher

import (
	"context"
	"errors"
	"strconv"
	"time"

	"quotebot/internal/telegram"
	logx "quotebot/pkg/logx"
)

type TelegramConfig struct {
	Token     string
	APIURL    string
	ChatID    int64
	ThreadID  int
	ParseMode string
	Timeout   time.Duration
}

// Telegram posts items as messages in a channel or chat.
type Telegram struct {
	client   *telegram.Client
	chatID   int64
	threadID int
	log      logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram publisher chat id is empty")
	}
	c, err := telegram.New(telegram.Config{
		Token:          cfg.Token,
		APIURL:         cfg.APIURL,
		Timeout:        cfg.Timeout,
		ParseMode:      cfg.ParseMode,
		DisablePreview: true,
	}, log)
	if err != nil {
		return nil, err
	}
	return &Telegram{client: c, chatID: cfg.ChatID, threadID: cfg.ThreadID, log: log}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Post(ctx context.Context, content string) (Receipt, error) {
	m, err := t.client.Send(ctx, t.chatID, t.threadID, content)
	if err != nil {
		if code, desc, ok := telegram.APIError(err); ok {
			return Receipt{}, &PostFailure{Status: code, Message: desc}
		}
		if ctx.Err() != nil {
			return Receipt{}, err
		}
		return Receipt{}, &PostFailure{Message: err.Error()}
	}
	posted := m.Date
	if posted.IsZero() {
		posted = time.Now()
	}
	return Receipt{
		ExternalID: strconv.FormatInt(m.ChatID, 10) + ":" + strconv.Itoa(m.ID),
		PostedAt:   posted,
		Metadata:   `{"chat_id":` + strconv.FormatInt(m.ChatID, 10) + `,"message_id":` + strconv.Itoa(m.ID) + `}`,
	}, nil
}
