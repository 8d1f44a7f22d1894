package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	logx "quotebot/pkg/logx"
)

const DefaultXEndpoint = "https://api.twitter.com/2/tweets"

// XConfig carries OAuth 1.0a user-context credentials. They do not expire,
// so the daemon never has to refresh them.
type XConfig struct {
	Endpoint       string
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	Timeout        time.Duration
}

// X publishes through the X API v2 create-post endpoint.
type X struct {
	cfg  XConfig
	log  logx.Logger
	http *http.Client
	now  func() time.Time
}

// NewX builds a publisher whose requests are signed with HMAC-SHA1.
func NewX(cfg XConfig, log logx.Logger) (*X, error) {
	var missing []string
	for _, c := range []struct{ name, v string }{
		{"consumer key", cfg.ConsumerKey},
		{"consumer secret", cfg.ConsumerSecret},
		{"access token", cfg.AccessToken},
		{"access token secret", cfg.AccessSecret},
	} {
		if strings.TrimSpace(c.v) == "" {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New("x credentials missing: " + strings.Join(missing, ", "))
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultXEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	oc := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	client := oc.Client(context.Background(), oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	client.Timeout = timeout
	return &X{cfg: cfg, log: log, http: client, now: time.Now}, nil
}

func (x *X) Name() string { return "x" }

type xCreateResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type xErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (x *X) Post(ctx context.Context, content string) (Receipt, error) {
	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("x request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("x response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return Receipt{}, &PostFailure{Status: resp.StatusCode, Message: xErrorMessage(raw, resp.Status)}
	}

	var out xCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Receipt{}, fmt.Errorf("decode x response: %w", err)
	}
	if out.Data.ID == "" {
		return Receipt{}, &PostFailure{Status: resp.StatusCode, Message: "response without post id"}
	}

	x.log.Debug("x post created", logx.String("id", out.Data.ID))
	return Receipt{
		ExternalID: out.Data.ID,
		PostedAt:   x.now(),
		Metadata:   headersJSON(resp.Header),
	}, nil
}

func xErrorMessage(raw []byte, status string) string {
	var e xErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil {
		switch {
		case e.Detail != "":
			return e.Detail
		case len(e.Errors) > 0 && e.Errors[0].Message != "":
			return e.Errors[0].Message
		case e.Title != "":
			return e.Title
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) <= 300 {
		return s
	}
	return status
}

// headersJSON flattens response headers into a JSON object, keys sorted.
func headersJSON(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = strings.Join(h.Values(k), ", ")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
