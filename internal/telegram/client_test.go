package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	logx "quotebot/pkg/logx"
)

type fakeBotAPI struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var params map[string]any
	if err := json.Unmarshal(body, &params); err != nil {
		// telebot may post form values
		vals, _ := url.ParseQuery(string(body))
		params = map[string]any{"text": vals.Get("text")}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if f.fail {
		_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
		return
	}
	text, _ := params["text"].(string)
	f.texts = append(f.texts, text)
	id := len(f.texts)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": true,
		"result": map[string]any{
			"message_id": 100 + id,
			"date":       1714554000,
			"chat":       map[string]any{"id": -100123, "type": "channel"},
			"text":       text,
		},
	})
}

func newTestClient(t *testing.T, api *fakeBotAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestSendReturnsFirstMessage(t *testing.T) {
	api := &fakeBotAPI{}
	c := newTestClient(t, api)

	m, err := c.Send(context.Background(), -100123, 0, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.ID != 101 || m.ChatID != -100123 || m.Date.Unix() != 1714554000 {
		t.Fatalf("unexpected message %+v", m)
	}
	if len(api.texts) != 1 || api.texts[0] != "hello" {
		t.Fatalf("server saw %v", api.texts)
	}
}

func TestSendSplitsLongText(t *testing.T) {
	api := &fakeBotAPI{}
	c := newTestClient(t, api)

	long := strings.Repeat("a", textLimit) + "\n" + "tail"
	id, err := c.SendText(context.Background(), 1, 0, long)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != 101 {
		t.Fatalf("id = %d, want first chunk id 101", id)
	}
	if len(api.texts) != 2 {
		t.Fatalf("got %d chunks, want 2", len(api.texts))
	}
}

func TestSendMapsAPIError(t *testing.T) {
	api := &fakeBotAPI{fail: true}
	c := newTestClient(t, api)

	_, err := c.Send(context.Background(), 1, 0, "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if code, _, ok := APIError(err); !ok || code != 403 {
		t.Fatalf("APIError(%v) = %d, %v", err, code, ok)
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "short", in: "abc", limit: 10, want: []string{"abc"}},
		{name: "newline boundary", in: "aaaa\nbbbb\ncc", limit: 10, want: []string{"aaaa\nbbbb", "cc"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitText(tc.in, tc.limit, "")
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("splitText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
