package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"hftracker/internal/transport"
	logx "hftracker/pkg/logx"
)

func TestParseChannelID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		numeric bool
		err     bool
	}{
		{in: "-1001234567890", want: "-1001234567890", numeric: true},
		{in: " 42 ", want: "42", numeric: true},
		{in: "@my_channel", want: "@my_channel"},
		{in: "", err: true},
		{in: PlaceholderChannel, err: true},
		{in: "@", err: true},
		{in: "my channel", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			r, err := ParseChannelID(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Recipient())
			_, isChat := r.(tele.ChatID)
			assert.Equal(t, tc.numeric, isChat)
		})
	}
}

func TestConfigured(t *testing.T) {
	assert.True(t, Configured("123:abc", "-100"))
	assert.False(t, Configured("", "-100"))
	assert.False(t, Configured(PlaceholderToken, "-100"))
	assert.False(t, Configured("123:abc", PlaceholderChannel))
	assert.False(t, Configured("123:abc", ""))
}

func TestSplitTelegramTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitTelegramText("hello", 10, "HTML"))
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	parts := splitTelegramText(s, 12, "")
	assert.Equal(t, []string{strings.Repeat("a", 8), strings.Repeat("b", 8)}, parts)
}

func TestSplitTelegramTextAvoidsOpenTag(t *testing.T) {
	s := "xxxxxxx<b>bold</b>"
	parts := splitTelegramText(s, 9, "HTML")
	require.NotEmpty(t, parts)
	assert.Equal(t, "xxxxxxx", parts[0])
	assert.Equal(t, s, strings.Join(parts, ""))
}

func TestSplitTelegramTextCountsRunes(t *testing.T) {
	s := strings.Repeat("é", 25)
	parts := splitTelegramText(s, 10, "")
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 10)
	}
}

type apiCall struct {
	path   string
	params map[string]any
}

func fakeBotAPI(t *testing.T, ok bool) (*httptest.Server, func() []apiCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []apiCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		_ = json.NewDecoder(r.Body).Decode(&params)
		mu.Lock()
		calls = append(calls, apiCall{path: r.URL.Path, params: params})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":-100,"type":"channel"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []apiCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]apiCall(nil), calls...)
	}
}

func TestSenderSend(t *testing.T) {
	srv, calls := fakeBotAPI(t, true)
	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)

	err = s.Send(context.Background(), "-100", "<b>hi</b>", &transport.SendOptions{ParseMode: "HTML"})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", got[0].path)
	assert.Equal(t, "-100", got[0].params["chat_id"])
	assert.Equal(t, "<b>hi</b>", got[0].params["text"])
}

func TestSenderSendAPIError(t *testing.T) {
	srv, _ := fakeBotAPI(t, false)
	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), "@chan", "hi", nil))
}

func TestSenderRejectsBadInput(t *testing.T) {
	_, err := New(Config{Token: PlaceholderToken}, logx.Nop())
	assert.Error(t, err)

	srv, calls := fakeBotAPI(t, true)
	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Send(context.Background(), "", "hi", nil), ErrNoChannel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "-100", "hi", nil), context.Canceled)
	assert.Empty(t, calls())
}
