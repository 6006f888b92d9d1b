package notifications

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNotifier(t *testing.T) {
	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42").WithBaseURL(srv.URL)
	require.NoError(t, n.SendAlert(LevelError, "daily loss limit breached"))

	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Contains(t, gotText, "🚨")
	assert.Contains(t, gotText, "daily loss limit breached")
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewTelegramNotifier("TOKEN", "42").WithBaseURL(srv.URL).SendAlert(LevelInfo, "hi")
	assert.ErrorContains(t, err, "429")
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) SendAlert(level, message string) error {
	s.calls++
	return s.err
}

func TestMultiNotifierDeliversToAll(t *testing.T) {
	failing := &stubNotifier{err: errors.New("chat down")}
	ok := &stubNotifier{}
	m := NewMultiNotifier(failing, nil, ok, NewLogNotifier(nil))

	err := m.SendAlert(LevelWarning, "weekly limit")
	assert.ErrorContains(t, err, "chat down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)

	assert.NoError(t, NewMultiNotifier().SendAlert(LevelInfo, "nothing"))
}
