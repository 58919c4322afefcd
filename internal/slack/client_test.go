package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	logx "tablero/pkg/logx"
)

func TestSendText(t *testing.T) {
	t.Parallel()
	var got postMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat.postMessage", r.URL.Path)
		require.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(apiResponse{OK: true})
	}))
	defer srv.Close()

	c := New(Config{Token: "xoxb-test", BaseURL: srv.URL}, logx.Nop())
	require.NoError(t, c.SendText(context.Background(), "#ops", "hola"))
	require.Equal(t, "#ops", got.Channel)
	require.Equal(t, "hola", got.Text)
}

func TestSendTextAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(apiResponse{OK: false, Error: "channel_not_found"})
	}))
	defer srv.Close()

	c := New(Config{Token: "xoxb-test", BaseURL: srv.URL}, logx.Nop())
	err := c.SendText(context.Background(), "#nope", "hola")
	require.ErrorContains(t, err, "channel_not_found")
}

func TestSendTextRequiresTokenAndChannel(t *testing.T) {
	t.Parallel()
	c := New(Config{}, logx.Nop())
	require.False(t, c.Enabled())
	require.Error(t, c.SendText(context.Background(), "#ops", "hola"))

	c = New(Config{Token: "x"}, logx.Nop())
	require.Error(t, c.SendText(context.Background(), "  ", "hola"))
}
