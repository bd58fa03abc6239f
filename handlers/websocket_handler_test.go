package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestSession(t *testing.T) *websocket.Conn {
	t.Helper()

	cfg := testConfig()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleFocusSession(w, r, nil, cfg)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/focus"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPingPong(t *testing.T) {
	conn := dialTestSession(t)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestStartRequiresGoalAndDuration(t *testing.T) {
	conn := dialTestSession(t)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "start",
		Data: map[string]interface{}{"goal": "", "duration_minutes": 0},
	}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestUnknownMessageIgnored(t *testing.T) {
	conn := dialTestSession(t)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "wiggle"}))
	// Connection stays usable.
	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}
