package signal_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesync/collab/internal/adapters/signal"
	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/app/orch"
	"github.com/codesync/collab/internal/core"
)

type server struct {
	url      string
	reg      *core.Registry
	sessions *app.Sessions
}

func newServer(t *testing.T, limiter *signal.RoomRateLimiter) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := core.NewRegistry()
	sessions := app.NewSessions()
	ctl := signal.NewSignalWSController(orch.New(reg, sessions, app.SimplePolicy{}), limiter, signal.Options{
		ReadLimit:  1 << 16,
		WriteWait:  time.Second,
		SendBuffer: 16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &server{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", reg: reg, sessions: sessions}
}

func dial(t *testing.T, s *server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func write(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func read(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestSignalRoundTrip(t *testing.T) {
	s := newServer(t, nil)
	alice, bob := dial(t, s), dial(t, s)

	write(t, alice, `{"type":"join","roomId":"r1","userId":"u1","userName":"Alice"}`)
	assert.Equal(t, map[string]any{"type": "usersList", "users": []any{"Alice"}}, read(t, alice))

	write(t, bob, `{"type":"join","roomId":"r1","userId":"u2","userName":"Bob"}`)
	assert.Equal(t, map[string]any{"type": "usersList", "users": []any{"Alice", "Bob"}}, read(t, bob))
	assert.Equal(t, map[string]any{"type": "userJoined", "userId": "u2", "userName": "Bob"}, read(t, alice))

	write(t, alice, `{"type":"code","roomId":"r1","fileId":"main.go","code":"package main","userId":"u1"}`)
	assert.Equal(t, map[string]any{"type": "code", "code": "package main", "fileId": "main.go", "userId": "u1"}, read(t, bob))

	// closing the socket runs the leave transition
	require.NoError(t, bob.Close())
	assert.Equal(t, map[string]any{"type": "userLeft", "userId": "u2", "userName": "Bob"}, read(t, alice))
}

func TestSignalDropsBadFrames(t *testing.T) {
	s := newServer(t, nil)
	ws := dial(t, s)

	write(t, ws, `not json`)
	write(t, ws, `{"type":"dance"}`)
	write(t, ws, `{"type":"join","userId":"u1"}`)
	write(t, ws, `{"type":"ping"}`)

	// the connection survives and the first reply is the pong
	assert.Equal(t, map[string]any{"type": "pong"}, read(t, ws))
	assert.Equal(t, 0, s.reg.Len())
}

func TestSignalRateLimitsJoinRequests(t *testing.T) {
	s := newServer(t, signal.NewRoomRateLimiter(1, time.Minute))
	ws := dial(t, s)

	write(t, ws, `{"type":"requestJoin","roomId":"missing","userId":"u1"}`)
	assert.Equal(t, map[string]any{"type": "error", "message": "Room does not exist"}, read(t, ws))

	write(t, ws, `{"type":"requestJoin","roomId":"missing","userId":"u1"}`)
	write(t, ws, `{"type":"ping"}`)
	assert.Equal(t, map[string]any{"type": "pong"}, read(t, ws), "second request was dropped")
}

func TestSignalUnregistersOnClose(t *testing.T) {
	s := newServer(t, nil)
	ws := dial(t, s)
	write(t, ws, `{"type":"ping"}`)
	read(t, ws)
	require.Equal(t, 1, s.sessions.Count())

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return s.sessions.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHeartbeatReapRunsDisconnect(t *testing.T) {
	s := newServer(t, nil)
	alive, silent := dial(t, s), dial(t, s)

	write(t, alive, `{"type":"join","roomId":"r1","userId":"u1","userName":"Alice"}`)
	read(t, alive)
	write(t, silent, `{"type":"join","roomId":"r1","userId":"u2","userName":"Sam"}`)
	assert.Equal(t, "userJoined", read(t, alive)["type"])
	// silent never reads again, so it never answers a ping

	hb := app.NewHeartbeat(time.Minute, s.sessions)
	assert.Equal(t, app.SweepStats{Probed: 2}, hb.Sweep())

	// reading answers the ping; the second reply proves the server has
	// consumed the pong written before it
	write(t, alive, `{"type":"ping"}`)
	assert.Equal(t, "pong", read(t, alive)["type"])
	write(t, alive, `{"type":"ping"}`)
	assert.Equal(t, "pong", read(t, alive)["type"])

	assert.Equal(t, app.SweepStats{Probed: 1, Reaped: 1}, hb.Sweep())
	assert.Equal(t, map[string]any{"type": "userLeft", "userId": "u2", "userName": "Sam"}, read(t, alive))
	assert.Eventually(t, func() bool { return s.sessions.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.reg.Len())
}
