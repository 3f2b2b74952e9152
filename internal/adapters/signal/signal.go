package signal

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/app/orch"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Options struct {
	ReadLimit  int64
	WriteWait  time.Duration
	SendBuffer int
}

type SignalWSController struct {
	Orch     *orch.Coordinator
	Sessions *app.Sessions
	Limiter  *RoomRateLimiter
	Opts     Options
}

func NewSignalWSController(o *orch.Coordinator, limiter *RoomRateLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	return &SignalWSController{
		Orch:     o,
		Sessions: o.Sessions,
		Limiter:  limiter,
		Opts:     opts,
	}
}

// wsConn is the slice of *websocket.Conn a peer endpoint uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	WriteControl(mt int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// WsSignalConn is the websocket endpoint of one peer. It implements
// core.Prober.
type WsSignalConn struct {
	id        core.SessionID
	conn      wsConn
	send      chan core.Frame
	writeWait time.Duration
	alive     atomic.Bool

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws wsConn, buffer int, writeWait time.Duration) *WsSignalConn {
	c := &WsSignalConn{
		id:        core.SessionID(uuid.NewString()),
		conn:      ws,
		send:      make(chan core.Frame, buffer),
		writeWait: writeWait,
	}
	c.alive.Store(true)
	ws.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}

func (c *WsSignalConn) ID() core.SessionID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Ping may run concurrently with the write pump; gorilla allows
// WriteControl alongside other writers.
func (c *WsSignalConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *WsSignalConn) Alive() bool     { return c.alive.Load() }
func (c *WsSignalConn) SetAlive(v bool) { c.alive.Store(v) }

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the connection until it
// closes. It returns only after the disconnect transition has run.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Opts.ReadLimit)
	}

	conn := newWsSignalConn(ws, ctl.Opts.SendBuffer, ctl.Opts.WriteWait)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctl.Sessions.BindSignal(conn, client, cancel)
	metrics.Connections.Set(float64(ctl.Sessions.Count()))
	log.Info().Str("module", "signal").Str("sid", string(conn.ID())).Str("client", client).
		Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		ctl.writePump(ctx, conn)
	})
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	})
	wg.Go(func() {
		// unblocks the read pump on shutdown or heartbeat reap
		<-ctx.Done()
		conn.Close()
	})
	wg.Wait()

	ctl.Orch.Disconnect(conn)
	ctl.Limiter.Forget(conn.ID())
	metrics.Connections.Set(float64(ctl.Sessions.Count()))
	log.Info().Str("module", "signal").Str("sid", string(conn.ID())).Msg("WS connection closed")
}
