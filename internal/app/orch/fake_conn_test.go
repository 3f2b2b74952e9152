package orch_test

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/app/orch"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/protocol"
)

// fakeConn records every frame the coordinator sends it.
type fakeConn struct {
	id core.SessionID

	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) ID() core.SessionID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return core.ErrConnClosed
	case c.full:
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// take returns the decoded frames received so far and forgets them.
func (c *fakeConn) take(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()

	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func types(msgs []map[string]any) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m["type"].(string))
	}
	return out
}

type harness struct {
	t     *testing.T
	reg   *core.Registry
	sess  *app.Sessions
	coord *orch.Coordinator
}

func newHarness(t *testing.T) *harness {
	reg := core.NewRegistry()
	sess := app.NewSessions()
	return &harness{t: t, reg: reg, sess: sess, coord: orch.New(reg, sess, app.SimplePolicy{})}
}

func (h *harness) connect(sid string) *fakeConn {
	c := &fakeConn{id: core.SessionID(sid)}
	h.sess.BindSignal(c, "", nil)
	return c
}

// send feeds a raw client frame through the decoder, the way the transport does.
func (h *harness) send(c *fakeConn, raw string) {
	h.t.Helper()
	in, err := protocol.Decode([]byte(raw))
	require.NoError(h.t, err)
	h.coord.Dispatch(c, in)
}

func (h *harness) usersList(roomID string) []string {
	h.t.Helper()
	probe := &fakeConn{id: "probe"}
	h.send(probe, `{"type":"getUsersList","roomId":"`+roomID+`"}`)
	msgs := probe.take(h.t)
	if len(msgs) == 0 {
		return nil
	}
	raw := msgs[0]["users"].([]any)
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		out = append(out, u.(string))
	}
	return out
}
