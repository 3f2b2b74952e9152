package signal

import (
	"context"
	"errors"
	"time"

	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/metrics"
	"github.com/codesync/collab/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.ID())).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(c.ID())).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.ID())).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump hands frames to the coordinator one at a time, which keeps
// per-connection processing FIFO.
func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.ID())).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.ID())).Msg("readPump ctx done")
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.ID())).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(c, data)
	}
}

// handleSignal never lets one bad frame take down the connection: decode
// errors are logged and dropped, handler panics are recovered.
func (ctl *SignalWSController) handleSignal(c core.Connection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("sid", string(c.ID())).Interface("panic", r).Msg("handler panic recovered")
		}
	}()

	in, err := protocol.Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownType) {
			reason = "unknown_type"
		}
		metrics.DroppedMessages.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.ID())).Str("type", in.Type).Msg("message dropped")
		return
	}

	if in.Type == protocol.TypeRequestJoin && !ctl.Limiter.Allow(c.ID()) {
		metrics.DroppedMessages.WithLabelValues("rate_limited").Inc()
		log.Warn().Str("module", "signal").Str("sid", string(c.ID())).Msg("join request rate limited")
		return
	}

	ctl.Orch.Dispatch(c, in)
}
