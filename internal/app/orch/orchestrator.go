package orch

import (
	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
	"github.com/codesync/collab/internal/metrics"
	"github.com/codesync/collab/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Coordinator is the collaboration protocol state machine. It holds no state
// of its own: rooms live in Registry and connection identities in Sessions.
type Coordinator struct {
	Registry *core.Registry
	Sessions *app.Sessions
	Policy   app.Policy
}

func New(reg *core.Registry, sessions *app.Sessions, policy app.Policy) *Coordinator {
	return &Coordinator{Registry: reg, Sessions: sessions, Policy: policy}
}

// Dispatch routes one decoded client message. Messages from a single
// connection must be dispatched in the order they were read.
func (o *Coordinator) Dispatch(conn core.Connection, in protocol.Inbound) {
	metrics.InboundMessages.WithLabelValues(in.Type).Inc()

	switch in.Type {
	case protocol.TypeJoin:
		if p, ok := payload[protocol.JoinPayload](in); ok {
			o.Join(conn, p)
		}
	case protocol.TypeJoinAsOwner:
		if p, ok := payload[protocol.JoinPayload](in); ok {
			o.JoinAsOwner(conn, p)
		}
	case protocol.TypeRequestJoin:
		if p, ok := payload[protocol.JoinPayload](in); ok {
			o.RequestJoin(conn, p)
		}
	case protocol.TypeAcceptJoinRequest:
		if p, ok := payload[protocol.JoinPayload](in); ok {
			o.AcceptJoinRequest(conn, p)
		}
	case protocol.TypeRejectJoinRequest:
		if p, ok := payload[protocol.JoinPayload](in); ok {
			o.RejectJoinRequest(conn, p)
		}
	case protocol.TypeCode:
		if p, ok := payload[protocol.CodePayload](in); ok {
			o.Code(conn, p)
		}
	case protocol.TypeLeave:
		if p, ok := payload[protocol.LeavePayload](in); ok {
			o.Leave(conn, p)
		}
	case protocol.TypeGetUsersList:
		if p, ok := payload[protocol.UsersListPayload](in); ok {
			o.UsersList(conn, p)
		}
	case protocol.TypePing:
		o.send(conn, protocol.NewPong())
	default:
		metrics.DroppedMessages.WithLabelValues("unknown_type").Inc()
		log.Warn().Str("module", "orch").Str("sid", string(conn.ID())).Str("type", in.Type).Msg("unknown message type")
	}
}

func payload[T any](in protocol.Inbound) (T, bool) {
	p, ok := in.Payload.(*T)
	if !ok || p == nil {
		var zero T
		log.Warn().Str("module", "orch").Str("type", in.Type).Msg("payload mismatch")
		return zero, false
	}
	return *p, true
}

// Code relays an edit to every other admitted member. The sender's own
// admission is not re-checked.
func (o *Coordinator) Code(conn core.Connection, p protocol.CodePayload) {
	ok := o.Registry.View(p.RoomID, func(room *core.Room) {
		o.broadcast(room, conn.ID(), protocol.NewCode(p.Code, p.FileID, p.UserID))
	})
	if !ok {
		log.Debug().Str("module", "orch").Str("room", string(p.RoomID)).Msg("code for unknown room")
	}
}

// UsersList replies with the admitted members of the room.
func (o *Coordinator) UsersList(conn core.Connection, p protocol.UsersListPayload) {
	o.Registry.View(p.RoomID, func(room *core.Room) {
		o.send(conn, protocol.NewUsersList(room.AdmittedNames()))
	})
}

// update wraps Registry.Update and keeps the room gauge current.
func (o *Coordinator) update(id domain.RoomID, create bool, fn func(*core.Room)) bool {
	ok := o.Registry.Update(id, create, fn)
	metrics.Rooms.Set(float64(o.Registry.Len()))
	return ok
}

func (o *Coordinator) send(conn core.Connection, v any) {
	if conn == nil {
		return
	}
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode reply")
		return
	}
	if err := conn.TrySend(f); err != nil {
		metrics.Deliveries.WithLabelValues("dropped").Inc()
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(conn.ID())).Msg("reply dropped")
		return
	}
	metrics.Deliveries.WithLabelValues("ok").Inc()
}

// sendTo replies to one member through the room so the delivery goes through
// the same policy as a broadcast. It requires room to be held.
func (o *Coordinator) sendTo(room *core.Room, uid domain.UserID, v any) {
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode reply")
		return
	}
	d := room.SendTo(uid, f)
	res := core.PublishResult{Deliveries: []core.Delivery{d}}
	if d.Err == nil {
		res.SendTo = 1
	}
	o.observe(room, res)
}

// broadcast requires room to be held by Registry.Update or Registry.View.
func (o *Coordinator) broadcast(room *core.Room, exclude core.SessionID, v any) core.PublishResult {
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode broadcast")
		return core.PublishResult{}
	}
	res := room.Broadcast(exclude, f)
	o.observe(room, res)
	return res
}

func (o *Coordinator) observe(room *core.Room, res core.PublishResult) {
	metrics.Deliveries.WithLabelValues("ok").Add(float64(res.SendTo))
	for _, d := range res.Dropped() {
		metrics.Deliveries.WithLabelValues("dropped").Inc()
		log.Debug().Err(d.Err).Str("module", "orch").Str("room", string(room.ID())).
			Str("sid", string(d.SessionID)).Msg("delivery dropped")
		if o.Policy == nil {
			continue
		}
		switch o.Policy.OnDeliveryFailure(room.ID(), d) {
		case app.KickMember:
			if ms, ok := room.Member(d.UserID); ok && ms.SessionID() == d.SessionID {
				log.Warn().Str("module", "orch").Str("room", string(room.ID())).
					Str("sid", string(d.SessionID)).Msg("kicking slow member")
				ms.Conn().Close()
			}
		case app.NoAction:
		}
	}
}
