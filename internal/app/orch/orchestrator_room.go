package orch

import (
	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
	"github.com/codesync/collab/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join admits the sender as a guest, creating the room on first reference.
func (o *Coordinator) Join(conn core.Connection, p protocol.JoinPayload) {
	o.join(conn, p, false)
}

// JoinAsOwner admits the sender and claims ownership if the room has none.
// A room that already has an owner admits a second claimant as a guest.
func (o *Coordinator) JoinAsOwner(conn core.Connection, p protocol.JoinPayload) {
	o.join(conn, p, true)
}

func (o *Coordinator) join(conn core.Connection, p protocol.JoinPayload, claimOwner bool) {
	o.detach(conn, p.RoomID, p.UserID)

	o.update(p.RoomID, true, func(room *core.Room) {
		role := domain.RoleGuest
		if prev, ok := room.Member(p.UserID); ok && prev.Meta().Role == domain.RoleOwner {
			role = domain.RoleOwner
		}
		if claimOwner {
			if room.ClaimOwner(p.UserID) {
				role = domain.RoleOwner
			} else {
				log.Warn().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(p.UserID)).
					Str("owner", string(room.Owner())).Msg("owner claim ignored, room already owned")
			}
		}

		user := domain.NewUser(p.UserID, p.UserName)
		room.Put(core.NewMemberSession(domain.NewMember(user, role), conn))
		o.Sessions.Tag(conn.ID(), app.Binding{RoomID: room.ID(), UserID: user.ID, UserName: user.Username, Role: role})
		log.Info().Str("module", "orch").Str("sid", string(conn.ID())).Str("room", string(room.ID())).
			Str("user", string(user.ID)).Str("role", role.String()).Msg("added to room")

		o.broadcast(room, conn.ID(), protocol.NewUserJoined(user.ID, user.DisplayName(), role == domain.RoleOwner))
		o.sendTo(room, user.ID, protocol.NewUsersList(room.AdmittedNames()))
	})
}

// Leave removes the member and tells the rest of the room.
func (o *Coordinator) Leave(conn core.Connection, p protocol.LeavePayload) {
	o.update(p.RoomID, false, func(room *core.Room) {
		o.removeMember(room, p.UserID, "")
	})
	log.Info().Str("module", "orch").Str("sid", string(conn.ID())).Str("room", string(p.RoomID)).
		Str("user", string(p.UserID)).Msg("leave")
}

// Disconnect runs the leave transition for whatever identity the closed
// connection carried. The member is only removed if it is still bound to
// this connection.
func (o *Coordinator) Disconnect(conn core.Connection) {
	b, ok := o.Sessions.Unbind(conn.ID())
	if !ok {
		return
	}
	o.update(b.RoomID, false, func(room *core.Room) {
		o.removeMember(room, b.UserID, conn.ID())
	})
	log.Info().Str("module", "orch").Str("sid", string(conn.ID())).Str("room", string(b.RoomID)).
		Str("user", string(b.UserID)).Msg("disconnected")
}

// detach moves a connection out of the room it was previously bound to, so a
// connection is a member of at most one room.
func (o *Coordinator) detach(conn core.Connection, roomID domain.RoomID, uid domain.UserID) {
	b, ok := o.Sessions.Binding(conn.ID())
	if !ok || (b.RoomID == roomID && b.UserID == uid) {
		return
	}
	o.update(b.RoomID, false, func(room *core.Room) {
		o.removeMember(room, b.UserID, conn.ID())
	})
	log.Info().Str("module", "orch").Str("sid", string(conn.ID())).Str("from_room", string(b.RoomID)).Msg("kicked from room")
}

// removeMember requires room to be held by Registry.Update. A non-empty
// onlySID restricts removal to the member bound to that connection.
// When the owner goes, waiting requesters are admitted as in an ownerless room.
func (o *Coordinator) removeMember(room *core.Room, uid domain.UserID, onlySID core.SessionID) {
	ms, ok := room.Member(uid)
	if !ok {
		return
	}
	if onlySID != "" && ms.SessionID() != onlySID {
		return
	}
	room.Remove(uid)
	o.Sessions.Untag(ms.SessionID(), room.ID(), uid)
	if ms.Meta().Admitted() {
		o.broadcast(room, ms.SessionID(), protocol.NewUserLeft(uid, ms.Meta().User.DisplayName()))
	}
	if ms.Meta().Role == domain.RoleOwner {
		for _, p := range room.Pending() {
			log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(p.UserID())).
				Msg("owner gone, auto-accepting pending request")
			o.accept(room, p.UserID(), "")
		}
	}
}
