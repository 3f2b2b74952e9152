package orch

import (
	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
	"github.com/codesync/collab/internal/protocol"
	"github.com/rs/zerolog/log"
)

// RequestJoin asks to enter an existing room. With its owner connected the
// requester waits as a pending guest; an ownerless room admits at once.
func (o *Coordinator) RequestJoin(conn core.Connection, p protocol.JoinPayload) {
	if _, ok := o.Registry.Get(p.RoomID); !ok {
		o.rejectUnknownRoom(conn, p)
		return
	}
	o.detach(conn, p.RoomID, p.UserID)

	found := o.update(p.RoomID, false, func(room *core.Room) {
		user := domain.NewUser(p.UserID, p.UserName)

		if prev, ok := room.Member(p.UserID); ok && prev.Meta().Admitted() {
			// already in: rebind the connection and confirm
			role := prev.Meta().Role
			room.Put(core.NewMemberSession(domain.NewMember(user, role), conn))
			o.Sessions.Tag(conn.ID(), app.Binding{RoomID: room.ID(), UserID: user.ID, UserName: user.Username, Role: role})
			o.sendTo(room, user.ID, protocol.NewJoinRequestAccepted(room.ID()))
			o.sendTo(room, user.ID, protocol.NewUsersList(room.AdmittedNames()))
			return
		}

		room.Put(core.NewMemberSession(domain.NewMember(user, domain.RolePendingGuest), conn))
		o.Sessions.Tag(conn.ID(), app.Binding{RoomID: room.ID(), UserID: user.ID, UserName: user.Username, Role: domain.RolePendingGuest})

		owner, ok := room.ConnectedOwner()
		if !ok {
			log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(user.ID)).
				Msg("no owner connected, auto-accepting")
			o.accept(room, user.ID, p.UserName)
			return
		}
		o.sendTo(room, owner.UserID(), protocol.NewJoinRequest(room.ID(), user.ID, user.DisplayName()))
		o.sendTo(room, user.ID, protocol.NewJoinRequestPending(room.ID()))
		log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(user.ID)).
			Str("owner", string(owner.UserID())).Msg("join request forwarded")
	})
	if !found {
		// room vanished between the lookup and the update
		o.rejectUnknownRoom(conn, p)
	}
}

func (o *Coordinator) rejectUnknownRoom(conn core.Connection, p protocol.JoinPayload) {
	log.Info().Str("module", "orch").Str("room", string(p.RoomID)).Str("user", string(p.UserID)).Msg("join request for unknown room")
	o.send(conn, protocol.NewError(protocol.MsgRoomDoesNotExist))
}

// AcceptJoinRequest admits a pending member. Only the connected owner may
// accept; anything else is dropped.
func (o *Coordinator) AcceptJoinRequest(conn core.Connection, p protocol.JoinPayload) {
	o.update(p.RoomID, false, func(room *core.Room) {
		if !o.isOwnerConn(room, conn) {
			log.Warn().Str("module", "orch").Str("sid", string(conn.ID())).Str("room", string(room.ID())).Msg("accept from non-owner dropped")
			return
		}
		o.accept(room, p.UserID, p.UserName)
	})
}

// RejectJoinRequest turns a pending member away and forgets it.
func (o *Coordinator) RejectJoinRequest(conn core.Connection, p protocol.JoinPayload) {
	o.update(p.RoomID, false, func(room *core.Room) {
		if !o.isOwnerConn(room, conn) {
			log.Warn().Str("module", "orch").Str("sid", string(conn.ID())).Str("room", string(room.ID())).Msg("reject from non-owner dropped")
			return
		}
		ms, ok := room.Member(p.UserID)
		if !ok || ms.Meta().Admitted() {
			return
		}
		o.sendTo(room, p.UserID, protocol.NewJoinRequestRejected(room.ID(), p.UserID))
		room.Remove(p.UserID)
		o.Sessions.Untag(ms.SessionID(), room.ID(), p.UserID)
		log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(p.UserID)).Msg("join request rejected")
	})
}

// accept requires room to be held by Registry.Update.
func (o *Coordinator) accept(room *core.Room, uid domain.UserID, userName string) bool {
	ms, ok := room.Admit(uid)
	if !ok {
		return false
	}
	user := ms.Meta().User
	if user.Username == "" && userName != "" {
		user.Username = userName
	}
	o.Sessions.SetRole(ms.SessionID(), room.ID(), ms.Meta().Role)

	o.broadcast(room, ms.SessionID(), protocol.NewUserJoined(uid, user.DisplayName(), false))
	o.sendTo(room, uid, protocol.NewJoinRequestAccepted(room.ID()))
	o.sendTo(room, uid, protocol.NewUsersList(room.AdmittedNames()))
	log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(uid)).Msg("join request accepted")
	return true
}

func (o *Coordinator) isOwnerConn(room *core.Room, conn core.Connection) bool {
	owner, ok := room.ConnectedOwner()
	return ok && owner.SessionID() == conn.ID()
}
