package core

import (
	"sort"
	"sync"

	"github.com/codesync/collab/internal/domain"
	"github.com/rs/zerolog/log"
)

// Room is the in-memory membership of one collaborative session.
// It never closes adapter-owned resources.
//
// Room methods do not lock. Mutations go through Registry.Update, which holds
// the room for the whole read-modify-broadcast step.
type Room struct {
	mu      sync.Mutex
	room    *domain.Room
	members map[domain.UserID]*MemberSession
	seq     uint64
	closed  bool // removed from the registry, must not be mutated again
}

func newRoom(id domain.RoomID) *Room {
	return &Room{
		room:    &domain.Room{ID: id},
		members: make(map[domain.UserID]*MemberSession),
	}
}

func (r *Room) ID() domain.RoomID    { return r.room.ID }
func (r *Room) Owner() domain.UserID { return r.room.Owner }
func (r *Room) Len() int             { return len(r.members) }

// ClaimOwner records uid as owner unless the room already has one.
// It reports whether uid is the room's owner afterwards.
func (r *Room) ClaimOwner(uid domain.UserID) bool {
	if !r.room.HasOwner() {
		r.room.Owner = uid
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("owner", string(uid)).Msg("owner claimed")
	}
	return r.room.Owner == uid
}

// ConnectedOwner returns the owner's member session if the owner is present.
func (r *Room) ConnectedOwner() (*MemberSession, bool) {
	if !r.room.HasOwner() {
		return nil, false
	}
	ms, ok := r.members[r.room.Owner]
	if !ok || ms.meta.Role != domain.RoleOwner {
		return nil, false
	}
	return ms, true
}

func (r *Room) Member(uid domain.UserID) (*MemberSession, bool) {
	ms, ok := r.members[uid]
	return ms, ok
}

// Put inserts or replaces the member keyed by its user id. A member that stays
// admitted keeps its admission position.
func (r *Room) Put(ms *MemberSession) {
	uid := ms.UserID()
	prev, had := r.members[uid]
	switch {
	case !ms.meta.Admitted():
		ms.seq = 0
	case had && prev.seq != 0:
		ms.seq = prev.seq
	default:
		r.seq++
		ms.seq = r.seq
	}
	r.members[uid] = ms
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(ms.SessionID())).
		Str("user", string(uid)).Str("role", ms.meta.Role.String()).Bool("replaced", had).Msg("member put")
}

// Admit promotes a pending member. It returns false if uid is absent or
// already admitted.
func (r *Room) Admit(uid domain.UserID) (*MemberSession, bool) {
	ms, ok := r.members[uid]
	if !ok || ms.meta.Admitted() {
		return nil, false
	}
	ms.meta.Role = domain.RoleGuest
	r.seq++
	ms.seq = r.seq
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Msg("member admitted")
	return ms, true
}

func (r *Room) Remove(uid domain.UserID) (*MemberSession, bool) {
	ms, ok := r.members[uid]
	if !ok {
		return nil, false
	}
	delete(r.members, uid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Msg("member removed")
	return ms, true
}

// Admitted returns admitted members in admission order.
func (r *Room) Admitted() []*MemberSession {
	out := make([]*MemberSession, 0, len(r.members))
	for _, ms := range r.members {
		if ms.meta.Admitted() {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (r *Room) AdmittedNames() []string {
	admitted := r.Admitted()
	names := make([]string, 0, len(admitted))
	for _, ms := range admitted {
		names = append(names, ms.meta.User.DisplayName())
	}
	return names
}

func (r *Room) Pending() []*MemberSession {
	var out []*MemberSession
	for _, ms := range r.members {
		if !ms.meta.Admitted() {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID() < out[j].UserID() })
	return out
}

// Broadcast delivers data to every admitted member except the connection
// exclude. Per-recipient failures are collected, never returned as an error.
func (r *Room) Broadcast(exclude SessionID, data Frame) PublishResult {
	res := PublishResult{}
	for uid, ms := range r.members {
		if !ms.meta.Admitted() || ms.conn == nil {
			continue
		}
		sid := ms.conn.ID()
		if exclude != "" && sid == exclude {
			continue
		}
		err := ms.conn.TrySend(data)
		res.Deliveries = append(res.Deliveries, Delivery{UserID: uid, SessionID: sid, Err: err})
		if err == nil {
			res.SendTo++
		}
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("from", string(exclude)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Deliveries)-res.SendTo).Msg("broadcast result")
	return res
}

// SendTo delivers data to a single member regardless of admission.
func (r *Room) SendTo(uid domain.UserID, data Frame) Delivery {
	ms, ok := r.members[uid]
	if !ok || ms.conn == nil {
		return Delivery{UserID: uid, Err: ErrConnClosed}
	}
	return Delivery{UserID: uid, SessionID: ms.conn.ID(), Err: ms.conn.TrySend(data)}
}

func (r *Room) MembersSnapshot() []MemberDTO {
	out := make([]MemberDTO, 0, len(r.members))
	for _, ms := range r.Admitted() {
		out = append(out, memberDTO(ms))
	}
	for _, ms := range r.Pending() {
		out = append(out, memberDTO(ms))
	}
	return out
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:          r.room.ID,
		Owner:       r.room.Owner,
		MemberCount: len(r.members),
		Pending:     len(r.Pending()),
	}
}

func memberDTO(ms *MemberSession) MemberDTO {
	u := ms.meta.User
	return MemberDTO{ID: u.ID, Username: u.DisplayName(), Role: ms.meta.Role.String(), Admitted: ms.meta.Admitted()}
}
