package app

import (
	"context"
	"sync"

	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
	"github.com/rs/zerolog/log"
)

// Binding is the identity a connection asserted when it entered a room.
type Binding struct {
	RoomID   domain.RoomID
	UserID   domain.UserID
	UserName string
	Role     domain.Role
}

type sessionEntry struct {
	Conn        core.Connection
	ClientToken string
	Binding     *Binding
	Cancel      context.CancelFunc
}

// Sessions tracks every open connection and the room identity tagged onto it.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (s *Sessions) BindSignal(conn core.Connection, clientToken string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn.ID()] = &sessionEntry{Conn: conn, ClientToken: clientToken, Cancel: cancel}
	log.Info().Str("module", "app.sessions").Str("sid", string(conn.ID())).Str("client", clientToken).Msg("bound signal")
}

// Tag attaches the room identity to an open connection. Unknown sessions are
// ignored; a connection that is already gone has nothing left to tag.
func (s *Sessions) Tag(sid core.SessionID, b Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return
	}
	e.Binding = &b
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(b.RoomID)).
		Str("user", string(b.UserID)).Str("role", b.Role.String()).Msg("tagged session")
}

// SetRole updates the role of a tagged connection if it is still bound to room.
func (s *Sessions) SetRole(sid core.SessionID, room domain.RoomID, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sid]; ok && e.Binding != nil && e.Binding.RoomID == room {
		e.Binding.Role = role
	}
}

// Untag clears the identity if it still points at (room, user).
func (s *Sessions) Untag(sid core.SessionID, room domain.RoomID, user domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok || e.Binding == nil {
		return
	}
	if e.Binding.RoomID == room && e.Binding.UserID == user {
		e.Binding = nil
		log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(room)).Msg("untagged session")
	}
}

func (s *Sessions) Binding(sid core.SessionID) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sid]
	if !ok || e.Binding == nil {
		return Binding{}, false
	}
	return *e.Binding, true
}

// Unbind forgets the connection and returns its last room identity, if any.
func (s *Sessions) Unbind(sid core.SessionID) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return Binding{}, false
	}
	delete(s.sessions, sid)
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("unbind session")
	if e.Binding == nil {
		return Binding{}, false
	}
	return *e.Binding, true
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Probers returns the open connections that support liveness probes.
func (s *Sessions) Probers() []core.Prober {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Prober, 0, len(s.sessions))
	for _, e := range s.sessions {
		if p, ok := e.Conn.(core.Prober); ok {
			out = append(out, p)
		}
	}
	return out
}

// CancelAll is used on shutdown to stop every connection's pumps.
func (s *Sessions) CancelAll() {
	s.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(s.sessions))
	for _, e := range s.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	s.mu.RUnlock()
	for _, c := range cancels {
		c()
	}
}
