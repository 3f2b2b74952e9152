package core

import "github.com/codesync/collab/internal/domain"

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession struct {
	meta *domain.Member
	conn Connection
	seq  uint64 // admission order, zero while pending
}

func NewMemberSession(meta *domain.Member, conn Connection) *MemberSession {
	return &MemberSession{meta: meta, conn: conn}
}

func (m *MemberSession) Meta() *domain.Member { return m.meta }
func (m *MemberSession) Conn() Connection     { return m.conn }
func (m *MemberSession) UserID() domain.UserID {
	return m.meta.User.ID
}

func (m *MemberSession) SessionID() SessionID {
	if m.conn == nil {
		return ""
	}
	return m.conn.ID()
}
