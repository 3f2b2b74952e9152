// Package domain contains entity without logic, just meta-data
package domain

// UnknownUsername is reported for members that never asserted a display name.
const UnknownUsername = "Unknown"

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// Identity is asserted by the peer and trusted as-is.
func NewUser(id UserID, username string) *User {
	return &User{ID: id, Username: username}
}

// DisplayName falls back to UnknownUsername when no name was asserted.
func (u *User) DisplayName() string {
	if u == nil || u.Username == "" {
		return UnknownUsername
	}
	return u.Username
}
