package core

import "errors"

// Frame is a serialized outbound message.
type Frame []byte

// SessionID identifies one live connection, not a user.
type SessionID string

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Connection abstracts a peer's messaging transport.
// Owned by the adapter; the core only sends and requests Close().
type Connection interface {
	ID() SessionID
	// TrySend enqueues without blocking.
	TrySend(Frame) error
	Close()
}

// Prober is a Connection that takes part in the liveness sweep.
type Prober interface {
	Connection
	// Ping sends a transport-level liveness probe.
	Ping() error
	Alive() bool
	SetAlive(bool)
}

//go:generate mockgen -destination=../mocks/mock_connection.go -package=mocks github.com/codesync/collab/internal/core Connection,Prober
