package protocol

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/codesync/collab/internal/core"
)

var (
	ErrMissingType = errors.New("missing message type")
	ErrUnknownType = errors.New("unknown message type")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Inbound is a decoded client message. Payload holds one of the *Payload
// structs, or nil for types without a body.
type Inbound struct {
	Type    string
	Payload any
}

// Decode parses and validates one client frame. Unknown types return
// ErrUnknownType together with the type name so callers can log it.
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Inbound{}, ErrMissingType
	}

	var payload any
	switch env.Type {
	case TypeJoin, TypeJoinAsOwner, TypeRequestJoin, TypeAcceptJoinRequest, TypeRejectJoinRequest:
		payload = &JoinPayload{}
	case TypeCode:
		payload = &CodePayload{}
	case TypeLeave:
		payload = &LeavePayload{}
	case TypeGetUsersList:
		payload = &UsersListPayload{}
	case TypePing:
		return Inbound{Type: env.Type}, nil
	default:
		return Inbound{Type: env.Type}, ErrUnknownType
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return Inbound{Type: env.Type}, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if err := validate.Struct(payload); err != nil {
		return Inbound{Type: env.Type}, fmt.Errorf("validate %s: %w", env.Type, err)
	}
	return Inbound{Type: env.Type, Payload: payload}, nil
}

// Encode serializes an outbound message.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return core.Frame(b), nil
}
