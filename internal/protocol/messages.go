// Package protocol holds the wire catalogue of the collaboration socket.
// Every message is a JSON object with a mandatory "type" field.
package protocol

import "github.com/codesync/collab/internal/domain"

// Inbound message types.
const (
	TypeJoin              = "join"
	TypeJoinAsOwner       = "joinAsOwner"
	TypeRequestJoin       = "requestJoin"
	TypeAcceptJoinRequest = "acceptJoinRequest"
	TypeRejectJoinRequest = "rejectJoinRequest"
	TypeCode              = "code"
	TypeLeave             = "leave"
	TypeGetUsersList      = "getUsersList"
	TypePing              = "ping"
)

// Outbound message types. "code" is shared with the inbound side.
const (
	TypeUsersList           = "usersList"
	TypeUserJoined          = "userJoined"
	TypeUserLeft            = "userLeft"
	TypeJoinRequest         = "joinRequest"
	TypeJoinRequestPending  = "joinRequestPending"
	TypeJoinRequestAccepted = "joinRequestAccepted"
	TypeJoinRequestRejected = "joinRequestRejected"
	TypeError               = "error"
	TypePong                = "pong"
)

const MsgRoomDoesNotExist = "Room does not exist"

type Envelope struct {
	Type string `json:"type"`
}

// JoinPayload is shared by join, joinAsOwner, requestJoin and the
// accept/reject pair.
type JoinPayload struct {
	RoomID   domain.RoomID `json:"roomId" validate:"required"`
	UserID   domain.UserID `json:"userId" validate:"required"`
	UserName string        `json:"userName"`
}

type CodePayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
	FileID string        `json:"fileId" validate:"required"`
	Code   string        `json:"code"`
	UserID domain.UserID `json:"userId"`
}

type LeavePayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
	UserID domain.UserID `json:"userId" validate:"required"`
}

type UsersListPayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
}

type UsersList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type UserJoined struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	IsOwner  bool          `json:"isOwner,omitempty"`
}

type UserLeft struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
}

type JoinRequest struct {
	Type     string        `json:"type"`
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
}

type JoinRequestPending struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type JoinRequestAccepted struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type JoinRequestRejected struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type Code struct {
	Type   string        `json:"type"`
	Code   string        `json:"code"`
	FileID string        `json:"fileId"`
	UserID domain.UserID `json:"userId"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Pong struct {
	Type string `json:"type"`
}

func NewUsersList(users []string) UsersList {
	if users == nil {
		users = []string{}
	}
	return UsersList{Type: TypeUsersList, Users: users}
}

func NewUserJoined(uid domain.UserID, name string, isOwner bool) UserJoined {
	return UserJoined{Type: TypeUserJoined, UserID: uid, UserName: name, IsOwner: isOwner}
}

func NewUserLeft(uid domain.UserID, name string) UserLeft {
	return UserLeft{Type: TypeUserLeft, UserID: uid, UserName: name}
}

func NewJoinRequest(room domain.RoomID, uid domain.UserID, name string) JoinRequest {
	return JoinRequest{Type: TypeJoinRequest, RoomID: room, UserID: uid, UserName: name}
}

func NewJoinRequestPending(room domain.RoomID) JoinRequestPending {
	return JoinRequestPending{Type: TypeJoinRequestPending, RoomID: room}
}

func NewJoinRequestAccepted(room domain.RoomID) JoinRequestAccepted {
	return JoinRequestAccepted{Type: TypeJoinRequestAccepted, RoomID: room}
}

func NewJoinRequestRejected(room domain.RoomID, uid domain.UserID) JoinRequestRejected {
	return JoinRequestRejected{Type: TypeJoinRequestRejected, RoomID: room, UserID: uid}
}

func NewCode(code, fileID string, uid domain.UserID) Code {
	return Code{Type: TypeCode, Code: code, FileID: fileID, UserID: uid}
}

func NewError(msg string) Error { return Error{Type: TypeError, Message: msg} }

func NewPong() Pong { return Pong{Type: TypePong} }
