package domain

type RoomID string

type Room struct {
	ID    RoomID
	Owner UserID // empty until the first owner claim
}

func (r *Room) HasOwner() bool { return r.Owner != "" }
