package core

import (
	"github.com/codesync/collab/internal/domain"
)

// Delivery is the outcome of one recipient of a broadcast.
type Delivery struct {
	UserID    domain.UserID
	SessionID SessionID
	Err       error
}

// PublishResult reports delivery stats/backpressure to orchestrator.
// Failures are informational; a broadcast never aborts on one.
type PublishResult struct {
	SendTo     int
	Deliveries []Delivery
}

func (p PublishResult) Dropped() []Delivery {
	var out []Delivery
	for _, d := range p.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Role     string        `json:"role"`
	Admitted bool          `json:"admitted"`
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	Owner       domain.UserID `json:"owner,omitempty"`
	MemberCount int           `json:"member_count"`
	Pending     int           `json:"pending"`
}
