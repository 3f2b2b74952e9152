package app

import (
	"errors"

	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
)

type DeliveryAction int

const (
	NoAction DeliveryAction = iota
	KickMember
)

// Policy decides what happens to a recipient whose delivery failed. The
// failure itself is never reported to the sender.
type Policy interface {
	OnDeliveryFailure(room domain.RoomID, d core.Delivery) DeliveryAction
}

// SimplePolicy kicks peers whose send buffer is full. A closed connection is
// already on its way out through the disconnect path.
type SimplePolicy struct{}

func (SimplePolicy) OnDeliveryFailure(_ domain.RoomID, d core.Delivery) DeliveryAction {
	if errors.Is(d.Err, core.ErrBackpressure) {
		return KickMember
	}
	return NoAction
}
