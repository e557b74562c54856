// README: Advisory pickup-slot computation (ready time, arrival time, hold window, admission).
package slot

import (
	"time"

	"routebite/internal/modules/restaurant"
	"routebite/internal/types"
)

const DefaultHoldMinutes = 15

// Reasons reported when a lock cannot proceed.
const (
	ReasonInactive     = "inactive"
	ReasonNotAccepting = "not_accepting"
	ReasonAtCapacity   = "at_capacity"
)

// Lock is advisory. Computing it reserves nothing; capacity is taken at order creation.
type Lock struct {
	RestaurantID         types.ID  `json:"restaurantId"`
	EstimatedReadyTime   time.Time `json:"estimatedReadyTime"`
	EstimatedArrivalTime time.Time `json:"estimatedArrivalTime"`
	HoldWindowEnd        time.Time `json:"holdWindowEnd"`
	CanProceed           bool      `json:"canProceed"`
	Reason               string    `json:"reason,omitempty"`
}

type Planner struct {
	holdMinutes int
	now         func() time.Time
}

func NewPlanner(holdMinutes int, now func() time.Time) *Planner {
	if holdMinutes <= 0 {
		holdMinutes = DefaultHoldMinutes
	}
	if now == nil {
		now = time.Now
	}
	return &Planner{holdMinutes: holdMinutes, now: now}
}

// LockSlot computes the slot for one restaurant. It has no side effects.
func (p *Planner) LockSlot(r restaurant.Snapshot, arrivalEtaMinutes, lateByMinutes int) Lock {
	now := p.now()
	ready := now.Add(minutes(r.AvgPrepTimeMinutes))
	lock := Lock{
		RestaurantID:         r.ID,
		EstimatedReadyTime:   ready,
		EstimatedArrivalTime: now.Add(minutes(arrivalEtaMinutes + lateByMinutes)),
		HoldWindowEnd:        ready.Add(minutes(p.holdMinutes)),
		CanProceed:           true,
	}
	switch {
	case !r.IsActive:
		lock.CanProceed, lock.Reason = false, ReasonInactive
	case !r.AcceptsOrders:
		lock.CanProceed, lock.Reason = false, ReasonNotAccepting
	case r.AtCapacity():
		lock.CanProceed, lock.Reason = false, ReasonAtCapacity
	}
	return lock
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
