// internal/domain/models/offering.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OfferingStatus is derived from the offering window and the current time.
// The stored value is a cache refreshed on read and by the status refresher.
type OfferingStatus string

const (
	OfferingUpcoming OfferingStatus = "upcoming"
	OfferingActive   OfferingStatus = "active"
	OfferingClosed   OfferingStatus = "closed"
)

// Offering is a time-bounded, slot-limited window owned by one sponsor.
// Slots are consumed only when a request is approved.
type Offering struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SponsorID   primitive.ObjectID `bson:"sponsor_id" json:"sponsor_id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"title_ci"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	WindowStart time.Time `bson:"window_start" json:"window_start"`
	WindowEnd   time.Time `bson:"window_end" json:"window_end"`

	MaxSlots       int `bson:"max_slots" json:"max_slots"`
	AvailableSlots int `bson:"available_slots" json:"available_slots"` // 0 <= available <= max

	Status OfferingStatus `bson:"status" json:"status"`

	// LockSeq is bumped by writers that must conflict with each other
	// without changing anything else on the offering.
	LockSeq int64 `bson:"lock_seq,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// OfferingStatusAt maps a window and an instant to a status. Both window
// boundaries belong to the active period.
func OfferingStatusAt(start, end, now time.Time) OfferingStatus {
	switch {
	case now.Before(start):
		return OfferingUpcoming
	case now.After(end):
		return OfferingClosed
	default:
		return OfferingActive
	}
}

// StatusAt returns the offering status at now.
func (o *Offering) StatusAt(now time.Time) OfferingStatus {
	return OfferingStatusAt(o.WindowStart, o.WindowEnd, now)
}

// Overlaps reports whether [o.WindowStart, o.WindowEnd] intersects
// [start, end]. Touching boundaries overlap.
func (o *Offering) Overlaps(start, end time.Time) bool {
	return WindowsOverlap(o.WindowStart, o.WindowEnd, start, end)
}

// WindowsOverlap reports whether two closed intervals intersect.
func WindowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// AdjustAvailable shifts available by the change in max slots, floored at
// zero and capped at the new max.
func AdjustAvailable(available, oldMax, newMax int) int {
	n := available + (newMax - oldMax)
	if n > newMax {
		n = newMax
	}
	if n < 0 {
		n = 0
	}
	return n
}
