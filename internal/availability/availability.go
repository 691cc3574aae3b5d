package availability

import (
	"errors"
	"time"

	"github.com/aptstay/reservation-service/internal/models"
)

var (
	ErrInactive     = errors.New("property is not active")
	ErrNoCapacity   = errors.New("no rooms available for the requested dates")
	ErrInvalidDates = errors.New("check-out must be after check-in and check-in must not be in the past")
)

// OccupyingStatuses are the booking states that count toward interval overlap.
// A checked-in guest still blocks the room; completed stays keep claiming their
// historical window. Cancelled and no-show bookings never participate.
var OccupyingStatuses = []models.BookingStatus{
	models.StatusConfirmed,
	models.StatusCheckedIn,
	models.StatusCompleted,
}

// HoldingStatuses are the booking states that hold a live inventory slot,
// i.e. the states reflected in Property.AvailableRooms.
var HoldingStatuses = []models.BookingStatus{
	models.StatusConfirmed,
	models.StatusCheckedIn,
}

// Overlaps reports whether the half-open intervals [aIn, aOut) and [bIn, bOut)
// intersect. A checkout and a check-in on the same day do not conflict.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && bIn.Before(aOut)
}

// Nights returns the number of billable nights in [checkIn, checkOut),
// never less than one.
func Nights(checkIn, checkOut time.Time) int {
	n := int(checkOut.Sub(checkIn).Hours() / 24)
	if n < 1 {
		n = 1
	}
	return n
}

// Check decides admission for a candidate stay given the property state and
// the number of occupying bookings that overlap the requested window.
//
// Two guards, both required: the live counter must have a room left, and the
// requested window must not already be claimed by total-rooms many occupying
// bookings. The counter is window-blind; the overlap count is checked against
// TotalRooms because a room released by cancellation is bookable again for
// any window the remaining bookings leave open.
//
// Outside a transaction the answer is advisory only; the coordinator re-runs
// it against the locked property row before committing.
func Check(p *models.Property, overlapping int64, checkIn, checkOut, now time.Time) error {
	if !p.IsActive {
		return ErrInactive
	}
	if !checkOut.After(checkIn) || checkIn.Before(now) {
		return ErrInvalidDates
	}
	if p.AvailableRooms < 1 {
		return ErrNoCapacity
	}
	if overlapping >= int64(p.TotalRooms) {
		return ErrNoCapacity
	}
	return nil
}
