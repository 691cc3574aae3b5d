package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/aptstay/reservation-service/internal/models"
)

// CancellationWindow is the period before check-in during which a guest can
// no longer cancel. Hosts rely on it to stop last-minute dropouts.
const CancellationWindow = 24 * time.Hour

var (
	ErrAlreadyTerminal    = errors.New("booking is already in a terminal state")
	ErrWithinPolicyWindow = errors.New("cancellation window has closed")
	ErrInvalidTransition  = errors.New("status transition not allowed")
)

// validTransitions is the booking state machine. Every status write in the
// service goes through this table; nothing else assigns BookingStatus.
//
// checked_in -> cancelled is reachable only through the admin SetStatus path;
// the guest path cancels from confirmed alone.
var validTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusConfirmed: {models.StatusCheckedIn, models.StatusCancelled, models.StatusNoShow},
	models.StatusCheckedIn: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted: {},
	models.StatusCancelled: {},
	models.StatusNoShow:    {},
}

// paymentTransitions advances independently of the booking status. Refunds are
// reported back by the payment gateway, never initiated here.
var paymentTransitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:  {models.PaymentPaid, models.PaymentFailed},
	models.PaymentPaid:     {models.PaymentRefunded},
	models.PaymentFailed:   {},
	models.PaymentRefunded: {},
}

// IsValidStatus reports whether s is a recognized booking status.
func IsValidStatus(s models.BookingStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible from s.
func IsTerminal(s models.BookingStatus) bool {
	allowed, ok := validTransitions[s]
	return !ok || len(allowed) == 0
}

// CanTransition reports whether from -> to is a legal booking status change.
func CanTransition(from, to models.BookingStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CanSetPayment reports whether from -> to is a legal payment status change.
func CanSetPayment(from, to models.PaymentStatus) bool {
	for _, t := range paymentTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ParseStatus converts a string into a BookingStatus.
func ParseStatus(s string) (models.BookingStatus, error) {
	status := models.BookingStatus(s)
	if !IsValidStatus(status) {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// ParsePaymentStatus converts a string into a PaymentStatus.
func ParsePaymentStatus(s string) (models.PaymentStatus, error) {
	status := models.PaymentStatus(s)
	if _, ok := paymentTransitions[status]; !ok {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return status, nil
}

// GuestCanCancel gates the guest-initiated cancel path: the booking must still
// be confirmed, and check-in must be at least CancellationWindow away.
// Cancelling twice yields ErrAlreadyTerminal, not a second release.
func GuestCanCancel(b *models.Booking, now time.Time) error {
	if b.BookingStatus != models.StatusConfirmed {
		return ErrAlreadyTerminal
	}
	if b.CheckIn.Sub(now) < CancellationWindow {
		return ErrWithinPolicyWindow
	}
	return nil
}

// AdminCanSet gates the owner/admin SetStatus path. It bypasses the
// cancellation window but still respects the state machine, with one widening:
// any non-terminal booking other than completed may be cancelled.
func AdminCanSet(from, to models.BookingStatus) error {
	if to == models.StatusCancelled {
		if IsTerminal(from) {
			return ErrAlreadyTerminal
		}
		return nil
	}
	if !CanTransition(from, to) {
		if IsTerminal(from) {
			return ErrAlreadyTerminal
		}
		return ErrInvalidTransition
	}
	return nil
}

// HoldsInventory reports whether a booking in status s occupies a live
// inventory slot (reflected in Property.AvailableRooms).
func HoldsInventory(s models.BookingStatus) bool {
	return s == models.StatusConfirmed || s == models.StatusCheckedIn
}

// ReleasesInventory reports whether the from -> to transition must increment
// the property's available-room counter. Only cancellation of a holding
// booking releases; checked_in, completed and no_show keep the room held.
func ReleasesInventory(from, to models.BookingStatus) bool {
	return to == models.StatusCancelled && HoldsInventory(from)
}
