package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/aptstay/reservation-service/internal/availability"
	"github.com/aptstay/reservation-service/internal/clock"
	"github.com/aptstay/reservation-service/internal/identity"
	"github.com/aptstay/reservation-service/internal/lifecycle"
	"github.com/aptstay/reservation-service/internal/models"
	"github.com/aptstay/reservation-service/internal/repository"
	"github.com/aptstay/reservation-service/internal/ticket"
	"github.com/aptstay/reservation-service/pkg/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrPropertyNotFound   = errors.New("property not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrGuestNotFound      = errors.New("guest not found")
	ErrForbidden          = errors.New("actor is not allowed to perform this action")
	ErrInvalidGuestCount  = errors.New("guest count must be between 1 and 20")
	ErrInvalidStatus      = errors.New("unknown booking status")
	ErrVerificationFailed = errors.New("identity verification failed")
	ErrInvalidPayment     = errors.New("payment status transition not allowed")

	// Admission and policy rejections come straight from the owning packages.
	ErrPropertyInactive   = availability.ErrInactive
	ErrNoCapacity         = availability.ErrNoCapacity
	ErrInvalidDates       = availability.ErrInvalidDates
	ErrAlreadyTerminal    = lifecycle.ErrAlreadyTerminal
	ErrWithinPolicyWindow = lifecycle.ErrWithinPolicyWindow
	ErrInvalidTransition  = lifecycle.ErrInvalidTransition
)

const (
	RoleOwner = "owner"
	RoleAdmin = "admin"

	// A lost race for the last room is retried as a fresh capacity check
	// this many times before it surfaces as NO_CAPACITY.
	maxConflictRetries = 3
	maxTicketAttempts  = 5

	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventRefundRequested  = "booking.refund_requested"
)

// Publisher is the outbound event sink (RabbitMQ in production). A nil
// publisher disables eventing, which the tests and local runs rely on.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

// BookingEvent is the payload published on booking lifecycle changes. The
// refund_requested variant is what a payment collaborator consumes to start
// a refund; this service never initiates refunds itself.
type BookingEvent struct {
	EventID       string               `json:"event_id"`
	BookingID     uint                 `json:"booking_id"`
	PropertyID    uint                 `json:"property_id"`
	GuestID       uint                 `json:"guest_id"`
	TicketCode    string               `json:"ticket_code"`
	Amount        float64              `json:"amount"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	BookingStatus models.BookingStatus `json:"booking_status"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type ReserveInput struct {
	GuestID         uint
	CheckIn         time.Time
	CheckOut        time.Time
	GuestCount      int
	PaymentMethod   models.PaymentMethod
	SpecialRequests string
}

type AvailabilityResult struct {
	Available   bool
	Overlapping int64
	Reason      error
}

type PropertyStatus struct {
	ID             uint    `json:"id"`
	Title          string  `json:"title"`
	TotalRooms     int     `json:"total_rooms"`
	AvailableRooms int     `json:"available_rooms"`
	IsActive       bool    `json:"is_active"`
	PricePerNight  float64 `json:"price_per_night"`
	Confirmed      int64   `json:"confirmed_count"`
	CheckedIn      int64   `json:"checked_in_count"`
}

type ReservationService interface {
	CheckAvailability(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) (*AvailabilityResult, error)
	Reserve(ctx context.Context, propertyID uint, in ReserveInput) (*models.Booking, error)
	SecureReserve(ctx context.Context, propertyID uint, in ReserveInput, sample string) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID uint) (*models.Booking, error)
	SetStatus(ctx context.Context, bookingID uint, newStatus models.BookingStatus, actorRole string) (*models.Booking, error)
	UpdatePaymentStatus(ctx context.Context, bookingID uint, newStatus models.PaymentStatus) (*models.Booking, error)
	ListOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error)
	ListBookings(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error)
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	GetByTicketCode(ctx context.Context, code string) (*models.Booking, error)
	PropertyStatus(ctx context.Context, propertyID uint) (*PropertyStatus, error)
}

type reservationService struct {
	propertyRepo repository.PropertyRepository
	bookingRepo  repository.BookingRepository
	users        identity.Directory
	verifier     identity.Verifier
	publisher    Publisher
	statusCache  *cache.PropertyStatusCache
	clock        clock.Clock
}

func NewReservationService(
	propertyRepo repository.PropertyRepository,
	bookingRepo repository.BookingRepository,
	users identity.Directory,
	verifier identity.Verifier,
	publisher Publisher,
	statusCache *cache.PropertyStatusCache,
	clk clock.Clock,
) ReservationService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &reservationService{
		propertyRepo: propertyRepo,
		bookingRepo:  bookingRepo,
		users:        users,
		verifier:     verifier,
		publisher:    publisher,
		statusCache:  statusCache,
		clock:        clk,
	}
}

// CheckAvailability answers the read-only admission question. Under
// concurrency the answer is advisory; Reserve re-runs the same check inside
// the property's serialized scope before committing anything.
func (s *reservationService) CheckAvailability(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) (*AvailabilityResult, error) {
	property, err := s.propertyRepo.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}

	overlapping, err := s.bookingRepo.CountOverlapping(ctx, s.bookingRepo.GetDB(), propertyID, checkIn, checkOut, availability.OccupyingStatuses)
	if err != nil {
		return nil, err
	}

	reason := availability.Check(property, overlapping, checkIn, checkOut, s.clock.Now())
	return &AvailabilityResult{
		Available:   reason == nil,
		Overlapping: overlapping,
		Reason:      reason,
	}, nil
}

func (s *reservationService) Reserve(ctx context.Context, propertyID uint, in ReserveInput) (*models.Booking, error) {
	if in.GuestCount < 1 || in.GuestCount > 20 {
		return nil, ErrInvalidGuestCount
	}
	now := s.clock.Now()
	if !in.CheckOut.After(in.CheckIn) || in.CheckIn.Before(now) {
		return nil, ErrInvalidDates
	}

	guest, err := s.users.ResolveUser(ctx, in.GuestID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, ErrGuestNotFound
		}
		return nil, err
	}

	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCard
	}

	var lastErr error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		booking, err := s.reserveOnce(ctx, propertyID, in, guest, method)
		if err == nil {
			s.invalidateStatus(ctx, propertyID)
			s.publish(EventBookingConfirmed, booking)
			return booking, nil
		}
		if !isRetryableConflict(err) {
			return nil, err
		}
		lastErr = err
	}

	// Every retry lost the race; indistinguishable from no capacity.
	log.Printf("reserve: giving up after %d conflict retries on property %d: %v", maxConflictRetries, propertyID, lastErr)
	return nil, ErrNoCapacity
}

// reserveOnce performs one check-then-commit attempt inside a transaction.
// The FOR UPDATE lock on the property row is the serialization point: the
// availability re-check, the booking insert and the counter decrement are
// indivisible with respect to other reservations for the same property.
func (s *reservationService) reserveOnce(ctx context.Context, propertyID uint, in ReserveInput, guest *identity.User, method models.PaymentMethod) (*models.Booking, error) {
	var created *models.Booking

	err := s.bookingRepo.WithTx(ctx, func(tx *gorm.DB) error {
		property, err := s.propertyRepo.FindByIDForUpdate(ctx, tx, propertyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPropertyNotFound
			}
			return err
		}

		overlapping, err := s.bookingRepo.CountOverlapping(ctx, tx, propertyID, in.CheckIn, in.CheckOut, availability.OccupyingStatuses)
		if err != nil {
			return err
		}

		if err := availability.Check(property, overlapping, in.CheckIn, in.CheckOut, s.clock.Now()); err != nil {
			return err
		}

		code, err := s.uniqueTicketCode(ctx, tx)
		if err != nil {
			return err
		}

		nights := availability.Nights(in.CheckIn, in.CheckOut)
		booking := &models.Booking{
			PropertyID:      property.ID,
			GuestID:         guest.ID,
			GuestName:       guest.DisplayName,
			GuestEmail:      guest.Email,
			GuestPhone:      guest.Phone,
			CheckIn:         in.CheckIn,
			CheckOut:        in.CheckOut,
			GuestCount:      in.GuestCount,
			TotalAmount:     float64(nights) * property.PricePerNight,
			PaymentMethod:   method,
			PaymentStatus:   models.PaymentPending,
			BookingStatus:   models.StatusConfirmed,
			TicketCode:      code,
			SpecialRequests: in.SpecialRequests,
		}

		if err := s.bookingRepo.Create(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.propertyRepo.AdjustAvailableRooms(ctx, tx, property.ID, -1); err != nil {
			return err
		}

		created = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SecureReserve consults the biometric collaborator before reserving. A
// failed match short-circuits with no inventory side effects. The gate is
// opaque: this service records nothing about how the match was computed.
func (s *reservationService) SecureReserve(ctx context.Context, propertyID uint, in ReserveInput, sample string) (*models.Booking, error) {
	if s.verifier == nil {
		return nil, ErrVerificationFailed
	}

	result, err := s.verifier.Verify(ctx, in.GuestID, sample)
	if err != nil {
		return nil, err
	}
	if !result.IsMatch {
		return nil, ErrVerificationFailed
	}

	return s.Reserve(ctx, propertyID, in)
}

// Cancel is the guest-initiated path: only the booking's guest may call it,
// only from confirmed, and only outside the 24-hour policy window. The status
// write and the counter release commit together.
func (s *reservationService) Cancel(ctx context.Context, bookingID, actorID uint) (*models.Booking, error) {
	var cancelled *models.Booking
	var wasPaid bool

	err := s.bookingRepo.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookingRepo.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		if booking.GuestID != actorID {
			return ErrForbidden
		}
		if err := lifecycle.GuestCanCancel(booking, s.clock.Now()); err != nil {
			return err
		}

		if err := s.bookingRepo.UpdateStatus(ctx, tx, booking.ID, models.StatusCancelled); err != nil {
			return err
		}
		if err := s.propertyRepo.AdjustAvailableRooms(ctx, tx, booking.PropertyID, 1); err != nil {
			return err
		}

		wasPaid = booking.PaymentStatus == models.PaymentPaid
		booking.BookingStatus = models.StatusCancelled
		cancelled = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStatus(ctx, cancelled.PropertyID)
	s.publish(EventBookingCancelled, cancelled)
	if wasPaid {
		s.publish(EventRefundRequested, cancelled)
	}
	return cancelled, nil
}

// SetStatus is the owner/admin path. It bypasses the cancellation window but
// still runs every write through the transition table, and it adjusts the
// counter atomically whenever the transition releases inventory.
func (s *reservationService) SetStatus(ctx context.Context, bookingID uint, newStatus models.BookingStatus, actorRole string) (*models.Booking, error) {
	if actorRole != RoleOwner && actorRole != RoleAdmin {
		return nil, ErrForbidden
	}
	if !lifecycle.IsValidStatus(newStatus) {
		return nil, ErrInvalidStatus
	}

	var updated *models.Booking
	var wasPaid bool

	err := s.bookingRepo.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookingRepo.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		if err := lifecycle.AdminCanSet(booking.BookingStatus, newStatus); err != nil {
			return err
		}

		release := lifecycle.ReleasesInventory(booking.BookingStatus, newStatus)

		if err := s.bookingRepo.UpdateStatus(ctx, tx, booking.ID, newStatus); err != nil {
			return err
		}
		if release {
			if err := s.propertyRepo.AdjustAvailableRooms(ctx, tx, booking.PropertyID, 1); err != nil {
				return err
			}
		}

		wasPaid = booking.PaymentStatus == models.PaymentPaid
		booking.BookingStatus = newStatus
		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Every transition changes the cached confirmed/checked_in counts, not
	// just the ones that release a room.
	s.invalidateStatus(ctx, updated.PropertyID)
	if newStatus == models.StatusCancelled {
		s.publish(EventBookingCancelled, updated)
		if wasPaid {
			s.publish(EventRefundRequested, updated)
		}
	}
	return updated, nil
}

// UpdatePaymentStatus records an outcome reported by the payment gateway.
// Payment state never touches inventory.
func (s *reservationService) UpdatePaymentStatus(ctx context.Context, bookingID uint, newStatus models.PaymentStatus) (*models.Booking, error) {
	var updated *models.Booking

	err := s.bookingRepo.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookingRepo.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		if !lifecycle.CanSetPayment(booking.PaymentStatus, newStatus) {
			return ErrInvalidPayment
		}

		if err := s.bookingRepo.UpdatePaymentStatus(ctx, tx, booking.ID, newStatus); err != nil {
			return err
		}

		booking.PaymentStatus = newStatus
		updated = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListOverlapping returns the occupying bookings intersecting the window,
// for admin and reporting collaborators.
func (s *reservationService) ListOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error) {
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDates
	}
	return s.bookingRepo.FindOverlapping(ctx, propertyID, checkIn, checkOut, availability.OccupyingStatuses)
}

func (s *reservationService) ListBookings(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error) {
	return s.bookingRepo.FindByPropertyID(ctx, propertyID, status)
}

func (s *reservationService) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (s *reservationService) GetByTicketCode(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByTicketCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

// PropertyStatus serves the hot polling endpoint through the Redis cache;
// reservation and release writes invalidate the entry.
func (s *reservationService) PropertyStatus(ctx context.Context, propertyID uint) (*PropertyStatus, error) {
	if data, found, err := s.statusCache.Get(ctx, propertyID); err != nil {
		log.Printf("property status cache read: %v", err)
	} else if found {
		var status PropertyStatus
		if err := json.Unmarshal(data, &status); err == nil {
			return &status, nil
		}
	}

	property, err := s.propertyRepo.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}

	confirmed, err := s.bookingRepo.CountByStatus(ctx, propertyID, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	checkedIn, err := s.bookingRepo.CountByStatus(ctx, propertyID, models.StatusCheckedIn)
	if err != nil {
		return nil, err
	}

	status := &PropertyStatus{
		ID:             property.ID,
		Title:          property.Title,
		TotalRooms:     property.TotalRooms,
		AvailableRooms: property.AvailableRooms,
		IsActive:       property.IsActive,
		PricePerNight:  property.PricePerNight,
		Confirmed:      confirmed,
		CheckedIn:      checkedIn,
	}

	if data, err := json.Marshal(status); err == nil {
		if err := s.statusCache.Set(ctx, propertyID, data); err != nil {
			log.Printf("property status cache write: %v", err)
		}
	}
	return status, nil
}

// uniqueTicketCode generates codes until one is free. Collisions are an
// internal retry, never a caller-visible failure; the unique index on
// ticket_code is the backstop for a race between two transactions.
func (s *reservationService) uniqueTicketCode(ctx context.Context, tx *gorm.DB) (string, error) {
	for i := 0; i < maxTicketAttempts; i++ {
		code, err := ticket.Generate()
		if err != nil {
			return "", err
		}
		exists, err := s.bookingRepo.TicketCodeExists(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("exhausted ticket code attempts")
}

func (s *reservationService) publish(routingKey string, b *models.Booking) {
	if s.publisher == nil {
		return
	}
	event := BookingEvent{
		EventID:       uuid.NewString(),
		BookingID:     b.ID,
		PropertyID:    b.PropertyID,
		GuestID:       b.GuestID,
		TicketCode:    b.TicketCode,
		Amount:        b.TotalAmount,
		PaymentStatus: b.PaymentStatus,
		BookingStatus: b.BookingStatus,
		OccurredAt:    s.clock.Now(),
	}
	if err := s.publisher.Publish(routingKey, event); err != nil {
		log.Printf("publish %s for booking %d: %v", routingKey, b.ID, err)
	}
}

func (s *reservationService) invalidateStatus(ctx context.Context, propertyID uint) {
	if err := s.statusCache.Invalidate(ctx, propertyID); err != nil {
		log.Printf("property status cache invalidate: %v", err)
	}
}

// isRetryableConflict reports whether a failed reservation attempt is a lost
// race rather than a real fault: a serialization abort, or a guarded counter
// decrement that found no room left after another transaction slipped in.
// Either way the right move is a fresh availability check.
func isRetryableConflict(err error) bool {
	return errors.Is(err, repository.ErrCounterOutOfRange) || isSerializationFailure(err)
}

// isSerializationFailure matches Postgres serialization and deadlock aborts
// (SQLSTATE 40001 / 40P01), which are safe to retry as a fresh attempt.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
