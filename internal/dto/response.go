package dto

import (
	"time"

	"github.com/aptstay/reservation-service/internal/models"
)

type BookingResponse struct {
	ID              uint                 `json:"id"`
	PropertyID      uint                 `json:"property_id"`
	GuestID         uint                 `json:"guest_id"`
	GuestName       string               `json:"guest_name"`
	CheckIn         time.Time            `json:"check_in"`
	CheckOut        time.Time            `json:"check_out"`
	GuestCount      int                  `json:"guest_count"`
	TotalAmount     float64              `json:"total_amount"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	BookingStatus   models.BookingStatus `json:"booking_status"`
	TicketCode      string               `json:"ticket_code"`
	SpecialRequests string               `json:"special_requests,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

type AvailabilityResponse struct {
	Available   bool   `json:"available"`
	Overlapping int64  `json:"overlapping_bookings"`
	Reason      string `json:"reason,omitempty"`
}

type PropertyStatusResponse struct {
	ID             uint    `json:"id"`
	Title          string  `json:"title"`
	TotalRooms     int     `json:"total_rooms"`
	AvailableRooms int     `json:"available_rooms"`
	IsActive       bool    `json:"is_active"`
	PricePerNight  float64 `json:"price_per_night"`
	Confirmed      int64   `json:"confirmed_count"`
	CheckedIn      int64   `json:"checked_in_count"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ToBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		PropertyID:      b.PropertyID,
		GuestID:         b.GuestID,
		GuestName:       b.GuestName,
		CheckIn:         b.CheckIn,
		CheckOut:        b.CheckOut,
		GuestCount:      b.GuestCount,
		TotalAmount:     b.TotalAmount,
		PaymentMethod:   b.PaymentMethod,
		PaymentStatus:   b.PaymentStatus,
		BookingStatus:   b.BookingStatus,
		TicketCode:      b.TicketCode,
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt,
	}
}
