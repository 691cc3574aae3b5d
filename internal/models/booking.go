package models

import "time"

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCheckedIn BookingStatus = "checked_in"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

type Booking struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	PropertyID uint `gorm:"not null;index:idx_booking_window" json:"property_id"`
	GuestID    uint `gorm:"not null;index" json:"guest_id"`

	// Guest snapshot, denormalized at creation. A booking record keeps the
	// contact details it was made with even if the profile changes later.
	GuestName  string `gorm:"size:255" json:"guest_name"`
	GuestEmail string `gorm:"size:255" json:"guest_email"`
	GuestPhone string `gorm:"size:50" json:"guest_phone"`

	CheckIn    time.Time `gorm:"not null;index:idx_booking_window" json:"check_in"`
	CheckOut   time.Time `gorm:"not null;index:idx_booking_window" json:"check_out"`
	GuestCount int       `gorm:"not null" json:"guest_count"`

	TotalAmount   float64       `gorm:"not null" json:"total_amount"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null;default:'card'" json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	BookingStatus BookingStatus `gorm:"type:varchar(20);not null;default:'confirmed';index:idx_booking_window" json:"booking_status"`

	TicketCode      string `gorm:"type:varchar(8);not null;uniqueIndex" json:"ticket_code"`
	SpecialRequests string `gorm:"size:500" json:"special_requests,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}
