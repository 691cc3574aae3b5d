package dto

import "time"

type ReserveRequest struct {
	GuestID         uint      `json:"guest_id" validate:"required"`
	CheckIn         time.Time `json:"check_in" validate:"required"`
	CheckOut        time.Time `json:"check_out" validate:"required"`
	GuestCount      int       `json:"guest_count" validate:"required,gte=1,lte=20"`
	PaymentMethod   string    `json:"payment_method" validate:"omitempty,oneof=card cash bank_transfer"`
	SpecialRequests string    `json:"special_requests" validate:"max=500"`
}

type SecureReserveRequest struct {
	ReserveRequest
	BiometricSample string `json:"biometric_sample" validate:"required"`
}

type AvailabilityRequest struct {
	CheckIn  time.Time `json:"check_in" validate:"required"`
	CheckOut time.Time `json:"check_out" validate:"required"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type SetPaymentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
