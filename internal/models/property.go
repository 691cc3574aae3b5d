package models

import "time"

// Property is the inventory aggregate. AvailableRooms is the single shared
// mutable counter; only the reservation service mutates it, always inside the
// same transaction as the booking write it belongs to.
type Property struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        uint      `gorm:"not null;index" json:"owner_id"`
	Title          string    `gorm:"size:255" json:"title"`
	TotalRooms     int       `gorm:"not null" json:"total_rooms"`
	AvailableRooms int       `gorm:"not null" json:"available_rooms"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	PricePerNight  float64   `gorm:"not null" json:"price_per_night"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
