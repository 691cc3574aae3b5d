package repository

import (
	"context"
	"time"

	"github.com/aptstay/reservation-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository interface {
	// WithTx runs fn inside a database transaction. Everything the
	// coordinator does between availability check and counter write happens
	// inside one of these closures.
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error)
	FindByTicketCode(ctx context.Context, code string) (*models.Booking, error)
	FindByPropertyID(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error)
	FindOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time, statuses []models.BookingStatus) ([]models.Booking, error)
	CountOverlapping(ctx context.Context, tx *gorm.DB, propertyID uint, checkIn, checkOut time.Time, statuses []models.BookingStatus) (int64, error)
	TicketCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, bookingID uint, status models.BookingStatus) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, bookingID uint, status models.PaymentStatus) error
	CountByStatus(ctx context.Context, propertyID uint, status models.BookingStatus) (int64, error)
	GetDB() *gorm.DB
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *bookingRepository) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *bookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	return tx.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByIDForUpdate locks the booking row for the duration of the caller's
// transaction so status transitions cannot interleave.
func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByTicketCode(ctx context.Context, code string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Where("ticket_code = ?", code).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByPropertyID(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).Where("property_id = ?", propertyID)
	if status != nil {
		q = q.Where("booking_status = ?", *status)
	}
	if err := q.Order("id ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// FindOverlapping returns bookings in the given statuses whose half-open
// [check_in, check_out) window intersects [checkIn, checkOut). Back-to-back
// stays fall out of the strict inequalities.
func (r *bookingRepository) FindOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time, statuses []models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND booking_status IN ? AND check_in < ? AND check_out > ?",
			propertyID, statuses, checkOut, checkIn).
		Order("check_in ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) CountOverlapping(ctx context.Context, tx *gorm.DB, propertyID uint, checkIn, checkOut time.Time, statuses []models.BookingStatus) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("property_id = ? AND booking_status IN ? AND check_in < ? AND check_out > ?",
			propertyID, statuses, checkOut, checkIn).
		Count(&count).Error
	return count, err
}

func (r *bookingRepository) TicketCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("ticket_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, bookingID uint, status models.BookingStatus) error {
	return tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("booking_status", status).Error
}

func (r *bookingRepository) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, bookingID uint, status models.PaymentStatus) error {
	return tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("payment_status", status).Error
}

func (r *bookingRepository) CountByStatus(ctx context.Context, propertyID uint, status models.BookingStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("property_id = ? AND booking_status = ?", propertyID, status).
		Count(&count).Error
	return count, err
}
