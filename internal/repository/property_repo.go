package repository

import (
	"context"
	"errors"

	"github.com/aptstay/reservation-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCounterOutOfRange is returned when an available-rooms adjustment would
// leave the counter outside [0, total_rooms]. It indicates a bug or a lost
// update, never a normal capacity miss.
var ErrCounterOutOfRange = errors.New("available_rooms adjustment out of range")

type PropertyRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Property, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Property, error)
	AdjustAvailableRooms(ctx context.Context, tx *gorm.DB, id uint, delta int) error
}

type propertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) FindByID(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	if err := r.db.WithContext(ctx).First(&property, id).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// FindByIDForUpdate acquires a row-level lock on the property within the given
// transaction. This is the per-property serialization point: two concurrent
// reservations for the same property queue here, while reservations for other
// properties proceed unblocked.
func (r *propertyRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Property, error) {
	var property models.Property
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&property, id).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// AdjustAvailableRooms shifts the counter by delta inside the caller's
// transaction. The WHERE guard keeps 0 <= available_rooms <= total_rooms even
// if a caller slips past the row lock.
func (r *propertyRepository) AdjustAvailableRooms(ctx context.Context, tx *gorm.DB, id uint, delta int) error {
	result := tx.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ? AND available_rooms + ? >= 0 AND available_rooms + ? <= total_rooms", id, delta, delta).
		Update("available_rooms", gorm.Expr("available_rooms + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCounterOutOfRange
	}
	return nil
}
