package database

import (
	"log"

	"github.com/aptstay/reservation-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Property{}, &models.Booking{}); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Counter bounds as a database-level backstop; the coordinator's guarded
	// UPDATE should never trip this.
	db.Exec(`
		ALTER TABLE properties
		ADD CONSTRAINT chk_available_rooms
		CHECK (available_rooms >= 0 AND available_rooms <= total_rooms)
	`)

	return db
}
