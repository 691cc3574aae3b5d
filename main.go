package main

import (
	"log"

	"github.com/aptstay/reservation-service/config"
	"github.com/aptstay/reservation-service/internal/clock"
	"github.com/aptstay/reservation-service/internal/consumer"
	"github.com/aptstay/reservation-service/internal/handler"
	"github.com/aptstay/reservation-service/internal/identity"
	"github.com/aptstay/reservation-service/internal/middleware"
	"github.com/aptstay/reservation-service/internal/repository"
	"github.com/aptstay/reservation-service/internal/service"
	"github.com/aptstay/reservation-service/pkg/cache"
	"github.com/aptstay/reservation-service/pkg/database"
	"github.com/aptstay/reservation-service/pkg/rabbitmq"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// Outbound booking events (refund requests, lifecycle notifications)
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	// Redis is optional; without it the status endpoint just hits Postgres.
	var statusCache *cache.PropertyStatusCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		statusCache = cache.NewPropertyStatusCache(redisClient)
		log.Printf("Redis cache enabled at %s", cfg.RedisAddr)
	}

	// Repositories
	propertyRepo := repository.NewPropertyRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	// External collaborators
	users := identity.NewHTTPDirectory(cfg.IdentityURL)
	verifier := identity.NewHTTPVerifier(cfg.VerifierURL)

	// Service
	reservationSvc := service.NewReservationService(
		propertyRepo, bookingRepo, users, verifier, publisher, statusCache, clock.NewSystem(),
	)

	// RabbitMQ consumer: payment gateway reports
	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ consumer: %v", err)
	}
	defer mqConsumer.Close()

	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	consumer.NewPaymentConsumer(reservationSvc).Start(msgs)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "reservation-service"})
	})

	handler.NewReservationHandler(reservationSvc).RegisterRoutes(e)

	log.Printf("Reservation Service starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
