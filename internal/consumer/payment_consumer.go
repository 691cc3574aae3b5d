package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/aptstay/reservation-service/internal/lifecycle"
	"github.com/aptstay/reservation-service/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PaymentReport is what the payment gateway publishes after processing a
// charge or refund for a booking.
type PaymentReport struct {
	BookingID uint   `json:"booking_id"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

type PaymentConsumer struct {
	svc service.ReservationService
}

func NewPaymentConsumer(svc service.ReservationService) *PaymentConsumer {
	return &PaymentConsumer{svc: svc}
}

// Start applies gateway reports to bookings. Malformed or logically invalid
// messages are dropped; transient failures are requeued.
func (pc *PaymentConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			pc.handleMessage(msg)
		}
		log.Println("[PaymentConsumer] channel closed, stopping consumer")
	}()
}

func (pc *PaymentConsumer) handleMessage(msg amqp.Delivery) {
	var report PaymentReport
	if err := json.Unmarshal(msg.Body, &report); err != nil {
		log.Printf("[PaymentConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false)
		return
	}

	status, err := lifecycle.ParsePaymentStatus(report.Status)
	if err != nil {
		log.Printf("[PaymentConsumer] dropping report for booking %d: %v", report.BookingID, err)
		msg.Nack(false, false)
		return
	}

	_, err = pc.svc.UpdatePaymentStatus(context.Background(), report.BookingID, status)
	switch {
	case err == nil:
		log.Printf("[PaymentConsumer] booking %d payment -> %s", report.BookingID, status)
		msg.Ack(false)
	case errors.Is(err, service.ErrBookingNotFound), errors.Is(err, service.ErrInvalidPayment):
		// Nothing to retry; the report does not apply.
		log.Printf("[PaymentConsumer] dropping report for booking %d: %v", report.BookingID, err)
		msg.Nack(false, false)
	default:
		log.Printf("[PaymentConsumer] requeueing report for booking %d: %v", report.BookingID, err)
		msg.Nack(false, true)
	}
}
