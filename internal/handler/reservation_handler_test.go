package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aptstay/reservation-service/internal/dto"
	"github.com/aptstay/reservation-service/internal/models"
	"github.com/aptstay/reservation-service/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

// stubService implements service.ReservationService with overridable
// function fields; unset methods are never reached by the test.
type stubService struct {
	reserveFn       func(ctx context.Context, propertyID uint, in service.ReserveInput) (*models.Booking, error)
	secureReserveFn func(ctx context.Context, propertyID uint, in service.ReserveInput, sample string) (*models.Booking, error)
	cancelFn        func(ctx context.Context, bookingID, actorID uint) (*models.Booking, error)
	setStatusFn     func(ctx context.Context, bookingID uint, status models.BookingStatus, role string) (*models.Booking, error)
	setPaymentFn    func(ctx context.Context, bookingID uint, status models.PaymentStatus) (*models.Booking, error)
	availabilityFn  func(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) (*service.AvailabilityResult, error)
	overlappingFn   func(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error)
	listFn          func(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error)
	getFn           func(ctx context.Context, id uint) (*models.Booking, error)
	getByTicketFn   func(ctx context.Context, code string) (*models.Booking, error)
	statusFn        func(ctx context.Context, propertyID uint) (*service.PropertyStatus, error)
}

func (s *stubService) Reserve(ctx context.Context, propertyID uint, in service.ReserveInput) (*models.Booking, error) {
	return s.reserveFn(ctx, propertyID, in)
}

func (s *stubService) SecureReserve(ctx context.Context, propertyID uint, in service.ReserveInput, sample string) (*models.Booking, error) {
	return s.secureReserveFn(ctx, propertyID, in, sample)
}

func (s *stubService) Cancel(ctx context.Context, bookingID, actorID uint) (*models.Booking, error) {
	return s.cancelFn(ctx, bookingID, actorID)
}

func (s *stubService) SetStatus(ctx context.Context, bookingID uint, status models.BookingStatus, role string) (*models.Booking, error) {
	return s.setStatusFn(ctx, bookingID, status, role)
}

func (s *stubService) UpdatePaymentStatus(ctx context.Context, bookingID uint, status models.PaymentStatus) (*models.Booking, error) {
	return s.setPaymentFn(ctx, bookingID, status)
}

func (s *stubService) CheckAvailability(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) (*service.AvailabilityResult, error) {
	return s.availabilityFn(ctx, propertyID, checkIn, checkOut)
}

func (s *stubService) ListOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error) {
	return s.overlappingFn(ctx, propertyID, checkIn, checkOut)
}

func (s *stubService) ListBookings(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error) {
	return s.listFn(ctx, propertyID, status)
}

func (s *stubService) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	return s.getFn(ctx, id)
}

func (s *stubService) GetByTicketCode(ctx context.Context, code string) (*models.Booking, error) {
	return s.getByTicketFn(ctx, code)
}

func (s *stubService) PropertyStatus(ctx context.Context, propertyID uint) (*service.PropertyStatus, error) {
	return s.statusFn(ctx, propertyID)
}

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:            12,
		PropertyID:    1,
		GuestID:       7,
		GuestName:     "Ada Byron",
		CheckIn:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		GuestCount:    2,
		TotalAmount:   320,
		PaymentMethod: models.PaymentMethodCard,
		PaymentStatus: models.PaymentPending,
		BookingStatus: models.StatusConfirmed,
		TicketCode:    "AB12CD34",
	}
}

const reserveBody = `{
	"guest_id": 7,
	"check_in": "2025-06-01T00:00:00Z",
	"check_out": "2025-06-05T00:00:00Z",
	"guest_count": 2,
	"payment_method": "card"
}`

func newContext(t *testing.T, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestReserve_Created(t *testing.T) {
	var gotProperty uint
	var gotInput service.ReserveInput
	h := NewReservationHandler(&stubService{
		reserveFn: func(ctx context.Context, propertyID uint, in service.ReserveInput) (*models.Booking, error) {
			gotProperty = propertyID
			gotInput = in
			return sampleBooking(), nil
		},
	})

	c, rec := newContext(t, http.MethodPost, reserveBody)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint(1), gotProperty)
	assert.Equal(t, uint(7), gotInput.GuestID)
	assert.Equal(t, models.PaymentMethodCard, gotInput.PaymentMethod)

	var resp dto.BookingResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AB12CD34", resp.TicketCode)
	assert.Equal(t, models.StatusConfirmed, resp.BookingStatus)
}

func TestReserve_InvalidPropertyID(t *testing.T) {
	h := NewReservationHandler(&stubService{})

	c, rec := newContext(t, http.MethodPost, reserveBody)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	assert.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, rec).Code)
}

func TestReserve_ValidationFailure(t *testing.T) {
	h := NewReservationHandler(&stubService{})

	// guest_count missing fails the required/gte rule before the service runs
	body := `{"guest_id": 7, "check_in": "2025-06-01T00:00:00Z", "check_out": "2025-06-05T00:00:00Z"}`
	c, rec := newContext(t, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.Reserve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, rec).Code)
}

func TestReserve_RejectionMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode string
	}{
		{"no capacity", service.ErrNoCapacity, http.StatusConflict, "NO_CAPACITY"},
		{"property not found", service.ErrPropertyNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"guest not found", service.ErrGuestNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"inactive", service.ErrPropertyInactive, http.StatusBadRequest, "INACTIVE"},
		{"invalid dates", service.ErrInvalidDates, http.StatusBadRequest, "INVALID_DATES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewReservationHandler(&stubService{
				reserveFn: func(ctx context.Context, propertyID uint, in service.ReserveInput) (*models.Booking, error) {
					return nil, tt.err
				},
			})

			c, rec := newContext(t, http.MethodPost, reserveBody)
			c.SetParamNames("id")
			c.SetParamValues("1")

			assert.NoError(t, h.Reserve(c))
			assert.Equal(t, tt.wantHTTP, rec.Code)
			assert.Equal(t, tt.wantCode, errorBody(t, rec).Code)
		})
	}
}

func TestSecureReserve(t *testing.T) {
	var gotSample string
	h := NewReservationHandler(&stubService{
		secureReserveFn: func(ctx context.Context, propertyID uint, in service.ReserveInput, sample string) (*models.Booking, error) {
			gotSample = sample
			return sampleBooking(), nil
		},
	})

	body := `{
		"guest_id": 7,
		"check_in": "2025-06-01T00:00:00Z",
		"check_out": "2025-06-05T00:00:00Z",
		"guest_count": 2,
		"biometric_sample": "ZmFjZS1zY2Fu"
	}`
	c, rec := newContext(t, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.SecureReserve(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ZmFjZS1zY2Fu", gotSample)
}

func TestSecureReserve_MissingSample(t *testing.T) {
	h := NewReservationHandler(&stubService{})

	c, rec := newContext(t, http.MethodPost, reserveBody)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.SecureReserve(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, rec).Code)
}

func TestSecureReserve_VerificationFailed(t *testing.T) {
	h := NewReservationHandler(&stubService{
		secureReserveFn: func(ctx context.Context, propertyID uint, in service.ReserveInput, sample string) (*models.Booking, error) {
			return nil, service.ErrVerificationFailed
		},
	})

	body := `{
		"guest_id": 7,
		"check_in": "2025-06-01T00:00:00Z",
		"check_out": "2025-06-05T00:00:00Z",
		"guest_count": 2,
		"biometric_sample": "ZmFjZS1zY2Fu"
	}`
	c, rec := newContext(t, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.SecureReserve(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "VERIFICATION_FAILED", errorBody(t, rec).Code)
}

func TestCheckAvailability(t *testing.T) {
	h := NewReservationHandler(&stubService{
		availabilityFn: func(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) (*service.AvailabilityResult, error) {
			return &service.AvailabilityResult{Available: false, Overlapping: 2, Reason: service.ErrNoCapacity}, nil
		},
	})

	body := `{"check_in": "2025-06-01T00:00:00Z", "check_out": "2025-06-05T00:00:00Z"}`
	c, rec := newContext(t, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.CheckAvailability(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.AvailabilityResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.Equal(t, int64(2), resp.Overlapping)
	assert.Equal(t, "NO_CAPACITY", resp.Reason)
}

func TestCancel(t *testing.T) {
	var gotBooking, gotActor uint
	h := NewReservationHandler(&stubService{
		cancelFn: func(ctx context.Context, bookingID, actorID uint) (*models.Booking, error) {
			gotBooking, gotActor = bookingID, actorID
			b := sampleBooking()
			b.BookingStatus = models.StatusCancelled
			return b, nil
		},
	})

	c, rec := newContext(t, http.MethodDelete, "")
	c.Request().Header.Set("X-Actor-ID", "7")
	c.SetParamNames("id")
	c.SetParamValues("12")

	assert.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(12), gotBooking)
	assert.Equal(t, uint(7), gotActor)
}

func TestCancel_MissingActorHeader(t *testing.T) {
	h := NewReservationHandler(&stubService{})

	c, rec := newContext(t, http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues("12")

	assert.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorBody(t, rec).Code)
}

func TestCancel_RejectionMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode string
	}{
		{"policy window", service.ErrWithinPolicyWindow, http.StatusForbidden, "WITHIN_POLICY_WINDOW"},
		{"already terminal", service.ErrAlreadyTerminal, http.StatusConflict, "ALREADY_TERMINAL"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"not found", service.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewReservationHandler(&stubService{
				cancelFn: func(ctx context.Context, bookingID, actorID uint) (*models.Booking, error) {
					return nil, tt.err
				},
			})

			c, rec := newContext(t, http.MethodDelete, "")
			c.Request().Header.Set("X-Actor-ID", "7")
			c.SetParamNames("id")
			c.SetParamValues("12")

			assert.NoError(t, h.Cancel(c))
			assert.Equal(t, tt.wantHTTP, rec.Code)
			assert.Equal(t, tt.wantCode, errorBody(t, rec).Code)
		})
	}
}

func TestSetStatus(t *testing.T) {
	var gotStatus models.BookingStatus
	var gotRole string
	h := NewReservationHandler(&stubService{
		setStatusFn: func(ctx context.Context, bookingID uint, status models.BookingStatus, role string) (*models.Booking, error) {
			gotStatus, gotRole = status, role
			b := sampleBooking()
			b.BookingStatus = status
			return b, nil
		},
	})

	c, rec := newContext(t, http.MethodPatch, `{"status": "checked_in"}`)
	c.Request().Header.Set("X-Actor-Role", "owner")
	c.SetParamNames("id")
	c.SetParamValues("12")

	assert.NoError(t, h.SetStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCheckedIn, gotStatus)
	assert.Equal(t, "owner", gotRole)
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	h := NewReservationHandler(&stubService{})

	c, rec := newContext(t, http.MethodPatch, `{"status": "vanished"}`)
	c.SetParamNames("id")
	c.SetParamValues("12")

	assert.NoError(t, h.SetStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS", errorBody(t, rec).Code)
}

func TestSetStatus_InvalidTransition(t *testing.T) {
	h := NewReservationHandler(&stubService{
		setStatusFn: func(ctx context.Context, bookingID uint, status models.BookingStatus, role string) (*models.Booking, error) {
			return nil, service.ErrInvalidTransition
		},
	})

	c, rec := newContext(t, http.MethodPatch, `{"status": "completed"}`)
	c.Request().Header.Set("X-Actor-Role", "admin")
	c.SetParamNames("id")
	c.SetParamValues("12")

	assert.NoError(t, h.SetStatus(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorBody(t, rec).Code)
}

func TestSetPaymentStatus(t *testing.T) {
	var gotStatus models.PaymentStatus
	h := NewReservationHandler(&stubService{
		setPaymentFn: func(ctx context.Context, bookingID uint, status models.PaymentStatus) (*models.Booking, error) {
			gotStatus = status
			b := sampleBooking()
			b.PaymentStatus = status
			return b, nil
		},
	})

	c, rec := newContext(t, http.MethodPatch, `{"status": "paid"}`)
	c.SetParamNames("id")
	c.SetParamValues("12")

	assert.NoError(t, h.SetPaymentStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentPaid, gotStatus)
}

func TestListOverlapping(t *testing.T) {
	h := NewReservationHandler(&stubService{
		overlappingFn: func(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error) {
			return []models.Booking{*sampleBooking()}, nil
		},
	})

	c, rec := newContext(t, http.MethodGet, "")
	c.QueryParams().Set("check_in", "2025-06-01T00:00:00Z")
	c.QueryParams().Set("check_out", "2025-06-10T00:00:00Z")
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.ListOverlapping(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []dto.BookingResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
	assert.Equal(t, "AB12CD34", resp[0].TicketCode)
}

func TestListOverlapping_BadDates(t *testing.T) {
	h := NewReservationHandler(&stubService{})

	c, rec := newContext(t, http.MethodGet, "")
	c.QueryParams().Set("check_in", "june first")
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.ListOverlapping(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATES", errorBody(t, rec).Code)
}

func TestListBookings_StatusFilter(t *testing.T) {
	var gotStatus *models.BookingStatus
	h := NewReservationHandler(&stubService{
		listFn: func(ctx context.Context, propertyID uint, status *models.BookingStatus) ([]models.Booking, error) {
			gotStatus = status
			return nil, nil
		},
	})

	c, rec := newContext(t, http.MethodGet, "")
	c.QueryParams().Set("status", "confirmed")
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.ListBookings(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	if assert.NotNil(t, gotStatus) {
		assert.Equal(t, models.StatusConfirmed, *gotStatus)
	}

	c, rec = newContext(t, http.MethodGet, "")
	c.QueryParams().Set("status", "vanished")
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.ListBookings(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS", errorBody(t, rec).Code)
}

func TestGetByTicketCode_NotFound(t *testing.T) {
	h := NewReservationHandler(&stubService{
		getByTicketFn: func(ctx context.Context, code string) (*models.Booking, error) {
			return nil, service.ErrBookingNotFound
		},
	})

	c, rec := newContext(t, http.MethodGet, "")
	c.SetParamNames("code")
	c.SetParamValues("AB12CD34")

	assert.NoError(t, h.GetByTicketCode(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorBody(t, rec).Code)
}

func TestPropertyStatus(t *testing.T) {
	h := NewReservationHandler(&stubService{
		statusFn: func(ctx context.Context, propertyID uint) (*service.PropertyStatus, error) {
			return &service.PropertyStatus{
				ID:             1,
				Title:          "Canal View Loft",
				TotalRooms:     3,
				AvailableRooms: 1,
				IsActive:       true,
				PricePerNight:  80,
				Confirmed:      1,
				CheckedIn:      1,
			}, nil
		},
	})

	c, rec := newContext(t, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("1")

	assert.NoError(t, h.PropertyStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.PropertyStatusResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.AvailableRooms)
	assert.Equal(t, int64(1), resp.CheckedIn)
}
