package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aptstay/reservation-service/internal/dto"
	"github.com/aptstay/reservation-service/internal/lifecycle"
	"github.com/aptstay/reservation-service/internal/models"
	"github.com/aptstay/reservation-service/internal/service"
	"github.com/labstack/echo/v4"
)

type ReservationHandler struct {
	svc service.ReservationService
}

func NewReservationHandler(svc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

func (h *ReservationHandler) RegisterRoutes(e *echo.Echo) {
	properties := e.Group("/api/v1/properties")
	properties.POST("/:id/bookings", h.Reserve)
	properties.POST("/:id/bookings/secure", h.SecureReserve)
	properties.POST("/:id/availability", h.CheckAvailability)
	properties.GET("/:id/bookings", h.ListBookings)
	properties.GET("/:id/bookings/overlapping", h.ListOverlapping)
	properties.GET("/:id/status", h.PropertyStatus)

	bookings := e.Group("/api/v1/bookings")
	bookings.GET("/:id", h.GetBooking)
	bookings.GET("/ticket/:code", h.GetByTicketCode)
	bookings.DELETE("/:id", h.Cancel)
	bookings.PATCH("/:id/status", h.SetStatus)
	bookings.PATCH("/:id/payment", h.SetPaymentStatus)
}

func (h *ReservationHandler) Reserve(c echo.Context) error {
	propertyID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid property id")
	}

	var req dto.ReserveRequest
	if err := c.Bind(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}

	booking, err := h.svc.Reserve(c.Request().Context(), propertyID, toReserveInput(req))
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) SecureReserve(c echo.Context) error {
	propertyID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid property id")
	}

	var req dto.SecureReserveRequest
	if err := c.Bind(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}

	booking, err := h.svc.SecureReserve(c.Request().Context(), propertyID, toReserveInput(req.ReserveRequest), req.BiometricSample)
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) CheckAvailability(c echo.Context) error {
	propertyID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid property id")
	}

	var req dto.AvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}

	result, err := h.svc.CheckAvailability(c.Request().Context(), propertyID, req.CheckIn, req.CheckOut)
	if err != nil {
		return rejectionFromError(c, err)
	}

	resp := dto.AvailabilityResponse{
		Available:   result.Available,
		Overlapping: result.Overlapping,
	}
	if result.Reason != nil {
		resp.Reason = rejectionCode(result.Reason)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) Cancel(c echo.Context) error {
	bookingID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id")
	}

	actorID, err := strconv.ParseUint(c.Request().Header.Get("X-Actor-ID"), 10, 64)
	if err != nil {
		return rejection(c, http.StatusForbidden, "FORBIDDEN", "missing or invalid X-Actor-ID header")
	}

	booking, err := h.svc.Cancel(c.Request().Context(), bookingID, uint(actorID))
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) SetStatus(c echo.Context) error {
	bookingID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id")
	}

	var req dto.SetStatusRequest
	if err := c.Bind(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}

	status, err := lifecycle.ParseStatus(req.Status)
	if err != nil {
		return rejection(c, http.StatusBadRequest, "INVALID_STATUS", err.Error())
	}

	actorRole := c.Request().Header.Get("X-Actor-Role")
	booking, err := h.svc.SetStatus(c.Request().Context(), bookingID, status, actorRole)
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) SetPaymentStatus(c echo.Context) error {
	bookingID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id")
	}

	var req dto.SetPaymentStatusRequest
	if err := c.Bind(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}

	status, err := lifecycle.ParsePaymentStatus(req.Status)
	if err != nil {
		return rejection(c, http.StatusBadRequest, "INVALID_STATUS", err.Error())
	}

	booking, err := h.svc.UpdatePaymentStatus(c.Request().Context(), bookingID, status)
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) ListOverlapping(c echo.Context) error {
	propertyID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid property id")
	}

	checkIn, err := time.Parse(time.RFC3339, c.QueryParam("check_in"))
	if err != nil {
		return rejection(c, http.StatusBadRequest, "INVALID_DATES", "check_in must be RFC3339")
	}
	checkOut, err := time.Parse(time.RFC3339, c.QueryParam("check_out"))
	if err != nil {
		return rejection(c, http.StatusBadRequest, "INVALID_DATES", "check_out must be RFC3339")
	}

	bookings, err := h.svc.ListOverlapping(c.Request().Context(), propertyID, checkIn, checkOut)
	if err != nil {
		return rejectionFromError(c, err)
	}

	resp := make([]dto.BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = dto.ToBookingResponse(&b)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) ListBookings(c echo.Context) error {
	propertyID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid property id")
	}

	var status *models.BookingStatus
	if s := c.QueryParam("status"); s != "" {
		parsed, err := lifecycle.ParseStatus(s)
		if err != nil {
			return rejection(c, http.StatusBadRequest, "INVALID_STATUS", err.Error())
		}
		status = &parsed
	}

	bookings, err := h.svc.ListBookings(c.Request().Context(), propertyID, status)
	if err != nil {
		return rejectionFromError(c, err)
	}

	resp := make([]dto.BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = dto.ToBookingResponse(&b)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) GetBooking(c echo.Context) error {
	bookingID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid booking id")
	}

	booking, err := h.svc.GetBooking(c.Request().Context(), bookingID)
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) GetByTicketCode(c echo.Context) error {
	booking, err := h.svc.GetByTicketCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return rejectionFromError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking))
}

func (h *ReservationHandler) PropertyStatus(c echo.Context) error {
	propertyID, err := parseID(c, "id")
	if err != nil {
		return rejection(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid property id")
	}

	status, err := h.svc.PropertyStatus(c.Request().Context(), propertyID)
	if err != nil {
		return rejectionFromError(c, err)
	}

	return c.JSON(http.StatusOK, dto.PropertyStatusResponse{
		ID:             status.ID,
		Title:          status.Title,
		TotalRooms:     status.TotalRooms,
		AvailableRooms: status.AvailableRooms,
		IsActive:       status.IsActive,
		PricePerNight:  status.PricePerNight,
		Confirmed:      status.Confirmed,
		CheckedIn:      status.CheckedIn,
	})
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func toReserveInput(req dto.ReserveRequest) service.ReserveInput {
	return service.ReserveInput{
		GuestID:         req.GuestID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		GuestCount:      req.GuestCount,
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
		SpecialRequests: req.SpecialRequests,
	}
}

func rejection(c echo.Context, httpStatus int, code, message string) error {
	return c.JSON(httpStatus, dto.ErrorResponse{Code: code, Message: message})
}

// rejectionCode maps engine errors onto the stable codes collaborators
// depend on.
func rejectionCode(err error) string {
	switch {
	case errors.Is(err, service.ErrPropertyNotFound),
		errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrGuestNotFound):
		return "NOT_FOUND"
	case errors.Is(err, service.ErrPropertyInactive):
		return "INACTIVE"
	case errors.Is(err, service.ErrNoCapacity):
		return "NO_CAPACITY"
	case errors.Is(err, service.ErrInvalidDates):
		return "INVALID_DATES"
	case errors.Is(err, service.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, service.ErrAlreadyTerminal):
		return "ALREADY_TERMINAL"
	case errors.Is(err, service.ErrWithinPolicyWindow):
		return "WITHIN_POLICY_WINDOW"
	case errors.Is(err, service.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidPayment):
		return "INVALID_STATUS"
	case errors.Is(err, service.ErrInvalidGuestCount):
		return "VALIDATION_ERROR"
	case errors.Is(err, service.ErrVerificationFailed):
		return "VERIFICATION_FAILED"
	default:
		return "INTERNAL"
	}
}

func rejectionFromError(c echo.Context, err error) error {
	code := rejectionCode(err)

	var httpStatus int
	switch code {
	case "NOT_FOUND":
		httpStatus = http.StatusNotFound
	case "NO_CAPACITY", "ALREADY_TERMINAL", "INVALID_TRANSITION":
		httpStatus = http.StatusConflict
	case "INVALID_DATES", "INVALID_STATUS", "VALIDATION_ERROR", "INACTIVE":
		httpStatus = http.StatusBadRequest
	case "FORBIDDEN", "WITHIN_POLICY_WINDOW", "VERIFICATION_FAILED":
		httpStatus = http.StatusForbidden
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return rejection(c, httpStatus, code, err.Error())
}
