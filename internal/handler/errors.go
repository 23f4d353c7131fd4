package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/billing"
	"github.com/iliyamo/booking-core/internal/booking"
	"github.com/iliyamo/booking-core/internal/hold"
	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/slots"
)

// errorMapping pairs a sentinel with the status and code clients see.  The
// first match wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{repository.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{repository.ErrAllotmentExhausted, http.StatusConflict, "allotment_exhausted"},
	{repository.ErrSlotRetired, http.StatusConflict, "slot_retired"},
	{repository.ErrLockNotActive, http.StatusConflict, "hold_not_active"},
	{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{billing.ErrNotRetryable, http.StatusConflict, "not_retryable"},
	{repository.ErrConflict, http.StatusConflict, "conflict"},
	{booking.ErrIdempotencyConflict, http.StatusUnprocessableEntity, "idempotency_conflict"},
	{repository.ErrTenantMismatch, http.StatusForbidden, "tenant_mismatch"},
	{repository.ErrForbidden, http.StatusForbidden, "forbidden"},
	{repository.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
	{repository.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
	{repository.ErrGroupNotFound, http.StatusNotFound, "booking_group_not_found"},
	{repository.ErrLockNotFound, http.StatusNotFound, "hold_not_found"},
	{repository.ErrJobNotFound, http.StatusNotFound, "billing_job_not_found"},
	{repository.ErrAllotmentNotFound, http.StatusNotFound, "allotment_not_found"},
	{repository.ErrLockExpired, http.StatusGone, "hold_expired"},
	{booking.ErrItemCountMismatch, http.StatusBadRequest, "item_count_mismatch"},
	{booking.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{slots.ErrInvalidSlot, http.StatusBadRequest, "invalid_request"},
	{hold.ErrInvalidHold, http.StatusBadRequest, "invalid_request"},
	{repository.ErrTransient, http.StatusServiceUnavailable, "retry"},
}

// writeError translates a service error into the JSON error body.
// Unknown errors are logged and reported as 500 without their text.
func writeError(c echo.Context, err error) error {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": m.code, "message": err.Error()})
		}
	}
	logger.ErrorLogger.WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).WithError(err).Error("unhandled request error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": msg})
}
