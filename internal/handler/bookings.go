package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/booking"
	"github.com/iliyamo/booking-core/internal/middleware"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

// BookingHandler exposes the bulk booking transactor and the booking
// lifecycle.
type BookingHandler struct {
	Bookings *booking.Service
}

// NewBookingHandler constructs a BookingHandler and panics if the service is
// nil.
func NewBookingHandler(svc *booking.Service) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: svc}
}

type createBookingRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	CustomerID     *uint64         `json:"customer_id"`
	Contact        booking.Contact `json:"contact"`
	Items          []booking.Item  `json:"items"`
	TotalVisitors  int             `json:"total_visitors"`
}

// Create handles POST /v1/bookings.  The idempotency key comes from the
// Idempotency-Key header or the body.  A new group answers 201; a replay
// of a committed key answers 200 with replayed set.
//
// Customers always book for themselves.  Reception and system callers may
// name a customer or book for a guest contact.
func (h *BookingHandler) Create(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key == "" {
		key = body.IdempotencyKey
	}
	customerID := body.CustomerID
	if p.Role == middleware.RoleCustomer {
		id := p.UserID
		customerID = &id
	}
	res, err := h.Bookings.Create(c.Request().Context(), booking.Request{
		TenantID:       p.TenantID,
		IdempotencyKey: key,
		CustomerID:     customerID,
		Contact:        body.Contact,
		Items:          body.Items,
		TotalVisitors:  body.TotalVisitors,
	})
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

// GetGroup handles GET /v1/booking-groups/:id.
func (h *BookingHandler) GetGroup(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	res, err := h.Bookings.GetGroup(c.Request().Context(), p.TenantID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if p.Role == middleware.RoleCustomer {
		for _, b := range res.Bookings {
			if !bookedBy(&b, p.UserID) {
				return writeError(c, repository.ErrForbidden)
			}
		}
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /v1/bookings/:id/cancel.  Customers may only cancel
// their own bookings.
func (h *BookingHandler) Cancel(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	ctx := c.Request().Context()
	if p.Role == middleware.RoleCustomer {
		b, err := h.Bookings.GetBooking(ctx, p.TenantID, id)
		if err != nil {
			return writeError(c, err)
		}
		if !bookedBy(b, p.UserID) {
			return writeError(c, repository.ErrForbidden)
		}
	}
	b, err := h.Bookings.Cancel(ctx, p.TenantID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// UpdateStatus handles PATCH /v1/bookings/:id/status with {"status": ...}.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	to := strings.ToUpper(strings.TrimSpace(body.Status))
	if to == "" {
		return badRequest(c, "status is required")
	}
	b, err := h.Bookings.UpdateStatus(c.Request().Context(), p.TenantID, id, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Delete handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	if err := h.Bookings.Delete(c.Request().Context(), p.TenantID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bookedBy(b *model.Booking, userID uint64) bool {
	return b.CustomerID != nil && *b.CustomerID == userID
}
