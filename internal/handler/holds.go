package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/hold"
	"github.com/iliyamo/booking-core/internal/middleware"
)

// HoldHandler exposes reservation locks.
type HoldHandler struct {
	Holds *hold.Manager
}

// NewHoldHandler constructs a HoldHandler and panics if the manager is nil.
func NewHoldHandler(m *hold.Manager) *HoldHandler {
	if m == nil {
		panic("nil hold manager passed to NewHoldHandler")
	}
	return &HoldHandler{Holds: m}
}

type acquireHoldRequest struct {
	Quantity   int    `json:"quantity"`
	TTLSeconds int    `json:"ttl_seconds"`
	Owner      string `json:"owner"`
}

// Acquire handles POST /v1/slots/:id/holds.  It returns 201 with the hold
// token and expiry.  When no owner is given the caller's user id is used.
func (h *HoldHandler) Acquire(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	slotID, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid slot id")
	}
	var body acquireHoldRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Owner == "" {
		body.Owner = "user:" + strconv.FormatUint(p.UserID, 10)
	}
	l, err := h.Holds.Acquire(c.Request().Context(), hold.AcquireInput{
		TenantID: p.TenantID,
		SlotID:   slotID,
		Quantity: body.Quantity,
		Owner:    body.Owner,
		TTL:      time.Duration(body.TTLSeconds) * time.Second,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"hold_token": l.HoldToken,
		"slot_id":    l.SlotID,
		"quantity":   l.Quantity,
		"expires_at": l.ExpiresAt.Format(time.RFC3339),
	})
}

// Release handles DELETE /v1/holds/:token.
func (h *HoldHandler) Release(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	token := c.Param("token")
	if token == "" {
		return badRequest(c, "hold token is required")
	}
	if err := h.Holds.Release(c.Request().Context(), p.TenantID, token); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
