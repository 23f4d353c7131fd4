package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/middleware"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/slots"
)

// SlotHandler exposes the slot store.  Listing and reading are public;
// scheduling and retiring require an owner of the tenant.
type SlotHandler struct {
	Ledger *slots.Ledger
}

// NewSlotHandler constructs a SlotHandler and panics if the ledger is nil.
func NewSlotHandler(ledger *slots.Ledger) *SlotHandler {
	if ledger == nil {
		panic("nil ledger passed to NewSlotHandler")
	}
	return &SlotHandler{Ledger: ledger}
}

// List handles GET /v1/tenants/:tenant_id/slots.  Optional query
// parameters: service_id, from and to (RFC3339).
func (h *SlotHandler) List(c echo.Context) error {
	tenantID, err := parseID(c.Param("tenant_id"))
	if err != nil {
		return badRequest(c, "invalid tenant id")
	}
	f := repository.SlotFilter{TenantID: tenantID}
	if v := c.QueryParam("service_id"); v != "" {
		if f.ServiceID, err = parseID(v); err != nil {
			return badRequest(c, "invalid service_id")
		}
	}
	if f.From, err = parseTime(c.QueryParam("from")); err != nil {
		return badRequest(c, "from must be RFC3339")
	}
	if f.To, err = parseTime(c.QueryParam("to")); err != nil {
		return badRequest(c, "to must be RFC3339")
	}
	items, err := h.Ledger.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/slots/:id.
func (h *SlotHandler) Get(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid slot id")
	}
	s, err := h.Ledger.Get(c.Request().Context(), 0, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

type createSlotRequest struct {
	ServiceID      uint64    `json:"service_id"`
	ProviderID     uint64    `json:"provider_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	TotalCapacity  int       `json:"total_capacity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// Create handles POST /v1/slots for the caller's tenant.
func (h *SlotHandler) Create(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	var body createSlotRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	s, err := h.Ledger.Create(c.Request().Context(), slots.CreateInput{
		TenantID:       p.TenantID,
		ServiceID:      body.ServiceID,
		ProviderID:     body.ProviderID,
		StartsAt:       body.StartsAt,
		EndsAt:         body.EndsAt,
		TotalCapacity:  body.TotalCapacity,
		UnitPriceCents: body.UnitPriceCents,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// Retire handles DELETE /v1/slots/:id.  The slot stops accepting holds and
// bookings; existing bookings are untouched.
func (h *SlotHandler) Retire(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid slot id")
	}
	if err := h.Ledger.Retire(c.Request().Context(), p.TenantID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing identity"})
}
