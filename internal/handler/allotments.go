package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

// AllotmentHandler lets the subscription system (or an owner) set a
// customer's pre-paid balance for a service.
type AllotmentHandler struct {
	Store repository.AllotmentStore
}

// NewAllotmentHandler constructs an AllotmentHandler and panics if the
// store is nil.
func NewAllotmentHandler(store repository.AllotmentStore) *AllotmentHandler {
	if store == nil {
		panic("nil allotment store passed to NewAllotmentHandler")
	}
	return &AllotmentHandler{Store: store}
}

// Put handles PUT /v1/allotments.  The body is a full allotment; the row
// for (customer_id, service_id) is created or replaced.
func (h *AllotmentHandler) Put(c echo.Context) error {
	var a model.Allotment
	if err := c.Bind(&a); err != nil {
		return badRequest(c, "invalid request body")
	}
	switch {
	case a.CustomerID == 0 || a.ServiceID == 0:
		return badRequest(c, "customer_id and service_id are required")
	case a.TotalQuantity < 0 || a.RemainingQuantity < 0:
		return badRequest(c, "quantities must not be negative")
	case a.RemainingQuantity > a.TotalQuantity:
		return badRequest(c, "remaining_quantity cannot exceed total_quantity")
	}
	ctx := c.Request().Context()
	if err := h.Store.UpsertAllotment(ctx, &a); err != nil {
		return writeError(c, err)
	}
	got, err := h.Store.GetAllotment(ctx, a.Key())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, got)
}
