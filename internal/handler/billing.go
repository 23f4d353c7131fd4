package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/billing"
	"github.com/iliyamo/booking-core/internal/middleware"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

// GroupReader resolves a booking group, used to scope jobs to a tenant.
type GroupReader interface {
	GetGroup(ctx context.Context, id string) (*model.BookingGroup, error)
}

// BillingHandler gives owners visibility into billing jobs and a manual
// retry for jobs that exhausted their attempts.
type BillingHandler struct {
	Queue  *billing.Queue
	Groups GroupReader
}

// NewBillingHandler constructs a BillingHandler and panics on nil
// dependencies.
func NewBillingHandler(q *billing.Queue, groups GroupReader) *BillingHandler {
	if q == nil || groups == nil {
		panic("nil dependency passed to NewBillingHandler")
	}
	return &BillingHandler{Queue: q, Groups: groups}
}

// List handles GET /v1/billing/jobs?status=&limit=.  Only jobs of the
// caller's tenant are returned.
func (h *BillingHandler) List(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	status := strings.ToUpper(c.QueryParam("status"))
	switch status {
	case "", model.JobQueued, model.JobProcessing, model.JobCompleted, model.JobFailed:
	default:
		return badRequest(c, "unknown status")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	jobs, err := h.Queue.List(c.Request().Context(), p.TenantID, status, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": jobs})
}

// Retry handles POST /v1/billing/jobs/:id/retry.  Only FAILED jobs can be
// retried; they run again from zero attempts.
func (h *BillingHandler) Retry(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid job id")
	}
	ctx := c.Request().Context()
	j, err := h.Queue.Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	g, err := h.Groups.GetGroup(ctx, j.GroupID)
	if err != nil {
		return writeError(c, err)
	}
	if g.TenantID != p.TenantID {
		return writeError(c, repository.ErrTenantMismatch)
	}
	j, err = h.Queue.Requeue(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, j)
}
