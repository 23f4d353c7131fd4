package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/handler"
	"github.com/iliyamo/booking-core/internal/middleware"
)

// Handlers bundles everything the route table needs.  Token is optional
// and only set outside production.
type Handlers struct {
	Health     echo.HandlerFunc
	Slots      *handler.SlotHandler
	Holds      *handler.HoldHandler
	Bookings   *handler.BookingHandler
	Allotments *handler.AllotmentHandler
	Billing    *handler.BillingHandler
	Token      *handler.TokenHandler
}

// Options carries the middleware shared by several groups.
type Options struct {
	JWTSecret string
	Cache     echo.MiddlewareFunc // public slot listing cache
	RateLimit echo.MiddlewareFunc // hold and booking routes
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// Register mounts every route on e.
func Register(e *echo.Echo, h Handlers, o Options) {
	if o.Cache == nil {
		o.Cache = passthrough
	}
	if o.RateLimit == nil {
		o.RateLimit = passthrough
	}

	// Public reads.
	e.GET("/healthz", h.Health)
	e.GET("/v1/tenants/:tenant_id/slots", h.Slots.List, o.Cache)
	e.GET("/v1/slots/:id", h.Slots.Get)
	if h.Token != nil {
		e.POST("/v1/dev/token", h.Token.Issue)
	}

	auth := e.Group("/v1", middleware.JWTAuth(o.JWTSecret))

	booker := middleware.RequireRole(middleware.RoleCustomer, middleware.RoleReception, middleware.RoleSystem)
	owner := middleware.RequireRole(middleware.RoleOwner)

	// Slot administration.
	auth.POST("/slots", h.Slots.Create, owner)
	auth.DELETE("/slots/:id", h.Slots.Retire, owner)

	// Holds and bookings are rate limited per tenant user.
	auth.POST("/slots/:id/holds", h.Holds.Acquire, booker, o.RateLimit)
	auth.DELETE("/holds/:token", h.Holds.Release, booker)
	auth.POST("/bookings", h.Bookings.Create, booker, o.RateLimit)

	auth.GET("/booking-groups/:id", h.Bookings.GetGroup)
	auth.POST("/bookings/:id/cancel", h.Bookings.Cancel,
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleReception, middleware.RoleOwner))
	auth.PATCH("/bookings/:id/status", h.Bookings.UpdateStatus,
		middleware.RequireRole(middleware.RoleReception, middleware.RoleOwner))
	auth.DELETE("/bookings/:id", h.Bookings.Delete, owner)

	auth.PUT("/allotments", h.Allotments.Put, middleware.RequireRole(middleware.RoleOwner, middleware.RoleSystem))

	auth.GET("/billing/jobs", h.Billing.List, owner)
	auth.POST("/billing/jobs/:id/retry", h.Billing.Retry, owner)
}
