package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-core/internal/middleware"
	"github.com/iliyamo/booking-core/internal/utils"
)

// TokenHandler mints access tokens for local development.  Identity is
// owned by an upstream service in production, so the route is only
// registered outside prod.
type TokenHandler struct {
	Secret string
	TTLMin int
}

// Issue handles POST /v1/dev/token with {"user_id", "tenant_id", "role"}.
func (h *TokenHandler) Issue(c echo.Context) error {
	var body struct {
		UserID   uint64 `json:"user_id"`
		TenantID uint64 `json:"tenant_id"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	role := strings.ToUpper(strings.TrimSpace(body.Role))
	switch role {
	case middleware.RoleCustomer, middleware.RoleReception, middleware.RoleOwner, middleware.RoleSystem:
	default:
		return badRequest(c, "unknown role")
	}
	if body.UserID == 0 || body.TenantID == 0 {
		return badRequest(c, "user_id and tenant_id are required")
	}
	tok, err := utils.NewAccessToken(h.Secret, body.UserID, body.TenantID, role, h.TTLMin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"token_type":   "Bearer",
		"expires_at":   tok.Exp.Format(time.RFC3339),
	})
}
