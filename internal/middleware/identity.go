package middleware

// identity.go turns the raw claims stored by JWTAuth into a typed caller.
// JSON numbers decode as float64 inside jwt.MapClaims, while tokens minted
// by other systems sometimes carry ids as strings; both are accepted.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID   uint64
	TenantID uint64
	Role     string
}

// CurrentPrincipal returns the caller stored in c.  ok is false for
// unauthenticated requests.
func CurrentPrincipal(c echo.Context) (Principal, bool) {
	p := Principal{
		UserID:   asUint64(c.Get("user_id")),
		TenantID: asUint64(c.Get("tenant_id")),
	}
	p.Role, _ = c.Get("role").(string)
	if p.TenantID == 0 || p.Role == "" {
		return Principal{}, false
	}
	return p, true
}

func asUint64(v interface{}) uint64 {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return uint64(t)
		}
	case int64:
		if t > 0 {
			return uint64(t)
		}
	case int:
		if t > 0 {
			return uint64(t)
		}
	case uint64:
		return t
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// userKey is the identity used for rate limiting.
func userKey(c echo.Context) string {
	if p, ok := CurrentPrincipal(c); ok {
		return strconv.FormatUint(p.TenantID, 10) + ":" + strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
