package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-core/internal/config"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthSetsPrincipal(t *testing.T) {
	e := echo.New()
	var got Principal
	e.GET("/me", func(c echo.Context) error {
		got, _ = CurrentPrincipal(c)
		return c.NoContent(http.StatusOK)
	}, JWTAuth("k"), RequireRole(RoleReception))

	exp := time.Now().Add(time.Minute).Unix()
	rec := serve(e, http.MethodGet, "/me", signed(t, "k", jwt.MapClaims{"sub": 5, "tenant_id": 7, "role": "RECEPTION", "exp": exp}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Principal{UserID: 5, TenantID: 7, Role: RoleReception}, got)

	rec = serve(e, http.MethodGet, "/me", signed(t, "k", jwt.MapClaims{"sub": 5, "tenant_id": "7", "role": "CUSTOMER", "exp": exp}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJWTAuthRejections(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth("k"))
	exp := time.Now().Add(time.Minute).Unix()

	cases := map[string]string{
		"missing":    "",
		"bad secret": signed(t, "other", jwt.MapClaims{"sub": 1, "tenant_id": 7, "role": "OWNER", "exp": exp}),
		"no tenant":  signed(t, "k", jwt.MapClaims{"sub": 1, "role": "OWNER", "exp": exp}),
		"expired":    signed(t, "k", jwt.MapClaims{"sub": 1, "tenant_id": 7, "role": "OWNER", "exp": time.Now().Add(-time.Minute).Unix()}),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", tok).Code)
		})
	}
}

func TestResponseCacheHitsAndInvalidates(t *testing.T) {
	rdb := newRedis(t)
	rc := NewResponseCache(config.CacheConfig{
		Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 10,
	}, rdb)

	calls := 0
	e := echo.New()
	e.GET("/v1/tenants/:tenant_id/slots", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, rc.Middleware())

	first := serve(e, http.MethodGet, "/v1/tenants/7/slots", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(e, http.MethodGet, "/v1/tenants/7/slots", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// A different query is a different entry.
	serve(e, http.MethodGet, "/v1/tenants/7/slots?service_id=2", "")
	assert.Equal(t, 2, calls)

	rc.InvalidateTenant(context.Background(), 7)
	third := serve(e, http.MethodGet, "/v1/tenants/7/slots", "")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestResponseCacheDisabledWithoutRedis(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil)
	calls := 0
	e := echo.New()
	e.GET("/v1/tenants/:tenant_id/slots", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusOK)
	}, rc.Middleware())
	serve(e, http.MethodGet, "/v1/tenants/7/slots", "")
	serve(e, http.MethodGet, "/v1/tenants/7/slots", "")
	assert.Equal(t, 2, calls)
	rc.InvalidateTenant(context.Background(), 7)
}

func TestTokenBucketLimitsPerUser(t *testing.T) {
	rdb := newRedis(t)
	limit := NewTokenBucket(config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "tenant_user", Prefix: "rl",
	}, rdb)

	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth("k"), limit)
	exp := time.Now().Add(time.Minute).Unix()
	ada := signed(t, "k", jwt.MapClaims{"sub": 1, "tenant_id": 7, "role": "CUSTOMER", "exp": exp})
	bo := signed(t, "k", jwt.MapClaims{"sub": 2, "tenant_id": 7, "role": "CUSTOMER", "exp": exp})

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/v1/bookings", ada).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/v1/bookings", ada).Code)
	rec := serve(e, http.MethodPost, "/v1/bookings", ada)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/v1/bookings", bo).Code)
}

func TestTokenBucketPassesWhenDisabled(t *testing.T) {
	limit := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limit)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
	}
}
