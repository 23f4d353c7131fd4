package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenCarriesTenantClaims(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, 7, "RECEPTION", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil },
		jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, float64(7), claims["tenant_id"])
	assert.Equal(t, "RECEPTION", claims["role"])
}

func TestNewAccessTokenRejectedWithWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("a", 1, 1, "OWNER", 5)
	require.NoError(t, err)
	_, err = jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("b"), nil })
	assert.Error(t, err)
}
