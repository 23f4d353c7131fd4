package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-core/internal/model"
)

func TestMapErrTagsRetryableErrors(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: mysqlDeadlock, Message: "Deadlock found"}
	wait := fmt.Errorf("update slot: %w", &mysql.MySQLError{Number: mysqlLockWaitTimeout})
	dup := &mysql.MySQLError{Number: mysqlDuplicateEntry}

	assert.True(t, isRetryable(mapErr(deadlock)))
	assert.True(t, isRetryable(mapErr(wait)))
	assert.False(t, isRetryable(mapErr(dup)))
	assert.False(t, isRetryable(mapErr(ErrCapacityExceeded)))
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", dup)))

	// The driver error stays reachable through the tag.
	var me *mysql.MySQLError
	require.True(t, errors.As(mapErr(deadlock), &me))
	assert.Equal(t, uint16(mysqlDeadlock), me.Number)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestAllotmentDelta(t *testing.T) {
	a := &model.Allotment{TotalQuantity: 5, RemainingQuantity: 3}

	d, err := AllotmentDelta(a, -3)
	require.NoError(t, err)
	assert.Equal(t, -3, d)

	_, err = AllotmentDelta(a, -4)
	assert.ErrorIs(t, err, ErrAllotmentExhausted)

	d, err = AllotmentDelta(a, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, d, "restoration is capped at the total")

	full := &model.Allotment{TotalQuantity: 5, RemainingQuantity: 5}
	d, err = AllotmentDelta(full, 1)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestNewHoldToken(t *testing.T) {
	a, err := NewHoldToken()
	require.NoError(t, err)
	b, err := NewHoldToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
