package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

func newSlot(t *testing.T, s *Store, capacity int) *model.Slot {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sl := &model.Slot{TenantID: 1, ServiceID: 2, StartsAt: start, EndsAt: start.Add(time.Hour), TotalCapacity: capacity, UnitPriceCents: 1500}
	require.NoError(t, s.CreateSlot(context.Background(), sl))
	return sl
}

func TestWithTxRollsBackEveryWrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	sl := newSlot(t, s, 5)
	require.NoError(t, s.UpsertAllotment(ctx, &model.Allotment{CustomerID: 9, ServiceID: 2, TotalQuantity: 3, RemainingQuantity: 3}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.AdjustAvailable(ctx, sl.ID, -4))
		applied, err := s.AdjustAllotment(ctx, model.AllotmentKey{CustomerID: 9, ServiceID: 2}, -2)
		require.NoError(t, err)
		require.Equal(t, -2, applied)
		require.NoError(t, s.CreateGroup(ctx, &model.BookingGroup{ID: "g1", TenantID: 1, IdempotencyKey: "k"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetSlot(ctx, sl.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AvailableCapacity)
	a, err := s.GetAllotment(ctx, model.AllotmentKey{CustomerID: 9, ServiceID: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, a.RemainingQuantity)
	g, err := s.FindGroupByKey(ctx, 1, "k")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestLockedWritesRequireTx(t *testing.T) {
	s := New()
	sl := newSlot(t, s, 1)
	ctx := context.Background()
	assert.ErrorIs(t, s.AdjustAvailable(ctx, sl.ID, -1), repository.ErrNoTx)
	_, err := s.LockSlots(ctx, []uint64{sl.ID})
	assert.ErrorIs(t, err, repository.ErrNoTx)
}

func TestAdjustAvailableBounds(t *testing.T) {
	s := New()
	sl := newSlot(t, s, 2)
	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		assert.ErrorIs(t, s.AdjustAvailable(ctx, sl.ID, -3), repository.ErrCapacityExceeded)
		assert.ErrorIs(t, s.AdjustAvailable(ctx, sl.ID, 1), repository.ErrCapacityOverflow)
		return nil
	})
	require.NoError(t, err)
}

func TestAdjustAllotmentCapsAtTotal(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := model.AllotmentKey{CustomerID: 9, ServiceID: 2}
	require.NoError(t, s.UpsertAllotment(ctx, &model.Allotment{CustomerID: 9, ServiceID: 2, TotalQuantity: 4, RemainingQuantity: 3}))
	err := s.WithTx(ctx, func(ctx context.Context) error {
		applied, err := s.AdjustAllotment(ctx, key, 5)
		assert.Equal(t, 1, applied)
		return err
	})
	require.NoError(t, err)
	a, _ := s.GetAllotment(ctx, key)
	assert.Equal(t, 4, a.RemainingQuantity)
}

func TestSlotLockSerialisesTransactions(t *testing.T) {
	s := New()
	sl := newSlot(t, s, 10)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(context.Background(), func(ctx context.Context) error {
				locked, err := s.LockSlots(ctx, []uint64{sl.ID})
				if err != nil {
					return err
				}
				if locked[sl.ID].AvailableCapacity < 1 {
					return repository.ErrCapacityExceeded
				}
				return s.AdjustAvailable(ctx, sl.ID, -1)
			})
		}()
	}
	wg.Wait()
	got, _ := s.GetSlot(context.Background(), sl.ID)
	assert.Equal(t, 0, got.AvailableCapacity)
}

func TestCreateGroupRejectsDuplicateKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		return s.CreateGroup(ctx, &model.BookingGroup{ID: "g1", TenantID: 1, IdempotencyKey: "k"})
	}))
	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.CreateGroup(ctx, &model.BookingGroup{ID: "g2", TenantID: 1, IdempotencyKey: "k"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateGroup)

	// Keys are scoped per tenant.
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		return s.CreateGroup(ctx, &model.BookingGroup{ID: "g3", TenantID: 2, IdempotencyKey: "k"})
	}))
	g, err := s.FindGroupByKey(ctx, 1, "k")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
}
