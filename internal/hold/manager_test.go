package hold

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/repository/memstore"
	"github.com/iliyamo/booking-core/internal/slots"
)

type fixture struct {
	store  *memstore.Store
	ledger *slots.Ledger
	mgr    *Manager
	clock  time.Time
	slotID uint64
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	logger.Discard()
	f := &fixture{store: memstore.New(), clock: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	f.ledger = slots.NewLedger(f.store, nil)
	f.mgr = NewManager(f.store, f.ledger, Config{DefaultTTL: 5 * time.Minute, MaxTTL: 30 * time.Minute, SweepBatch: 2}, nil)
	f.mgr.SetClock(func() time.Time { return f.clock })
	s, err := f.ledger.Create(context.Background(), slots.CreateInput{
		TenantID: 1, ServiceID: 3, StartsAt: f.clock.Add(24 * time.Hour), EndsAt: f.clock.Add(25 * time.Hour),
		TotalCapacity: capacity, UnitPriceCents: 1000,
	})
	require.NoError(t, err)
	f.slotID = s.ID
	return f
}

func (f *fixture) available(t *testing.T) int {
	t.Helper()
	n, err := f.ledger.GetAvailable(context.Background(), f.slotID)
	require.NoError(t, err)
	return n
}

func TestAcquireDecrementsAvailability(t *testing.T) {
	f := newFixture(t, 10)
	l, err := f.mgr.Acquire(context.Background(), AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 4, Owner: "sess-1"})
	require.NoError(t, err)
	assert.Len(t, l.HoldToken, 64)
	assert.Equal(t, model.LockActive, l.Status)
	assert.Equal(t, f.clock.Add(5*time.Minute), l.ExpiresAt)
	assert.Equal(t, 6, f.available(t))
}

func TestAcquireCapsTTL(t *testing.T) {
	f := newFixture(t, 10)
	l, err := f.mgr.Acquire(context.Background(), AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 1, Owner: "s", TTL: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(30*time.Minute), l.ExpiresAt)
}

func TestAcquireRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	_, err := f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 0, Owner: "s"})
	assert.ErrorIs(t, err, ErrInvalidHold)

	_, err = f.mgr.Acquire(ctx, AcquireInput{TenantID: 2, SlotID: f.slotID, Quantity: 1, Owner: "s"})
	assert.ErrorIs(t, err, repository.ErrTenantMismatch)

	_, err = f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 4, Owner: "s"})
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	_, err = f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: 9999, Quantity: 1, Owner: "s"})
	assert.ErrorIs(t, err, repository.ErrSlotNotFound)

	require.NoError(t, f.ledger.Retire(ctx, 1, f.slotID))
	_, err = f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 1, Owner: "s"})
	assert.ErrorIs(t, err, repository.ErrSlotRetired)

	assert.Equal(t, 3, f.available(t))
}

func TestReleaseRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	l, err := f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 2, Owner: "s"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.mgr.Release(ctx, 2, l.HoldToken), repository.ErrTenantMismatch)
	require.NoError(t, f.mgr.Release(ctx, 1, l.HoldToken))
	assert.Equal(t, 5, f.available(t))

	assert.ErrorIs(t, f.mgr.Release(ctx, 1, l.HoldToken), repository.ErrLockNotActive)
	assert.Equal(t, 5, f.available(t))

	assert.ErrorIs(t, f.mgr.Release(ctx, 1, "nope"), repository.ErrLockNotFound)
}

func TestSweepReclaimsExpiredHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	for i := 0; i < 3; i++ {
		_, err := f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 1, Owner: "s", TTL: time.Minute})
		require.NoError(t, err)
	}
	keep, err := f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 2, Owner: "s", TTL: 10 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 5, f.available(t))

	n, err := f.mgr.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock = f.clock.Add(2 * time.Minute)
	n, err = f.mgr.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 8, f.available(t))

	n, err = f.mgr.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.store.GetLockByToken(ctx, keep.HoldToken)
	require.NoError(t, err)
	assert.Equal(t, model.LockActive, got.Status)
}

func TestConcurrentSweepAndReleaseReturnCapacityOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 6)
	var tokens []string
	for i := 0; i < 6; i++ {
		l, err := f.mgr.Acquire(ctx, AcquireInput{TenantID: 1, SlotID: f.slotID, Quantity: 1, Owner: "s", TTL: time.Minute})
		require.NoError(t, err)
		tokens = append(tokens, l.HoldToken)
	}
	f.clock = f.clock.Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.mgr.SweepExpired(ctx)
		}()
	}
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_ = f.mgr.Release(ctx, 1, tok)
		}(tok)
	}
	wg.Wait()
	assert.Equal(t, 6, f.available(t))
}

func TestRedisLeaseIsExclusiveUntilExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	a := NewRedisLease(rdb, "test", "a")
	b := NewRedisLease(rdb, "test", "b")

	ok, err := a.TryAcquire(ctx, "hold-sweeper", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx, "hold-sweeper", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Second)
	ok, err = b.TryAcquire(ctx, "hold-sweeper", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
