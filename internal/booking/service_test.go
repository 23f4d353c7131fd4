package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-core/internal/billing"
	"github.com/iliyamo/booking-core/internal/hold"
	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/queue"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/repository/memstore"
	"github.com/iliyamo/booking-core/internal/slots"
)

const tenant = uint64(7)

type recordingEvents struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
}

func (r *recordingEvents) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// gatedEvents blocks every publish until release is closed.
type gatedEvents struct {
	recordingEvents
	release chan struct{}
}

func (g *gatedEvents) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	<-g.release
	return g.recordingEvents.PublishBookingConfirmed(ctx, ev)
}

type env struct {
	store  *memstore.Store
	ledger *slots.Ledger
	svc    *Service
	holds  *hold.Manager
	events *recordingEvents
	clock  time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger.Discard()
	e := &env{store: memstore.New(), events: &recordingEvents{}, clock: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	e.ledger = slots.NewLedger(e.store, nil)
	e.svc = NewService(e.store, e.ledger, billing.NewQueue(e.store), e.events, Config{MaxItems: 10})
	e.svc.SetClock(func() time.Time { return e.clock })
	e.holds = hold.NewManager(e.store, e.ledger, hold.Config{DefaultTTL: 5 * time.Minute}, nil)
	e.holds.SetClock(func() time.Time { return e.clock })
	return e
}

func (e *env) slot(t *testing.T, tenantID, serviceID uint64, capacity int, price int64) uint64 {
	t.Helper()
	s, err := e.ledger.Create(context.Background(), slots.CreateInput{
		TenantID: tenantID, ServiceID: serviceID,
		StartsAt: e.clock.Add(48 * time.Hour), EndsAt: e.clock.Add(49 * time.Hour),
		TotalCapacity: capacity, UnitPriceCents: price,
	})
	require.NoError(t, err)
	return s.ID
}

func (e *env) allot(t *testing.T, customer, service uint64, total, remaining int) {
	t.Helper()
	require.NoError(t, e.store.UpsertAllotment(context.Background(), &model.Allotment{
		CustomerID: customer, ServiceID: service, SubscriptionID: 1,
		TotalQuantity: total, RemainingQuantity: remaining,
	}))
}

func (e *env) available(t *testing.T, slotID uint64) int {
	t.Helper()
	n, err := e.ledger.GetAvailable(context.Background(), slotID)
	require.NoError(t, err)
	return n
}

func (e *env) remaining(t *testing.T, customer, service uint64) int {
	t.Helper()
	a, err := e.store.GetAllotment(context.Background(), model.AllotmentKey{CustomerID: customer, ServiceID: service})
	require.NoError(t, err)
	return a.RemainingQuantity
}

func (e *env) jobs(t *testing.T) []model.BillingJob {
	t.Helper()
	jobs, err := e.store.ListJobs(context.Background(), 0, "", 0)
	require.NoError(t, err)
	return jobs
}

func customer(id uint64) *uint64 { return &id }

func request(key string, items ...Item) Request {
	return Request{
		TenantID:       tenant,
		IdempotencyKey: key,
		CustomerID:     customer(100),
		Contact:        Contact{Name: "Ada", Email: "ada@example.com"},
		Items:          items,
	}
}

func TestCreateSplitsCoverageAndEnqueuesOneJob(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	slotID := e.slot(t, tenant, 1, 12, 2000)
	e.allot(t, 100, 1, 10, 9)

	res, err := e.svc.Create(ctx, request("k1", Item{SlotID: slotID, VisitorCount: 10}))
	require.NoError(t, err)
	require.Len(t, res.Bookings, 1)
	b := res.Bookings[0]
	assert.Equal(t, 9, b.PackageCoveredQuantity)
	assert.Equal(t, 1, b.PaidQuantity)
	assert.Equal(t, int64(2000), b.TotalPriceCents)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.InvoicePending, b.InvoiceStatus)
	assert.Equal(t, res.GroupID, b.GroupID)

	assert.Equal(t, 2, e.available(t, slotID))
	assert.Equal(t, 0, e.remaining(t, 100, 1))

	jobs := e.jobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, res.GroupID, jobs[0].GroupID)
	assert.Equal(t, model.JobQueued, jobs[0].Status)
	assert.Equal(t, res.BillingJobID, jobs[0].ID)

	e.svc.Wait()
	require.Len(t, e.events.events, 1)
	assert.Equal(t, int64(2000), e.events.events[0].TotalAmountCents)
}

func TestFullyCoveredBookingIsNotBillable(t *testing.T) {
	e := newEnv(t)
	slotID := e.slot(t, tenant, 1, 20, 2000)
	e.allot(t, 100, 1, 15, 15)

	res, err := e.svc.Create(context.Background(), request("k1", Item{SlotID: slotID, VisitorCount: 10}))
	require.NoError(t, err)
	b := res.Bookings[0]
	assert.Equal(t, 10, b.PackageCoveredQuantity)
	assert.Zero(t, b.PaidQuantity)
	assert.Zero(t, b.TotalPriceCents)
	assert.Equal(t, model.InvoiceNotNeeded, b.InvoiceStatus)
	assert.Equal(t, 5, e.remaining(t, 100, 1))
}

func TestGuestBookingPaysEverything(t *testing.T) {
	e := newEnv(t)
	slotID := e.slot(t, tenant, 1, 20, 500)
	req := request("guest", Item{SlotID: slotID, VisitorCount: 4})
	req.CustomerID = nil

	res, err := e.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Bookings[0].PaidQuantity)
	assert.Equal(t, int64(2000), res.Bookings[0].TotalPriceCents)
}

func TestItemsForOneServiceShareTheBalance(t *testing.T) {
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	b := e.slot(t, tenant, 1, 10, 100)
	e.allot(t, 100, 1, 5, 5)

	res, err := e.svc.Create(context.Background(), request("k", Item{SlotID: a, VisitorCount: 3}, Item{SlotID: b, VisitorCount: 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Bookings[0].PackageCoveredQuantity)
	assert.Equal(t, 2, res.Bookings[1].PackageCoveredQuantity)
	assert.Equal(t, 1, res.Bookings[1].PaidQuantity)
	assert.Equal(t, 0, e.remaining(t, 100, 1))
}

func TestCreateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	b := e.slot(t, tenant, 2, 2, 100)
	e.allot(t, 100, 1, 5, 5)

	_, err := e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 4}, Item{SlotID: b, VisitorCount: 3}))
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	_, err = e.svc.Create(ctx, request("k2", Item{SlotID: a, VisitorCount: 4}, Item{SlotID: 9999, VisitorCount: 1}))
	assert.ErrorIs(t, err, repository.ErrSlotNotFound)

	assert.Equal(t, 10, e.available(t, a))
	assert.Equal(t, 2, e.available(t, b))
	assert.Equal(t, 5, e.remaining(t, 100, 1))
	assert.Empty(t, e.jobs(t))
	g, err := e.store.FindGroupByKey(ctx, tenant, "k")
	require.NoError(t, err)
	assert.Nil(t, g)
	e.svc.Wait()
	assert.Empty(t, e.events.events)
}

func TestSumPerSlotIsChecked(t *testing.T) {
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 5, 100)
	_, err := e.svc.Create(context.Background(), request("k", Item{SlotID: a, VisitorCount: 3}, Item{SlotID: a, VisitorCount: 3}))
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
	assert.Equal(t, 5, e.available(t, a))
}

func TestReplayReturnsPriorGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	req := request("same", Item{SlotID: a, VisitorCount: 2})

	first, err := e.svc.Create(ctx, req)
	require.NoError(t, err)
	second, err := e.svc.Create(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.GroupID, second.GroupID)
	assert.Equal(t, first.Bookings[0].ID, second.Bookings[0].ID)
	assert.Equal(t, 8, e.available(t, a))
	assert.Len(t, e.jobs(t), 1)
}

func TestReplayWithDifferentItemsConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)

	_, err := e.svc.Create(ctx, request("same", Item{SlotID: a, VisitorCount: 2}))
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, request("same", Item{SlotID: a, VisitorCount: 3}))
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
	assert.Equal(t, 8, e.available(t, a))
}

func TestConcurrentSameKeyCreatesOneGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 50, 100)
	req := request("race", Item{SlotID: a, VisitorCount: 2})

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.svc.Create(ctx, req)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].GroupID, results[i].GroupID)
	}
	assert.Equal(t, 48, e.available(t, a))
	assert.Len(t, e.jobs(t), 1)
}

func TestConcurrentRequestsNeverOversell(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	b := e.slot(t, tenant, 1, 10, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate item order so lock ordering is exercised.
			items := []Item{{SlotID: a, VisitorCount: 1}, {SlotID: b, VisitorCount: 1}}
			if i%2 == 1 {
				items[0], items[1] = items[1], items[0]
			}
			req := request(fmt.Sprintf("k-%d", i), items...)
			req.CustomerID = nil
			if _, err := e.svc.Create(ctx, req); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, committed)
	assert.Equal(t, 0, e.available(t, a))
	assert.Equal(t, 0, e.available(t, b))
}

func TestTenantMismatchRejectsWholeRequest(t *testing.T) {
	e := newEnv(t)
	mine := e.slot(t, tenant, 1, 10, 100)
	theirs := e.slot(t, tenant+1, 1, 10, 100)

	_, err := e.svc.Create(context.Background(), request("k", Item{SlotID: mine, VisitorCount: 1}, Item{SlotID: theirs, VisitorCount: 1}))
	assert.ErrorIs(t, err, repository.ErrTenantMismatch)
	assert.Equal(t, 10, e.available(t, mine))
}

func TestValidation(t *testing.T) {
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, request("k"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = e.svc.Create(ctx, request("", Item{SlotID: a, VisitorCount: 1}))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 0}))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	many := make([]Item, 11)
	for i := range many {
		many[i] = Item{SlotID: a, VisitorCount: 1}
	}
	_, err = e.svc.Create(ctx, request("k", many...))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req := request("k", Item{SlotID: a, VisitorCount: 2})
	req.TotalVisitors = 3
	_, err = e.svc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrItemCountMismatch)
}

func TestHeldItemConsumesItsHold(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	b := e.slot(t, tenant, 1, 10, 100)
	l, err := e.holds.Acquire(ctx, hold.AcquireInput{TenantID: tenant, SlotID: a, Quantity: 3, Owner: "s"})
	require.NoError(t, err)
	assert.Equal(t, 7, e.available(t, a))

	_, err = e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 3, HoldToken: l.HoldToken}, Item{SlotID: b, VisitorCount: 2}))
	require.NoError(t, err)
	assert.Equal(t, 7, e.available(t, a))
	assert.Equal(t, 8, e.available(t, b))

	got, err := e.store.GetLockByToken(ctx, l.HoldToken)
	require.NoError(t, err)
	assert.Equal(t, model.LockConsumed, got.Status)

	// A consumed hold can neither be released nor swept.
	assert.ErrorIs(t, e.holds.Release(ctx, tenant, l.HoldToken), repository.ErrLockNotActive)
	e.clock = e.clock.Add(time.Hour)
	n, err := e.holds.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 7, e.available(t, a))
}

func TestHoldChecks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	b := e.slot(t, tenant, 1, 10, 100)
	l, err := e.holds.Acquire(ctx, hold.AcquireInput{TenantID: tenant, SlotID: a, Quantity: 3, Owner: "s"})
	require.NoError(t, err)

	_, err = e.svc.Create(ctx, request("k1", Item{SlotID: a, VisitorCount: 2, HoldToken: l.HoldToken}))
	assert.ErrorIs(t, err, ErrItemCountMismatch)

	_, err = e.svc.Create(ctx, request("k2", Item{SlotID: b, VisitorCount: 3, HoldToken: l.HoldToken}))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	e.clock = e.clock.Add(10 * time.Minute)
	_, err = e.svc.Create(ctx, request("k3", Item{SlotID: a, VisitorCount: 3, HoldToken: l.HoldToken}))
	assert.ErrorIs(t, err, repository.ErrLockExpired)

	got, err := e.store.GetLockByToken(ctx, l.HoldToken)
	require.NoError(t, err)
	assert.Equal(t, model.LockActive, got.Status)
	assert.Equal(t, 7, e.available(t, a))
}

func TestCancelRestoresOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	e.allot(t, 100, 1, 5, 5)

	res, err := e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 7}))
	require.NoError(t, err)
	id := res.Bookings[0].ID
	assert.Equal(t, 3, e.available(t, a))
	assert.Equal(t, 0, e.remaining(t, 100, 1))

	b, err := e.svc.Cancel(ctx, tenant, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, model.InvoiceNotNeeded, b.InvoiceStatus)
	assert.Equal(t, 10, e.available(t, a))
	assert.Equal(t, 5, e.remaining(t, 100, 1))

	_, err = e.svc.Cancel(ctx, tenant, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 10, e.available(t, a))
	assert.Equal(t, 5, e.remaining(t, 100, 1))
}

func TestRestorationNeverExceedsTotal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	e.allot(t, 100, 1, 5, 5)

	res, err := e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 4}))
	require.NoError(t, err)
	// The subscription is renewed in the meantime.
	e.allot(t, 100, 1, 5, 4)

	_, err = e.svc.Cancel(ctx, tenant, res.Bookings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, e.remaining(t, 100, 1))

	got, err := e.store.GetBooking(ctx, res.Bookings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.AllotmentRestored)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	res, err := e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 2}))
	require.NoError(t, err)
	id := res.Bookings[0].ID

	_, err = e.svc.UpdateStatus(ctx, tenant, id, model.BookingCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	b, err := e.svc.UpdateStatus(ctx, tenant, id, model.BookingCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCheckedIn, b.Status)

	_, err = e.svc.UpdateStatus(ctx, tenant, id, model.BookingCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	b, err = e.svc.UpdateStatus(ctx, tenant, id, model.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, b.Status)
	assert.Equal(t, 8, e.available(t, a))

	_, err = e.svc.UpdateStatus(ctx, tenant+1, id, model.BookingCancelled)
	assert.ErrorIs(t, err, repository.ErrTenantMismatch)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.BookingPending, model.BookingConfirmed))
	assert.True(t, CanTransition(model.BookingConfirmed, model.BookingNoShow))
	assert.False(t, CanTransition(model.BookingCancelled, model.BookingConfirmed))
	assert.False(t, CanTransition(model.BookingCompleted, model.BookingCancelled))
}

func TestDeleteCompensates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	e.allot(t, 100, 1, 5, 5)
	res, err := e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 6}))
	require.NoError(t, err)

	require.NoError(t, e.svc.Delete(ctx, tenant, res.Bookings[0].ID))
	assert.Equal(t, 10, e.available(t, a))
	assert.Equal(t, 5, e.remaining(t, 100, 1))
	_, err = e.store.GetBooking(ctx, res.Bookings[0].ID)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)

	group, err := e.svc.GetGroup(ctx, tenant, res.GroupID)
	require.NoError(t, err)
	assert.Empty(t, group.Bookings)
}

func TestSlowEventsDoNotDelayCreate(t *testing.T) {
	e := newEnv(t)
	gate := &gatedEvents{release: make(chan struct{})}
	e.svc = NewService(e.store, e.ledger, billing.NewQueue(e.store), gate, Config{MaxItems: 10})
	e.svc.SetClock(func() time.Time { return e.clock })
	a := e.slot(t, tenant, 1, 10, 100)

	done := make(chan error, 1)
	go func() {
		_, err := e.svc.Create(context.Background(), request("k", Item{SlotID: a, VisitorCount: 2}))
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(gate.release)
		t.Fatal("Create waited on the event publisher")
	}
	assert.Equal(t, 8, e.available(t, a))

	close(gate.release)
	e.svc.Wait()
	require.Len(t, gate.events, 1)
	assert.Equal(t, int64(200), gate.events[0].TotalAmountCents)
}

func TestEventsOutliveRequestContext(t *testing.T) {
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 10, 100)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := e.svc.Create(ctx, request("k", Item{SlotID: a, VisitorCount: 1}))
	require.NoError(t, err)
	cancel()
	e.svc.Wait()
	assert.Len(t, e.events.events, 1)
}

func TestUnpricedSlotIsNotBookable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	free := &model.Slot{
		TenantID: tenant, ServiceID: 1,
		StartsAt: e.clock.Add(48 * time.Hour), EndsAt: e.clock.Add(49 * time.Hour),
		TotalCapacity: 5,
	}
	require.NoError(t, e.store.CreateSlot(ctx, free))

	_, err := e.svc.Create(ctx, request("k", Item{SlotID: free.ID, VisitorCount: 2}))
	assert.ErrorIs(t, err, slots.ErrInvalidSlot)
	assert.Equal(t, 5, e.available(t, free.ID))
	assert.Empty(t, e.jobs(t))
}

func TestTotalIsZeroOnlyWhenNothingIsPaid(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.slot(t, tenant, 1, 20, 1)
	b := e.slot(t, tenant, 2, 20, 2500)
	e.allot(t, 100, 1, 3, 3)

	cases := []struct {
		key   string
		items []Item
	}{
		{"covered", []Item{{SlotID: a, VisitorCount: 2}}},
		{"split", []Item{{SlotID: a, VisitorCount: 3}}},
		{"paid", []Item{{SlotID: a, VisitorCount: 4}, {SlotID: b, VisitorCount: 1}}},
	}
	for _, tc := range cases {
		res, err := e.svc.Create(ctx, request(tc.key, tc.items...))
		require.NoError(t, err, tc.key)
		for _, bk := range res.Bookings {
			assert.Equal(t, bk.PaidQuantity == 0, bk.TotalPriceCents == 0, "%s slot %d", tc.key, bk.SlotID)
			assert.Equal(t, int64(bk.PaidQuantity)*bk.UnitPriceCents, bk.TotalPriceCents)
		}
	}
}
