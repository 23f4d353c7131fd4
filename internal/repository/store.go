package repository

import (
	"context"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
)

// Transactor runs fn inside one atomic storage transaction.  The
// transaction travels in the context handed to fn; every store method
// called with that context participates in it.  Calling WithTx with a
// context that already carries a transaction reuses it, so services can
// compose.  When fn returns an error nothing it wrote survives.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SlotFilter narrows ListSlots.  Zero times are unbounded.
type SlotFilter struct {
	TenantID  uint64
	ServiceID uint64
	From      time.Time
	To        time.Time
}

// SlotStore persists slots.  LockSlots and AdjustAvailable require a
// transaction.
type SlotStore interface {
	CreateSlot(ctx context.Context, s *model.Slot) error
	GetSlot(ctx context.Context, id uint64) (*model.Slot, error)
	ListSlots(ctx context.Context, f SlotFilter) ([]model.Slot, error)
	// LockSlots takes exclusive row locks on the given slots in ascending
	// id order and returns their current state.  A missing id yields
	// ErrSlotNotFound.
	LockSlots(ctx context.Context, ids []uint64) (map[uint64]*model.Slot, error)
	// AdjustAvailable adds delta to available_capacity.  It fails with
	// ErrCapacityExceeded below zero and ErrCapacityOverflow above total.
	AdjustAvailable(ctx context.Context, id uint64, delta int) error
	RetireSlot(ctx context.Context, id uint64) error
}

// LockStore persists reservation locks.
type LockStore interface {
	CreateLock(ctx context.Context, l *model.ReservationLock) error
	GetLockByToken(ctx context.Context, token string) (*model.ReservationLock, error)
	// TransitionLock moves a lock from one status to another and reports
	// whether this call performed the move.
	TransitionLock(ctx context.Context, id uint64, from, to string) (bool, error)
	// ListExpiredLocks returns ACTIVE locks whose expiry is at or before now.
	ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]model.ReservationLock, error)
}

// AllotmentStore is the allotment balance provider.
type AllotmentStore interface {
	GetAllotment(ctx context.Context, key model.AllotmentKey) (*model.Allotment, error)
	// LockAllotments locks the existing rows among keys in key order.
	// Keys without a balance are absent from the result.
	LockAllotments(ctx context.Context, keys []model.AllotmentKey) (map[model.AllotmentKey]*model.Allotment, error)
	// AdjustAllotment adds delta to remaining_quantity, failing with
	// ErrAllotmentExhausted below zero.  Increments are capped at the
	// total quantity and the applied delta is returned.
	AdjustAllotment(ctx context.Context, key model.AllotmentKey, delta int) (int, error)
	UpsertAllotment(ctx context.Context, a *model.Allotment) error
}

// BookingStore persists booking groups and bookings.
type BookingStore interface {
	// CreateGroup inserts a group; ErrDuplicateGroup when the tenant's
	// idempotency key is taken.
	CreateGroup(ctx context.Context, g *model.BookingGroup) error
	GetGroup(ctx context.Context, id string) (*model.BookingGroup, error)
	FindGroupByKey(ctx context.Context, tenantID uint64, key string) (*model.BookingGroup, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	// LockBooking reads a booking under an exclusive row lock.
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListBookingsByGroup(ctx context.Context, groupID string) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status string) error
	AddAllotmentRestored(ctx context.Context, id uint64, qty int) error
	// SetInvoiceRef records ref on the given bookings where no reference
	// exists yet and returns the number of rows updated.
	SetInvoiceRef(ctx context.Context, ids []uint64, ref string) (int, error)
	SetInvoiceStatus(ctx context.Context, ids []uint64, status string) error
	DeleteBooking(ctx context.Context, id uint64) error
}

// JobStore is the durable billing job queue.
type JobStore interface {
	EnqueueJob(ctx context.Context, j *model.BillingJob) error
	GetJob(ctx context.Context, id uint64) (*model.BillingJob, error)
	// ListJobs returns jobs newest first, filtered by the owning tenant
	// of the booking group (0 for all) and by status (empty for all).
	ListJobs(ctx context.Context, tenantID uint64, status string, limit int) ([]model.BillingJob, error)
	// ClaimJobs moves up to limit QUEUED jobs due at now to PROCESSING
	// with a lease ending at now+lease.
	ClaimJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.BillingJob, error)
	// ReclaimExpired puts PROCESSING jobs whose lease ended back to QUEUED.
	// The lost run counts as an attempt and LeaseExpiredError is recorded.
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)
	// FinishJob sets a terminal status and outcome if the job is still in
	// one of the from statuses; it reports whether this call did so.
	FinishJob(ctx context.Context, id uint64, from []string, status, outcome, lastErr string) (bool, error)
	// RescheduleJob returns a PROCESSING job to QUEUED with a new run time.
	RescheduleJob(ctx context.Context, id uint64, attempts int, runAt time.Time, lastErr string) (bool, error)
	// RequeueJob returns a FAILED job to QUEUED with its attempts reset.
	RequeueJob(ctx context.Context, id uint64, now time.Time) (bool, error)
	// ListStaleJobs returns non-terminal jobs enqueued before cutoff.
	ListStaleJobs(ctx context.Context, cutoff time.Time, limit int) ([]model.BillingJob, error)
	CountBookingsInGroup(ctx context.Context, groupID string) (int, error)
}

// Store is the full storage surface.  Both the MySQL store and the
// in-memory store implement it.
type Store interface {
	Transactor
	SlotStore
	LockStore
	AllotmentStore
	BookingStore
	JobStore
}
