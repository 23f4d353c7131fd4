// Package memstore is an in-process implementation of repository.Store.
// It backs single-node deployments (STORE_DRIVER=memory) and the service
// tests.  Row locks are modelled with a keyed mutex held until the end of
// the transaction, and rollback replays an undo log recorded by every
// mutation performed inside WithTx.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

type groupKey struct {
	tenantID uint64
	key      string
}

// Store keeps every table in maps guarded by mu.  mu is only held for the
// duration of a single method; row locks (rows) are what serialise
// transactions against each other.
type Store struct {
	mu         sync.Mutex
	rows       *keyedMutex
	seq        uint64
	slots      map[uint64]*model.Slot
	locks      map[uint64]*model.ReservationLock
	lockTokens map[string]uint64
	allotments map[model.AllotmentKey]*model.Allotment
	groups     map[string]*model.BookingGroup
	groupKeys  map[groupKey]string
	bookings   map[uint64]*model.Booking
	jobs       map[uint64]*model.BillingJob
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rows:       newKeyedMutex(),
		slots:      make(map[uint64]*model.Slot),
		locks:      make(map[uint64]*model.ReservationLock),
		lockTokens: make(map[string]uint64),
		allotments: make(map[model.AllotmentKey]*model.Allotment),
		groups:     make(map[string]*model.BookingGroup),
		groupKeys:  make(map[groupKey]string),
		bookings:   make(map[uint64]*model.Booking),
		jobs:       make(map[uint64]*model.BillingJob),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.Store = (*Store)(nil)

type txKey struct{}

type memTx struct {
	undo []func()
	held []string
	keys map[string]struct{}
}

func txFrom(ctx context.Context) *memTx {
	t, _ := ctx.Value(txKey{}).(*memTx)
	return t
}

// WithTx runs fn as one transaction.  Row locks taken inside fn are
// released when it returns; if fn fails, its writes are undone in reverse
// order before the locks are released.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	t := &memTx{keys: make(map[string]struct{})}
	defer func() {
		if r := recover(); r != nil {
			s.rollback(t)
			s.release(t)
			panic(r)
		}
		if err != nil {
			s.rollback(t)
		}
		s.release(t)
	}()
	return fn(context.WithValue(ctx, txKey{}, t))
}

func (s *Store) rollback(t *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *Store) release(t *memTx) {
	for i := len(t.held) - 1; i >= 0; i-- {
		s.rows.Unlock(t.held[i])
	}
	t.held = nil
}

// lockRow takes the row lock for key once per transaction.
func (s *Store) lockRow(t *memTx, key string) {
	if _, ok := t.keys[key]; ok {
		return
	}
	s.rows.Lock(key)
	t.keys[key] = struct{}{}
	t.held = append(t.held, key)
}

// record registers an undo step.  Must be called with mu held.
func (s *Store) record(ctx context.Context, undo func()) {
	if t := txFrom(ctx); t != nil {
		t.undo = append(t.undo, undo)
	}
}

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func slotRow(id uint64) string { return fmt.Sprintf("slot:%020d", id) }

func allotmentRow(k model.AllotmentKey) string {
	return fmt.Sprintf("allotment:%020d:%020d", k.CustomerID, k.ServiceID)
}

func bookingRow(id uint64) string { return fmt.Sprintf("booking:%020d", id) }

func groupRow(tenantID uint64, key string) string { return fmt.Sprintf("group:%d:%s", tenantID, key) }

// ---- slots ----

func (s *Store) CreateSlot(ctx context.Context, sl *model.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cp := *sl
	cp.ID = s.nextID()
	cp.AvailableCapacity = cp.TotalCapacity
	cp.Status = model.SlotActive
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.slots[cp.ID] = &cp
	id := cp.ID
	s.record(ctx, func() { delete(s.slots, id) })
	*sl = cp
	return nil
}

func (s *Store) GetSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	cp := *sl
	return &cp, nil
}

func (s *Store) ListSlots(ctx context.Context, f repository.SlotFilter) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Slot, 0)
	for _, sl := range s.slots {
		if sl.TenantID != f.TenantID || sl.Status != model.SlotActive {
			continue
		}
		if f.ServiceID != 0 && sl.ServiceID != f.ServiceID {
			continue
		}
		if !f.From.IsZero() && sl.StartsAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !sl.StartsAt.Before(f.To) {
			continue
		}
		out = append(out, *sl)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) LockSlots(ctx context.Context, ids []uint64) (map[uint64]*model.Slot, error) {
	t := txFrom(ctx)
	if t == nil {
		return nil, repository.ErrNoTx
	}
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		s.lockRow(t, slotRow(id))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]*model.Slot, len(sorted))
	for _, id := range sorted {
		sl, ok := s.slots[id]
		if !ok {
			return nil, repository.ErrSlotNotFound
		}
		cp := *sl
		out[id] = &cp
	}
	return out, nil
}

func (s *Store) AdjustAvailable(ctx context.Context, id uint64, delta int) error {
	if txFrom(ctx) == nil {
		return repository.ErrNoTx
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return repository.ErrSlotNotFound
	}
	next := sl.AvailableCapacity + delta
	if next < 0 {
		return repository.ErrCapacityExceeded
	}
	if next > sl.TotalCapacity {
		return repository.ErrCapacityOverflow
	}
	prev, prevUpdated := sl.AvailableCapacity, sl.UpdatedAt
	sl.AvailableCapacity = next
	sl.UpdatedAt = s.now()
	s.record(ctx, func() { sl.AvailableCapacity, sl.UpdatedAt = prev, prevUpdated })
	return nil
}

func (s *Store) RetireSlot(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return repository.ErrSlotNotFound
	}
	prev := sl.Status
	sl.Status = model.SlotRetired
	s.record(ctx, func() { sl.Status = prev })
	return nil
}

// ---- reservation locks ----

func (s *Store) CreateLock(ctx context.Context, l *model.ReservationLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.lockTokens[l.HoldToken]; dup {
		return repository.ErrConflict
	}
	now := s.now()
	cp := *l
	cp.ID = s.nextID()
	cp.Status = model.LockActive
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.locks[cp.ID] = &cp
	s.lockTokens[cp.HoldToken] = cp.ID
	id, token := cp.ID, cp.HoldToken
	s.record(ctx, func() {
		delete(s.locks, id)
		delete(s.lockTokens, token)
	})
	*l = cp
	return nil
}

func (s *Store) GetLockByToken(ctx context.Context, token string) (*model.ReservationLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.lockTokens[token]
	if !ok {
		return nil, repository.ErrLockNotFound
	}
	cp := *s.locks[id]
	return &cp, nil
}

func (s *Store) TransitionLock(ctx context.Context, id uint64, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		return false, repository.ErrLockNotFound
	}
	if l.Status != from {
		return false, nil
	}
	prev, prevUpdated := l.Status, l.UpdatedAt
	l.Status = to
	l.UpdatedAt = s.now()
	s.record(ctx, func() { l.Status, l.UpdatedAt = prev, prevUpdated })
	return true, nil
}

func (s *Store) ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]model.ReservationLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ReservationLock, 0)
	for _, l := range s.locks {
		if l.Status == model.LockActive && !l.ExpiresAt.After(now) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- allotments ----

func (s *Store) GetAllotment(ctx context.Context, key model.AllotmentKey) (*model.Allotment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allotments[key]
	if !ok {
		return nil, repository.ErrAllotmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) LockAllotments(ctx context.Context, keys []model.AllotmentKey) (map[model.AllotmentKey]*model.Allotment, error) {
	t := txFrom(ctx)
	if t == nil {
		return nil, repository.ErrNoTx
	}
	sorted := append([]model.AllotmentKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	for _, k := range sorted {
		s.lockRow(t, allotmentRow(k))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.AllotmentKey]*model.Allotment, len(sorted))
	for _, k := range sorted {
		if a, ok := s.allotments[k]; ok {
			cp := *a
			out[k] = &cp
		}
	}
	return out, nil
}

func (s *Store) AdjustAllotment(ctx context.Context, key model.AllotmentKey, delta int) (int, error) {
	t := txFrom(ctx)
	if t == nil {
		return 0, repository.ErrNoTx
	}
	s.lockRow(t, allotmentRow(key))
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allotments[key]
	if !ok {
		return 0, repository.ErrAllotmentNotFound
	}
	applied, err := repository.AllotmentDelta(a, delta)
	if err != nil || applied == 0 {
		return 0, err
	}
	prev := a.RemainingQuantity
	a.RemainingQuantity += applied
	s.record(ctx, func() { a.RemainingQuantity = prev })
	return applied, nil
}

func (s *Store) UpsertAllotment(ctx context.Context, a *model.Allotment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Key()
	if prev, ok := s.allotments[key]; ok {
		old := *prev
		*prev = *a
		s.record(ctx, func() { *prev = old })
		return nil
	}
	cp := *a
	s.allotments[key] = &cp
	s.record(ctx, func() { delete(s.allotments, key) })
	return nil
}

// ---- booking groups and bookings ----

// CreateGroup holds the idempotency key's row lock until the transaction
// ends, so a concurrent insert of the same key waits and then sees either
// the committed group or, after a rollback, a free key.
func (s *Store) CreateGroup(ctx context.Context, g *model.BookingGroup) error {
	if t := txFrom(ctx); t != nil {
		s.lockRow(t, groupRow(g.TenantID, g.IdempotencyKey))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	gk := groupKey{tenantID: g.TenantID, key: g.IdempotencyKey}
	if _, dup := s.groupKeys[gk]; dup {
		return repository.ErrDuplicateGroup
	}
	cp := *g
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.groups[cp.ID] = &cp
	s.groupKeys[gk] = cp.ID
	id := cp.ID
	s.record(ctx, func() {
		delete(s.groups, id)
		delete(s.groupKeys, gk)
	})
	*g = cp
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*model.BookingGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

// FindGroupByKey waits for an in-flight transaction inserting the same key,
// so it never returns a group whose bookings are not committed yet.
func (s *Store) FindGroupByKey(ctx context.Context, tenantID uint64, key string) (*model.BookingGroup, error) {
	row := groupRow(tenantID, key)
	if t := txFrom(ctx); t != nil {
		s.lockRow(t, row)
	} else {
		s.rows.Lock(row)
		s.rows.Unlock(row)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.groupKeys[groupKey{tenantID: tenantID, key: key}]
	if !ok {
		return nil, nil
	}
	cp := *s.groups[id]
	return &cp, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) error {
	if txFrom(ctx) == nil {
		return repository.ErrNoTx
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cp := *b
	cp.ID = s.nextID()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.bookings[cp.ID] = &cp
	id := cp.ID
	s.record(ctx, func() { delete(s.bookings, id) })
	*b = cp
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (s *Store) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	t := txFrom(ctx)
	if t == nil {
		return nil, repository.ErrNoTx
	}
	s.lockRow(t, bookingRow(id))
	return s.GetBooking(ctx, id)
}

func (s *Store) ListBookingsByGroup(ctx context.Context, groupID string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.GroupID == groupID {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	prev, prevUpdated := b.Status, b.UpdatedAt
	b.Status = status
	b.UpdatedAt = s.now()
	s.record(ctx, func() { b.Status, b.UpdatedAt = prev, prevUpdated })
	return nil
}

func (s *Store) AddAllotmentRestored(ctx context.Context, id uint64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.AllotmentRestored+qty > b.PackageCoveredQuantity {
		return repository.ErrConflict
	}
	prev := b.AllotmentRestored
	b.AllotmentRestored += qty
	s.record(ctx, func() { b.AllotmentRestored = prev })
	return nil
}

func (s *Store) SetInvoiceRef(ctx context.Context, ids []uint64, ref string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		b, ok := s.bookings[id]
		if !ok || b.InvoiceRef != nil {
			continue
		}
		prevStatus := b.InvoiceStatus
		r := ref
		b.InvoiceRef = &r
		b.InvoiceStatus = model.InvoiceInvoiced
		s.record(ctx, func() { b.InvoiceRef, b.InvoiceStatus = nil, prevStatus })
		n++
	}
	return n, nil
}

func (s *Store) SetInvoiceStatus(ctx context.Context, ids []uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		b, ok := s.bookings[id]
		if !ok || b.InvoiceRef != nil {
			continue
		}
		prev := b.InvoiceStatus
		b.InvoiceStatus = status
		s.record(ctx, func() { b.InvoiceStatus = prev })
	}
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	delete(s.bookings, id)
	s.record(ctx, func() { s.bookings[id] = b })
	return nil
}

func cloneBooking(b *model.Booking) *model.Booking {
	cp := *b
	if b.CustomerID != nil {
		cid := *b.CustomerID
		cp.CustomerID = &cid
	}
	if b.InvoiceRef != nil {
		ref := *b.InvoiceRef
		cp.InvoiceRef = &ref
	}
	return &cp
}

// ---- billing jobs ----

func (s *Store) EnqueueJob(ctx context.Context, j *model.BillingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cp := *j
	cp.ID = s.nextID()
	cp.Status = model.JobQueued
	cp.Outcome = ""
	cp.Attempts = 0
	if cp.EnqueuedAt.IsZero() {
		cp.EnqueuedAt = now
	}
	if cp.RunAt.IsZero() {
		cp.RunAt = cp.EnqueuedAt
	}
	cp.UpdatedAt = now
	s.jobs[cp.ID] = &cp
	id := cp.ID
	s.record(ctx, func() { delete(s.jobs, id) })
	*j = cp
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uint64) (*model.BillingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return cloneJob(j), nil
}

func (s *Store) ListJobs(ctx context.Context, tenantID uint64, status string, limit int) ([]model.BillingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BillingJob, 0)
	for _, j := range s.jobs {
		if status != "" && j.Status != status {
			continue
		}
		if tenantID != 0 {
			if g, ok := s.groups[j.GroupID]; !ok || g.TenantID != tenantID {
				continue
			}
		}
		out = append(out, *cloneJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ClaimJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.BillingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]*model.BillingJob, 0)
	for _, j := range s.jobs {
		if j.Status == model.JobQueued && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if !due[i].RunAt.Equal(due[k].RunAt) {
			return due[i].RunAt.Before(due[k].RunAt)
		}
		return due[i].ID < due[k].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	until := now.Add(lease)
	out := make([]model.BillingJob, 0, len(due))
	for _, j := range due {
		j.Status = model.JobProcessing
		u := until
		j.LockedUntil = &u
		j.UpdatedAt = now
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

func (s *Store) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == model.JobProcessing && j.LockedUntil != nil && !j.LockedUntil.After(now) {
			j.Status = model.JobQueued
			j.Attempts++
			j.LastError = repository.LeaseExpiredError
			j.LockedUntil = nil
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *Store) FinishJob(ctx context.Context, id uint64, from []string, status, outcome, lastErr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, repository.ErrJobNotFound
	}
	if !contains(from, j.Status) {
		return false, nil
	}
	prev := *cloneJob(j)
	j.Status, j.Outcome, j.LastError = status, outcome, lastErr
	j.LockedUntil = nil
	j.UpdatedAt = s.now()
	s.record(ctx, func() { *j = prev })
	return true, nil
}

func (s *Store) RescheduleJob(ctx context.Context, id uint64, attempts int, runAt time.Time, lastErr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, repository.ErrJobNotFound
	}
	if j.Status != model.JobProcessing {
		return false, nil
	}
	j.Status = model.JobQueued
	j.Attempts = attempts
	j.RunAt = runAt
	j.LastError = lastErr
	j.LockedUntil = nil
	j.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) RequeueJob(ctx context.Context, id uint64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, repository.ErrJobNotFound
	}
	if j.Status != model.JobFailed {
		return false, nil
	}
	j.Status = model.JobQueued
	j.Outcome = ""
	j.Attempts = 0
	j.RunAt = now
	j.LockedUntil = nil
	j.UpdatedAt = now
	return true, nil
}

func (s *Store) ListStaleJobs(ctx context.Context, cutoff time.Time, limit int) ([]model.BillingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BillingJob, 0)
	for _, j := range s.jobs {
		if (j.Status == model.JobQueued || j.Status == model.JobProcessing) && j.EnqueuedAt.Before(cutoff) {
			out = append(out, *cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountBookingsInGroup(ctx context.Context, groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func cloneJob(j *model.BillingJob) *model.BillingJob {
	cp := *j
	if j.LockedUntil != nil {
		u := *j.LockedUntil
		cp.LockedUntil = &u
	}
	return &cp
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
