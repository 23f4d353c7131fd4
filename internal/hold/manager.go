// Package hold manages reservation locks: short-lived claims on slot
// capacity taken while a customer finishes checkout.  A lock subtracts its
// quantity from the slot as soon as it is acquired and gives it back when
// it is released or expires.  Every state change is conditioned on the
// lock still being ACTIVE, so concurrent releases and sweeps on several
// instances never return the same capacity twice.
package hold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/slots"
)

// ErrInvalidHold is returned for a non-positive quantity or a missing owner.
var ErrInvalidHold = errors.New("invalid hold request")

// Store is the storage the manager needs.
type Store interface {
	repository.Transactor
	repository.SlotStore
	repository.LockStore
}

// Lease is a best-effort cross-instance mutex for periodic work.
type Lease interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// Config holds TTL bounds and the sweep batch size.
type Config struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	SweepBatch int
}

// Manager is the reservation lock manager.
type Manager struct {
	store  Store
	ledger *slots.Ledger
	cfg    Config
	lease  Lease
	now    func() time.Time
}

// NewManager builds a Manager.  lease may be nil.
func NewManager(store Store, ledger *slots.Ledger, cfg Config, lease Lease) *Manager {
	if store == nil || ledger == nil {
		panic("hold: nil dependency")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 200
	}
	return &Manager{store: store, ledger: ledger, cfg: cfg, lease: lease, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source.  Tests use it to move past expiry.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// AcquireInput describes a hold request.  A zero TTL uses the default;
// longer TTLs are capped at the configured maximum.
type AcquireInput struct {
	TenantID uint64
	SlotID   uint64
	Quantity int
	Owner    string
	TTL      time.Duration
}

// Acquire takes Quantity places on the slot for the TTL.
func (m *Manager) Acquire(ctx context.Context, in AcquireInput) (*model.ReservationLock, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidHold)
	}
	if in.Owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidHold)
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	if ttl > m.cfg.MaxTTL {
		ttl = m.cfg.MaxTTL
	}
	token, err := repository.NewHoldToken()
	if err != nil {
		return nil, err
	}
	lock := &model.ReservationLock{
		SlotID:    in.SlotID,
		TenantID:  in.TenantID,
		Quantity:  in.Quantity,
		HoldToken: token,
		Owner:     in.Owner,
		ExpiresAt: m.now().Add(ttl),
	}
	err = m.store.WithTx(ctx, func(ctx context.Context) error {
		locked, err := m.store.LockSlots(ctx, []uint64{in.SlotID})
		if err != nil {
			return err
		}
		s := locked[in.SlotID]
		if s.TenantID != in.TenantID {
			return repository.ErrTenantMismatch
		}
		if !s.Bookable() {
			return repository.ErrSlotRetired
		}
		if err := m.ledger.Decrement(ctx, in.SlotID, in.Quantity); err != nil {
			return err
		}
		return m.store.CreateLock(ctx, lock)
	})
	if err != nil {
		return nil, err
	}
	m.ledger.Invalidate(ctx, in.TenantID)
	return lock, nil
}

// Release gives a hold back before its expiry.  Releasing a lock that is
// already consumed, released or expired changes nothing and returns
// ErrLockNotActive.
func (m *Manager) Release(ctx context.Context, tenantID uint64, token string) error {
	// Read first to learn the slot; the slot row is locked before the
	// lock row, the same order booking creation uses.
	l, err := m.store.GetLockByToken(ctx, token)
	if err != nil {
		return err
	}
	if l.TenantID != tenantID {
		return repository.ErrTenantMismatch
	}
	if l.Status != model.LockActive {
		return repository.ErrLockNotActive
	}
	released, err := m.reclaim(ctx, l, model.LockReleased)
	if err != nil {
		return err
	}
	if !released {
		return repository.ErrLockNotActive
	}
	m.ledger.Invalidate(ctx, tenantID)
	return nil
}

// reclaim moves an ACTIVE lock to the terminal status and returns its
// quantity to the slot, atomically.  false means another caller got there
// first.
func (m *Manager) reclaim(ctx context.Context, l *model.ReservationLock, to string) (bool, error) {
	done := false
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := m.store.LockSlots(ctx, []uint64{l.SlotID}); err != nil {
			return err
		}
		ok, err := m.store.TransitionLock(ctx, l.ID, model.LockActive, to)
		if err != nil || !ok {
			return err
		}
		if err := m.ledger.Increment(ctx, l.SlotID, l.Quantity); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return done, nil
}

// SweepExpired reclaims every ACTIVE lock whose expiry has passed and
// returns how many this call reclaimed.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	total := 0
	tenants := map[uint64]struct{}{}
	defer func() {
		for t := range tenants {
			m.ledger.Invalidate(ctx, t)
		}
	}()
	for {
		expired, err := m.store.ListExpiredLocks(ctx, m.now(), m.cfg.SweepBatch)
		if err != nil {
			return total, err
		}
		progressed := false
		for i := range expired {
			ok, err := m.reclaim(ctx, &expired[i], model.LockExpired)
			if err != nil {
				logger.ErrorLogger.WithFields(logrus.Fields{
					"lock_id": expired[i].ID,
					"slot_id": expired[i].SlotID,
				}).WithError(err).Error("failed to reclaim expired hold")
				continue
			}
			if ok {
				total++
				progressed = true
				tenants[expired[i].TenantID] = struct{}{}
			}
		}
		if len(expired) < m.cfg.SweepBatch || !progressed {
			return total, nil
		}
	}
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
// When a lease is configured only the instance holding it sweeps in a
// given tick; correctness does not depend on it.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if m.lease != nil {
			ok, err := m.lease.TryAcquire(ctx, "hold-sweeper", interval)
			if err == nil && !ok {
				continue
			}
		}
		n, err := m.SweepExpired(ctx)
		if err != nil && ctx.Err() == nil {
			logger.ErrorLogger.WithError(err).Error("hold sweep failed")
		}
		if n > 0 {
			logger.InfoLogger.WithField("reclaimed", n).Info("expired holds reclaimed")
		}
	}
}
