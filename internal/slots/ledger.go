// Package slots owns slot capacity.  Every change to available capacity
// goes through a Ledger method that takes the slot's row lock first, so
// decrements on one slot are linearised no matter which instance serves
// the request.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

// ErrInvalidSlot is returned by Create for malformed input.
var ErrInvalidSlot = errors.New("invalid slot")

// Invalidator is told about capacity changes so cached listings can be
// dropped.  The response cache implements it.
type Invalidator interface {
	InvalidateTenant(ctx context.Context, tenantID uint64)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateTenant(context.Context, uint64) {}

// Store is the slice of repository.Store the ledger needs.
type Store interface {
	repository.Transactor
	repository.SlotStore
}

// Ledger is the slot store service.
type Ledger struct {
	store Store
	cache Invalidator
}

// NewLedger returns a Ledger.  cache may be nil.
func NewLedger(store Store, cache Invalidator) *Ledger {
	if store == nil {
		panic("slots: nil store")
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &Ledger{store: store, cache: cache}
}

// Invalidate forwards to the configured invalidator.  Services changing
// capacity through their own transactions call it after commit.
func (l *Ledger) Invalidate(ctx context.Context, tenantID uint64) {
	l.cache.InvalidateTenant(ctx, tenantID)
}

// CreateInput describes a new slot.
type CreateInput struct {
	TenantID       uint64
	ServiceID      uint64
	ProviderID     uint64
	StartsAt       time.Time
	EndsAt         time.Time
	TotalCapacity  int
	UnitPriceCents int64
}

// Create schedules a new slot with all of its capacity available.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*model.Slot, error) {
	switch {
	case in.TenantID == 0 || in.ServiceID == 0:
		return nil, fmt.Errorf("%w: tenant and service are required", ErrInvalidSlot)
	case in.TotalCapacity < 1:
		return nil, fmt.Errorf("%w: capacity must be at least 1", ErrInvalidSlot)
	case !in.EndsAt.After(in.StartsAt):
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidSlot)
	case in.UnitPriceCents <= 0:
		return nil, fmt.Errorf("%w: unit price must be positive", ErrInvalidSlot)
	}
	s := &model.Slot{
		TenantID:       in.TenantID,
		ServiceID:      in.ServiceID,
		ProviderID:     in.ProviderID,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		TotalCapacity:  in.TotalCapacity,
		UnitPriceCents: in.UnitPriceCents,
	}
	if err := l.store.CreateSlot(ctx, s); err != nil {
		return nil, err
	}
	l.cache.InvalidateTenant(ctx, s.TenantID)
	return s, nil
}

// Get returns a slot of the tenant.
func (l *Ledger) Get(ctx context.Context, tenantID, slotID uint64) (*model.Slot, error) {
	s, err := l.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if tenantID != 0 && s.TenantID != tenantID {
		return nil, repository.ErrTenantMismatch
	}
	return s, nil
}

// List returns the tenant's active slots.
func (l *Ledger) List(ctx context.Context, f repository.SlotFilter) ([]model.Slot, error) {
	return l.store.ListSlots(ctx, f)
}

// GetAvailable returns the slot's current available capacity.
func (l *Ledger) GetAvailable(ctx context.Context, slotID uint64) (int, error) {
	s, err := l.store.GetSlot(ctx, slotID)
	if err != nil {
		return 0, err
	}
	return s.AvailableCapacity, nil
}

// Decrement takes qty places from the slot under its row lock.  It joins
// the caller's transaction when ctx carries one.
func (l *Ledger) Decrement(ctx context.Context, slotID uint64, qty int) error {
	if qty <= 0 {
		return nil
	}
	return l.store.WithTx(ctx, func(ctx context.Context) error {
		locked, err := l.store.LockSlots(ctx, []uint64{slotID})
		if err != nil {
			return err
		}
		if locked[slotID].AvailableCapacity < qty {
			return repository.ErrCapacityExceeded
		}
		return l.store.AdjustAvailable(ctx, slotID, -qty)
	})
}

// Increment gives qty places back.  Raising available above total means a
// restoration was applied twice somewhere; it is refused and logged.
func (l *Ledger) Increment(ctx context.Context, slotID uint64, qty int) error {
	if qty <= 0 {
		return nil
	}
	err := l.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := l.store.LockSlots(ctx, []uint64{slotID}); err != nil {
			return err
		}
		return l.store.AdjustAvailable(ctx, slotID, qty)
	})
	if errors.Is(err, repository.ErrCapacityOverflow) {
		logger.ErrorLogger.WithFields(logrus.Fields{"slot_id": slotID, "qty": qty}).
			Error("capacity restoration would exceed total capacity")
	}
	return err
}

// Retire soft-deletes a slot of the tenant.  Existing bookings keep it.
func (l *Ledger) Retire(ctx context.Context, tenantID, slotID uint64) error {
	if _, err := l.Get(ctx, tenantID, slotID); err != nil {
		return err
	}
	if err := l.store.RetireSlot(ctx, slotID); err != nil {
		return err
	}
	l.cache.InvalidateTenant(ctx, tenantID)
	return nil
}
