package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

// transitions lists the allowed status changes.
var transitions = map[string]map[string]bool{
	model.BookingPending:   {model.BookingConfirmed: true, model.BookingCancelled: true},
	model.BookingConfirmed: {model.BookingCheckedIn: true, model.BookingCancelled: true, model.BookingNoShow: true},
	model.BookingCheckedIn: {model.BookingCompleted: true},
}

// CanTransition reports whether a booking may move from one status to
// another.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// Cancel cancels a booking and gives back what its creation took: slot
// capacity and the allotment quantity it covered.  Restoration is tracked
// on the booking, so it happens at most once.
func (s *Service) Cancel(ctx context.Context, tenantID, bookingID uint64) (*model.Booking, error) {
	return s.UpdateStatus(ctx, tenantID, bookingID, model.BookingCancelled)
}

// UpdateStatus moves a booking along its lifecycle.  Cancellation runs the
// compensating path inside the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, bookingID uint64, to string) (*model.Booking, error) {
	b, err := s.owned(ctx, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	var out *model.Booking
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if to == model.BookingCancelled {
			// Slot before booking, the order every writer uses.
			if _, err := s.store.LockSlots(ctx, []uint64{b.SlotID}); err != nil {
				return err
			}
		}
		cur, err := s.store.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !CanTransition(cur.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cur.Status, to)
		}
		if err := s.store.UpdateBookingStatus(ctx, cur.ID, to); err != nil {
			return err
		}
		if to == model.BookingCancelled {
			if err := s.compensate(ctx, cur, true); err != nil {
				return err
			}
		}
		out, err = s.store.GetBooking(ctx, cur.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if to == model.BookingCancelled {
		s.ledger.Invalidate(ctx, tenantID)
	}
	logger.InfoLogger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"group_id":   out.GroupID,
		"status":     to,
	}).Info("booking status changed")
	return out, nil
}

// Delete removes a booking.  A booking that still occupies capacity is
// compensated first.  A billing job still pending for its group resolves
// to NO_ACTION once the group is empty.
func (s *Service) Delete(ctx context.Context, tenantID, bookingID uint64) error {
	b, err := s.owned(ctx, tenantID, bookingID)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.LockSlots(ctx, []uint64{b.SlotID}); err != nil {
			return err
		}
		cur, err := s.store.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if cur.HoldsCapacity() {
			// Only bookings not yet delivered give their allotment back.
			undelivered := cur.Status == model.BookingPending || cur.Status == model.BookingConfirmed
			if err := s.compensate(ctx, cur, undelivered); err != nil {
				return err
			}
		}
		return s.store.DeleteBooking(ctx, cur.ID)
	})
	if err != nil {
		return err
	}
	s.ledger.Invalidate(ctx, tenantID)
	logger.InfoLogger.WithFields(logrus.Fields{"booking_id": bookingID, "group_id": b.GroupID}).Info("booking deleted")
	return nil
}

func (s *Service) owned(ctx context.Context, tenantID, bookingID uint64) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.TenantID != tenantID {
		return nil, repository.ErrTenantMismatch
	}
	return b, nil
}

// compensate reverses the effects of creating b.  Must run inside a
// transaction holding the slot and booking locks.
func (s *Service) compensate(ctx context.Context, b *model.Booking, restoreAllotment bool) error {
	if err := s.ledger.Increment(ctx, b.SlotID, b.VisitorCount); err != nil {
		return err
	}
	if restoreAllotment && b.CustomerID != nil {
		if owed := b.PackageCoveredQuantity - b.AllotmentRestored; owed > 0 {
			key := model.AllotmentKey{CustomerID: *b.CustomerID, ServiceID: b.ServiceID}
			applied, err := s.store.AdjustAllotment(ctx, key, owed)
			switch {
			case errors.Is(err, repository.ErrAllotmentNotFound):
				logger.ErrorLogger.WithFields(logrus.Fields{"booking_id": b.ID, "owed": owed}).
					Warn("allotment gone, covered quantity not restored")
			case err != nil:
				return err
			case applied < owed:
				logger.InfoLogger.WithFields(logrus.Fields{"booking_id": b.ID, "owed": owed, "applied": applied}).
					Info("allotment restoration capped at total quantity")
			}
			// The booking's debt is settled even when the cap absorbed part
			// of it; retrying later must not restore it again.
			if err := s.store.AddAllotmentRestored(ctx, b.ID, owed); err != nil {
				return err
			}
		}
	}
	if b.InvoiceRef == nil && b.InvoiceStatus == model.InvoicePending {
		return s.store.SetInvoiceStatus(ctx, []uint64{b.ID}, model.InvoiceNotNeeded)
	}
	return nil
}

// GetBooking returns one booking of the tenant.
func (s *Service) GetBooking(ctx context.Context, tenantID, bookingID uint64) (*model.Booking, error) {
	return s.owned(ctx, tenantID, bookingID)
}
