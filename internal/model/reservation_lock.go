package model

import "time"

// Reservation lock statuses.  CONSUMED, RELEASED and EXPIRED are terminal
// and mutually exclusive.
const (
	LockActive   = "ACTIVE"
	LockConsumed = "CONSUMED"
	LockReleased = "RELEASED"
	LockExpired  = "EXPIRED"
)

// ReservationLock is a time-boxed claim on a quantity of a slot's
// capacity, taken while a customer completes checkout.  The quantity is
// subtracted from the slot's available capacity for as long as the lock
// is ACTIVE.
//
// Fields:
//  ID        – primary key identifier.
//  SlotID    – slot whose capacity is held.
//  TenantID  – tenant of the slot, copied for cheap ownership checks.
//  Quantity  – number of visitors held.
//  HoldToken – opaque token returned to the client for reference.
//  Owner     – session or user reference supplied by the caller.
//  Status    – ACTIVE, CONSUMED, RELEASED or EXPIRED.
//  ExpiresAt – hard TTL; the sweeper reclaims the lock after this time.
type ReservationLock struct {
	ID        uint64    `json:"id"`         // reservation_locks.id
	SlotID    uint64    `json:"slot_id"`    // reservation_locks.slot_id
	TenantID  uint64    `json:"tenant_id"`  // reservation_locks.tenant_id
	Quantity  int       `json:"quantity"`   // reservation_locks.quantity
	HoldToken string    `json:"hold_token"` // reservation_locks.hold_token
	Owner     string    `json:"owner"`      // reservation_locks.owner
	Status    string    `json:"status"`     // reservation_locks.status
	ExpiresAt time.Time `json:"expires_at"` // reservation_locks.expires_at
	CreatedAt time.Time `json:"created_at"` // reservation_locks.created_at
	UpdatedAt time.Time `json:"updated_at"` // reservation_locks.updated_at
}

// ActiveAt reports whether the lock still holds capacity at t.
func (l *ReservationLock) ActiveAt(t time.Time) bool {
	return l.Status == LockActive && t.Before(l.ExpiresAt)
}
