// Package repository defines the storage contracts of the booking core and
// their MySQL implementation.  The sentinel values below are reused across
// every layer so that handlers can distinguish between failure scenarios
// with errors.Is.  For example, ErrCapacityExceeded tells the caller to try
// a different slot, ErrTransient tells it to retry the same request and a
// replayed idempotency key is not an error at all.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by another tenant.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.  Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// ErrTenantMismatch is returned when a slot, hold or booking does not
// belong to the requesting tenant.
var ErrTenantMismatch = errors.New("tenant mismatch")

// ErrSlotNotFound indicates that a slot was not located in the store.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotRetired indicates that the slot no longer accepts holds or bookings.
var ErrSlotRetired = errors.New("slot retired")

// ErrCapacityExceeded is returned when a request asks for more places than
// the slot has available.  It is always surfaced, never retried silently.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrCapacityOverflow is returned when a restoration would raise available
// capacity above total capacity.  It indicates an accounting defect.
var ErrCapacityOverflow = errors.New("capacity overflow")

// ErrLockNotFound indicates that no reservation lock matches the token.
var ErrLockNotFound = errors.New("reservation lock not found")

// ErrLockExpired is returned when a hold was found but has expired.  The
// client must acquire a new hold.
var ErrLockExpired = errors.New("reservation lock expired")

// ErrLockNotActive is returned when a hold has already been consumed,
// released or expired.
var ErrLockNotActive = errors.New("reservation lock not active")

// ErrBookingNotFound indicates that a booking was not located.
var ErrBookingNotFound = errors.New("booking not found")

// ErrGroupNotFound indicates that a booking group was not located.
var ErrGroupNotFound = errors.New("booking group not found")

// ErrDuplicateGroup is returned by the store when an idempotency key has
// already produced a group.  The transactor turns it into a replay.
var ErrDuplicateGroup = errors.New("duplicate booking group")

// ErrAllotmentNotFound indicates that the customer has no balance for the
// service.
var ErrAllotmentNotFound = errors.New("allotment not found")

// ErrAllotmentExhausted is returned when a decrement would drive the
// remaining quantity below zero.
var ErrAllotmentExhausted = errors.New("allotment exhausted")

// ErrJobNotFound indicates that a billing job was not located.
var ErrJobNotFound = errors.New("billing job not found")

// ErrNoTx is returned by operations that must run inside WithTx.
var ErrNoTx = errors.New("operation requires a transaction")

// ErrTransient wraps storage failures that are worth retrying, such as
// deadlocks and lock wait timeouts.
var ErrTransient = errors.New("transient storage error")
