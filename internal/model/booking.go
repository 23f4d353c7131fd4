package model

import "time"

// Booking statuses.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCheckedIn = "CHECKED_IN"
	BookingCompleted = "COMPLETED"
	BookingCancelled = "CANCELLED"
	BookingNoShow    = "NO_SHOW"
)

// Invoice statuses recorded on a booking.  NOT_NEEDED, INVOICED and FAILED
// are terminal.
const (
	InvoiceNotNeeded = "NOT_NEEDED"
	InvoicePending   = "PENDING"
	InvoiceInvoiced  = "INVOICED"
	InvoiceFailed    = "FAILED"
)

// BookingGroup ties together the bookings created by one atomic request.
// The (TenantID, IdempotencyKey) pair is unique; Fingerprint is a digest
// of the request items used to detect a replayed key carrying a different
// payload.
type BookingGroup struct {
	ID             string    `json:"id"`              // booking_groups.id (uuid)
	TenantID       uint64    `json:"tenant_id"`       // booking_groups.tenant_id
	IdempotencyKey string    `json:"idempotency_key"` // booking_groups.idempotency_key
	Fingerprint    string    `json:"-"`               // booking_groups.fingerprint
	CreatedAt      time.Time `json:"created_at"`      // booking_groups.created_at
}

// Booking records one reservation of VisitorCount places on one slot.
//
// Fields:
//  ID                     – primary key identifier.
//  GroupID                – shared by bookings created in one request.
//  TenantID, SlotID       – where the booking lives.
//  ServiceID              – copied from the slot; keys the allotment.
//  CustomerID             – registered customer, nil for guests.
//  Contact*               – guest or customer contact for invoices and
//                           notifications.
//  VisitorCount           – always PackageCoveredQuantity + PaidQuantity.
//  UnitPriceCents         – slot price at booking time.
//  TotalPriceCents        – PaidQuantity * UnitPriceCents.
//  InvoiceRef             – external invoice id, nil until invoiced.
//  InvoiceStatus          – NOT_NEEDED, PENDING, INVOICED or FAILED.
//  AllotmentRestored      – covered quantity already given back to the
//                           allotment; never exceeds the covered quantity.
type Booking struct {
	ID                     uint64    `json:"id"`
	GroupID                string    `json:"booking_group_id"`
	TenantID               uint64    `json:"tenant_id"`
	SlotID                 uint64    `json:"slot_id"`
	ServiceID              uint64    `json:"service_id"`
	CustomerID             *uint64   `json:"customer_id,omitempty"`
	ContactName            string    `json:"contact_name,omitempty"`
	ContactEmail           string    `json:"contact_email,omitempty"`
	ContactPhone           string    `json:"contact_phone,omitempty"`
	VisitorCount           int       `json:"visitor_count"`
	PackageCoveredQuantity int       `json:"covered_quantity"`
	PaidQuantity           int       `json:"paid_quantity"`
	UnitPriceCents         int64     `json:"unit_price_cents"`
	TotalPriceCents        int64     `json:"total_price"`
	Status                 string    `json:"status"`
	InvoiceRef             *string   `json:"invoice_ref,omitempty"`
	InvoiceStatus          string    `json:"invoice_status"`
	AllotmentRestored      int       `json:"-"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// RequiresInvoice applies the strict billing rule: money is owed only when
// both the paid quantity and the total price are positive.
func (b *Booking) RequiresInvoice() bool {
	return b.PaidQuantity > 0 && b.TotalPriceCents > 0
}

// HoldsCapacity reports whether the booking still occupies slot capacity.
func (b *Booking) HoldsCapacity() bool { return b.Status != BookingCancelled }
