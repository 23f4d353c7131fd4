package model

import "time"

// Slot statuses.  A retired slot keeps its bookings but accepts no new
// holds or bookings.
const (
	SlotActive  = "ACTIVE"
	SlotRetired = "RETIRED"
)

// Slot represents one bookable time unit of one service for one provider.
// AvailableCapacity is the only mutable counter; it always equals
// TotalCapacity minus the visitor counts of non-cancelled bookings minus
// the quantities of active reservation locks.
//
// Fields:
//  ID                – primary key identifier.
//  TenantID          – tenant that owns the slot.
//  ServiceID         – service offered in the slot.
//  ProviderID        – provider (staff member, room, guide) delivering it.
//  StartsAt/EndsAt   – schedule, EndsAt after StartsAt.
//  TotalCapacity     – immutable capacity.
//  AvailableCapacity – remaining capacity, 0 ≤ available ≤ total.
//  UnitPriceCents    – cash price for one visitor.
//  Status            – ACTIVE or RETIRED.
type Slot struct {
	ID                uint64    `json:"id"`                 // slots.id
	TenantID          uint64    `json:"tenant_id"`          // slots.tenant_id
	ServiceID         uint64    `json:"service_id"`         // slots.service_id
	ProviderID        uint64    `json:"provider_id"`        // slots.provider_id
	StartsAt          time.Time `json:"starts_at"`          // slots.starts_at
	EndsAt            time.Time `json:"ends_at"`            // slots.ends_at
	TotalCapacity     int       `json:"total_capacity"`     // slots.total_capacity
	AvailableCapacity int       `json:"available_capacity"` // slots.available_capacity
	UnitPriceCents    int64     `json:"unit_price_cents"`   // slots.unit_price_cents
	Status            string    `json:"status"`             // slots.status
	CreatedAt         time.Time `json:"created_at"`         // slots.created_at
	UpdatedAt         time.Time `json:"updated_at"`         // slots.updated_at
}

// Bookable reports whether new holds or bookings may be placed on the slot.
func (s *Slot) Bookable() bool { return s.Status == SlotActive }
