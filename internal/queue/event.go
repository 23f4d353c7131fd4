// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into customer notifications.
package queue

// Queue names.  Each event type has its own durable queue.
const (
	BookingConfirmedQueue = "booking.confirmed"
	InvoiceCreatedQueue   = "invoice.created"
)

// BookedItem is one booking inside a BookingConfirmedEvent.
type BookedItem struct {
	BookingID       uint64 `json:"booking_id"`
	SlotID          uint64 `json:"slot_id"`
	StartsAt        string `json:"starts_at"`
	VisitorCount    int    `json:"visitor_count"`
	CoveredQuantity int    `json:"covered_quantity"`
	PaidQuantity    int    `json:"paid_quantity"`
	TotalPriceCents int64  `json:"total_price"`
}

// BookingConfirmedEvent is published after a booking group commits.  It
// carries enough information for downstream consumers to notify the
// customer without querying the primary database.
type BookingConfirmedEvent struct {
	GroupID          string       `json:"booking_group_id"`
	TenantID         uint64       `json:"tenant_id"`
	CustomerID       uint64       `json:"customer_id,omitempty"`
	ContactName      string       `json:"contact_name"`
	ContactEmail     string       `json:"contact_email"`
	ContactPhone     string       `json:"contact_phone,omitempty"`
	Items            []BookedItem `json:"items"`
	TotalAmountCents int64        `json:"total_amount_cents"`
	ConfirmedAt      string       `json:"confirmed_at"`
}

// InvoiceCreatedEvent is published once the billing worker has stored an
// invoice reference for a group.
type InvoiceCreatedEvent struct {
	GroupID      string `json:"booking_group_id"`
	TenantID     uint64 `json:"tenant_id"`
	InvoiceRef   string `json:"invoice_ref"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	CreatedAt    string `json:"created_at"`
}
