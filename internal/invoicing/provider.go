// Package invoicing talks to the external invoicing system.  The billing
// worker only sees the Provider interface; it never holds a database
// transaction while a provider call is in flight.
package invoicing

import (
	"context"
	"errors"
)

// ErrNotFound is returned by FetchInvoiceDocument for an unknown reference.
var ErrNotFound = errors.New("invoice not found")

// Contact is the billed party.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// LineItem is one payable booking.
type LineItem struct {
	BookingID uint64
	Name      string
	Quantity  int
	UnitCents int64
}

// Invoice is one invoice for one booking group.  GroupID doubles as the
// provider-side receipt so a repeated request can be recognised.
type Invoice struct {
	GroupID  string
	TenantID uint64
	Currency string
	Customer Contact
	Lines    []LineItem
}

// TotalCents sums the line items.
func (i Invoice) TotalCents() int64 {
	var total int64
	for _, l := range i.Lines {
		total += int64(l.Quantity) * l.UnitCents
	}
	return total
}

// Provider creates invoices and returns their documents.
type Provider interface {
	// CreateInvoice issues the invoice and returns its external reference.
	CreateInvoice(ctx context.Context, inv Invoice) (string, error)
	// FetchInvoiceDocument returns the rendered invoice document.
	FetchInvoiceDocument(ctx context.Context, ref string) ([]byte, error)
}
