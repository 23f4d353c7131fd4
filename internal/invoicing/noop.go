package invoicing

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Noop issues local references without contacting anyone.  It backs
// development setups without provider credentials.  CreateInvoice returns
// the same reference for the same group.
type Noop struct {
	mu       sync.Mutex
	invoices map[string]Invoice
}

// NewNoop returns an empty Noop provider.
func NewNoop() *Noop { return &Noop{invoices: make(map[string]Invoice)} }

func (n *Noop) CreateInvoice(_ context.Context, inv Invoice) (string, error) {
	ref := "local_" + inv.GroupID
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.invoices[ref]; !ok {
		n.invoices[ref] = inv
	}
	return ref, nil
}

// FetchInvoiceDocument renders a plain-text summary of the invoice.
func (n *Noop) FetchInvoiceDocument(_ context.Context, ref string) ([]byte, error) {
	n.mu.Lock()
	inv, ok := n.invoices[ref]
	n.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s\nBilled to: %s <%s>\n\n", ref, inv.Customer.Name, inv.Customer.Email)
	for _, l := range inv.Lines {
		fmt.Fprintf(&b, "%-40s %3d x %10.2f\n", l.Name, l.Quantity, float64(l.UnitCents)/100)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f %s\n", float64(inv.TotalCents())/100, inv.Currency)
	return []byte(b.String()), nil
}
