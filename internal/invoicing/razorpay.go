package invoicing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/razorpay/razorpay-go"
)

// invoiceAPI is the part of the Razorpay SDK invoice resource in use.
type invoiceAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	All(queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(invoiceID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay issues invoices through the Razorpay Invoices API.  Customer
// notification is left to the notification consumer, so Razorpay's own
// e-mail and SMS delivery is switched off.
type Razorpay struct {
	api  invoiceAPI
	http *http.Client
}

// NewRazorpay returns a provider authenticated with the key pair.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	return &Razorpay{api: client.Invoice, http: &http.Client{Timeout: 15 * time.Second}}
}

// CreateInvoice first looks for an invoice already carrying the group's
// receipt.  A worker that crashed after the provider accepted an invoice
// but before the reference was stored therefore picks up the same
// invoice instead of issuing a second one.
func (r *Razorpay) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	existing, err := r.api.All(map[string]interface{}{"receipt": inv.GroupID}, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay: list invoices: %w", err)
	}
	if id := firstInvoiceID(existing); id != "" {
		return id, nil
	}

	lines := make([]map[string]interface{}, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, map[string]interface{}{
			"name":     l.Name,
			"amount":   l.UnitCents,
			"currency": inv.Currency,
			"quantity": l.Quantity,
		})
	}
	data := map[string]interface{}{
		"type":         "invoice",
		"receipt":      inv.GroupID,
		"currency":     inv.Currency,
		"sms_notify":   0,
		"email_notify": 0,
		"customer": map[string]interface{}{
			"name":    inv.Customer.Name,
			"email":   inv.Customer.Email,
			"contact": inv.Customer.Phone,
		},
		"line_items": lines,
		"notes": map[string]interface{}{
			"booking_group_id": inv.GroupID,
			"tenant_id":        strconv.FormatUint(inv.TenantID, 10),
		},
	}
	resp, err := r.api.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay: create invoice: %w", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", fmt.Errorf("razorpay: create invoice: response without id")
	}
	return id, nil
}

// FetchInvoiceDocument downloads the hosted invoice behind short_url.
func (r *Razorpay) FetchInvoiceDocument(ctx context.Context, ref string) ([]byte, error) {
	resp, err := r.api.Fetch(ref, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: fetch invoice %s: %w", ref, err)
	}
	url, _ := resp["short_url"].(string)
	if url == "" {
		return nil, ErrNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("razorpay: invoice document: status %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, 10<<20))
}

func firstInvoiceID(list map[string]interface{}) string {
	items, _ := list["items"].([]interface{})
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if status, _ := m["status"].(string); status == "cancelled" || status == "deleted" {
			continue
		}
		if id, _ := m["id"].(string); id != "" {
			return id
		}
	}
	return ""
}
