package invoicing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoiceAPI struct {
	existing []interface{}
	created  []map[string]interface{}
	failWith error
}

func (f *fakeInvoiceAPI) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.created = append(f.created, data)
	return map[string]interface{}{"id": "inv_new"}, nil
}

func (f *fakeInvoiceAPI) All(_ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return map[string]interface{}{"items": f.existing}, nil
}

func (f *fakeInvoiceAPI) Fetch(id string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return map[string]interface{}{"id": id}, nil
}

func sampleInvoice() Invoice {
	return Invoice{
		GroupID:  "grp-1",
		TenantID: 3,
		Currency: "INR",
		Customer: Contact{Name: "Ada", Email: "ada@example.com"},
		Lines:    []LineItem{{BookingID: 1, Name: "Visit", Quantity: 2, UnitCents: 1500}},
	}
}

func TestRazorpayCreatesInvoiceWithReceipt(t *testing.T) {
	api := &fakeInvoiceAPI{}
	r := &Razorpay{api: api}

	ref, err := r.CreateInvoice(context.Background(), sampleInvoice())
	require.NoError(t, err)
	assert.Equal(t, "inv_new", ref)
	require.Len(t, api.created, 1)
	assert.Equal(t, "grp-1", api.created[0]["receipt"])
	assert.Len(t, api.created[0]["line_items"], 1)
}

func TestRazorpayReusesInvoiceForSameReceipt(t *testing.T) {
	api := &fakeInvoiceAPI{existing: []interface{}{
		map[string]interface{}{"id": "inv_old_cancelled", "status": "cancelled"},
		map[string]interface{}{"id": "inv_old", "status": "issued"},
	}}
	r := &Razorpay{api: api}

	ref, err := r.CreateInvoice(context.Background(), sampleInvoice())
	require.NoError(t, err)
	assert.Equal(t, "inv_old", ref)
	assert.Empty(t, api.created)
}

func TestRazorpayWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &Razorpay{api: &fakeInvoiceAPI{failWith: boom}}
	_, err := r.CreateInvoice(context.Background(), sampleInvoice())
	assert.ErrorIs(t, err, boom)
}

func TestNoopIsStablePerGroup(t *testing.T) {
	n := NewNoop()
	ctx := context.Background()
	a, err := n.CreateInvoice(ctx, sampleInvoice())
	require.NoError(t, err)
	b, err := n.CreateInvoice(ctx, sampleInvoice())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	doc, err := n.FetchInvoiceDocument(ctx, a)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Total: 30.00 INR")

	_, err = n.FetchInvoiceDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
