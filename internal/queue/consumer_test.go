package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/notify"
)

type captured struct {
	deliveries []notify.Delivery
	err        error
}

func (c *captured) Deliver(_ context.Context, d notify.Delivery) error {
	if c.err != nil {
		return c.err
	}
	c.deliveries = append(c.deliveries, d)
	return nil
}

type docs struct {
	body []byte
	err  error
	refs []string
}

func (d *docs) FetchInvoiceDocument(_ context.Context, ref string) ([]byte, error) {
	d.refs = append(d.refs, ref)
	return d.body, d.err
}

func body(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleBookingConfirmedSendsSummary(t *testing.T) {
	logger.Discard()
	n := &captured{}
	c := NewConsumer("", n, nil)

	err := c.Handle(context.Background(), BookingConfirmedQueue, body(t, BookingConfirmedEvent{
		GroupID:      "g-1",
		ContactName:  "Ada",
		ContactEmail: "ada@example.com",
		Items: []BookedItem{
			{BookingID: 4, VisitorCount: 10, CoveredQuantity: 9, StartsAt: "2026-06-03T10:00:00Z"},
		},
		TotalAmountCents: 2000,
	}))
	require.NoError(t, err)
	require.Len(t, n.deliveries, 1)
	d := n.deliveries[0]
	assert.Equal(t, notify.ChannelEmail, d.Channel)
	assert.Equal(t, "ada@example.com", d.Contact)
	assert.Contains(t, d.Body, "Hello Ada")
	assert.Contains(t, d.Body, "booking #4: 10 visitor(s)")
	assert.Contains(t, d.Body, "(9 covered by your package)")
	assert.Contains(t, d.Body, "Amount due: 20.00")
	assert.Contains(t, d.Body, "Reference: g-1")
}

func TestHandleSkipsEventsWithoutEmail(t *testing.T) {
	logger.Discard()
	n := &captured{}
	c := NewConsumer("", n, nil)

	require.NoError(t, c.Handle(context.Background(), BookingConfirmedQueue, body(t, BookingConfirmedEvent{GroupID: "g"})))
	require.NoError(t, c.Handle(context.Background(), InvoiceCreatedQueue, body(t, InvoiceCreatedEvent{GroupID: "g"})))
	assert.Empty(t, n.deliveries)
}

func TestHandleInvoiceCreatedAttachesDocument(t *testing.T) {
	logger.Discard()
	n := &captured{}
	src := &docs{body: []byte("%PDF-1.4")}
	c := NewConsumer("", n, src)

	err := c.Handle(context.Background(), InvoiceCreatedQueue, body(t, InvoiceCreatedEvent{
		GroupID: "g-2", InvoiceRef: "inv_9", AmountCents: 1050, Currency: "INR",
		ContactEmail: "bo@example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"inv_9"}, src.refs)
	require.Len(t, n.deliveries, 1)
	d := n.deliveries[0]
	assert.Equal(t, []byte("%PDF-1.4"), d.Document)
	assert.Equal(t, "invoice-inv_9.pdf", d.DocumentName)
	assert.Contains(t, d.Body, "Hello there")
	assert.Contains(t, d.Body, "10.50 INR")
}

func TestHandleInvoiceCreatedWithoutDocumentStillSends(t *testing.T) {
	logger.Discard()
	n := &captured{}
	c := NewConsumer("", n, &docs{err: errors.New("not found")})

	err := c.Handle(context.Background(), InvoiceCreatedQueue, body(t, InvoiceCreatedEvent{
		InvoiceRef: "inv_1", ContactEmail: "bo@example.com",
	}))
	require.NoError(t, err)
	require.Len(t, n.deliveries, 1)
	assert.Empty(t, n.deliveries[0].Document)
}

func TestHandleRejectsBadInput(t *testing.T) {
	logger.Discard()
	c := NewConsumer("", &captured{}, nil)
	assert.Error(t, c.Handle(context.Background(), BookingConfirmedQueue, []byte("{")))
	assert.Error(t, c.Handle(context.Background(), "other.queue", []byte("{}")))
}

func TestHandleReturnsDeliveryFailure(t *testing.T) {
	logger.Discard()
	c := NewConsumer("", &captured{err: errors.New("smtp down")}, nil)
	err := c.Handle(context.Background(), BookingConfirmedQueue, body(t, BookingConfirmedEvent{ContactEmail: "a@b.c"}))
	assert.EqualError(t, err, "smtp down")
}
