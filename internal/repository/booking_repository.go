package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
)

const bookingColumns = `id, group_id, tenant_id, slot_id, service_id, customer_id,
                        contact_name, contact_email, contact_phone,
                        visitor_count, package_covered_quantity, paid_quantity,
                        unit_price_cents, total_price_cents, status,
                        invoice_ref, invoice_status, allotment_restored, created_at, updated_at`

func scanBooking(sc rowScanner) (*model.Booking, error) {
	var b model.Booking
	var customerID sql.NullInt64
	var invoiceRef sql.NullString
	err := sc.Scan(&b.ID, &b.GroupID, &b.TenantID, &b.SlotID, &b.ServiceID, &customerID,
		&b.ContactName, &b.ContactEmail, &b.ContactPhone,
		&b.VisitorCount, &b.PackageCoveredQuantity, &b.PaidQuantity,
		&b.UnitPriceCents, &b.TotalPriceCents, &b.Status,
		&invoiceRef, &b.InvoiceStatus, &b.AllotmentRestored, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		cid := uint64(customerID.Int64)
		b.CustomerID = &cid
	}
	if invoiceRef.Valid {
		ref := invoiceRef.String
		b.InvoiceRef = &ref
	}
	return &b, nil
}

// CreateGroup inserts a booking group.  The unique key on
// (tenant_id, idempotency_key) turns a concurrent duplicate into
// ErrDuplicateGroup.
func (s *MySQLStore) CreateGroup(ctx context.Context, g *model.BookingGroup) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO booking_groups (id, tenant_id, idempotency_key, fingerprint, created_at) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.TenantID, g.IdempotencyKey, g.Fingerprint, g.CreatedAt.UTC())
	if isDuplicate(err) {
		return ErrDuplicateGroup
	}
	return err
}

func (s *MySQLStore) GetGroup(ctx context.Context, id string) (*model.BookingGroup, error) {
	var g model.BookingGroup
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, idempotency_key, fingerprint, created_at FROM booking_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.TenantID, &g.IdempotencyKey, &g.Fingerprint, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FindGroupByKey returns the group an idempotency key produced, or nil
// when the key is unused.
func (s *MySQLStore) FindGroupByKey(ctx context.Context, tenantID uint64, key string) (*model.BookingGroup, error) {
	var g model.BookingGroup
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, tenant_id, idempotency_key, fingerprint, created_at
         FROM booking_groups WHERE tenant_id = ? AND idempotency_key = ?`, tenantID, key,
	).Scan(&g.ID, &g.TenantID, &g.IdempotencyKey, &g.Fingerprint, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateBooking inserts a booking inside the caller's transaction and
// populates the generated ID and timestamps.
func (s *MySQLStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	if !inTx(ctx) {
		return ErrNoTx
	}
	const q = `INSERT INTO bookings (group_id, tenant_id, slot_id, service_id, customer_id,
                                     contact_name, contact_email, contact_phone,
                                     visitor_count, package_covered_quantity, paid_quantity,
                                     unit_price_cents, total_price_cents, status, invoice_status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var customerID interface{}
	if b.CustomerID != nil {
		customerID = *b.CustomerID
	}
	c := s.conn(ctx)
	res, err := c.ExecContext(ctx, q, b.GroupID, b.TenantID, b.SlotID, b.ServiceID, customerID,
		b.ContactName, b.ContactEmail, b.ContactPhone,
		b.VisitorCount, b.PackageCoveredQuantity, b.PaidQuantity,
		b.UnitPriceCents, b.TotalPriceCents, b.Status, b.InvoiceStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanBooking(c.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*b = *got
	return nil
}

func (s *MySQLStore) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(s.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// LockBooking reads a booking FOR UPDATE.  It must run inside WithTx.
func (s *MySQLStore) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	if !inTx(ctx) {
		return nil, ErrNoTx
	}
	b, err := scanBooking(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListBookingsByGroup returns a group's bookings in insertion order.  An
// empty slice means the group has no bookings left.
func (s *MySQLStore) ListBookingsByGroup(ctx context.Context, groupID string) ([]model.Booking, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *MySQLStore) UpdateBookingStatus(ctx context.Context, id uint64, status string) error {
	return s.execOne(ctx, ErrBookingNotFound,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
}

// AddAllotmentRestored records covered quantity given back to the
// customer's allotment.  The guard keeps the counter at or below the
// covered quantity.
func (s *MySQLStore) AddAllotmentRestored(ctx context.Context, id uint64, qty int) error {
	return s.execOne(ctx, ErrConflict,
		`UPDATE bookings SET allotment_restored = allotment_restored + ?, updated_at = ?
         WHERE id = ? AND allotment_restored + ? <= package_covered_quantity`,
		qty, time.Now().UTC(), id, qty)
}

// SetInvoiceRef stores ref on bookings that do not carry one yet.  The
// IS NULL condition keeps a redelivered job from overwriting the first
// invoice.
func (s *MySQLStore) SetInvoiceRef(ctx context.Context, ids []uint64, ref string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []interface{}{ref, model.InvoiceInvoiced, time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET invoice_ref = ?, invoice_status = ?, updated_at = ?
         WHERE id IN (`+placeholders(len(ids))+`) AND invoice_ref IS NULL`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MySQLStore) SetInvoiceStatus(ctx context.Context, ids []uint64, status string) error {
	if len(ids) == 0 {
		return nil
	}
	args := []interface{}{status, time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET invoice_status = ?, updated_at = ?
         WHERE id IN (`+placeholders(len(ids))+`) AND invoice_ref IS NULL`, args...)
	return err
}

func (s *MySQLStore) DeleteBooking(ctx context.Context, id uint64) error {
	return s.execOne(ctx, ErrBookingNotFound, `DELETE FROM bookings WHERE id = ?`, id)
}

// execOne runs a statement expected to touch exactly one row and returns
// notFound when it touched none.
func (s *MySQLStore) execOne(ctx context.Context, notFound error, q string, args ...interface{}) error {
	res, err := s.conn(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
