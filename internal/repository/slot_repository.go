package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
)

const slotColumns = `id, tenant_id, service_id, provider_id, starts_at, ends_at,
                     total_capacity, available_capacity, unit_price_cents, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(sc rowScanner) (*model.Slot, error) {
	var s model.Slot
	err := sc.Scan(&s.ID, &s.TenantID, &s.ServiceID, &s.ProviderID, &s.StartsAt, &s.EndsAt,
		&s.TotalCapacity, &s.AvailableCapacity, &s.UnitPriceCents, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSlot inserts a new slot with available capacity equal to its total
// capacity and populates the generated ID and timestamps.
func (s *MySQLStore) CreateSlot(ctx context.Context, sl *model.Slot) error {
	const q = `INSERT INTO slots (tenant_id, service_id, provider_id, starts_at, ends_at,
                                  total_capacity, available_capacity, unit_price_cents, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	c := s.conn(ctx)
	res, err := c.ExecContext(ctx, q, sl.TenantID, sl.ServiceID, sl.ProviderID, sl.StartsAt.UTC(), sl.EndsAt.UTC(),
		sl.TotalCapacity, sl.TotalCapacity, sl.UnitPriceCents, model.SlotActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults
	got, err := scanSlot(c.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*sl = *got
	return nil
}

// GetSlot returns the slot with the given ID or ErrSlotNotFound.
func (s *MySQLStore) GetSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	sl, err := scanSlot(s.conn(ctx).QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return sl, err
}

// ListSlots returns a tenant's active slots ordered by start time.
func (s *MySQLStore) ListSlots(ctx context.Context, f SlotFilter) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE tenant_id = ? AND status = ?`
	args := []interface{}{f.TenantID, model.SlotActive}
	if f.ServiceID != 0 {
		q += ` AND service_id = ?`
		args = append(args, f.ServiceID)
	}
	if !f.From.IsZero() {
		q += ` AND starts_at >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		q += ` AND starts_at < ?`
		args = append(args, f.To.UTC())
	}
	q += ` ORDER BY starts_at, id`
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Slot, 0)
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sl)
	}
	return out, rows.Err()
}

// LockSlots selects the slots FOR UPDATE.  The ORDER BY makes InnoDB take
// the row locks in ascending id order regardless of the order the caller
// listed the ids in.
func (s *MySQLStore) LockSlots(ctx context.Context, ids []uint64) (map[uint64]*model.Slot, error) {
	if !inTx(ctx) {
		return nil, ErrNoTx
	}
	uniq := uniqueSorted(ids)
	if len(uniq) == 0 {
		return map[uint64]*model.Slot{}, nil
	}
	args := make([]interface{}, 0, len(uniq))
	for _, id := range uniq {
		args = append(args, id)
	}
	q := `SELECT ` + slotColumns + ` FROM slots WHERE id IN (` + placeholders(len(uniq)) + `) ORDER BY id FOR UPDATE`
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]*model.Slot, len(uniq))
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out[sl.ID] = sl
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(uniq) {
		return nil, ErrSlotNotFound
	}
	return out, nil
}

// AdjustAvailable applies delta to available_capacity.  The WHERE clause
// re-checks the bounds so the row can never leave 0..total even if a
// caller skipped LockSlots.
func (s *MySQLStore) AdjustAvailable(ctx context.Context, id uint64, delta int) error {
	if !inTx(ctx) {
		return ErrNoTx
	}
	const q = `UPDATE slots SET available_capacity = available_capacity + ?, updated_at = ?
               WHERE id = ? AND available_capacity + ? >= 0 AND available_capacity + ? <= total_capacity`
	res, err := s.conn(ctx).ExecContext(ctx, q, delta, time.Now().UTC(), id, delta, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetSlot(ctx, id); err != nil {
		return err
	}
	if delta < 0 {
		return ErrCapacityExceeded
	}
	return ErrCapacityOverflow
}

// RetireSlot soft-deletes a slot.  Retiring twice is a no-op.
func (s *MySQLStore) RetireSlot(ctx context.Context, id uint64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE slots SET status = ?, updated_at = ? WHERE id = ?`,
		model.SlotRetired, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetSlot(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func uniqueSorted(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
