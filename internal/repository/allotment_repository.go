package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/iliyamo/booking-core/internal/model"
)

const allotmentColumns = `customer_id, service_id, subscription_id, total_quantity, remaining_quantity`

func scanAllotment(sc rowScanner) (*model.Allotment, error) {
	var a model.Allotment
	if err := sc.Scan(&a.CustomerID, &a.ServiceID, &a.SubscriptionID, &a.TotalQuantity, &a.RemainingQuantity); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAllotment returns the balance for a customer and service or
// ErrAllotmentNotFound.
func (s *MySQLStore) GetAllotment(ctx context.Context, key model.AllotmentKey) (*model.Allotment, error) {
	a, err := scanAllotment(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+allotmentColumns+` FROM allotments WHERE customer_id = ? AND service_id = ?`,
		key.CustomerID, key.ServiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAllotmentNotFound
	}
	return a, err
}

// LockAllotments locks the balances for keys in (customer_id, service_id)
// order.  Keys without a row are simply missing from the map.
func (s *MySQLStore) LockAllotments(ctx context.Context, keys []model.AllotmentKey) (map[model.AllotmentKey]*model.Allotment, error) {
	if !inTx(ctx) {
		return nil, ErrNoTx
	}
	out := make(map[model.AllotmentKey]*model.Allotment, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	sorted := append([]model.AllotmentKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	conds := make([]string, 0, len(sorted))
	args := make([]interface{}, 0, len(sorted)*2)
	for _, k := range sorted {
		conds = append(conds, "(customer_id = ? AND service_id = ?)")
		args = append(args, k.CustomerID, k.ServiceID)
	}
	q := `SELECT ` + allotmentColumns + ` FROM allotments WHERE ` + strings.Join(conds, " OR ") +
		` ORDER BY customer_id, service_id FOR UPDATE`
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAllotment(rows)
		if err != nil {
			return nil, err
		}
		out[a.Key()] = a
	}
	return out, rows.Err()
}

// AdjustAllotment applies delta to remaining_quantity.  Decrements fail
// with ErrAllotmentExhausted instead of going negative; increments are
// capped at total_quantity.  The delta actually applied is returned.
func (s *MySQLStore) AdjustAllotment(ctx context.Context, key model.AllotmentKey, delta int) (int, error) {
	if !inTx(ctx) {
		return 0, ErrNoTx
	}
	cur, err := scanAllotment(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+allotmentColumns+` FROM allotments WHERE customer_id = ? AND service_id = ? FOR UPDATE`,
		key.CustomerID, key.ServiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAllotmentNotFound
	}
	if err != nil {
		return 0, err
	}
	applied, err := AllotmentDelta(cur, delta)
	if err != nil {
		return 0, err
	}
	if applied == 0 {
		return 0, nil
	}
	_, err = s.conn(ctx).ExecContext(ctx,
		`UPDATE allotments SET remaining_quantity = remaining_quantity + ? WHERE customer_id = ? AND service_id = ?`,
		applied, key.CustomerID, key.ServiceID)
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// AllotmentDelta returns the part of delta that may be applied to a so
// that remaining stays within 0..total.  A decrement that cannot be
// satisfied in full fails with ErrAllotmentExhausted; an increment is
// capped at the total quantity.
func AllotmentDelta(a *model.Allotment, delta int) (int, error) {
	next := a.RemainingQuantity + delta
	if next < 0 {
		return 0, ErrAllotmentExhausted
	}
	if next > a.TotalQuantity {
		if a.RemainingQuantity >= a.TotalQuantity {
			return 0, nil
		}
		return a.TotalQuantity - a.RemainingQuantity, nil
	}
	return delta, nil
}

// UpsertAllotment grants or replaces a balance.
func (s *MySQLStore) UpsertAllotment(ctx context.Context, a *model.Allotment) error {
	const q = `INSERT INTO allotments (customer_id, service_id, subscription_id, total_quantity, remaining_quantity)
               VALUES (?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE subscription_id = VALUES(subscription_id),
                                       total_quantity = VALUES(total_quantity),
                                       remaining_quantity = VALUES(remaining_quantity)`
	_, err := s.conn(ctx).ExecContext(ctx, q, a.CustomerID, a.ServiceID, a.SubscriptionID, a.TotalQuantity, a.RemainingQuantity)
	return err
}
