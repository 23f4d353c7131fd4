package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
)

const lockColumns = `id, slot_id, tenant_id, quantity, hold_token, owner, status, expires_at, created_at, updated_at`

func scanLock(sc rowScanner) (*model.ReservationLock, error) {
	var l model.ReservationLock
	if err := sc.Scan(&l.ID, &l.SlotID, &l.TenantID, &l.Quantity, &l.HoldToken, &l.Owner,
		&l.Status, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// randomToken generates a random hexadecimal string of length n*2.  The
// underlying call to crypto/rand ensures cryptographically secure random
// bytes; for a 64 character hex string, specify 32 bytes.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewHoldToken returns a fresh 64 character hold token.  Both store
// implementations and the lock manager use it so tokens look the same
// regardless of backend.
func NewHoldToken() (string, error) { return randomToken(32) }

// CreateLock inserts an ACTIVE reservation lock and populates its ID.
// The hold_token column is unique.
func (s *MySQLStore) CreateLock(ctx context.Context, l *model.ReservationLock) error {
	const q = `INSERT INTO reservation_locks (slot_id, tenant_id, quantity, hold_token, owner, status, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	c := s.conn(ctx)
	res, err := c.ExecContext(ctx, q, l.SlotID, l.TenantID, l.Quantity, l.HoldToken, l.Owner, model.LockActive, l.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanLock(c.QueryRowContext(ctx, `SELECT `+lockColumns+` FROM reservation_locks WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*l = *got
	return nil
}

// GetLockByToken returns the lock for a hold token.  Inside a transaction
// the row is read FOR UPDATE so that a consuming booking and a concurrent
// release or sweep cannot both act on it.
func (s *MySQLStore) GetLockByToken(ctx context.Context, token string) (*model.ReservationLock, error) {
	q := `SELECT ` + lockColumns + ` FROM reservation_locks WHERE hold_token = ?`
	if inTx(ctx) {
		q += ` FOR UPDATE`
	}
	l, err := scanLock(s.conn(ctx).QueryRowContext(ctx, q, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLockNotFound
	}
	return l, err
}

// TransitionLock performs a conditional status update.  Only the caller
// that observed the "from" status wins; everybody else gets false.
func (s *MySQLStore) TransitionLock(ctx context.Context, id uint64, from, to string) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE reservation_locks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListExpiredLocks returns ACTIVE locks whose expires_at is at or before
// now, oldest first.
func (s *MySQLStore) ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]model.ReservationLock, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+lockColumns+` FROM reservation_locks WHERE status = ? AND expires_at <= ? ORDER BY expires_at, id LIMIT ?`,
		model.LockActive, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ReservationLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
