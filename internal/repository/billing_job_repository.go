package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
)

// LeaseExpiredError is the last_error of a job returned to the queue
// because its lease ran out before it finished.
const LeaseExpiredError = "lease expired before the job finished"

const jobColumns = `id, group_id, status, outcome, attempts, run_at, locked_until, last_error, enqueued_at, updated_at`

func scanJob(sc rowScanner) (*model.BillingJob, error) {
	var j model.BillingJob
	var locked sql.NullTime
	if err := sc.Scan(&j.ID, &j.GroupID, &j.Status, &j.Outcome, &j.Attempts, &j.RunAt, &locked,
		&j.LastError, &j.EnqueuedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if locked.Valid {
		t := locked.Time
		j.LockedUntil = &t
	}
	return &j, nil
}

func (s *MySQLStore) queryJobs(ctx context.Context, q string, args ...interface{}) ([]model.BillingJob, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BillingJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// EnqueueJob inserts a QUEUED job.  Called inside the booking transaction
// the row only becomes visible to workers when the bookings commit.
func (s *MySQLStore) EnqueueJob(ctx context.Context, j *model.BillingJob) error {
	now := time.Now().UTC()
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = now
	}
	if j.RunAt.IsZero() {
		j.RunAt = j.EnqueuedAt
	}
	c := s.conn(ctx)
	res, err := c.ExecContext(ctx,
		`INSERT INTO billing_jobs (group_id, status, outcome, attempts, run_at, last_error, enqueued_at, updated_at)
         VALUES (?, ?, '', 0, ?, '', ?, ?)`,
		j.GroupID, model.JobQueued, j.RunAt.UTC(), j.EnqueuedAt.UTC(), now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanJob(c.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM billing_jobs WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*j = *got
	return nil
}

func (s *MySQLStore) GetJob(ctx context.Context, id uint64) (*model.BillingJob, error) {
	j, err := scanJob(s.conn(ctx).QueryRowContext(ctx, `SELECT `+jobColumns+` FROM billing_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return j, err
}

// ListJobs returns jobs of the tenant's booking groups with the given
// status (all when empty), newest first.  tenantID 0 lists every tenant.
func (s *MySQLStore) ListJobs(ctx context.Context, tenantID uint64, status string, limit int) ([]model.BillingJob, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + jobColumns + ` FROM billing_jobs WHERE 1 = 1`
	args := make([]interface{}, 0, 3)
	if tenantID != 0 {
		q += ` AND group_id IN (SELECT id FROM booking_groups WHERE tenant_id = ?)`
		args = append(args, tenantID)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	return s.queryJobs(ctx, q, append(args, limit)...)
}

// ClaimJobs selects due jobs with SKIP LOCKED so several workers can poll
// the same table without blocking each other, then marks them PROCESSING
// and commits before any external call is made.
func (s *MySQLStore) ClaimJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.BillingJob, error) {
	var claimed []model.BillingJob
	err := s.WithTx(ctx, func(ctx context.Context) error {
		jobs, err := s.queryJobs(ctx,
			`SELECT `+jobColumns+` FROM billing_jobs WHERE status = ? AND run_at <= ?
             ORDER BY run_at, id LIMIT ? FOR UPDATE SKIP LOCKED`,
			model.JobQueued, now.UTC(), limit)
		if err != nil {
			return err
		}
		until := now.Add(lease).UTC()
		claimed = claimed[:0]
		for _, j := range jobs {
			res, err := s.conn(ctx).ExecContext(ctx,
				`UPDATE billing_jobs SET status = ?, locked_until = ?, updated_at = ? WHERE id = ? AND status = ?`,
				model.JobProcessing, until, now.UTC(), j.ID, model.JobQueued)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 1 {
				j.Status = model.JobProcessing
				j.LockedUntil = &until
				claimed = append(claimed, j)
			}
		}
		return nil
	})
	return claimed, err
}

func (s *MySQLStore) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE billing_jobs SET status = ?, attempts = attempts + 1, last_error = ?, locked_until = NULL, updated_at = ?
         WHERE status = ? AND locked_until IS NOT NULL AND locked_until <= ?`,
		model.JobQueued, LeaseExpiredError, now.UTC(), model.JobProcessing, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MySQLStore) FinishJob(ctx context.Context, id uint64, from []string, status, outcome, lastErr string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []interface{}{status, outcome, lastErr, time.Now().UTC(), id}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE billing_jobs SET status = ?, outcome = ?, last_error = ?, locked_until = NULL, updated_at = ?
         WHERE id = ? AND status IN (`+placeholders(len(from))+`)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *MySQLStore) RescheduleJob(ctx context.Context, id uint64, attempts int, runAt time.Time, lastErr string) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE billing_jobs SET status = ?, attempts = ?, run_at = ?, last_error = ?, locked_until = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		model.JobQueued, attempts, runAt.UTC(), lastErr, time.Now().UTC(), id, model.JobProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *MySQLStore) RequeueJob(ctx context.Context, id uint64, now time.Time) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE billing_jobs SET status = ?, outcome = '', attempts = 0, run_at = ?, locked_until = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		model.JobQueued, now.UTC(), now.UTC(), id, model.JobFailed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *MySQLStore) ListStaleJobs(ctx context.Context, cutoff time.Time, limit int) ([]model.BillingJob, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM billing_jobs WHERE status IN (?, ?) AND enqueued_at < ? ORDER BY id LIMIT ?`,
		model.JobQueued, model.JobProcessing, cutoff.UTC(), limit)
}

func (s *MySQLStore) CountBookingsInGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}
