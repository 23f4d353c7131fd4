// Package billing holds the durable billing job queue and the invoice
// reconciliation worker that drains it.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/repository"
)

// ErrNotRetryable is returned by Requeue for a job that is not FAILED.
var ErrNotRetryable = errors.New("billing job is not in a failed state")

// Queue wraps the job table.  Every state change is conditioned on the
// job's current status, so redelivery and concurrent workers cannot give a
// job two terminal outcomes.
type Queue struct {
	store repository.JobStore
	now   func() time.Time
}

// NewQueue returns a Queue over store.
func NewQueue(store repository.JobStore) *Queue {
	return &Queue{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source.
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// Enqueue adds a reconciliation job for the group.  Called with a context
// carrying a transaction, the job becomes visible together with the rest
// of that transaction.
func (q *Queue) Enqueue(ctx context.Context, groupID string) (*model.BillingJob, error) {
	now := q.now()
	j := &model.BillingJob{GroupID: groupID, EnqueuedAt: now, RunAt: now}
	if err := q.store.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Claim first returns jobs whose lease ran out to the queue and then
// leases up to limit due jobs.
func (q *Queue) Claim(ctx context.Context, limit int, lease time.Duration) ([]model.BillingJob, error) {
	now := q.now()
	if _, err := q.store.ReclaimExpired(ctx, now); err != nil {
		return nil, err
	}
	return q.store.ClaimJobs(ctx, now, lease, limit)
}

// Complete marks a PROCESSING job COMPLETED.
func (q *Queue) Complete(ctx context.Context, id uint64, outcome string) (bool, error) {
	return q.store.FinishJob(ctx, id, []string{model.JobProcessing}, model.JobCompleted, outcome, "")
}

// Fail marks a job FAILED if it is still in one of the from statuses.
func (q *Queue) Fail(ctx context.Context, id uint64, from []string, outcome, reason string) (bool, error) {
	return q.store.FinishJob(ctx, id, from, model.JobFailed, outcome, reason)
}

// Reschedule puts a PROCESSING job back with its attempt count and the
// time of its next run.
func (q *Queue) Reschedule(ctx context.Context, id uint64, attempts int, delay time.Duration, reason string) (bool, error) {
	return q.store.RescheduleJob(ctx, id, attempts, q.now().Add(delay), reason)
}

// Requeue is the operator retry of a FAILED job: it runs again from zero
// attempts.
func (q *Queue) Requeue(ctx context.Context, id uint64) (*model.BillingJob, error) {
	ok, err := q.store.RequeueJob(ctx, id, q.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	return q.store.GetJob(ctx, id)
}

// Get returns one job.
func (q *Queue) Get(ctx context.Context, id uint64) (*model.BillingJob, error) {
	return q.store.GetJob(ctx, id)
}

// List returns the tenant's jobs, newest first.  An empty status lists
// all.
func (q *Queue) List(ctx context.Context, tenantID uint64, status string, limit int) ([]model.BillingJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return q.store.ListJobs(ctx, tenantID, status, limit)
}

// Stale returns non-terminal jobs enqueued before cutoff.
func (q *Queue) Stale(ctx context.Context, cutoff time.Time, limit int) ([]model.BillingJob, error) {
	return q.store.ListStaleJobs(ctx, cutoff, limit)
}
