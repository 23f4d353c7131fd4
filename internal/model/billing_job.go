package model

import "time"

// Billing job statuses.  COMPLETED and FAILED are terminal.
const (
	JobQueued     = "QUEUED"
	JobProcessing = "PROCESSING"
	JobCompleted  = "COMPLETED"
	JobFailed     = "FAILED"
)

// Billing job outcomes, recorded alongside the terminal status.
const (
	OutcomeInvoiced    = "INVOICED"     // an invoice was created or already existed
	OutcomeNotRequired = "NOT_REQUIRED" // nothing in the group is payable
	OutcomeNoAction    = "NO_ACTION"    // the group's bookings no longer exist
	OutcomeExhausted   = "EXHAUSTED"    // provider kept failing past the retry ceiling
	OutcomeOrphaned    = "ORPHANED"     // cleanup found a stale job without bookings
)

// BillingJob is a durable request to reconcile billing for one booking
// group.  RunAt is the earliest time the job may be claimed; LockedUntil
// is the lease of the worker currently processing it.
type BillingJob struct {
	ID          uint64     `json:"job_id"`
	GroupID     string     `json:"booking_group_id"`
	Status      string     `json:"status"`
	Outcome     string     `json:"outcome,omitempty"`
	Attempts    int        `json:"attempt_count"`
	RunAt       time.Time  `json:"run_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Terminal reports whether the job has reached its single final outcome.
func (j *BillingJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
