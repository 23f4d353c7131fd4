package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/invoicing"
	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/queue"
	"github.com/iliyamo/booking-core/internal/repository"
)

// Store is the storage the worker needs besides the queue.
type Store interface {
	repository.Transactor
	repository.BookingStore
	repository.JobStore
}

// Events receives invoice.created notifications.
type Events interface {
	PublishInvoiceCreated(ctx context.Context, ev queue.InvoiceCreatedEvent) error
}

// WorkerConfig tunes polling, leasing and retries.
type WorkerConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	Lease           time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	MaxAttempts     int
	OrphanAge       time.Duration
	CleanupInterval time.Duration
	ProviderTimeout time.Duration
	Currency        string
}

// leaseMargin is the part of a lease reserved for reading the group and
// recording the outcome around the provider call.
const leaseMargin = 30 * time.Second

func (c *WorkerConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = 30 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.OrphanAge <= 0 {
		c.OrphanAge = 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 30 * time.Second
	}
	// A lease shorter than the provider call lets another worker reclaim
	// the job while its invoice is still being created.
	if floor := c.ProviderTimeout + leaseMargin; c.Lease < floor {
		c.Lease = floor
	}
	if c.Currency == "" {
		c.Currency = "INR"
	}
}

// Worker is the invoice reconciliation worker.  It enforces the strict
// billing rule again at processing time: a group is only invoiced when at
// least one live booking has a positive paid quantity and a positive
// price, and never when an invoice reference is already recorded.
type Worker struct {
	store    Store
	queue    *Queue
	provider invoicing.Provider
	events   Events
	cfg      WorkerConfig
	now      func() time.Time
}

// NewWorker builds a Worker.  events may be nil.
func NewWorker(store Store, q *Queue, provider invoicing.Provider, events Events, cfg WorkerConfig) *Worker {
	if store == nil || q == nil || provider == nil {
		panic("billing: nil dependency")
	}
	cfg.defaults()
	return &Worker{store: store, queue: q, provider: provider, events: events, cfg: cfg, now: q.now}
}

// Backoff returns the delay before attempt number attempts+1.
func (w *Worker) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := w.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.BackoffMax {
			return w.cfg.BackoffMax
		}
	}
	if d > w.cfg.BackoffMax {
		return w.cfg.BackoffMax
	}
	return d
}

// Run polls for due jobs and periodically runs Cleanup until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorLogger.WithError(err).Error("billing: poll failed")
			}
		case <-cleanup.C:
			if n, err := w.Cleanup(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorLogger.WithError(err).Error("billing: cleanup failed")
			} else if n > 0 {
				logger.InfoLogger.WithField("orphaned", n).Info("billing: orphaned jobs failed")
			}
		}
	}
}

// RunOnce processes up to BatchSize due jobs and returns how many it
// claimed.  Jobs are claimed one at a time so that each lease starts right
// before its job runs.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	claimed := 0
	for claimed < w.cfg.BatchSize && ctx.Err() == nil {
		jobs, err := w.queue.Claim(ctx, 1, w.cfg.Lease)
		if err != nil {
			return claimed, err
		}
		if len(jobs) == 0 {
			break
		}
		claimed++
		j := jobs[0]
		if err := w.Process(ctx, j); err != nil {
			logger.ErrorLogger.WithFields(logrus.Fields{"job_id": j.ID, "group_id": j.GroupID}).
				WithError(err).Error("billing: job processing failed")
		}
	}
	return claimed, nil
}

// Process reconciles one claimed job.  The returned error is a storage
// failure; provider failures are handled by rescheduling.
func (w *Worker) Process(ctx context.Context, job model.BillingJob) error {
	log := logger.InfoLogger.WithFields(logrus.Fields{"job_id": job.ID, "group_id": job.GroupID})

	bookings, err := w.store.ListBookingsByGroup(ctx, job.GroupID)
	if err != nil {
		return err
	}
	// A deleted target is not transient: resolve without retrying.
	if len(bookings) == 0 {
		_, err := w.queue.Complete(ctx, job.ID, model.OutcomeNoAction)
		log.Info("billing: group has no bookings, nothing to do")
		return err
	}

	var payable, notNeeded []uint64
	var existingRef string
	for i := range bookings {
		b := &bookings[i]
		if b.InvoiceRef != nil && existingRef == "" {
			existingRef = *b.InvoiceRef
		}
		if b.HoldsCapacity() && b.RequiresInvoice() {
			if b.InvoiceRef == nil {
				payable = append(payable, b.ID)
			}
			continue
		}
		if b.InvoiceRef == nil && b.InvoiceStatus == model.InvoicePending {
			notNeeded = append(notNeeded, b.ID)
		}
	}

	if len(payable) == 0 {
		outcome := model.OutcomeNotRequired
		if existingRef != "" {
			outcome = model.OutcomeInvoiced
		}
		err := w.store.WithTx(ctx, func(ctx context.Context) error {
			if len(notNeeded) > 0 {
				if err := w.store.SetInvoiceStatus(ctx, notNeeded, model.InvoiceNotNeeded); err != nil {
					return err
				}
			}
			_, err := w.queue.Complete(ctx, job.ID, outcome)
			return err
		})
		if err == nil {
			log.WithField("outcome", outcome).Info("billing: no invoice required")
		}
		return err
	}

	// One invoice per group: a redelivered job for a group that already
	// has a reference attaches the remaining bookings to it instead of
	// calling the provider again.
	if existingRef != "" {
		return w.finishInvoiced(ctx, job, payable, existingRef, false, bookings)
	}

	// Runs lost to expired leases count as attempts too.
	if job.Attempts >= w.cfg.MaxAttempts {
		return w.exhaust(ctx, job, payable, job.Attempts, fmt.Errorf("%d attempts used: %s", job.Attempts, job.LastError))
	}

	inv := w.invoiceFor(job.GroupID, bookings, payable)
	pctx, cancel := context.WithTimeout(ctx, w.cfg.ProviderTimeout)
	ref, perr := w.provider.CreateInvoice(pctx, inv)
	cancel()
	if perr != nil {
		return w.retryOrFail(ctx, job, payable, perr)
	}
	return w.finishInvoiced(ctx, job, payable, ref, true, bookings)
}

func (w *Worker) invoiceFor(groupID string, bookings []model.Booking, payable []uint64) invoicing.Invoice {
	want := make(map[uint64]bool, len(payable))
	for _, id := range payable {
		want[id] = true
	}
	inv := invoicing.Invoice{GroupID: groupID, Currency: w.cfg.Currency}
	for _, b := range bookings {
		if !want[b.ID] {
			continue
		}
		inv.TenantID = b.TenantID
		if inv.Customer.Email == "" {
			inv.Customer = invoicing.Contact{Name: b.ContactName, Email: b.ContactEmail, Phone: b.ContactPhone}
		}
		inv.Lines = append(inv.Lines, invoicing.LineItem{
			BookingID: b.ID,
			Name:      fmt.Sprintf("Booking #%d (slot %d)", b.ID, b.SlotID),
			Quantity:  b.PaidQuantity,
			UnitCents: b.UnitPriceCents,
		})
	}
	return inv
}

func (w *Worker) finishInvoiced(ctx context.Context, job model.BillingJob, payable []uint64, ref string, created bool, bookings []model.Booking) error {
	err := w.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := w.store.SetInvoiceRef(ctx, payable, ref); err != nil {
			return err
		}
		_, err := w.queue.Complete(ctx, job.ID, model.OutcomeInvoiced)
		return err
	})
	if err != nil {
		// The provider accepted the invoice; the job stays leased and is
		// picked up again after the lease, where the provider recognises
		// the receipt.
		return err
	}
	logger.InfoLogger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"group_id":    job.GroupID,
		"invoice_ref": ref,
		"bookings":    len(payable),
	}).Info("billing: group invoiced")
	if created && w.events != nil {
		w.publishInvoiced(ctx, job, ref, payable, bookings)
	}
	return nil
}

func (w *Worker) publishInvoiced(ctx context.Context, job model.BillingJob, ref string, payable []uint64, bookings []model.Booking) {
	inv := w.invoiceFor(job.GroupID, bookings, payable)
	ev := queue.InvoiceCreatedEvent{
		GroupID:      job.GroupID,
		TenantID:     inv.TenantID,
		InvoiceRef:   ref,
		AmountCents:  inv.TotalCents(),
		Currency:     inv.Currency,
		ContactName:  inv.Customer.Name,
		ContactEmail: inv.Customer.Email,
		CreatedAt:    w.now().Format(time.RFC3339),
	}
	if err := w.events.PublishInvoiceCreated(ctx, ev); err != nil {
		logger.ErrorLogger.WithFields(logrus.Fields{"job_id": job.ID, "group_id": job.GroupID}).
			WithError(err).Warn("billing: invoice.created not published")
	}
}

func (w *Worker) retryOrFail(ctx context.Context, job model.BillingJob, payable []uint64, cause error) error {
	attempts := job.Attempts + 1
	fields := logrus.Fields{"job_id": job.ID, "group_id": job.GroupID, "attempt": attempts}
	if attempts < w.cfg.MaxAttempts {
		delay := w.Backoff(attempts)
		_, err := w.queue.Reschedule(ctx, job.ID, attempts, delay, cause.Error())
		logger.ErrorLogger.WithFields(fields).WithField("retry_in", delay.String()).
			WithError(cause).Warn("billing: provider call failed, rescheduled")
		return err
	}
	return w.exhaust(ctx, job, payable, attempts, cause)
}

// exhaust fails the job for good and marks its payable bookings FAILED.
func (w *Worker) exhaust(ctx context.Context, job model.BillingJob, payable []uint64, attempts int, cause error) error {
	err := w.store.WithTx(ctx, func(ctx context.Context) error {
		ok, err := w.queue.Fail(ctx, job.ID, []string{model.JobProcessing}, model.OutcomeExhausted, cause.Error())
		if err != nil || !ok {
			return err
		}
		return w.store.SetInvoiceStatus(ctx, payable, model.InvoiceFailed)
	})
	logger.ErrorLogger.WithFields(logrus.Fields{"job_id": job.ID, "group_id": job.GroupID, "attempt": attempts}).
		WithError(cause).Error("billing: retries exhausted, job needs operator attention")
	return err
}

// Cleanup fails QUEUED or PROCESSING jobs older than the orphan age whose
// group no longer has bookings.  Each such job is failed once; a second
// pass finds it terminal.
func (w *Worker) Cleanup(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.cfg.OrphanAge)
	stale, err := w.queue.Stale(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, j := range stale {
		n, err := w.store.CountBookingsInGroup(ctx, j.GroupID)
		if err != nil {
			return failed, err
		}
		if n > 0 {
			continue
		}
		ok, err := w.queue.Fail(ctx, j.ID, []string{model.JobQueued, model.JobProcessing},
			model.OutcomeOrphaned, "booking group has no bookings")
		if err != nil {
			return failed, err
		}
		if ok {
			failed++
			logger.InfoLogger.WithFields(logrus.Fields{"job_id": j.ID, "group_id": j.GroupID}).
				Info("billing: orphaned job failed")
		}
	}
	return failed, nil
}
