// Package booking implements the bulk booking transaction and its
// compensating paths.  A booking request either commits every one of its
// items, with capacity, allotment and billing job effects, or changes
// nothing at all.
package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/billing"
	"github.com/iliyamo/booking-core/internal/coverage"
	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/model"
	"github.com/iliyamo/booking-core/internal/queue"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/slots"
)

var (
	// ErrInvalidRequest is returned for malformed booking requests.
	ErrInvalidRequest = errors.New("invalid booking request")
	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// with different items.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
	// ErrItemCountMismatch is returned when declared visitor counts do not
	// add up: a hold of a different size, or a total that differs from
	// the sum of the items.
	ErrItemCountMismatch = errors.New("item count mismatch")
	// ErrInvalidTransition is returned for a status change the booking
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Events receives booking.confirmed notifications after commit.  Delivery
// runs off the request path on a context detached from the caller.
type Events interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// Config bounds requests.
type Config struct {
	MaxItems int
}

const (
	publishTimeout    = 10 * time.Second
	maxPendingPublish = 64
)

// Service is the bulk booking transactor.
type Service struct {
	store  repository.Store
	ledger *slots.Ledger
	jobs   *billing.Queue
	events Events
	cfg    Config
	now    func() time.Time

	pending chan struct{}
	wg      sync.WaitGroup
}

// NewService builds a Service.  events may be nil.
func NewService(store repository.Store, ledger *slots.Ledger, jobs *billing.Queue, events Events, cfg Config) *Service {
	if store == nil || ledger == nil || jobs == nil {
		panic("booking: nil dependency")
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}
	return &Service{
		store: store, ledger: ledger, jobs: jobs, events: events, cfg: cfg,
		now:     func() time.Time { return time.Now().UTC() },
		pending: make(chan struct{}, maxPendingPublish),
	}
}

// Wait blocks until every dispatched booking.confirmed event has been
// handed to Events or has timed out.
func (s *Service) Wait() { s.wg.Wait() }

// SetClock replaces the time source used for hold expiry checks.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Contact is the guest or customer contact stored on every booking.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Item asks for VisitorCount places on one slot, optionally converting an
// existing hold.
type Item struct {
	SlotID       uint64 `json:"slot_id"`
	VisitorCount int    `json:"visitor_count"`
	HoldToken    string `json:"hold_token,omitempty"`
}

// Request is one customer action.  TotalVisitors is optional; when set it
// must equal the sum of the items' visitor counts.
type Request struct {
	TenantID       uint64  `json:"tenant_id"`
	IdempotencyKey string  `json:"idempotency_key"`
	CustomerID     *uint64 `json:"customer_id,omitempty"`
	Contact        Contact `json:"contact"`
	Items          []Item  `json:"items"`
	TotalVisitors  int     `json:"total_visitors,omitempty"`
}

// Result is a committed (or replayed) booking group.
type Result struct {
	GroupID      string          `json:"booking_group_id"`
	Bookings     []model.Booking `json:"bookings"`
	BillingJobID uint64          `json:"billing_job_id,omitempty"`
	Replayed     bool            `json:"replayed"`
}

func (s *Service) validate(req *Request) error {
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	switch {
	case req.TenantID == 0:
		return fmt.Errorf("%w: tenant is required", ErrInvalidRequest)
	case req.IdempotencyKey == "" || len(req.IdempotencyKey) > 128:
		return fmt.Errorf("%w: idempotency key must be 1-128 characters", ErrInvalidRequest)
	case len(req.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	case len(req.Items) > s.cfg.MaxItems:
		return fmt.Errorf("%w: at most %d items per request", ErrInvalidRequest, s.cfg.MaxItems)
	case req.CustomerID == nil && req.Contact.Email == "" && req.Contact.Phone == "":
		return fmt.Errorf("%w: guest bookings need an email or phone", ErrInvalidRequest)
	}
	sum := 0
	tokens := make(map[string]struct{})
	for i, it := range req.Items {
		if it.SlotID == 0 || it.VisitorCount <= 0 {
			return fmt.Errorf("%w: item %d needs a slot and a positive visitor count", ErrInvalidRequest, i)
		}
		if it.HoldToken != "" {
			if _, dup := tokens[it.HoldToken]; dup {
				return fmt.Errorf("%w: hold %d used twice", ErrInvalidRequest, i)
			}
			tokens[it.HoldToken] = struct{}{}
		}
		sum += it.VisitorCount
	}
	if req.TotalVisitors != 0 && req.TotalVisitors != sum {
		return fmt.Errorf("%w: %d visitors declared, items add up to %d", ErrItemCountMismatch, req.TotalVisitors, sum)
	}
	return nil
}

// fingerprint digests everything that determines the outcome of a request,
// in item order.
func fingerprint(req Request) string {
	canon := struct {
		CustomerID *uint64 `json:"c"`
		Items      []Item  `json:"i"`
	}{req.CustomerID, req.Items}
	b, _ := json.Marshal(canon)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Create runs the bulk booking protocol:
//
//  1. a known idempotency key returns the earlier group;
//  2. every referenced slot is locked in ascending id order;
//  3. tenant, status and capacity are checked for the whole request;
//  4. coverage is computed against the locked allotment balances and the
//     bookings are written;
//  5. slot capacity is decremented;
//  6. the billing job is written in the same transaction, which commits.
//
// Any failure rolls the whole transaction back.
func (s *Service) Create(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	fp := fingerprint(req)

	prior, err := s.store.FindGroupByKey(ctx, req.TenantID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return s.replay(ctx, prior, fp)
	}

	var (
		res    = &Result{GroupID: uuid.NewString()}
		locked map[uint64]*model.Slot
	)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		res.Bookings = res.Bookings[:0]
		group := &model.BookingGroup{
			ID:             res.GroupID,
			TenantID:       req.TenantID,
			IdempotencyKey: req.IdempotencyKey,
			Fingerprint:    fp,
		}
		if err := s.store.CreateGroup(ctx, group); err != nil {
			return err
		}

		ids := make([]uint64, 0, len(req.Items))
		for _, it := range req.Items {
			ids = append(ids, it.SlotID)
		}
		var err error
		locked, err = s.store.LockSlots(ctx, ids)
		if err != nil {
			return err
		}

		need, err := s.checkSlots(ctx, req, locked)
		if err != nil {
			return err
		}

		balances, err := s.lockBalances(ctx, req, locked)
		if err != nil {
			return err
		}

		for _, it := range req.Items {
			b, err := s.writeBooking(ctx, req, res.GroupID, it, locked[it.SlotID], balances)
			if err != nil {
				return err
			}
			res.Bookings = append(res.Bookings, *b)
		}

		for _, id := range sortedKeys(need) {
			if err := s.store.AdjustAvailable(ctx, id, -need[id]); err != nil {
				return err
			}
		}

		job, err := s.jobs.Enqueue(ctx, res.GroupID)
		if err != nil {
			return err
		}
		res.BillingJobID = job.ID
		return nil
	})
	if errors.Is(err, repository.ErrDuplicateGroup) {
		// A concurrent request with the same key won the insert.
		prior, ferr := s.store.FindGroupByKey(ctx, req.TenantID, req.IdempotencyKey)
		if ferr != nil {
			return nil, ferr
		}
		if prior == nil {
			return nil, err
		}
		return s.replay(ctx, prior, fp)
	}
	if err != nil {
		return nil, err
	}

	logger.InfoLogger.WithFields(logrus.Fields{
		"group_id":  res.GroupID,
		"tenant_id": req.TenantID,
		"bookings":  len(res.Bookings),
		"job_id":    res.BillingJobID,
	}).Info("booking group committed")
	s.ledger.Invalidate(ctx, req.TenantID)
	s.publishConfirmed(ctx, req, res, locked)
	return res, nil
}

// checkSlots verifies ownership and status of every slot, consumes the
// referenced holds and sums the capacity still to be taken per slot.
// Held places were subtracted when the hold was acquired.
func (s *Service) checkSlots(ctx context.Context, req Request, locked map[uint64]*model.Slot) (map[uint64]int, error) {
	need := make(map[uint64]int)
	now := s.now()
	for _, it := range req.Items {
		sl := locked[it.SlotID]
		if sl.TenantID != req.TenantID {
			return nil, repository.ErrTenantMismatch
		}
		if !sl.Bookable() {
			return nil, repository.ErrSlotRetired
		}
		// Paid places on an unpriced slot would carry a zero total.
		if sl.UnitPriceCents <= 0 {
			return nil, fmt.Errorf("%w: slot %d has no unit price", slots.ErrInvalidSlot, sl.ID)
		}
		if it.HoldToken == "" {
			need[it.SlotID] += it.VisitorCount
			continue
		}
		if err := s.consumeHold(ctx, req.TenantID, it, now); err != nil {
			return nil, err
		}
	}
	for id, qty := range need {
		if locked[id].AvailableCapacity < qty {
			logger.InfoLogger.WithFields(logrus.Fields{
				"slot_id":   id,
				"requested": qty,
				"available": locked[id].AvailableCapacity,
			}).Info("booking rejected: capacity exceeded")
			return nil, repository.ErrCapacityExceeded
		}
	}
	return need, nil
}

func (s *Service) consumeHold(ctx context.Context, tenantID uint64, it Item, now time.Time) error {
	l, err := s.store.GetLockByToken(ctx, it.HoldToken)
	if err != nil {
		return err
	}
	switch {
	case l.TenantID != tenantID:
		return repository.ErrTenantMismatch
	case l.SlotID != it.SlotID:
		return fmt.Errorf("%w: hold is for another slot", ErrInvalidRequest)
	case l.Status == model.LockExpired, l.Status == model.LockActive && !l.ActiveAt(now):
		return repository.ErrLockExpired
	case l.Status != model.LockActive:
		return repository.ErrLockNotActive
	case l.Quantity != it.VisitorCount:
		return fmt.Errorf("%w: hold is for %d visitors, item asks for %d", ErrItemCountMismatch, l.Quantity, it.VisitorCount)
	}
	ok, err := s.store.TransitionLock(ctx, l.ID, model.LockActive, model.LockConsumed)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrLockNotActive
	}
	return nil
}

// lockBalances locks the customer's allotment rows for every service the
// request touches and returns their remaining quantities.  Items for the
// same service share one running balance.
func (s *Service) lockBalances(ctx context.Context, req Request, locked map[uint64]*model.Slot) (map[model.AllotmentKey]int, error) {
	balances := make(map[model.AllotmentKey]int)
	if req.CustomerID == nil {
		return balances, nil
	}
	seen := make(map[model.AllotmentKey]struct{})
	keys := make([]model.AllotmentKey, 0)
	for _, it := range req.Items {
		k := model.AllotmentKey{CustomerID: *req.CustomerID, ServiceID: locked[it.SlotID].ServiceID}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	rows, err := s.store.LockAllotments(ctx, keys)
	if err != nil {
		return nil, err
	}
	for k, a := range rows {
		balances[k] = a.RemainingQuantity
	}
	return balances, nil
}

func (s *Service) writeBooking(ctx context.Context, req Request, groupID string, it Item, sl *model.Slot, balances map[model.AllotmentKey]int) (*model.Booking, error) {
	var key model.AllotmentKey
	remaining := 0
	if req.CustomerID != nil {
		key = model.AllotmentKey{CustomerID: *req.CustomerID, ServiceID: sl.ServiceID}
		remaining = balances[key]
	}
	split, clamped := coverage.ComputeChecked(it.VisitorCount, remaining)
	if clamped {
		logger.ErrorLogger.WithFields(logrus.Fields{
			"group_id":  groupID,
			"slot_id":   sl.ID,
			"requested": it.VisitorCount,
			"remaining": remaining,
		}).Error("coverage split failed validation and was clamped")
	}
	if split.Covered > 0 {
		if _, err := s.store.AdjustAllotment(ctx, key, -split.Covered); err != nil {
			return nil, err
		}
		balances[key] = remaining - split.Covered
	}

	b := &model.Booking{
		GroupID:                groupID,
		TenantID:               req.TenantID,
		SlotID:                 sl.ID,
		ServiceID:              sl.ServiceID,
		CustomerID:             req.CustomerID,
		ContactName:            req.Contact.Name,
		ContactEmail:           req.Contact.Email,
		ContactPhone:           req.Contact.Phone,
		VisitorCount:           split.Requested,
		PackageCoveredQuantity: split.Covered,
		PaidQuantity:           split.Paid,
		UnitPriceCents:         sl.UnitPriceCents,
		TotalPriceCents:        coverage.Price(split, sl.UnitPriceCents),
		Status:                 model.BookingConfirmed,
		InvoiceStatus:          model.InvoiceNotNeeded,
	}
	if b.RequiresInvoice() {
		b.InvoiceStatus = model.InvoicePending
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) replay(ctx context.Context, g *model.BookingGroup, fp string) (*Result, error) {
	if g.Fingerprint != fp {
		return nil, ErrIdempotencyConflict
	}
	bookings, err := s.store.ListBookingsByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return &Result{GroupID: g.ID, Bookings: bookings, Replayed: true}, nil
}

func (s *Service) publishConfirmed(ctx context.Context, req Request, res *Result, locked map[uint64]*model.Slot) {
	if s.events == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		GroupID:      res.GroupID,
		TenantID:     req.TenantID,
		ContactName:  req.Contact.Name,
		ContactEmail: req.Contact.Email,
		ContactPhone: req.Contact.Phone,
		ConfirmedAt:  s.now().Format(time.RFC3339),
	}
	if req.CustomerID != nil {
		ev.CustomerID = *req.CustomerID
	}
	for _, b := range res.Bookings {
		ev.Items = append(ev.Items, queue.BookedItem{
			BookingID:       b.ID,
			SlotID:          b.SlotID,
			StartsAt:        locked[b.SlotID].StartsAt.Format(time.RFC3339),
			VisitorCount:    b.VisitorCount,
			CoveredQuantity: b.PackageCoveredQuantity,
			PaidQuantity:    b.PaidQuantity,
			TotalPriceCents: b.TotalPriceCents,
		})
		ev.TotalAmountCents += b.TotalPriceCents
	}
	select {
	case s.pending <- struct{}{}:
	default:
		logger.ErrorLogger.WithField("group_id", res.GroupID).Warn("booking.confirmed dropped: too many events in flight")
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.pending }()
		defer cancel()
		if err := s.events.PublishBookingConfirmed(pubCtx, ev); err != nil {
			logger.ErrorLogger.WithField("group_id", res.GroupID).WithError(err).Warn("booking.confirmed not published")
		}
	}()
}

// GetGroup returns a committed group of the tenant with its bookings.
func (s *Service) GetGroup(ctx context.Context, tenantID uint64, groupID string) (*Result, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.TenantID != tenantID {
		return nil, repository.ErrTenantMismatch
	}
	bookings, err := s.store.ListBookingsByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return &Result{GroupID: g.ID, Bookings: bookings}, nil
}

func sortedKeys(m map[uint64]int) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
