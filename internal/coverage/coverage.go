// Package coverage splits a requested quantity into the part paid for by a
// customer's pre-paid allotment and the part that must be charged.  It has
// no I/O; callers feed it balances they already hold a lock on.
package coverage

import "fmt"

// Split is the result of Compute.
type Split struct {
	Requested int `json:"requested"`
	Covered   int `json:"covered_quantity"`
	Paid      int `json:"paid_quantity"`
}

// Compute returns covered = min(requested, max(remaining, 0)) and
// paid = requested - covered.
func Compute(requested, remaining int) Split {
	if remaining < 0 {
		remaining = 0
	}
	covered := requested
	if remaining < covered {
		covered = remaining
	}
	return Split{Requested: requested, Covered: covered, Paid: requested - covered}
}

// Validate checks the post-conditions a split must satisfy before it is
// persisted.
func (s Split) Validate() error {
	switch {
	case s.Covered < 0:
		return fmt.Errorf("coverage: negative covered quantity %d", s.Covered)
	case s.Paid < 0:
		return fmt.Errorf("coverage: negative paid quantity %d", s.Paid)
	case s.Covered > s.Requested:
		return fmt.Errorf("coverage: covered %d exceeds requested %d", s.Covered, s.Requested)
	case s.Covered+s.Paid != s.Requested:
		return fmt.Errorf("coverage: %d covered + %d paid != %d requested", s.Covered, s.Paid, s.Requested)
	}
	return nil
}

// ComputeChecked is Compute followed by Validate.  A split that fails
// validation is never returned: the inputs are clamped into range and the
// split recomputed.  The second return value reports whether clamping
// happened so the caller can log it.
func ComputeChecked(requested, remaining int) (Split, bool) {
	s := Compute(requested, remaining)
	if s.Validate() == nil {
		return s, false
	}
	if requested < 0 {
		requested = 0
	}
	if remaining > requested {
		remaining = requested
	}
	return Compute(requested, remaining), true
}

// Price is the monetary value of the split.  Covered units are free.
func Price(s Split, unitCents int64) int64 {
	if s.Paid <= 0 || unitCents <= 0 {
		return 0
	}
	return int64(s.Paid) * unitCents
}
