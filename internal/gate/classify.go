// Package gate turns a scanned visitor request into an admission outcome.
package gate

import "time"

// Outcome is the admission decision for a scanned request. The wire values
// match what the guard clients render.
type Outcome string

const (
	// OutcomeValid admits the visitor: the request is for today and not
	// yet expired.
	OutcomeValid Outcome = "valid"
	// OutcomeExpired denies: the validity window has passed.
	OutcomeExpired Outcome = "expired"
	// OutcomeWrongDay flags for manual verification: the visit is scheduled
	// for a different calendar day than today, even if not yet expired.
	OutcomeWrongDay Outcome = "wrong-day"
	// OutcomeNotFound is produced by callers when no record matches a code;
	// Classify itself never returns it.
	OutcomeNotFound Outcome = "not-found"
)

// Classify maps a request's scheduled window onto an admission outcome at
// the instant now. The priority order is deliberate and load-bearing:
//
//  1. Expiry dominates everything: a request whose valid_until has passed is
//     denied even when it is scheduled for today.
//  2. A still-unexpired request scheduled for a different calendar day than
//     now is flagged wrong-day rather than admitted.
//  3. Otherwise the visitor is admitted.
//
// Calendar days are compared in now's location, discarding time of day.
func Classify(now, scheduledStart, validUntil time.Time) Outcome {
	if !validUntil.After(now) {
		return OutcomeExpired
	}
	ny, nm, nd := now.Date()
	sy, sm, sd := scheduledStart.In(now.Location()).Date()
	if ny != sy || nm != sm || nd != sd {
		return OutcomeWrongDay
	}
	return OutcomeValid
}
