// Package view derives display values from reconciled aggregates: progress
// percentage, success rate, and the per-status recipient buckets behind the
// tabbed detail view.
//
// Everything here is pure and recomputed on each state change; nothing is
// stored, and no timers or network calls happen in this package.
package view

import (
	"math"

	"bcast/internal/model"
)

// Progress is the sent share of the fixed total, in whole percent.
// Zero when the total is not yet known.
func Progress(c model.Counters) int {
	if c.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(c.Sent) / float64(c.Total) * 100))
}

// SuccessRate measures outcome quality among processed recipients only:
// sent / (sent + failed), in whole percent. Pending recipients are
// deliberately excluded; zero while nothing has been processed.
func SuccessRate(c model.Counters) int {
	done := c.Sent + c.Failed
	if done <= 0 {
		return 0
	}
	return int(math.Round(float64(c.Sent) / float64(done) * 100))
}

// Buckets groups recipients by status for the tabbed detail view.
type Buckets struct {
	Sent    []model.Recipient
	Pending []model.Recipient
	Failed  []model.Recipient
}

// Counts returns the tab counts in (sent, pending, failed) order.
func (b Buckets) Counts() (sent, pending, failed int) {
	return len(b.Sent), len(b.Pending), len(b.Failed)
}

// Bucketize splits recipients by status, preserving input order within each
// bucket. Recipients with an unknown status are ignored.
func Bucketize(recipients []model.Recipient) Buckets {
	var b Buckets
	for _, r := range recipients {
		switch r.Status {
		case model.RecipientSent:
			b.Sent = append(b.Sent, r)
		case model.RecipientPending:
			b.Pending = append(b.Pending, r)
		case model.RecipientFailed:
			b.Failed = append(b.Failed, r)
		}
	}
	return b
}
