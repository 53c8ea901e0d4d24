// Package reconcile merges the transport adapter's normalized event stream
// into canonical campaign and recipient aggregates.
//
// One goroutine owns all aggregate state; events for a campaign can never
// interleave, which is what makes the per-entity idempotence rules below
// sufficient without finer locking.
//
// Processing rules per event:
//
//  1. Status transitions (campaign or recipient) apply only when the
//     taxonomy's transition table allows them, or when the incoming status
//     equals the current one (at-least-once re-delivery). Anything else is
//     recorded as an anomaly and dropped — stale updates are never applied
//     and never revert state.
//  2. Counters: pull snapshots replace local counters outright (pull is
//     authoritative for aggregates). A push recipient_status increments a
//     bucket exactly once per (recipient, terminal status) pair.
//  3. Queue snapshots replace the queued/running lists wholesale; the
//     engine is the sole source of truth for queue membership.
//
// A campaign that reaches a terminal status is frozen: every further event
// for it is ignored except the single final pull reconciliation that picks
// up the engine's final counters.
package reconcile
