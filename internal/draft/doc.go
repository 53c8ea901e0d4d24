// Package draft implements the broadcast creation wizard: a strictly
// ordered three-step state machine (basic info, content, audience and
// schedule) that accumulates a campaign definition and emits one immutable
// submission payload.
//
// Each step gates forward navigation with step-local validation; moving
// backward never loses entered values. The builder performs no I/O — it
// only assembles the payload the transport hands to the dispatch engine.
package draft
