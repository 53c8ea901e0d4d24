package model

// CampaignStatus is the closed campaign lifecycle enumeration.
//
// Transitions are governed by an explicit table; anything outside the table
// is an anomaly for the reconciliation engine, never silently applied.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignStopped   CampaignStatus = "stopped"
	CampaignFailed    CampaignStatus = "failed"
)

// campaignTransitions is the legality table. Terminal statuses have no entry.
//
// completed and failed are only ever set by the dispatch engine; the console
// still validates them like any other incoming status.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:   {CampaignRunning, CampaignStopped},
	CampaignRunning: {CampaignPaused, CampaignCompleted, CampaignStopped, CampaignFailed},
	CampaignPaused:  {CampaignRunning, CampaignStopped, CampaignFailed},
}

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignRunning, CampaignPaused, CampaignCompleted, CampaignStopped, CampaignFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is legal from s.
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignCompleted, CampaignStopped, CampaignFailed:
		return true
	}
	return false
}

// NextAllowed returns the set of statuses legally reachable from s.
// The result is a copy; callers may mutate it.
func (s CampaignStatus) NextAllowed() []CampaignStatus {
	next := campaignTransitions[s]
	if len(next) == 0 {
		return nil
	}
	return append([]CampaignStatus(nil), next...)
}

// CanTransition reports whether s -> next is in the legality table.
// It is strict: s -> s is NOT a transition (idempotent re-delivery is the
// reconciliation engine's concern, not the taxonomy's).
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	for _, n := range campaignTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// RecipientStatus is the closed per-recipient delivery enumeration.
// Status is monotone: pending -> sent or pending -> failed, never backward.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

var recipientTransitions = map[RecipientStatus][]RecipientStatus{
	RecipientPending: {RecipientSent, RecipientFailed},
}

// Valid reports whether s is a known recipient status.
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientPending, RecipientSent, RecipientFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a final delivery outcome.
func (s RecipientStatus) IsTerminal() bool {
	return s == RecipientSent || s == RecipientFailed
}

// NextAllowed returns the set of statuses legally reachable from s.
func (s RecipientStatus) NextAllowed() []RecipientStatus {
	next := recipientTransitions[s]
	if len(next) == 0 {
		return nil
	}
	return append([]RecipientStatus(nil), next...)
}

// CanTransition reports whether s -> next is in the legality table.
func (s RecipientStatus) CanTransition(next RecipientStatus) bool {
	for _, n := range recipientTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}
