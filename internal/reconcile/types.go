package reconcile

import (
	"time"

	"bcast/internal/model"
)

// Anomaly is an event that contradicted the status taxonomy. Anomalies are
// kept per campaign (bounded) and surfaced for diagnostics; they never
// interrupt reconciliation.
type Anomaly struct {
	At          time.Time
	CampaignID  string
	RecipientID string // empty for campaign-level anomalies
	From        string
	To          string
	Source      string // "push" or "pull"
	Reason      string
}

// keep at most this many anomalies per campaign; older ones rotate out.
const maxAnomalies = 100

// appliedKey identifies one counted (recipient, terminal status) pair.
type appliedKey struct {
	recipientID string
	status      model.RecipientStatus
}

// state is the engine-private aggregate for one campaign.
// Only the run loop touches it (under the service write lock).
type state struct {
	campaign   model.Campaign
	recipients map[string]*model.Recipient
	order      []string // recipient ids in first-observed order

	applied   map[appliedKey]struct{}
	anomalies []Anomaly

	frozen    bool
	finalDone bool
}

func newState(id string) *state {
	return &state{
		campaign:   model.Campaign{ID: id},
		recipients: map[string]*model.Recipient{},
		applied:    map[appliedKey]struct{}{},
	}
}

// Snapshot is the read-side copy handed to callers.
type Snapshot struct {
	Campaign   model.Campaign
	Recipients []model.Recipient
	Anomalies  []Anomaly
}

// QueueView is the current execution queue as last reported.
type QueueView struct {
	Queued  []model.QueueEntry
	Running []model.QueueEntry
}

// Syncer triggers the post-terminal corrective pull and polling teardown.
// *transport.Service satisfies it.
type Syncer interface {
	FinalSync(campaignID string)
}
