package model

// Wire types for the dispatch engine's push channel. Delivery is
// asynchronous, out of order, and at least once; the reconciliation engine
// is responsible for making their application safe under both.

// CampaignStatusEvent reports a campaign lifecycle change.
// Counters are optional; when present they are a point-in-time aggregate.
type CampaignStatusEvent struct {
	BroadcastID string         `json:"broadcast_id"`
	Status      CampaignStatus `json:"status"`
	Counters    *Counters      `json:"counters,omitempty"`
}

// RecipientStatusEvent reports a single recipient's delivery outcome.
type RecipientStatusEvent struct {
	BroadcastID string          `json:"broadcast_id"`
	RecipientID string          `json:"recipient_id"`
	Status      RecipientStatus `json:"status"`
	Error       string          `json:"error_message,omitempty"`
}

// QueueUpdateEvent is a wholesale replacement of the execution queue view.
type QueueUpdateEvent struct {
	Queued  []QueueEntry `json:"queue"`
	Running []QueueEntry `json:"running"`
}
