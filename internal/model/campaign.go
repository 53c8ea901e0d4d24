package model

import "time"

// Counters are the aggregate delivery counters of one campaign.
// Once a campaign is running, Sent+Failed+Pending == Total and Total never
// decreases.
type Counters struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Consistent reports whether the bucket counts add up to the total.
func (c Counters) Consistent() bool {
	return c.Sent+c.Failed+c.Pending == c.Total
}

// MessageKind selects between a literal message body and a template reference.
type MessageKind string

const (
	MessageCustom   MessageKind = "custom"
	MessageTemplate MessageKind = "template"
)

// ScheduleKind selects immediate dispatch or a future instant.
type ScheduleKind string

const (
	ScheduleNow   ScheduleKind = "now"
	ScheduleLater ScheduleKind = "later"
)

// FilterSnapshot is the audience-selection criteria captured at submission
// time. It is an immutable value; the recipient count derived from it at
// build time is advisory, not a guarantee.
type FilterSnapshot struct {
	Search      string   `json:"search,omitempty"`
	CategoryIDs []string `json:"category_ids,omitempty"`
}

// Empty reports whether the snapshot filters nothing.
func (f FilterSnapshot) Empty() bool {
	return f.Search == "" && len(f.CategoryIDs) == 0
}

// Campaign is one fan-out messaging job as reported by the dispatch engine.
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Message     string         `json:"message"`
	TemplateID  string         `json:"template_id,omitempty"`
	SenderIDs   []string       `json:"sender_ids"`
	Filter      FilterSnapshot `json:"filter"`
	Status      CampaignStatus `json:"status"`
	Counters    Counters       `json:"counters"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
}

// QueueEntry is a campaign waiting for (or undergoing) execution.
// The dispatch engine is the sole source of truth for queue membership.
type QueueEntry struct {
	CampaignID  string     `json:"campaign_id"`
	Name        string     `json:"name"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Submission is the immutable payload produced by a completed draft.
// It is what the console POSTs to the dispatch engine's create endpoint.
type Submission struct {
	DraftID        string         `json:"draft_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	MessageKind    MessageKind    `json:"message_kind"`
	Message        string         `json:"message,omitempty"`
	TemplateID     string         `json:"template_id,omitempty"`
	SenderIDs      []string       `json:"sender_ids"`
	Filter         FilterSnapshot `json:"filter"`
	RecipientCount int            `json:"recipient_count"`
	Schedule       ScheduleKind   `json:"schedule"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
}
