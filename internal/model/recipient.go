package model

import "time"

// Recipient is one addressee within a campaign.
type Recipient struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Status     RecipientStatus `json:"status"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	FailedAt   *time.Time      `json:"failed_at,omitempty"`
	Error      string          `json:"error_message,omitempty"`
}
