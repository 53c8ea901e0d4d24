package transport

import (
	"time"

	"bcast/internal/dispatch"
	"bcast/internal/model"
)

// Kind discriminates normalized events.
type Kind int

const (
	// KindPush carries one decoded push event.
	KindPush Kind = iota
	// KindPull carries one pull snapshot (authoritative for aggregates).
	KindPull
	// KindPushDown / KindPushUp mark push channel edges.
	KindPushDown
	KindPushUp
	// KindPullError reports a failed pull attempt (transport error).
	KindPullError
)

func (k Kind) String() string {
	switch k {
	case KindPush:
		return "push"
	case KindPull:
		return "pull"
	case KindPushDown:
		return "push_down"
	case KindPushUp:
		return "push_up"
	case KindPullError:
		return "pull_error"
	default:
		return "unknown"
	}
}

// PullSnapshot is the merged result of one pull round for a campaign:
// campaign snapshot, recipient list, and counters, fetched under a single
// per-campaign request sequence number. Final marks the one post-terminal
// reconciliation pull.
type PullSnapshot struct {
	CampaignID string
	ReqSeq     uint64
	Campaign   *model.Campaign
	Recipients []model.Recipient
	Counters   *model.Counters
	// Queue is set on queue-only pulls; CampaignID is empty then.
	Queue *model.QueueUpdateEvent
	Final bool
}

// Event is one normalized item on the internal stream.
// Seq is the local receipt order; it is strictly increasing across the
// whole stream and carries no meaning beyond ordering.
type Event struct {
	Seq        uint64
	At         time.Time
	Kind       Kind
	CampaignID string

	Push *dispatch.PushEvent
	Pull *PullSnapshot
	Err  error
}
