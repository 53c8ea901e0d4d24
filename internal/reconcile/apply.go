package reconcile

import (
	"bcast/internal/dispatch"
	"bcast/internal/eventbus"
	"bcast/internal/model"
	"bcast/internal/transport"
	logx "bcast/pkg/logx"
)

// apply merges one transport event into the aggregates. Called only from the
// run loop; takes the write lock for the duration of the merge.
func (s *Service) apply(ev transport.Event) {
	switch ev.Kind {
	case transport.KindPush:
		if ev.Push == nil {
			return
		}
		s.applyPush(ev, *ev.Push)
	case transport.KindPull:
		if ev.Pull == nil {
			return
		}
		if ev.Pull.Queue != nil {
			s.applyQueue(*ev.Pull.Queue)
			return
		}
		s.applyPull(ev, *ev.Pull)
	case transport.KindPushDown:
		s.publishRaw(eventbus.TopicPushDown, ev.Err)
	case transport.KindPushUp:
		s.publishRaw(eventbus.TopicPushUp, nil)
	case transport.KindPullError:
		s.publishRaw(eventbus.TopicPullError, ev.CampaignID)
	}
}

func (s *Service) applyPush(ev transport.Event, push dispatch.PushEvent) {
	switch push.Kind {
	case dispatch.KindCampaignStatus:
		if push.Campaign != nil {
			s.applyCampaignStatus(ev, *push.Campaign)
		}
	case dispatch.KindRecipientStatus:
		if push.Recipient != nil {
			s.applyRecipientStatus(ev, *push.Recipient)
		}
	case dispatch.KindQueueUpdate:
		if push.Queue != nil {
			s.applyQueue(*push.Queue)
		}
	}
}

func (s *Service) applyCampaignStatus(ev transport.Event, e model.CampaignStatusEvent) {
	if e.BroadcastID == "" || !e.Status.Valid() {
		s.log.Warn("discarding malformed campaign_status",
			logx.String("campaign", e.BroadcastID), logx.String("status", string(e.Status)))
		return
	}

	s.mu.Lock()
	st := s.stateLocked(e.BroadcastID)

	cur := st.campaign.Status
	if st.frozen {
		if e.Status == cur {
			// Re-delivery of the terminal status itself; nothing to note.
			s.mu.Unlock()
			return
		}
		st.recordAnomalyLocked(Anomaly{
			At:         ev.At,
			CampaignID: e.BroadcastID,
			From:       string(cur),
			To:         string(e.Status),
			Source:     "push",
			Reason:     "status event for terminal campaign",
		})
		s.mu.Unlock()
		s.log.Warn("status event for terminal campaign dropped",
			logx.String("campaign", e.BroadcastID),
			logx.String("from", string(cur)), logx.String("to", string(e.Status)))
		s.publishRaw(eventbus.TopicAnomaly, e.BroadcastID)
		return
	}

	switch {
	case cur == "":
		// First sighting of an engine-created campaign; accept as baseline.
		st.campaign.Status = e.Status
	case e.Status == cur:
		// At-least-once re-delivery; state already reflects it.
		s.mu.Unlock()
		return
	case cur.CanTransition(e.Status):
		st.campaign.Status = e.Status
	default:
		st.recordAnomalyLocked(Anomaly{
			At:         ev.At,
			CampaignID: e.BroadcastID,
			From:       string(cur),
			To:         string(e.Status),
			Source:     "push",
			Reason:     "illegal campaign transition",
		})
		s.mu.Unlock()
		s.log.Warn("stale campaign status dropped",
			logx.String("campaign", e.BroadcastID),
			logx.String("from", string(cur)), logx.String("to", string(e.Status)))
		s.publishRaw(eventbus.TopicAnomaly, e.BroadcastID)
		return
	}

	// Counters ride along only when the status itself was applied, so a
	// stale event can't smuggle in stale aggregates.
	if e.Counters != nil {
		st.campaign.Counters = *e.Counters
	}

	terminal := st.campaign.Status.IsTerminal()
	if terminal {
		st.frozen = true
	}
	s.mu.Unlock()

	s.publish(eventbus.TopicCampaignUpdated, e.BroadcastID)
	if terminal && s.syncer != nil {
		s.syncer.FinalSync(e.BroadcastID)
	}
}

func (s *Service) applyRecipientStatus(ev transport.Event, e model.RecipientStatusEvent) {
	if e.BroadcastID == "" || e.RecipientID == "" || !e.Status.Valid() {
		s.log.Warn("discarding malformed recipient_status",
			logx.String("campaign", e.BroadcastID), logx.String("recipient", e.RecipientID))
		return
	}

	s.mu.Lock()
	st := s.stateLocked(e.BroadcastID)

	if st.frozen {
		s.mu.Unlock()
		return
	}

	r := st.recipients[e.RecipientID]
	if r == nil {
		// Push outran the roster pull. Admit the recipient; the next pull
		// fills in name and phone.
		r = &model.Recipient{ID: e.RecipientID, CampaignID: e.BroadcastID, Status: model.RecipientPending}
		st.recipients[e.RecipientID] = r
		st.order = append(st.order, e.RecipientID)
	}

	switch {
	case e.Status == r.Status:
		// Duplicate delivery; already applied (or already counted below).
	case r.Status.CanTransition(e.Status):
		r.Status = e.Status
		if e.Error != "" {
			r.Error = e.Error
		}
		switch e.Status {
		case model.RecipientSent:
			t := ev.At
			r.SentAt = &t
		case model.RecipientFailed:
			t := ev.At
			r.FailedAt = &t
		}
	default:
		st.recordAnomalyLocked(Anomaly{
			At:          ev.At,
			CampaignID:  e.BroadcastID,
			RecipientID: e.RecipientID,
			From:        string(r.Status),
			To:          string(e.Status),
			Source:      "push",
			Reason:      "illegal recipient transition",
		})
		s.mu.Unlock()
		s.publishRaw(eventbus.TopicAnomaly, e.BroadcastID)
		return
	}

	// Count each (recipient, outcome) pair once, no matter how many times
	// the engine re-delivers it.
	counted := false
	if e.Status.IsTerminal() {
		key := appliedKey{recipientID: e.RecipientID, status: e.Status}
		if _, dup := st.applied[key]; !dup {
			st.applied[key] = struct{}{}
			switch e.Status {
			case model.RecipientSent:
				st.campaign.Counters.Sent++
			case model.RecipientFailed:
				st.campaign.Counters.Failed++
			}
			if st.campaign.Counters.Pending > 0 {
				st.campaign.Counters.Pending--
			}
			counted = true
		}
	}
	s.mu.Unlock()

	if counted {
		s.publish(eventbus.TopicCampaignUpdated, e.BroadcastID)
	}
	s.publish(eventbus.TopicRecipientUpdated, e.BroadcastID)
}

// applyPull merges a full pull snapshot. Pull data is authoritative for
// counters and for recipients it has newer knowledge of; it still cannot
// move any status backward.
func (s *Service) applyPull(ev transport.Event, pull transport.PullSnapshot) {
	id := pull.CampaignID
	if id == "" && pull.Campaign != nil {
		id = pull.Campaign.ID
	}
	if id == "" {
		return
	}

	s.mu.Lock()
	st := s.stateLocked(id)

	if st.frozen {
		// A frozen campaign admits exactly one final reconciliation pull.
		if !pull.Final || st.finalDone {
			s.mu.Unlock()
			return
		}
		st.finalDone = true
	}

	if pull.Campaign != nil {
		s.mergeCampaignLocked(st, ev, *pull.Campaign)
	}
	for _, in := range pull.Recipients {
		s.mergeRecipientLocked(st, ev, in)
	}
	if pull.Counters != nil {
		// The snapshot aggregate supersedes locally accumulated counts.
		st.campaign.Counters = *pull.Counters
	}

	terminal := st.campaign.Status.IsTerminal()
	alreadyFrozen := st.frozen
	if terminal {
		st.frozen = true
	}
	s.mu.Unlock()

	s.publish(eventbus.TopicCampaignUpdated, id)
	s.publish(eventbus.TopicRecipientUpdated, id)
	if terminal && !alreadyFrozen && s.syncer != nil {
		s.syncer.FinalSync(id)
	}
}

func (s *Service) mergeCampaignLocked(st *state, ev transport.Event, in model.Campaign) {
	cur := st.campaign.Status
	switch {
	case !in.Status.Valid():
		st.recordAnomalyLocked(Anomaly{
			At: ev.At, CampaignID: in.ID,
			From: string(cur), To: string(in.Status),
			Source: "pull", Reason: "unknown campaign status",
		})
		return
	case cur == "" || in.Status == cur || cur.CanTransition(in.Status):
		counters := st.campaign.Counters
		st.campaign = in
		st.campaign.Counters = counters
	default:
		// Snapshot is older than local state; keep ours, note the skew.
		st.recordAnomalyLocked(Anomaly{
			At: ev.At, CampaignID: in.ID,
			From: string(cur), To: string(in.Status),
			Source: "pull", Reason: "stale campaign snapshot",
		})
	}
}

func (s *Service) mergeRecipientLocked(st *state, ev transport.Event, in model.Recipient) {
	r := st.recipients[in.ID]
	if r == nil {
		cp := in
		st.recipients[in.ID] = &cp
		st.order = append(st.order, in.ID)
		if in.Status.IsTerminal() {
			st.applied[appliedKey{recipientID: in.ID, status: in.Status}] = struct{}{}
		}
		return
	}

	switch {
	case in.Status == r.Status || r.Status.CanTransition(in.Status):
		status := in.Status
		*r = in
		r.Status = status
		if status.IsTerminal() {
			// Mark counted so a late push duplicate can't double-count.
			st.applied[appliedKey{recipientID: in.ID, status: status}] = struct{}{}
		}
	default:
		st.recordAnomalyLocked(Anomaly{
			At: ev.At, CampaignID: in.CampaignID, RecipientID: in.ID,
			From: string(r.Status), To: string(in.Status),
			Source: "pull", Reason: "recipient status regression",
		})
	}
}

func (s *Service) applyQueue(q model.QueueUpdateEvent) {
	s.mu.Lock()
	s.queue = QueueView{
		Queued:  append([]model.QueueEntry(nil), q.Queued...),
		Running: append([]model.QueueEntry(nil), q.Running...),
	}
	s.mu.Unlock()
	s.publishRaw(eventbus.TopicQueueUpdated, nil)
}

func (s *Service) stateLocked(id string) *state {
	st := s.states[id]
	if st == nil {
		st = newState(id)
		s.states[id] = st
	}
	return st
}

func (st *state) recordAnomalyLocked(a Anomaly) {
	st.anomalies = append(st.anomalies, a)
	if len(st.anomalies) > maxAnomalies {
		st.anomalies = st.anomalies[len(st.anomalies)-maxAnomalies:]
	}
}

func (s *Service) publishRaw(topic string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: topic, Data: data})
	}
}
