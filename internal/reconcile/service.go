package reconcile

import (
	"context"
	"sync"

	"bcast/internal/eventbus"
	"bcast/internal/model"
	"bcast/internal/transport"
	logx "bcast/pkg/logx"
)

// Service is the reconciliation engine. One instance serves the whole
// console; its run loop is the single writer of all aggregates.
type Service struct {
	events <-chan transport.Event
	syncer Syncer
	bus    eventbus.Bus
	log    logx.Logger

	// mu guards states/queue for readers. The run loop is the only writer,
	// so readers only ever block for the duration of one event.
	mu     sync.RWMutex
	states map[string]*state
	queue  QueueView

	startMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(events <-chan transport.Event, syncer Syncer, bus eventbus.Bus, log logx.Logger) *Service {
	return &Service{
		events: events,
		syncer: syncer,
		bus:    bus,
		log:    log,
		states: map[string]*state{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx)
	s.log.Info("reconciliation engine started")
}

func (s *Service) Stop(ctx context.Context) {
	s.startMu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.startMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("reconciliation engine stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.apply(ev)
		}
	}
}

// ---- read side ----

// Snapshot returns a deep copy of one campaign's reconciled state.
func (s *Service) Snapshot(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return Snapshot{}, false
	}
	return s.copyLocked(st), true
}

// Campaigns lists all known campaign aggregates.
func (s *Service) Campaigns() []model.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Campaign, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.campaign)
	}
	return out
}

// Queue returns the last reported execution queue.
func (s *Service) Queue() QueueView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return QueueView{
		Queued:  append([]model.QueueEntry(nil), s.queue.Queued...),
		Running: append([]model.QueueEntry(nil), s.queue.Running...),
	}
}

// Seed registers a campaign the console just created itself, so the view
// has an aggregate before the first pull lands.
func (s *Service) Seed(c model.Campaign) {
	s.mu.Lock()
	if _, ok := s.states[c.ID]; !ok {
		st := newState(c.ID)
		st.campaign = c
		s.states[c.ID] = st
	}
	s.mu.Unlock()
	s.publish(eventbus.TopicCampaignUpdated, c.ID)
}

// Forget drops a campaign's aggregate after the operator deletes it.
func (s *Service) Forget(id string) {
	s.mu.Lock()
	delete(s.states, id)
	s.mu.Unlock()
	s.publish(eventbus.TopicCampaignUpdated, id)
}

func (s *Service) copyLocked(st *state) Snapshot {
	snap := Snapshot{Campaign: st.campaign}
	snap.Recipients = make([]model.Recipient, 0, len(st.order))
	for _, id := range st.order {
		if r := st.recipients[id]; r != nil {
			snap.Recipients = append(snap.Recipients, *r)
		}
	}
	snap.Anomalies = append([]Anomaly(nil), st.anomalies...)
	return snap
}

func (s *Service) publish(topic, campaignID string) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: topic, Data: campaignID})
	}
}
