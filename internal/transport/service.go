package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"bcast/internal/dispatch"
	"bcast/internal/model"
	logx "bcast/pkg/logx"
)

// Config controls the adapter's pull cadence.
type Config struct {
	// RefreshEvery is the routine re-sync interval for watched campaigns.
	RefreshEvery time.Duration
	// FallbackEvery is the tighter interval used while push is down.
	FallbackEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.RefreshEvery <= 0 {
		c.RefreshEvery = 30 * time.Second
	}
	if c.FallbackEvery <= 0 {
		c.FallbackEvery = 5 * time.Second
	}
	return c
}

// Puller is the pull side consumed by the adapter. *dispatch.Client
// satisfies it; tests substitute a fake.
type Puller interface {
	Campaign(ctx context.Context, id string) (model.Campaign, error)
	Recipients(ctx context.Context, id string) ([]model.Recipient, error)
	Progress(ctx context.Context, id string) (model.Counters, error)
	Queue(ctx context.Context) (model.QueueUpdateEvent, error)
}

// watch is the per-campaign polling state. Guarded by Service.mu.
type watch struct {
	refreshID   cron.EntryID
	fallbackID  cron.EntryID
	hasRefresh  bool
	hasFallback bool

	// adhoc entries exist only to sequence on-demand pulls for campaigns
	// nobody is viewing; they never get cron entries.
	adhoc bool

	// reqSeq numbers pull rounds; delivered is the newest round already
	// forwarded. A round that finishes after a newer one is discarded.
	reqSeq    uint64
	delivered uint64

	terminal bool
}

// Service is the transport adapter. It implements dispatch.PushHandler.
type Service struct {
	mu  sync.Mutex
	cfg Config

	client Puller
	log    logx.Logger

	out chan Event
	seq atomic.Uint64

	cron     *cron.Cron
	watches  map[string]*watch
	pushDown bool

	runCtx context.Context
	cancel context.CancelFunc
}

func New(cfg Config, client Puller, log logx.Logger) *Service {
	return &Service{
		cfg:     cfg.withDefaults(),
		client:  client,
		log:     log,
		out:     make(chan Event, 256),
		cron:    cron.New(),
		watches: map[string]*watch{},
	}
}

// Events is the normalized stream. The reconciliation engine is its only
// consumer.
func (s *Service) Events() <-chan Event { return s.out }

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.log.Info("transport adapter started",
		logx.Duration("refresh", s.cfg.RefreshEvery),
		logx.Duration("fallback", s.cfg.FallbackEvery))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	for id, w := range s.watches {
		s.dropEntriesLocked(w)
		delete(s.watches, id)
	}
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		// in-flight pulls finish in background
	}
	s.log.Info("transport adapter stopped")
}

// Apply swaps the pull cadence at runtime and reschedules watched campaigns.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.withDefaults()
	for id, w := range s.watches {
		if !w.terminal && !w.adhoc {
			s.scheduleLocked(id, w)
		}
	}
}

// Watch starts routine polling for a campaign the operator is viewing.
// Watching an already-watched id is a no-op.
func (s *Service) Watch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.watches[id]; ok {
		// Promote an on-demand entry to a real watch.
		if w.adhoc && !w.terminal {
			w.adhoc = false
			s.scheduleLocked(id, w)
		}
		return
	}
	w := &watch{}
	s.watches[id] = w
	s.scheduleLocked(id, w)
	s.log.Debug("watching campaign", logx.String("campaign", id))
}

// Unwatch cancels all polling for a campaign; called when the view closes.
func (s *Service) Unwatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[id]
	if !ok {
		return
	}
	s.dropEntriesLocked(w)
	delete(s.watches, id)
	s.log.Debug("unwatched campaign", logx.String("campaign", id))
}

// Refresh issues one on-demand pull round for a campaign. It works with or
// without a watch, so lifecycle commands fired from a list view still fetch
// a fresh snapshot.
func (s *Service) Refresh(id string) {
	go s.pull(id, false)
}

// RefreshQueue pulls the execution queue snapshot once.
func (s *Service) RefreshQueue() {
	go s.pullQueue()
}

// FinalSync stops polling a campaign that reached a terminal status and
// issues the single post-terminal reconciliation pull.
// Idempotent: only the first call for an id pulls.
func (s *Service) FinalSync(id string) {
	s.mu.Lock()
	w := s.watches[id]
	if w == nil {
		w = &watch{}
		s.watches[id] = w
	}
	if w.terminal {
		s.mu.Unlock()
		return
	}
	w.terminal = true
	s.dropEntriesLocked(w)
	s.mu.Unlock()
	go s.pull(id, true)
}

// ---- dispatch.PushHandler ----

func (s *Service) OnEvent(ev dispatch.PushEvent) {
	id := ""
	switch {
	case ev.Campaign != nil:
		id = ev.Campaign.BroadcastID
	case ev.Recipient != nil:
		id = ev.Recipient.BroadcastID
	}
	s.forward(Event{Kind: KindPush, CampaignID: id, Push: &ev})
}

func (s *Service) OnDown(err error) {
	s.mu.Lock()
	s.pushDown = true
	for id, w := range s.watches {
		if !w.terminal && !w.adhoc {
			s.scheduleLocked(id, w)
		}
	}
	n := len(s.watches)
	s.mu.Unlock()

	s.log.Warn("push down; fallback polling engaged", logx.Int("watched", n), logx.Err(err))
	s.forward(Event{Kind: KindPushDown, Err: err})
}

func (s *Service) OnUp(reconnected bool) {
	s.mu.Lock()
	s.pushDown = false
	ids := make([]string, 0, len(s.watches))
	for id, w := range s.watches {
		if !w.terminal && !w.adhoc {
			s.scheduleLocked(id, w)
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	s.forward(Event{Kind: KindPushUp})
	if !reconnected {
		return
	}
	// One corrective pull per displayed campaign repairs whatever the
	// outage swallowed; routine cadence resumes afterwards.
	s.log.Info("push restored; issuing corrective pulls", logx.Int("campaigns", len(ids)))
	for _, id := range ids {
		go s.pull(id, false)
	}
	go s.pullQueue()
}

// ---- internals ----

// scheduleLocked (re)installs cron entries for one watch according to the
// current cadence and push state. Callers hold mu.
func (s *Service) scheduleLocked(id string, w *watch) {
	s.dropEntriesLocked(w)

	refreshID, err := s.cron.AddFunc("@every "+s.cfg.RefreshEvery.String(), func() { s.pull(id, false) })
	if err == nil {
		w.refreshID = refreshID
		w.hasRefresh = true
	} else {
		s.log.Error("refresh schedule failed", logx.String("campaign", id), logx.Err(err))
	}

	if s.pushDown {
		fallbackID, err := s.cron.AddFunc("@every "+s.cfg.FallbackEvery.String(), func() { s.pull(id, false) })
		if err == nil {
			w.fallbackID = fallbackID
			w.hasFallback = true
		} else {
			s.log.Error("fallback schedule failed", logx.String("campaign", id), logx.Err(err))
		}
	}
}

func (s *Service) dropEntriesLocked(w *watch) {
	if w.hasRefresh {
		s.cron.Remove(w.refreshID)
		w.hasRefresh = false
	}
	if w.hasFallback {
		s.cron.Remove(w.fallbackID)
		w.hasFallback = false
	}
}

// pull runs one full snapshot round for a campaign and forwards it unless a
// newer round has already been delivered.
func (s *Service) pull(id string, final bool) {
	s.mu.Lock()
	w := s.watches[id]
	if w == nil {
		// On-demand or final pull for a campaign nobody is viewing; track
		// sequencing but schedule nothing.
		w = &watch{adhoc: true, terminal: final}
		s.watches[id] = w
	}
	w.reqSeq++
	req := w.reqSeq
	ctx := s.runCtx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}

	campaign, err := s.client.Campaign(ctx, id)
	if err != nil {
		s.pullFailed(id, err)
		return
	}
	recipients, err := s.client.Recipients(ctx, id)
	if err != nil {
		s.pullFailed(id, err)
		return
	}
	counters, err := s.client.Progress(ctx, id)
	if err != nil {
		s.pullFailed(id, err)
		return
	}

	s.mu.Lock()
	if cur := s.watches[id]; cur == nil || req <= cur.delivered {
		// A newer round finished first; this response is stale.
		s.mu.Unlock()
		s.log.Debug("stale pull discarded", logx.String("campaign", id), logx.Uint64("req", req))
		return
	}
	s.watches[id].delivered = req
	s.mu.Unlock()

	s.forward(Event{
		Kind:       KindPull,
		CampaignID: id,
		Pull: &PullSnapshot{
			CampaignID: id,
			ReqSeq:     req,
			Campaign:   &campaign,
			Recipients: recipients,
			Counters:   &counters,
			Final:      final,
		},
	})
}

func (s *Service) pullQueue() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	q, err := s.client.Queue(ctx)
	if err != nil {
		s.pullFailed("", err)
		return
	}
	s.forward(Event{Kind: KindPull, Pull: &PullSnapshot{Queue: &q}})
}

func (s *Service) pullFailed(id string, err error) {
	s.log.Warn("pull failed", logx.String("campaign", id), logx.Err(err))
	s.forward(Event{Kind: KindPullError, CampaignID: id, Err: err})
}

// forward stamps and delivers one event. Delivery blocks rather than drops:
// the stream is the engine's source of truth and the engine is fast.
func (s *Service) forward(ev Event) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	ev.Seq = s.seq.Add(1)
	ev.At = time.Now()

	if ctx == nil {
		return
	}
	select {
	case s.out <- ev:
	case <-ctx.Done():
	}
}
