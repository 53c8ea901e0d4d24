package desk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bcast/internal/audience"
	"bcast/internal/dispatch"
	"bcast/internal/draft"
	"bcast/internal/eventbus"
	"bcast/internal/model"
	"bcast/internal/store"
	logx "bcast/pkg/logx"
)

// Engine is the campaign lifecycle slice of the dispatch client.
type Engine interface {
	Create(ctx context.Context, sub model.Submission) (string, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Watcher is the transport control surface the desk drives when views open
// and close.
type Watcher interface {
	Watch(id string)
	Unwatch(id string)
	Refresh(id string)
	RefreshQueue()
}

// Directory is the read side of the local store.
type Directory interface {
	Contacts(ctx context.Context) ([]model.Contact, error)
	Senders(ctx context.Context) ([]model.Sender, error)
	Templates(ctx context.Context) ([]model.Template, error)
	Template(ctx context.Context, id string) (model.Template, error)
	Categories(ctx context.Context) ([]model.Category, error)
}

// Auditor records operator actions. *store.Store satisfies Directory and
// Auditor both.
type Auditor interface {
	AppendAudit(ctx context.Context, e store.AuditEntry) error
}

// Tracker is the reconciliation hooks the desk needs around create/delete.
type Tracker interface {
	Seed(c model.Campaign)
	Forget(id string)
}

// Config tunes desk behavior.
type Config struct {
	// DismissAfter is how long a transient notice stays before
	// auto-dismissing. Zero disables auto-dismiss.
	DismissAfter time.Duration
}

// Desk is the operator command surface.
type Desk struct {
	cfg Config

	engine   Engine
	watcher  Watcher
	dir      Directory
	audit    Auditor
	tracker  Tracker
	resolver *audience.Resolver
	bus      eventbus.Bus
	log      logx.Logger

	mu      sync.Mutex
	builder *draft.Builder
	open    map[string]struct{}

	notices   []Notice
	timers    map[uint64]*time.Timer
	noticeSeq uint64

	unsub func()
}

func New(cfg Config, engine Engine, watcher Watcher, dir Directory, audit Auditor, tracker Tracker, bus eventbus.Bus, log logx.Logger) *Desk {
	return &Desk{
		cfg:      cfg,
		engine:   engine,
		watcher:  watcher,
		dir:      dir,
		audit:    audit,
		tracker:  tracker,
		resolver: audience.NewResolver(),
		bus:      bus,
		log:      log,
		open:     map[string]struct{}{},
		timers:   map[uint64]*time.Timer{},
	}
}

// Start loads the directory pool and begins translating transport edges
// into operator notices.
func (d *Desk) Start(ctx context.Context) error {
	if err := d.ReloadDirectory(ctx); err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	if d.bus != nil {
		ch, unsub := d.bus.Subscribe(32)
		d.mu.Lock()
		d.unsub = unsub
		d.mu.Unlock()
		go d.consume(ch)
	}
	d.log.Info("desk ready", logx.Int("contacts", d.resolver.Size()))
	return nil
}

// Stop cancels notice timers and detaches from the bus. Open views are
// closed so polling stops with the process.
func (d *Desk) Stop(ctx context.Context) {
	d.mu.Lock()
	unsub := d.unsub
	d.unsub = nil
	for id := range d.open {
		d.watcher.Unwatch(id)
		delete(d.open, id)
	}
	d.dropAllNoticesLocked()
	d.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// ReloadDirectory re-reads the contact pool into the audience resolver.
func (d *Desk) ReloadDirectory(ctx context.Context) error {
	contacts, err := d.dir.Contacts(ctx)
	if err != nil {
		return err
	}
	d.resolver.SetPool(contacts)
	return nil
}

func (d *Desk) consume(ch <-chan eventbus.Event) {
	for ev := range ch {
		switch ev.Type {
		case eventbus.TopicPushDown:
			d.notify(NoticeWarn, "live updates lost; falling back to polling")
		case eventbus.TopicPushUp:
			d.notify(NoticeInfo, "live updates restored")
		case eventbus.TopicPullError:
			d.notify(NoticeWarn, "sync with dispatch engine failed; will retry")
		}
	}
}

// ---- draft wizard ----

// NewDraft begins a fresh wizard session, replacing any draft in progress.
func (d *Desk) NewDraft() draft.Step {
	d.mu.Lock()
	d.builder = draft.New()
	step := d.builder.Step()
	d.mu.Unlock()
	return step
}

// DiscardDraft abandons the draft in progress, if any.
func (d *Desk) DiscardDraft() {
	d.mu.Lock()
	d.builder = nil
	d.mu.Unlock()
}

// Draft returns the live builder, or ErrNoDraft.
func (d *Desk) Draft() (*draft.Builder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.builder == nil {
		return nil, ErrNoDraft
	}
	return d.builder, nil
}

// SetBasicInfo records step one.
func (d *Desk) SetBasicInfo(v draft.BasicInfo) error {
	b, err := d.Draft()
	if err != nil {
		return err
	}
	d.mu.Lock()
	b.SetBasicInfo(v)
	d.mu.Unlock()
	return nil
}

// SetContent records step two. A template reference is resolved against the
// directory so the preview and submission carry the template body.
func (d *Desk) SetContent(ctx context.Context, v draft.Content) error {
	b, err := d.Draft()
	if err != nil {
		return err
	}
	if v.TemplateID != "" && v.TemplateBody == "" {
		tpl, err := d.dir.Template(ctx, v.TemplateID)
		if err != nil {
			return fmt.Errorf("resolve template: %w", err)
		}
		v.TemplateBody = tpl.Body
	}
	d.mu.Lock()
	b.SetContent(v)
	d.mu.Unlock()
	return nil
}

// SetAudience records step three. Selected senders must be connected, and
// the filter's recipient count is resolved against the current pool.
func (d *Desk) SetAudience(ctx context.Context, v draft.Audience) error {
	b, err := d.Draft()
	if err != nil {
		return err
	}
	if len(v.SenderIDs) > 0 {
		senders, err := d.dir.Senders(ctx)
		if err != nil {
			return fmt.Errorf("load senders: %w", err)
		}
		connected := map[string]bool{}
		for _, snd := range senders {
			connected[snd.ID] = snd.Connected
		}
		for _, id := range v.SenderIDs {
			if !connected[id] {
				return fmt.Errorf("%w: %s", ErrSenderNotConnected, id)
			}
		}
	}
	v.RecipientCount = d.resolver.Count(v.Filter)
	d.mu.Lock()
	b.SetAudience(v)
	d.mu.Unlock()
	return nil
}

// Advance validates the current step and moves forward.
func (d *Desk) Advance() (draft.Step, error) {
	b, err := d.Draft()
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := b.Next(); err != nil {
		return b.Step(), err
	}
	return b.Step(), nil
}

// Retreat moves back one step, preserving all entered values.
func (d *Desk) Retreat() (draft.Step, error) {
	b, err := d.Draft()
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	b.Back()
	step := b.Step()
	d.mu.Unlock()
	return step, nil
}

// Preview renders the draft's message with sample variable values.
func (d *Desk) Preview() (string, error) {
	b, err := d.Draft()
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return b.Preview(), nil
}

// Submit validates the whole draft, creates the campaign on the dispatch
// engine, and seeds the local aggregate. The wizard session ends only once
// the engine accepted the payload; on an engine failure the draft is left
// exactly as it was, id and step included, for another attempt.
func (d *Desk) Submit(ctx context.Context) (string, error) {
	b, err := d.Draft()
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	sub, err := b.Build()
	d.mu.Unlock()
	if err != nil {
		return "", err
	}

	started := time.Now()
	id, err := d.engine.Create(ctx, sub)
	if err != nil {
		d.notify(NoticeWarn, "campaign creation failed")
		return "", fmt.Errorf("submit draft: %w", err)
	}

	d.mu.Lock()
	d.builder = nil
	d.mu.Unlock()

	d.tracker.Seed(model.Campaign{
		ID:          id,
		Name:        sub.Name,
		Description: sub.Description,
		Message:     sub.Message,
		TemplateID:  sub.TemplateID,
		SenderIDs:   sub.SenderIDs,
		Filter:      sub.Filter,
		Status:      model.CampaignDraft,
		Counters:    model.Counters{Total: sub.RecipientCount, Pending: sub.RecipientCount},
		CreatedAt:   time.Now(),
		ScheduledAt: sub.ScheduledAt,
	})
	d.recordAudit(ctx, "submit", id, nil, started)
	d.notify(NoticeInfo, "campaign created")
	d.log.Info("campaign submitted", logx.String("campaign", id), logx.Int("recipients", sub.RecipientCount))
	return id, nil
}

// ---- campaign lifecycle ----

// StartCampaign asks the engine to begin dispatching.
func (d *Desk) StartCampaign(ctx context.Context, id string) error {
	started := time.Now()
	err := d.engine.Start(ctx, id)
	d.recordAudit(ctx, "start", id, err, started)
	if err != nil {
		return d.mapEngineErr(id, err)
	}
	d.watcher.Refresh(id)
	return nil
}

// StopCampaign halts dispatching.
func (d *Desk) StopCampaign(ctx context.Context, id string) error {
	started := time.Now()
	err := d.engine.Stop(ctx, id)
	d.recordAudit(ctx, "stop", id, err, started)
	if err != nil {
		return d.mapEngineErr(id, err)
	}
	d.watcher.Refresh(id)
	return nil
}

// DeleteCampaign removes a campaign that has not started running, closing
// its view and dropping the local aggregate.
func (d *Desk) DeleteCampaign(ctx context.Context, id string) error {
	started := time.Now()
	err := d.engine.Delete(ctx, id)
	d.recordAudit(ctx, "delete", id, err, started)
	if err != nil {
		return d.mapEngineErr(id, err)
	}
	d.CloseView(id)
	d.tracker.Forget(id)
	return nil
}

// ---- views ----

// OpenView starts watching a campaign the operator is looking at and pulls
// a fresh snapshot immediately.
func (d *Desk) OpenView(id string) {
	d.mu.Lock()
	d.open[id] = struct{}{}
	d.mu.Unlock()
	d.watcher.Watch(id)
	d.watcher.Refresh(id)
}

// CloseView stops watching. Closing an unopened view is a no-op.
func (d *Desk) CloseView(id string) {
	d.mu.Lock()
	_, wasOpen := d.open[id]
	delete(d.open, id)
	d.mu.Unlock()
	if wasOpen {
		d.watcher.Unwatch(id)
	}
}

// Refresh re-pulls one campaign and the execution queue on demand.
func (d *Desk) Refresh(id string) {
	d.watcher.Refresh(id)
	d.watcher.RefreshQueue()
}

// ---- helpers ----

func (d *Desk) mapEngineErr(id string, err error) error {
	if dispatch.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.notify(NoticeWarn, "dispatch engine request failed")
	return err
}

func (d *Desk) recordAudit(ctx context.Context, action, target string, opErr error, started time.Time) {
	if d.audit == nil {
		return
	}
	e := store.AuditEntry{
		Action: action,
		Target: target,
		TookMS: time.Since(started).Milliseconds(),
	}
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if err := d.audit.AppendAudit(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Warn("audit write failed", logx.String("action", action), logx.Err(err))
	}
}
