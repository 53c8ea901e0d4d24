package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"bcast/internal/dispatch"
	"bcast/internal/model"
	logx "bcast/pkg/logx"
)

// fakePuller serves canned snapshots; gates, when set, block Campaign calls
// until released so tests can force pull rounds to overlap.
type fakePuller struct {
	mu    sync.Mutex
	calls int
	gates []chan struct{}

	campaign model.Campaign
	counters model.Counters
	queue    model.QueueUpdateEvent
}

func (f *fakePuller) Campaign(ctx context.Context, id string) (model.Campaign, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	var gate chan struct{}
	if n < len(f.gates) {
		gate = f.gates[n]
	}
	c := f.campaign
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Campaign{}, ctx.Err()
		}
	}
	c.ID = id
	return c, nil
}

func (f *fakePuller) Recipients(ctx context.Context, id string) ([]model.Recipient, error) {
	return []model.Recipient{{ID: "r1", CampaignID: id, Status: model.RecipientPending}}, nil
}

func (f *fakePuller) Progress(ctx context.Context, id string) (model.Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters, nil
}

func (f *fakePuller) Queue(ctx context.Context) (model.QueueUpdateEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue, nil
}

func startService(t *testing.T, puller Puller) *Service {
	t.Helper()
	// Intervals long enough that cron never fires during a test; everything
	// observed is triggered explicitly.
	s := New(Config{RefreshEvery: time.Hour, FallbackEvery: time.Hour}, puller, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.Stop(stopCtx)
		stopCancel()
		cancel()
	})
	return s
}

func waitEvent(t *testing.T, s *Service, want Kind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %v event in time", want)
		}
	}
}

func assertNoEvent(t *testing.T, s *Service, within time.Duration) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(within):
	}
}

func TestRefreshForwardsSnapshot(t *testing.T) {
	puller := &fakePuller{counters: model.Counters{Total: 2, Pending: 2}}
	s := startService(t, puller)
	s.Watch("c1")

	s.Refresh("c1")
	ev := waitEvent(t, s, KindPull)
	if ev.CampaignID != "c1" || ev.Pull == nil {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Pull.Campaign == nil || ev.Pull.Campaign.ID != "c1" {
		t.Errorf("campaign = %+v", ev.Pull.Campaign)
	}
	if ev.Pull.Counters == nil || ev.Pull.Counters.Total != 2 {
		t.Errorf("counters = %+v", ev.Pull.Counters)
	}
	if len(ev.Pull.Recipients) != 1 {
		t.Errorf("recipients = %+v", ev.Pull.Recipients)
	}
	if ev.Pull.Final {
		t.Error("routine pull marked final")
	}
}

func TestRefreshWithoutWatchStillPulls(t *testing.T) {
	s := startService(t, &fakePuller{})

	// A lifecycle command from the list view refreshes a campaign nobody
	// has opened; the snapshot must still arrive.
	s.Refresh("ghost")
	ev := waitEvent(t, s, KindPull)
	if ev.CampaignID != "ghost" || ev.Pull.Final {
		t.Fatalf("event = %+v", ev)
	}

	// The on-demand entry must not join fallback polling when push drops.
	s.OnDown(nil)
	waitEvent(t, s, KindPushDown)
	s.mu.Lock()
	w := s.watches["ghost"]
	scheduled := w != nil && (w.hasRefresh || w.hasFallback)
	s.mu.Unlock()
	if scheduled {
		t.Fatal("on-demand refresh entry acquired cron entries")
	}
}

func TestWatchPromotesOnDemandEntry(t *testing.T) {
	s := startService(t, &fakePuller{})

	s.Refresh("c1")
	waitEvent(t, s, KindPull)

	s.Watch("c1")
	s.mu.Lock()
	w := s.watches["c1"]
	promoted := w != nil && !w.adhoc && w.hasRefresh
	s.mu.Unlock()
	if !promoted {
		t.Fatalf("watch did not promote on-demand entry: %+v", w)
	}
}

func TestStalePullDiscarded(t *testing.T) {
	gate1 := make(chan struct{})
	gate2 := make(chan struct{})
	puller := &fakePuller{gates: []chan struct{}{gate1, gate2}}
	s := startService(t, puller)
	s.Watch("c1")

	s.Refresh("c1") // round 1, parked on gate1
	s.Refresh("c1") // round 2, parked on gate2

	// Wait until both rounds are in flight before releasing out of order.
	deadline := time.Now().Add(2 * time.Second)
	for {
		puller.mu.Lock()
		n := puller.calls
		puller.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pull rounds never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(gate2)
	ev := waitEvent(t, s, KindPull)
	if ev.Pull.ReqSeq != 2 {
		t.Fatalf("delivered ReqSeq = %d, want 2", ev.Pull.ReqSeq)
	}

	// The older round finishes afterwards and must be discarded.
	close(gate1)
	assertNoEvent(t, s, 200*time.Millisecond)
}

func TestFinalSyncIdempotent(t *testing.T) {
	s := startService(t, &fakePuller{})
	s.Watch("c1")

	s.FinalSync("c1")
	ev := waitEvent(t, s, KindPull)
	if !ev.Pull.Final {
		t.Fatal("final sync pull not marked final")
	}

	s.FinalSync("c1")
	assertNoEvent(t, s, 200*time.Millisecond)
}

func TestFinalSyncWithoutWatch(t *testing.T) {
	s := startService(t, &fakePuller{})

	// Terminal status can arrive for a campaign nobody is viewing; the
	// final reconciliation still happens once.
	s.FinalSync("c9")
	ev := waitEvent(t, s, KindPull)
	if ev.CampaignID != "c9" || !ev.Pull.Final {
		t.Fatalf("event = %+v", ev)
	}
	s.FinalSync("c9")
	assertNoEvent(t, s, 200*time.Millisecond)
}

func TestPushEdgesAndCorrectivePulls(t *testing.T) {
	puller := &fakePuller{queue: model.QueueUpdateEvent{
		Queued: []model.QueueEntry{{CampaignID: "c1"}},
	}}
	s := startService(t, puller)
	s.Watch("c1")

	s.OnDown(nil)
	waitEvent(t, s, KindPushDown)

	s.OnUp(true)
	waitEvent(t, s, KindPushUp)

	// Reconnect repairs state: one campaign pull and one queue pull.
	var sawCampaign, sawQueue bool
	deadline := time.After(3 * time.Second)
	for !sawCampaign || !sawQueue {
		select {
		case ev := <-s.Events():
			if ev.Kind != KindPull {
				continue
			}
			if ev.Pull.Queue != nil {
				sawQueue = true
			} else if ev.CampaignID == "c1" {
				sawCampaign = true
			}
		case <-deadline:
			t.Fatalf("corrective pulls missing: campaign=%v queue=%v", sawCampaign, sawQueue)
		}
	}
}

func TestFirstConnectDoesNotPull(t *testing.T) {
	s := startService(t, &fakePuller{})
	s.Watch("c1")

	s.OnUp(false)
	waitEvent(t, s, KindPushUp)
	assertNoEvent(t, s, 200*time.Millisecond)
}

func TestOnEventTagsCampaign(t *testing.T) {
	s := startService(t, &fakePuller{})

	s.OnEvent(dispatch.PushEvent{
		Kind:      dispatch.KindRecipientStatus,
		Recipient: &model.RecipientStatusEvent{BroadcastID: "c7", RecipientID: "r1", Status: model.RecipientSent},
	})
	ev := waitEvent(t, s, KindPush)
	if ev.CampaignID != "c7" || ev.Push == nil || ev.Push.Recipient == nil {
		t.Fatalf("event = %+v", ev)
	}
}
