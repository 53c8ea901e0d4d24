package model

import "testing"

func TestCampaignStatusTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		from CampaignStatus
		to   CampaignStatus
		ok   bool
	}{
		{name: "draft to running", from: CampaignDraft, to: CampaignRunning, ok: true},
		{name: "draft to stopped", from: CampaignDraft, to: CampaignStopped, ok: true},
		{name: "draft to completed", from: CampaignDraft, to: CampaignCompleted, ok: false},
		{name: "running to paused", from: CampaignRunning, to: CampaignPaused, ok: true},
		{name: "running to completed", from: CampaignRunning, to: CampaignCompleted, ok: true},
		{name: "running to failed", from: CampaignRunning, to: CampaignFailed, ok: true},
		{name: "running to draft", from: CampaignRunning, to: CampaignDraft, ok: false},
		{name: "paused to running", from: CampaignPaused, to: CampaignRunning, ok: true},
		{name: "completed to running", from: CampaignCompleted, to: CampaignRunning, ok: false},
		{name: "stopped to running", from: CampaignStopped, to: CampaignRunning, ok: false},
		{name: "failed to draft", from: CampaignFailed, to: CampaignDraft, ok: false},
		{name: "self transition is not a transition", from: CampaignRunning, to: CampaignRunning, ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.ok {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestCampaignStatusTerminal(t *testing.T) {
	t.Parallel()
	terminal := []CampaignStatus{CampaignCompleted, CampaignStopped, CampaignFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if next := s.NextAllowed(); len(next) != 0 {
			t.Fatalf("%s should allow no transitions, got %v", s, next)
		}
	}
	for _, s := range []CampaignStatus{CampaignDraft, CampaignRunning, CampaignPaused} {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
		if len(s.NextAllowed()) == 0 {
			t.Fatalf("%s should allow transitions", s)
		}
	}
}

func TestRecipientStatusMonotone(t *testing.T) {
	t.Parallel()
	if !RecipientPending.CanTransition(RecipientSent) {
		t.Fatal("pending -> sent must be legal")
	}
	if !RecipientPending.CanTransition(RecipientFailed) {
		t.Fatal("pending -> failed must be legal")
	}
	// No way back, no sideways.
	illegal := []struct{ from, to RecipientStatus }{
		{RecipientSent, RecipientPending},
		{RecipientFailed, RecipientPending},
		{RecipientSent, RecipientFailed},
		{RecipientFailed, RecipientSent},
	}
	for _, tr := range illegal {
		if tr.from.CanTransition(tr.to) {
			t.Fatalf("%s -> %s must be illegal", tr.from, tr.to)
		}
	}
	if RecipientPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if !RecipientSent.IsTerminal() || !RecipientFailed.IsTerminal() {
		t.Fatal("sent and failed must be terminal")
	}
}

func TestUnknownStatus(t *testing.T) {
	t.Parallel()
	bogus := CampaignStatus("archived")
	if bogus.Valid() {
		t.Fatal("unknown status must not be valid")
	}
	if bogus.IsTerminal() {
		t.Fatal("unknown status must not be terminal")
	}
	if bogus.CanTransition(CampaignRunning) {
		t.Fatal("unknown status must allow nothing")
	}
}

func TestCountersConsistent(t *testing.T) {
	t.Parallel()
	c := Counters{Total: 100, Sent: 60, Failed: 10, Pending: 30}
	if !c.Consistent() {
		t.Fatalf("counters %+v should be consistent", c)
	}
	c.Pending = 29
	if c.Consistent() {
		t.Fatalf("counters %+v should be inconsistent", c)
	}
}
