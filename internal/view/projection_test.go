package view

import (
	"testing"

	"bcast/internal/model"
)

func TestProgress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    model.Counters
		want int
	}{
		{name: "zero total", c: model.Counters{}, want: 0},
		{name: "mixed outcome", c: model.Counters{Total: 100, Sent: 60, Failed: 10, Pending: 30}, want: 60},
		{name: "rounds up", c: model.Counters{Total: 3, Sent: 2, Pending: 1}, want: 67},
		{name: "complete", c: model.Counters{Total: 5, Sent: 5}, want: 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.c); got != tt.want {
				t.Fatalf("Progress(%+v) = %d, want %d", tt.c, got, tt.want)
			}
		})
	}
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    model.Counters
		want int
	}{
		{name: "nothing processed", c: model.Counters{Total: 10, Pending: 10}, want: 0},
		{name: "sixty of seventy processed", c: model.Counters{Total: 100, Sent: 60, Failed: 10, Pending: 30}, want: 86},
		{name: "all failed", c: model.Counters{Total: 4, Failed: 4}, want: 0},
		{name: "all sent", c: model.Counters{Total: 4, Sent: 4}, want: 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := SuccessRate(tt.c); got != tt.want {
				t.Fatalf("SuccessRate(%+v) = %d, want %d", tt.c, got, tt.want)
			}
		})
	}
}

func TestBucketize(t *testing.T) {
	t.Parallel()
	rs := []model.Recipient{
		{ID: "r1", Status: model.RecipientSent},
		{ID: "r2", Status: model.RecipientPending},
		{ID: "r3", Status: model.RecipientFailed},
		{ID: "r4", Status: model.RecipientSent},
		{ID: "r5", Status: model.RecipientStatus("bounced")}, // unknown, dropped
	}
	b := Bucketize(rs)
	sent, pending, failed := b.Counts()
	if sent != 2 || pending != 1 || failed != 1 {
		t.Fatalf("Counts = %d/%d/%d, want 2/1/1", sent, pending, failed)
	}
	if b.Sent[0].ID != "r1" || b.Sent[1].ID != "r4" {
		t.Fatalf("sent bucket order broken: %+v", b.Sent)
	}
}
