package desk

import (
	"time"

	"bcast/internal/eventbus"
)

// NoticeLevel grades a transient notice for display.
type NoticeLevel string

const (
	NoticeInfo NoticeLevel = "info"
	NoticeWarn NoticeLevel = "warn"
)

// Notice is a short-lived operator message (sync failure, push loss). It
// auto-dismisses after the configured interval unless dismissed first.
type Notice struct {
	ID    uint64
	At    time.Time
	Level NoticeLevel
	Text  string
}

// Notices returns the live notices, oldest first.
func (d *Desk) Notices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notice, 0, len(d.notices))
	for _, n := range d.notices {
		out = append(out, n)
	}
	return out
}

// Dismiss removes one notice and cancels its timer. Unknown ids are ignored.
func (d *Desk) Dismiss(id uint64) {
	d.mu.Lock()
	d.dismissLocked(id)
	d.mu.Unlock()
}

func (d *Desk) notify(level NoticeLevel, text string) {
	d.mu.Lock()
	d.noticeSeq++
	n := Notice{ID: d.noticeSeq, At: time.Now(), Level: level, Text: text}
	d.notices = append(d.notices, n)
	if d.cfg.DismissAfter > 0 {
		id := n.ID
		d.timers[id] = time.AfterFunc(d.cfg.DismissAfter, func() { d.Dismiss(id) })
	}
	d.mu.Unlock()

	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: eventbus.TopicNotice, Data: n.Text})
	}
}

func (d *Desk) dismissLocked(id uint64) {
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
	for i, n := range d.notices {
		if n.ID == id {
			d.notices = append(d.notices[:i], d.notices[i+1:]...)
			return
		}
	}
}

func (d *Desk) dropAllNoticesLocked() {
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
	d.notices = nil
}
