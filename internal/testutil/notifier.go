package testutil

import (
	"sync"

	"gsm-go/internal/gsm"
)

// RecordingNotifier keeps every notification it receives.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []gsm.Notification
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) Notify(n gsm.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications returns a copy of what was received so far.
func (r *RecordingNotifier) Notifications() []gsm.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gsm.Notification(nil), r.items...)
}

// Count returns how many notifications of the given level were received.
func (r *RecordingNotifier) Count(level gsm.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}
