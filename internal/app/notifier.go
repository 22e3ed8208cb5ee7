package app

import (
	"fmt"
	"io"
	"sync"

	"gsm-go/internal/gsm"
)

// TerminalNotifier prints notifications as single lines, e.g.
//
//	[WARNING] Parent folder missing: created /home/user/saves
type TerminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalNotifier creates a notifier writing to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w}
}

func (t *TerminalNotifier) Notify(n gsm.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
}

var _ gsm.Notifier = (*TerminalNotifier)(nil)
