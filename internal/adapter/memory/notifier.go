package memory

import (
	"context"
	"sync"

	"github.com/attestia/gatekeep/internal/port/notifier"
)

// Notifier records governance events in memory.
type Notifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

// NewNotifier creates an empty in-memory notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify records the event.
func (n *Notifier) Notify(_ context.Context, ev notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

// Events returns a copy of all recorded events.
func (n *Notifier) Events() []notifier.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]notifier.Event, len(n.events))
	copy(out, n.events)
	return out
}
