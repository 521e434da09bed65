package testutil

import (
	"sync"

	"github.com/yeremiapane/gaming-portal/realtime"
)

// RecordingBroadcaster keeps every published event in order.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (b *RecordingBroadcaster) Publish(evt realtime.Event) {
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

func (b *RecordingBroadcaster) Events() []realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]realtime.Event, len(b.events))
	copy(out, b.events)
	return out
}

// OfType returns the recorded events of one type.
func (b *RecordingBroadcaster) OfType(t realtime.EventType) []realtime.Event {
	var out []realtime.Event
	for _, e := range b.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
