package window

import (
	"sync"
	"sync/atomic"
)

// ListenerSet holds the message listeners of one window. The zero value is
// ready to use.
type ListenerSet struct {
	mu      sync.Mutex
	entries []*listenerEntry
}

type listenerEntry struct {
	fn      Listener
	removed atomic.Bool
}

// Add subscribes l. The returned func is idempotent; once it returns, l sees
// no further events, including ones already queued.
func (s *ListenerSet) Add(l Listener) func() {
	entry := &listenerEntry{fn: l}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return func() {
		if entry.removed.Swap(true) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.entries {
			if e == entry {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
	}
}

// Deliver calls every listener subscribed when delivery starts, skipping any
// removed along the way.
func (s *ListenerSet) Deliver(ev MessageEvent) {
	s.mu.Lock()
	snapshot := make([]*listenerEntry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()
	for _, entry := range snapshot {
		if entry.removed.Load() {
			continue
		}
		entry.fn(ev)
	}
}

func (s *ListenerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
