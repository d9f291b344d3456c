package transport

import (
	"sort"
	"sync"
	"time"
)

// PendingInfo describes one request awaiting its response.
type PendingInfo struct {
	ID       uint64
	Type     string
	QueuedAt time.Time
}

type pendingEntry struct {
	call     *Call
	queuedAt time.Time
}

// pendingTable stores in-flight calls by correlation id. Once drained it
// refuses new entries.
type pendingTable struct {
	mu     sync.Mutex
	items  map[uint64]pendingEntry
	closed bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		items: make(map[uint64]pendingEntry),
	}
}

func (t *pendingTable) add(call *Call, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.items[call.ID] = pendingEntry{call: call, queuedAt: at}
	return true
}

func (t *pendingTable) take(id uint64) (pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.items[id]
	if ok {
		delete(t.items, id)
	}
	return entry, ok
}

// drain closes the table and returns every entry it held.
func (t *pendingTable) drain() []pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	out := make([]pendingEntry, 0, len(t.items))
	for id, entry := range t.items {
		out = append(out, entry)
		delete(t.items, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].call.ID < out[j].call.ID
	})
	return out
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *pendingTable) list() []PendingInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PendingInfo, 0, len(t.items))
	for id, entry := range t.items {
		out = append(out, PendingInfo{ID: id, Type: entry.call.Type, QueuedAt: entry.queuedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
