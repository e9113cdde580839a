package store

import (
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Snapshots are keyed by backend name. Subscribers receive updates via
// buffered channels (buffer size 100); if a subscriber's buffer is full,
// the update is dropped for that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   map[string]Snapshot
	version     uint64
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string]Snapshot),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Seed registers a backend as pending.
func (m *MemoryStore) Seed(backend, url string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.snapshots[backend]; ok {
		return
	}
	m.snapshots[backend] = Snapshot{
		Backend: backend,
		URL:     url,
		Labels:  labels,
		Pending: true,
	}
	m.version++
}

// Update stores a refresh outcome and notifies all subscribers.
//
// A successful refresh (nil Error) replaces the channel list and sets
// SucceededAt to RefreshedAt. A failed refresh keeps the channels of the
// last successful one, if any, and marks the snapshot stale. Subscribers
// receive the merged snapshot.
func (m *MemoryStore) Update(snapshot Snapshot) {
	snapshot.Pending = false

	m.mu.Lock()
	prev, known := m.snapshots[snapshot.Backend]
	if snapshot.Error == nil {
		snapshot.Stale = false
		snapshot.SucceededAt = snapshot.RefreshedAt
		if snapshot.Channels == nil {
			snapshot.Channels = []Channel{}
		}
	} else {
		snapshot.Channels = nil
		snapshot.SucceededAt = prev.SucceededAt
		snapshot.Stale = false
		if known && prev.HasData() {
			snapshot.Channels = prev.Channels
			snapshot.Stale = true
		}
	}
	m.snapshots[snapshot.Backend] = snapshot
	m.version++
	m.mu.Unlock()

	m.notifySubscribers(snapshot)
}

// GetAll returns all snapshots sorted by backend name.
func (m *MemoryStore) GetAll() []Snapshot {
	m.mu.RLock()
	results := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		results = append(results, s)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Backend < results[j].Backend
	})
	return results
}

// Version returns the number of changes made by Seed and Update.
func (m *MemoryStore) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Subscribe creates a new subscription and returns a channel for receiving
// updates. Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers without
// blocking.
func (m *MemoryStore) notifySubscribers(snapshot Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snapshot:
		default:
			// subscriber is slow, drop the message
		}
	}
}
