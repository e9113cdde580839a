package store

import "time"

// Channel is one channel row of a snapshot.
type Channel struct {
	// ID is the channel id assigned by the engine.
	ID string `json:"id"`

	// Name is the channel display name.
	Name string `json:"name"`

	// Revision is the channel revision counter.
	Revision int `json:"revision"`

	// Description is the channel description, possibly containing markup.
	Description string `json:"description"`

	// TransportName is the source connector transport, empty when unknown.
	TransportName string `json:"transportName"`

	// InitialState is the configured initial state, empty when unset.
	InitialState string `json:"initialState"`

	// Enabled is the source connector's enabled flag, nil when unknown.
	Enabled *bool `json:"enabled"`

	// State is the status badge label (e.g. "STARTED", "DISABLED").
	State string `json:"state"`

	// StateVariant is the status badge style (e.g. "success", "outline").
	StateVariant string `json:"stateVariant"`

	// Server is the name of the backend the channel belongs to.
	Server string `json:"server"`
}

// Snapshot is the latest known channel list of one backend.
//
// Snapshot is optimized for JSON serialization (used by the REST API and
// SSE) and decoupled from the poller's types.
type Snapshot struct {
	// Backend is the backend's display name.
	Backend string `json:"backend"`

	// URL is the backend base URL.
	URL string `json:"url"`

	// Labels contains key-value metadata of the backend.
	Labels map[string]string `json:"labels"`

	// Channels is the last successfully fetched channel list.
	Channels []Channel `json:"channels"`

	// Pending is true until the first refresh of the backend completes.
	Pending bool `json:"pending"`

	// Stale is true when the latest refresh failed and Channels comes from
	// an earlier one.
	Stale bool `json:"stale"`

	// LatencyMs is the duration of the latest refresh in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// RefreshedAt is when the latest refresh completed.
	RefreshedAt time.Time `json:"refreshed_at"`

	// SucceededAt is when the latest successful refresh completed, zero if
	// none has.
	SucceededAt time.Time `json:"succeeded_at"`

	// Error contains the error message of the latest refresh, nil when it
	// succeeded.
	Error *string `json:"error"`
}

// HasData reports whether the backend has ever been refreshed successfully.
func (s Snapshot) HasData() bool {
	return !s.SucceededAt.IsZero()
}

// Store defines the interface for storing and subscribing to snapshots.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Seed registers a backend as pending. It is a no-op for a backend
	// that is already known.
	Seed(backend, url string, labels map[string]string)

	// Update stores the outcome of a refresh and notifies all subscribers.
	// A failed refresh keeps the previous channel list and marks it stale.
	Update(snapshot Snapshot)

	// GetAll returns all snapshots sorted by backend name.
	// The returned slice is a copy; modifications do not affect the store.
	GetAll() []Snapshot

	// Version returns a counter that changes whenever Seed or Update
	// changes the stored snapshots.
	Version() uint64

	// Subscribe returns a channel that receives updated snapshots.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
