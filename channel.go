package channelboard

import "time"

// Channel is one channel of a backend, as shown in the console.
type Channel struct {
	// ID is the channel id assigned by the engine.
	ID string

	// Name is the channel display name.
	Name string

	// Revision is the channel revision counter.
	Revision int

	// Description is the channel description as stored by the engine. It
	// may contain markup; the console strips it before display.
	Description string

	// TransportName is the source connector transport (e.g. "HTTP
	// Listener"), empty when the engine did not report one.
	TransportName string

	// InitialState is the configured initial state (e.g. "STARTED"),
	// empty when unset.
	InitialState string

	// Enabled is the source connector's enabled flag, nil when unknown.
	Enabled *bool

	// Server is the name of the backend the channel belongs to.
	Server string
}

// Badge variants of a [ChannelState].
const (
	VariantSuccess   = "success"
	VariantWarning   = "warning"
	VariantSecondary = "secondary"
	VariantOutline   = "outline"
)

// ChannelState is the status badge of a channel.
type ChannelState struct {
	// Label is the badge text, e.g. "STARTED" or "DISABLED".
	Label string

	// Variant is the badge style: one of the Variant constants.
	Variant string
}

// StateOf maps a channel to its status badge.
//
// A disabled source connector wins over the initial state. Otherwise the
// initial state is shown: STARTED as success, PAUSED as warning, anything
// else with the outline style. A channel without an initial state is
// UNKNOWN.
func StateOf(c Channel) ChannelState {
	if c.Enabled != nil && !*c.Enabled {
		return ChannelState{Label: "DISABLED", Variant: VariantSecondary}
	}
	switch c.InitialState {
	case "":
		return ChannelState{Label: "UNKNOWN", Variant: VariantOutline}
	case "STARTED":
		return ChannelState{Label: c.InitialState, Variant: VariantSuccess}
	case "PAUSED":
		return ChannelState{Label: c.InitialState, Variant: VariantWarning}
	default:
		return ChannelState{Label: c.InitialState, Variant: VariantOutline}
	}
}

// Snapshot holds the outcome of one refresh of a backend.
//
// Snapshot is passed to [WithSnapshotCallback] callbacks. Its maps and
// slices are copies owned by the callback.
type Snapshot struct {
	// Backend is the display name of the refreshed backend.
	Backend string

	// URL is the backend base URL.
	URL string

	// Labels contains the key-value metadata of the backend.
	Labels map[string]string

	// Channels is the fetched channel list, nil when the refresh failed.
	Channels []Channel

	// Latency is the time taken by the refresh, including login.
	Latency time.Duration

	// RefreshedAt is when the refresh completed.
	RefreshedAt time.Time

	// Error contains the error of a failed refresh, nil on success.
	Error error
}
