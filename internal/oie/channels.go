package oie

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Channel is the subset of a server channel definition the console uses.
type Channel struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Revision        int              `json:"revision"`
	Description     *string          `json:"description,omitempty"`
	Version         string           `json:"@version,omitempty"`
	Properties      *Properties      `json:"properties,omitempty"`
	SourceConnector *SourceConnector `json:"sourceConnector,omitempty"`
}

// Properties holds the channel properties the console reads.
type Properties struct {
	InitialState string `json:"initialState,omitempty"`
}

// SourceConnector describes how a channel receives messages.
type SourceConnector struct {
	TransportName string `json:"transportName,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Enabled       *bool  `json:"enabled,omitempty"`
}

// InitialState returns the configured initial state, empty when unset.
func (c Channel) InitialState() string {
	if c.Properties == nil {
		return ""
	}
	return c.Properties.InitialState
}

// Enabled reports the source connector's enabled flag. ok is false when
// the server did not send one.
func (c Channel) Enabled() (enabled, ok bool) {
	if c.SourceConnector == nil || c.SourceConnector.Enabled == nil {
		return false, false
	}
	return *c.SourceConnector.Enabled, true
}

// TransportName returns the source connector transport, empty when unset.
func (c Channel) TransportName() string {
	if c.SourceConnector == nil {
		return ""
	}
	return c.SourceConnector.TransportName
}

// channelsResponse is the envelope of GET /api/channels.
//
// The server serializes a one-element list as a bare object and an empty
// list as null or an empty string, so both levels are decoded lazily.
type channelsResponse struct {
	List json.RawMessage `json:"list"`
}

type channelList struct {
	Channel json.RawMessage `json:"channel"`
}

// DecodeChannels decodes a GET /api/channels response body.
//
// The "channel" member may be an object, an array or absent; an absent or
// empty list yields an empty, non-nil slice.
func DecodeChannels(body []byte) ([]Channel, error) {
	var resp channelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode channels response: %w", err)
	}

	channels := []Channel{}
	if !isObject(resp.List) {
		return channels, nil
	}

	var list channelList
	if err := json.Unmarshal(resp.List, &list); err != nil {
		return nil, fmt.Errorf("failed to decode channel list: %w", err)
	}

	raw := bytes.TrimSpace(list.Channel)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return channels, nil
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &channels); err != nil {
			return nil, fmt.Errorf("failed to decode channels: %w", err)
		}
	case raw[0] == '{':
		var ch Channel
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("failed to decode channel: %w", err)
		}
		channels = append(channels, ch)
	default:
		return nil, fmt.Errorf("unexpected channel list element: %.20s", raw)
	}
	return channels, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
