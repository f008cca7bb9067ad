// Package event defines the transient notifications delivered over a
// session's push-stream. Events are never queued or persisted: a recipient
// without a live stream simply misses them.
package event

import "encoding/json"

// Wire-level event kinds, matching the event-stream "event:" field.
const (
	KindPeerJoined = "peer-joined"
	KindPeerLeft   = "peer-left"
	KindSignal     = "signal"
)

type Event interface {
	Kind() string
}

// PeerJoined announces a new session to the pre-existing peers of its room.
type PeerJoined struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

func (PeerJoined) Kind() string { return KindPeerJoined }

// PeerLeft announces a removed session to the remaining peers of its room.
type PeerLeft struct {
	ClientID string `json:"clientId"`
}

func (PeerLeft) Kind() string { return KindPeerLeft }

// Signal carries an opaque negotiation payload to a single target session.
// Data is relayed verbatim; the server never inspects it.
type Signal struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

func (Signal) Kind() string { return KindSignal }
