// Package voice manages the mesh of peer audio sessions for a party. It
// talks to the rest of the client only through the Relay interface, so the
// signaling transport (websocket, direct service calls in tests) stays
// pluggable.
package voice

import (
	"context"
	"encoding/json"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// Signal is one negotiation message between two peers. Payload carries the
// serialized SDP or ICE candidate, opaque to the relay.
type Signal struct {
	Kind    SignalKind      `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// Relay carries signals between peers. Delivery follows replacement
// semantics: only the latest message per (sender, target) pair is
// guaranteed to arrive, so senders must not rely on every candidate
// getting through individually.
type Relay interface {
	Send(ctx context.Context, signal Signal) error
	Subscribe(ctx context.Context) (<-chan Signal, func(), error)
}
