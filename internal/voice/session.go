package voice

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// peerConn abstracts the connection surface a session drives. The real
// implementation wraps a pion PeerConnection; tests substitute a fake so
// negotiation logic runs without sockets or media hardware.
type peerConn interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	CreateAnswer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	AcceptAnswer(answer json.RawMessage) error
	AddCandidate(candidate json.RawMessage) error
	// OnCandidate registers the callback invoked for each locally gathered
	// ICE candidate. Must be set before negotiation starts.
	OnCandidate(func(candidate json.RawMessage))
	Close() error
}

// connector builds a fresh peerConn for one session.
type connector func(ctx context.Context) (peerConn, error)

// session is one audio leg to a single remote peer.
type session struct {
	selfId string
	peerId string
	relay  Relay
	logger *slog.Logger

	mu     sync.Mutex
	pc     peerConn
	closed bool
}

func newSession(selfId, peerId string, relay Relay, logger *slog.Logger) *session {
	return &session{
		selfId: selfId,
		peerId: peerId,
		relay:  relay,
		logger: logger.With("peer_id", peerId),
	}
}

// start attaches the connection and, when this side is the initiator, sends
// the opening offer. Locally gathered candidates trickle out through the
// relay as they appear.
func (s *session) start(ctx context.Context, pc peerConn, initiator bool) error {
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	pc.OnCandidate(func(candidate json.RawMessage) {
		if err := s.send(ctx, SignalCandidate, candidate); err != nil {
			s.logger.WarnContext(ctx, "send candidate", "error", err)
		}
	})

	if !initiator {
		return nil
	}

	offer, err := pc.CreateOffer(ctx)
	if err != nil {
		return err
	}
	return s.send(ctx, SignalOffer, offer)
}

// handleSignal applies one inbound message from the remote peer.
func (s *session) handleSignal(ctx context.Context, sig Signal) error {
	s.mu.Lock()
	pc := s.pc
	closed := s.closed
	s.mu.Unlock()
	if closed || pc == nil {
		return nil
	}

	switch sig.Kind {
	case SignalOffer:
		answer, err := pc.CreateAnswer(ctx, sig.Payload)
		if err != nil {
			return err
		}
		return s.send(ctx, SignalAnswer, answer)
	case SignalAnswer:
		return pc.AcceptAnswer(sig.Payload)
	case SignalCandidate:
		return pc.AddCandidate(sig.Payload)
	default:
		s.logger.WarnContext(ctx, "unknown signal kind", "kind", sig.Kind)
		return nil
	}
}

func (s *session) send(ctx context.Context, kind SignalKind, payload json.RawMessage) error {
	return s.relay.Send(ctx, Signal{
		Kind:    kind,
		From:    s.selfId,
		To:      s.peerId,
		Payload: payload,
	})
}

// close tears the leg down. Idempotent.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			s.logger.Warn("close peer connection", "error", err)
		}
	}
}
