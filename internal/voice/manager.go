package voice

import (
	"context"
	"log/slog"
	"sync"
)

// Manager owns the audio sessions of one local participant, keyed by remote
// userId. Exactly one side of every pair initiates: the peer with the
// lexicographically smaller userId sends the offer, the other answers. That
// rule is symmetric knowledge, so two peers discovering each other at the
// same moment never produce colliding offers.
type Manager struct {
	selfId  string
	relay   Relay
	connect connector
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	inbox    *mailbox
	done     chan struct{}
}

func NewManager(relay Relay, selfId string, logger *slog.Logger) *Manager {
	return &Manager{
		selfId:   selfId,
		relay:    relay,
		connect:  newAudioConn,
		logger:   logger,
		sessions: make(map[string]*session),
		inbox:    newMailbox(),
		done:     make(chan struct{}),
	}
}

// Run consumes the relay until the context is cancelled or the manager is
// closed. It must be running for any negotiation to make progress.
func (m *Manager) Run(ctx context.Context) error {
	signals, cancel, err := m.relay.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			m.handleSignal(ctx, sig)
		}
	}
}

// PeerSeen reacts to a newly observed voice participant. The initiating side
// opens a session and sends the offer; the responding side does nothing and
// waits for the offer to arrive.
func (m *Manager) PeerSeen(ctx context.Context, peerId string) {
	if peerId == m.selfId {
		return
	}
	if m.selfId > peerId {
		return
	}

	m.mu.Lock()
	if _, ok := m.sessions[peerId]; ok {
		m.mu.Unlock()
		return
	}
	sess := newSession(m.selfId, peerId, m.relay, m.logger)
	m.sessions[peerId] = sess
	m.mu.Unlock()

	if err := m.open(ctx, sess, true); err != nil {
		m.logger.WarnContext(ctx, "initiate session", "peer_id", peerId, "error", err)
		m.PeerGone(peerId)
	}
}

// PeerGone tears down the leg to one departed peer. The rest of the mesh is
// untouched.
func (m *Manager) PeerGone(peerId string) {
	m.mu.Lock()
	sess, ok := m.sessions[peerId]
	delete(m.sessions, peerId)
	m.mu.Unlock()

	m.inbox.drop(peerId)
	if ok {
		sess.close()
	}
}

// handleSignal routes one inbound message. An offer from an unknown peer
// opens the responding session; other signal kinds arriving before their
// session are buffered and replayed once it exists.
func (m *Manager) handleSignal(ctx context.Context, sig Signal) {
	if sig.To != m.selfId || sig.From == m.selfId {
		return
	}

	m.mu.Lock()
	sess, ok := m.sessions[sig.From]
	m.mu.Unlock()

	if ok {
		if err := sess.handleSignal(ctx, sig); err != nil {
			m.logger.WarnContext(ctx, "handle signal", "peer_id", sig.From, "kind", sig.Kind, "error", err)
		}
		return
	}

	if sig.Kind != SignalOffer {
		m.inbox.push(sig)
		return
	}

	sess = newSession(m.selfId, sig.From, m.relay, m.logger)
	m.mu.Lock()
	m.sessions[sig.From] = sess
	m.mu.Unlock()

	if err := m.open(ctx, sess, false); err != nil {
		m.logger.WarnContext(ctx, "accept session", "peer_id", sig.From, "error", err)
		m.PeerGone(sig.From)
		return
	}
	if err := sess.handleSignal(ctx, sig); err != nil {
		m.logger.WarnContext(ctx, "answer offer", "peer_id", sig.From, "error", err)
	}
	m.replayPending(ctx, sess)
}

// open connects a session and replays anything buffered for its peer.
func (m *Manager) open(ctx context.Context, sess *session, initiator bool) error {
	pc, err := m.connect(ctx)
	if err != nil {
		return err
	}
	if err := sess.start(ctx, pc, initiator); err != nil {
		return err
	}
	if initiator {
		m.replayPending(ctx, sess)
	}
	return nil
}

func (m *Manager) replayPending(ctx context.Context, sess *session) {
	for _, sig := range m.inbox.drain(sess.peerId) {
		if err := sess.handleSignal(ctx, sig); err != nil {
			m.logger.WarnContext(ctx, "replay signal", "peer_id", sess.peerId, "kind", sig.Kind, "error", err)
		}
	}
}

// Close tears down every session. Safe to call more than once.
func (m *Manager) Close() {
	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}
