package voice

import "sync"

// mailboxCap bounds the number of buffered signals per peer. Candidates for
// one negotiation fit comfortably; anything beyond that is stale.
const mailboxCap = 32

// mailbox buffers signals that arrive before the session for their sender
// exists, so early candidates are not lost while the offer is in flight.
type mailbox struct {
	mu      sync.Mutex
	pending map[string][]Signal
}

func newMailbox() *mailbox {
	return &mailbox{
		pending: make(map[string][]Signal),
	}
}

// push appends a signal to the sender's buffer, dropping the oldest entry
// once the buffer is full.
func (m *mailbox) push(s Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.pending[s.From]
	if len(buf) >= mailboxCap {
		buf = buf[1:]
	}
	m.pending[s.From] = append(buf, s)
}

// drain returns and clears everything buffered from the given peer, in
// arrival order.
func (m *mailbox) drain(peerId string) []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.pending[peerId]
	delete(m.pending, peerId)
	return buf
}

// drop discards the peer's buffer without returning it.
func (m *mailbox) drop(peerId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, peerId)
}
