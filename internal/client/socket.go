package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/storyscout/server/internal/service/party"
	"github.com/storyscout/server/internal/voice"
)

// partySocket is the client side of the party websocket. One read loop
// demultiplexes server messages into typed channels; all writes are
// serialized because gorilla connections do not tolerate concurrent writers.
type partySocket struct {
	conn   *websocket.Conn
	selfId string
	logger *slog.Logger

	writeMu sync.Mutex

	snapshots   chan party.Party
	signals     chan voice.Signal
	voiceStates chan party.VoiceState
	peersGone   chan string
}

func dialPartySocket(ctx context.Context, serverURL, code, userId string, logger *slog.Logger) (*partySocket, error) {
	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/api/v1/ws/party/" + code + "?user_id=" + userId

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}

	return &partySocket{
		conn:        conn,
		selfId:      userId,
		logger:      logger,
		snapshots:   make(chan party.Party, 8),
		signals:     make(chan voice.Signal, 8),
		voiceStates: make(chan party.VoiceState, 8),
		peersGone:   make(chan string, 8),
	}, nil
}

func (s *partySocket) close() error {
	return s.conn.Close()
}

func (s *partySocket) write(messageType string, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(map[string]any{
		"type":    messageType,
		"payload": payload,
	})
}

func (s *partySocket) joinVoice(displayName string) error {
	return s.write("VOICE_JOIN", map[string]string{"displayName": displayName})
}

func (s *partySocket) alive() error {
	return s.write("ALIVE", struct{}{})
}

// Send relays one negotiation message to its target. The whole signal rides
// as the opaque payload so the receiving side can reconstruct it.
func (s *partySocket) Send(_ context.Context, signal voice.Signal) error {
	raw, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}
	return s.write("VOICE_SIGNAL", map[string]any{
		"to":      signal.To,
		"payload": json.RawMessage(raw),
	})
}

// Subscribe hands out the inbound signal feed. The feed lives for the life
// of the socket, so the cancel func has nothing to undo.
func (s *partySocket) Subscribe(_ context.Context) (<-chan voice.Signal, func(), error) {
	return s.signals, func() {}, nil
}

// run reads the connection until it closes or ctx is cancelled, then closes
// every outbound channel.
func (s *partySocket) run(ctx context.Context) {
	defer func() {
		close(s.snapshots)
		close(s.signals)
		close(s.voiceStates)
		close(s.peersGone)
	}()

	for {
		var out struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := s.conn.ReadJSON(&out); err != nil {
			if ctx.Err() == nil {
				s.logger.WarnContext(ctx, "websocket read", "error", err)
			}
			return
		}

		if err := s.dispatch(ctx, out.Type, out.Payload); err != nil {
			s.logger.WarnContext(ctx, "websocket message", "type", out.Type, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *partySocket) dispatch(ctx context.Context, messageType string, payload json.RawMessage) error {
	switch messageType {
	case "PARTY_UPDATED":
		var p party.Party
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		s.deliverSnapshot(ctx, p)
	case "VOICE_SIGNAL":
		var envelope struct {
			From    string          `json:"from"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return err
		}
		var sig voice.Signal
		if err := json.Unmarshal(envelope.Payload, &sig); err != nil {
			return err
		}
		sig.From = envelope.From
		sig.To = s.selfId
		select {
		case s.signals <- sig:
		case <-ctx.Done():
		}
	case "VOICE_STATE_UPDATED":
		var state party.VoiceState
		if err := json.Unmarshal(payload, &state); err != nil {
			return err
		}
		select {
		case s.voiceStates <- state:
		case <-ctx.Done():
		}
	case "VOICE_PEER_LEFT":
		var left struct {
			UserId string `json:"userId"`
		}
		if err := json.Unmarshal(payload, &left); err != nil {
			return err
		}
		select {
		case s.peersGone <- left.UserId:
		case <-ctx.Done():
		}
	case "ERROR":
		s.logger.WarnContext(ctx, "server reported error", "payload", string(payload))
	default:
		s.logger.DebugContext(ctx, "unhandled message", "type", messageType)
	}

	return nil
}

// deliverSnapshot drops the oldest buffered snapshot when the consumer lags;
// only the latest state matters for reconciliation.
func (s *partySocket) deliverSnapshot(ctx context.Context, p party.Party) {
	for {
		select {
		case s.snapshots <- p:
			return
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
	}
}
