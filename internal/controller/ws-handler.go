package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/storyscout/server/internal/service/party"
	"github.com/storyscout/server/pkg/joincode"
	"github.com/storyscout/server/pkg/rest"
	"github.com/storyscout/server/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// servePartyWS upgrades the connection and streams party snapshots and voice
// events to one participant. All writes go through a single outbox goroutine;
// gorilla connections do not tolerate concurrent writers.
func (c controller) servePartyWS(w http.ResponseWriter, r *http.Request) {
	code := joincode.Normalize(chi.URLParam(r, "code"))
	userId := r.URL.Query().Get("user_id")
	if userId == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "user_id is required"})
		return
	}

	// Reject before upgrading so unknown parties get a proper status code.
	if _, err := c.partyService.GetParty(r.Context(), code); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = context.WithValue(ctx, partyCodeCtxKey, code)
	ctx = context.WithValue(ctx, userIdCtxKey, userId)

	outbox := make(chan Output, 32)
	send := func(out Output) {
		select {
		case outbox <- out:
		case <-ctx.Done():
		}
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case out := <-outbox:
				if err := conn.WriteJSON(out); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	snapshots, cancelSub, err := c.partyService.Subscribe(ctx, code)
	if err != nil {
		c.logger.ErrorContext(ctx, "subscribe party", "error", err)
		return
	}
	defer cancelSub()
	go func() {
		for p := range snapshots {
			send(Output{Type: "PARTY_UPDATED", Payload: p})
		}
		// The feed closes after the terminal snapshot or on cancel; either
		// way this connection is done.
		cancel()
	}()

	voiceEvents, cancelVoice, err := c.partyService.WatchVoice(ctx, code)
	if err != nil {
		c.logger.ErrorContext(ctx, "watch voice", "error", err)
		return
	}
	defer cancelVoice()
	go func() {
		lastSignals := make(map[string]string)
		for event := range voiceEvents {
			c.forwardVoiceEvent(send, userId, lastSignals, event)
		}
	}()

	mux := c.getWSRouter()
	mux.OnError = func(ctx context.Context, _ *websocket.Conn, err error) {
		c.logger.WarnContext(ctx, "ws handler", "error", err)
		send(Output{Type: "ERROR", Payload: map[string]string{"error": err.Error()}})
	}

	if err := mux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "websocket closed", "error", err)
	}
	cancel()
	<-writerDone
}

// forwardVoiceEvent fans one voice event out to a single connection. Signals
// addressed to other peers are stripped before the state reaches the client.
// The record carries the latest signal per target across every update, so
// lastSignals tracks what this connection already received per sender;
// unrelated record churn (mute or speaking flags) must not redeliver a stale
// signal.
func (c controller) forwardVoiceEvent(send func(Output), userId string, lastSignals map[string]string, event party.VoiceEvent) {
	switch event.Kind {
	case party.VoiceUpdated:
		if event.UserId != userId {
			if raw, ok := event.State.Signals[userId]; ok && lastSignals[event.UserId] != string(raw) {
				lastSignals[event.UserId] = string(raw)
				send(Output{Type: "VOICE_SIGNAL", Payload: map[string]any{
					"from":    event.UserId,
					"payload": raw,
				}})
			}
		}
		state := event.State
		state.Signals = nil
		send(Output{Type: "VOICE_STATE_UPDATED", Payload: state})
	case party.VoiceRemoved:
		delete(lastSignals, event.UserId)
		send(Output{Type: "VOICE_PEER_LEFT", Payload: map[string]string{"userId": event.UserId}})
	}
}

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsLoggingMw)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "VOICE_JOIN", c.handleVoiceJoin)
	wsrouter.Handle(mux, "VOICE_SIGNAL", c.handleVoiceSignal)
	wsrouter.Handle(mux, "VOICE_PRESENCE", c.handleVoicePresence)
	wsrouter.Handle(mux, "VOICE_LEAVE", c.handleVoiceLeave)

	return mux
}

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type VoiceJoinInput struct {
	DisplayName string `json:"displayName"`
}

func (c controller) handleVoiceJoin(ctx context.Context, _ *websocket.Conn, input VoiceJoinInput) error {
	if err := c.partyService.JoinVoice(ctx, &party.JoinVoiceParams{
		Code:        c.getPartyCodeFromCtx(ctx),
		UserId:      c.getUserIdFromCtx(ctx),
		DisplayName: input.DisplayName,
	}); err != nil {
		return fmt.Errorf("failed to join voice: %w", err)
	}

	return nil
}

type VoiceSignalInput struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

func (c controller) handleVoiceSignal(ctx context.Context, _ *websocket.Conn, input VoiceSignalInput) error {
	if err := c.partyService.SendVoiceSignal(ctx, &party.SendVoiceSignalParams{
		Code:         c.getPartyCodeFromCtx(ctx),
		FromUserId:   c.getUserIdFromCtx(ctx),
		TargetUserId: input.To,
		Payload:      input.Payload,
	}); err != nil {
		return fmt.Errorf("failed to relay voice signal: %w", err)
	}

	return nil
}

type VoicePresenceInput struct {
	IsMuted    bool `json:"isMuted"`
	IsSpeaking bool `json:"isSpeaking"`
}

func (c controller) handleVoicePresence(ctx context.Context, _ *websocket.Conn, input VoicePresenceInput) error {
	if err := c.partyService.UpdateVoicePresence(ctx, &party.UpdateVoicePresenceParams{
		Code:       c.getPartyCodeFromCtx(ctx),
		UserId:     c.getUserIdFromCtx(ctx),
		IsMuted:    input.IsMuted,
		IsSpeaking: input.IsSpeaking,
	}); err != nil {
		return fmt.Errorf("failed to update voice presence: %w", err)
	}

	return nil
}

func (c controller) handleVoiceLeave(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.partyService.LeaveVoice(ctx, c.getPartyCodeFromCtx(ctx), c.getUserIdFromCtx(ctx)); err != nil {
		return fmt.Errorf("failed to leave voice: %w", err)
	}

	return nil
}
