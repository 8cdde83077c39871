package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	partyRedis "github.com/storyscout/server/internal/repository/party/redis"
	"github.com/storyscout/server/internal/service/party"
)

func newTestServer(t *testing.T) (*httptest.Server, iPartyService) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	partyRepo := partyRedis.NewRepo(rc, slog.Default(), time.Hour)
	service := party.NewService(partyRepo, &party.Config{
		MaxParticipants:   10,
		ChatMessageMaxLen: 200,
		ChatFetchLimit:    50,
	}, slog.Default())

	srv := httptest.NewServer(NewController(service, slog.Default()).GetMux())
	t.Cleanup(srv.Close)

	return srv, service
}

func createTestParty(t *testing.T, service iPartyService) party.Party {
	t.Helper()

	p, err := service.CreateParty(context.Background(), &party.CreatePartyParams{
		UserId:       "host-1",
		DisplayName:  "Host",
		Platform:     "web",
		ContentId:    "m1",
		ContentTitle: "Demo",
		VideoURL:     "https://cdn.example.com/m1.mp4",
	})
	require.NoError(t, err)

	return p
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestCreatePartyEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/party", map[string]string{
		"userId":       "host-1",
		"displayName":  "Host",
		"platform":     "web",
		"contentId":    "m1",
		"contentTitle": "Demo",
		"videoUrl":     "https://cdn.example.com/m1.mp4",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Code  string      `json:"code"`
		Party party.Party `json:"party"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Len(t, envelope.Code, 6)
	assert.Equal(t, envelope.Code, envelope.Party.Code)
	assert.Equal(t, "host-1", envelope.Party.HostUserId)
}

func TestUpdatePlaybackResponse(t *testing.T) {
	srv, service := newTestServer(t)
	p := createTestParty(t, service)

	resp := postJSON(t, srv.URL+"/api/v1/party/"+p.Code+"/playback", map[string]any{
		"senderId":    "host-1",
		"status":      "playing",
		"currentTime": 12.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestLeavePartyResponse(t *testing.T) {
	srv, service := newTestServer(t)
	p := createTestParty(t, service)

	_, err := service.JoinParty(context.Background(), &party.JoinPartyParams{
		Code:        p.Code,
		UserId:      "user-b",
		DisplayName: "Bob",
		Platform:    "mobile",
	})
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/api/v1/party/"+p.Code+"/leave", map[string]string{
		"userId": "user-b",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func dialPartyWS(t *testing.T, srv *httptest.Server, code, userId string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/party/" + code + "?user_id=" + userId
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// readUntil reads outputs until match returns true, failing the test on
// timeout. Every output seen along the way is also handed to observe.
func readUntil(t *testing.T, conn *websocket.Conn, observe func(Output), match func(Output) bool) {
	t.Helper()

	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		var out struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&out))

		output := Output{Type: out.Type, Payload: out.Payload}
		if observe != nil {
			observe(output)
		}
		if match(output) {
			return
		}
	}
}

func TestVoiceSignalDeliveredOnce(t *testing.T) {
	srv, service := newTestServer(t)
	p := createTestParty(t, service)

	ctx := context.Background()
	_, err := service.JoinParty(ctx, &party.JoinPartyParams{
		Code:        p.Code,
		UserId:      "user-b",
		DisplayName: "Bob",
		Platform:    "mobile",
	})
	require.NoError(t, err)

	conn := dialPartyWS(t, srv, p.Code, "user-b")

	// Joining voice through the socket round-trips the state update, which
	// confirms the voice event feed is attached before the host acts.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "VOICE_JOIN",
		"payload": map[string]string{"displayName": "Bob"},
	}))
	readUntil(t, conn, nil, func(out Output) bool {
		return out.Type == "VOICE_STATE_UPDATED" && payloadUserId(t, out) == "user-b"
	})

	require.NoError(t, service.JoinVoice(ctx, &party.JoinVoiceParams{
		Code:        p.Code,
		UserId:      "host-1",
		DisplayName: "Host",
	}))
	require.NoError(t, service.SendVoiceSignal(ctx, &party.SendVoiceSignalParams{
		Code:         p.Code,
		FromUserId:   "host-1",
		TargetUserId: "user-b",
		Payload:      json.RawMessage(`{"kind":"offer","sdp":"v=0"}`),
	}))

	signals := 0
	count := func(out Output) {
		if out.Type == "VOICE_SIGNAL" {
			signals++
		}
	}
	readUntil(t, conn, count, func(out Output) bool {
		return out.Type == "VOICE_SIGNAL"
	})
	require.Equal(t, 1, signals)

	// Presence churn on the host record must not redeliver the stored signal.
	require.NoError(t, service.UpdateVoicePresence(ctx, &party.UpdateVoicePresenceParams{
		Code:       p.Code,
		UserId:     "host-1",
		IsMuted:    false,
		IsSpeaking: true,
	}))
	readUntil(t, conn, count, func(out Output) bool {
		if out.Type != "VOICE_STATE_UPDATED" || payloadUserId(t, out) != "host-1" {
			return false
		}
		var state party.VoiceState
		require.NoError(t, json.Unmarshal(out.Payload.(json.RawMessage), &state))
		return state.IsSpeaking
	})
	assert.Equal(t, 1, signals)
}

func payloadUserId(t *testing.T, out Output) string {
	t.Helper()

	var payload struct {
		UserId string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(out.Payload.(json.RawMessage), &payload))

	return payload.UserId
}
