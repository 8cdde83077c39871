package party

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	partyRedis "github.com/storyscout/server/internal/repository/party/redis"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	repo := partyRedis.NewRepo(rc, slog.Default(), time.Hour)
	return NewService(repo, &Config{
		MaxParticipants:   10,
		ChatMessageMaxLen: 200,
		ChatFetchLimit:    50,
	}, slog.Default())
}

func createTestParty(t *testing.T, svc *service) Party {
	t.Helper()

	p, err := svc.CreateParty(context.Background(), &CreatePartyParams{
		UserId:       "host-1",
		DisplayName:  "Host",
		Platform:     "web",
		ContentId:    "m1",
		ContentTitle: "Demo",
		VideoURL:     "https://x/demo.mp4",
	})
	require.NoError(t, err)
	return p
}

func TestCreateParty(t *testing.T) {
	svc := newTestService(t)

	p := createTestParty(t, svc)
	assert.Len(t, p.Code, 6, "join code must be 6 characters")
	assert.Equal(t, p.Code, strings.ToUpper(p.Code), "join code must be uppercase")
	assert.Equal(t, StatusWaiting, p.Status)
	assert.Equal(t, "host-1", p.HostUserId)
	assert.Equal(t, 10, p.MaxParticipants)
	require.Len(t, p.Participants, 1)
	assert.Equal(t, "host-1", p.Participants[0].UserId)
	assert.Zero(t, p.CurrentTime)
}

type sequenceGenerator struct {
	codes []string
	next  int
}

func (g *sequenceGenerator) Generate() string {
	code := g.codes[g.next]
	if g.next < len(g.codes)-1 {
		g.next++
	}
	return code
}

func TestCreatePartyRetriesOnCodeCollision(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.generator = &sequenceGenerator{codes: []string{"AAAAAA", "BBBBBB"}}

	first, err := svc.CreateParty(ctx, &CreatePartyParams{
		UserId:       "host-1",
		DisplayName:  "Host",
		Platform:     "web",
		ContentId:    "m1",
		ContentTitle: "Demo",
		VideoURL:     "https://x/demo.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code)

	// The second create collides on AAAAAA and must regenerate.
	svc.generator = &sequenceGenerator{codes: []string{"AAAAAA", "BBBBBB"}}
	second, err := svc.CreateParty(ctx, &CreatePartyParams{
		UserId:       "host-2",
		DisplayName:  "Other host",
		Platform:     "web",
		ContentId:    "m2",
		ContentTitle: "Demo 2",
		VideoURL:     "https://x/demo2.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Code)

	// The collision must not have touched the first party.
	p, err := svc.GetParty(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "host-1", p.HostUserId)
}

func TestJoinPartyIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	joinParams := JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "mobile",
	}
	p, err := svc.JoinParty(ctx, &joinParams)
	require.NoError(t, err)
	assert.Len(t, p.Participants, 2)

	// Second join with the same user must not error or duplicate.
	p, err = svc.JoinParty(ctx, &joinParams)
	require.NoError(t, err)
	assert.Len(t, p.Participants, 2)

	count := 0
	for _, participant := range p.Participants {
		if participant.UserId == "user-2" {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one entry for the rejoining user")
}

func TestJoinPartyCaseInsensitiveCode(t *testing.T) {
	svc := newTestService(t)

	created := createTestParty(t, svc)

	p, err := svc.JoinParty(context.Background(), &JoinPartyParams{
		Code:        strings.ToLower(created.Code),
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "web",
	})
	require.NoError(t, err)
	assert.Len(t, p.Participants, 2)
}

func TestJoinPartyNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.JoinParty(context.Background(), &JoinPartyParams{
		Code:        "ZZZZZZ",
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "web",
	})
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestJoinPartyFull(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	// Host occupies one slot; fill the other nine.
	for i := 2; i <= 10; i++ {
		_, err := svc.JoinParty(ctx, &JoinPartyParams{
			Code:        created.Code,
			UserId:      fmt.Sprintf("user-%d", i),
			DisplayName: fmt.Sprintf("Guest %d", i),
			Platform:    "web",
		})
		require.NoError(t, err)
	}

	_, err := svc.JoinParty(ctx, &JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-11",
		DisplayName: "Latecomer",
		Platform:    "web",
	})
	assert.ErrorIs(t, err, ErrPartyFull)

	p, err := svc.GetParty(ctx, created.Code)
	require.NoError(t, err)
	assert.Len(t, p.Participants, 10, "rejected join must not mutate the list")
}

func TestUpdatePlaybackState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	err := svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		Code:        created.Code,
		SenderId:    "host-1",
		Status:      StatusPlaying,
		CurrentTime: 47.2,
	})
	require.NoError(t, err)

	p, err := svc.GetParty(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, p.Status)
	assert.Equal(t, 47.2, p.CurrentTime)
	assert.NotZero(t, p.LastSync)
}

func TestUpdatePlaybackStateNonHostDenied(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)
	_, err := svc.JoinParty(ctx, &JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "web",
	})
	require.NoError(t, err)

	err = svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		Code:        created.Code,
		SenderId:    "user-2",
		Status:      StatusPlaying,
		CurrentTime: 1,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	p, err := svc.GetParty(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, p.Status, "denied write must not change state")
}

func TestHostLeaveEndsParty(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)
	_, err := svc.JoinParty(ctx, &JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "web",
	})
	require.NoError(t, err)

	require.NoError(t, svc.LeaveParty(ctx, &LeavePartyParams{
		Code:   created.Code,
		UserId: "host-1",
	}))

	p, err := svc.GetParty(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, p.Status)
	assert.NotZero(t, p.EndedAt)

	// Writes after end are rejected.
	err = svc.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		Code:        created.Code,
		SenderId:    "host-1",
		Status:      StatusPlaying,
		CurrentTime: 5,
	})
	assert.ErrorIs(t, err, ErrPartyEnded)
}

func TestLastParticipantLeaveEndsParty(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)
	_, err := svc.JoinParty(ctx, &JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "web",
	})
	require.NoError(t, err)

	// Non-host leave keeps the party alive.
	require.NoError(t, svc.LeaveParty(ctx, &LeavePartyParams{Code: created.Code, UserId: "user-2"}))
	p, err := svc.GetParty(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, p.Status)
	assert.Len(t, p.Participants, 1)
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	snapshots, cancel, err := svc.Subscribe(ctx, created.Code)
	require.NoError(t, err)
	defer cancel()

	// Initial snapshot arrives without any write.
	first := <-snapshots
	assert.Equal(t, StatusWaiting, first.Status)

	_, err = svc.JoinParty(ctx, &JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-2",
		DisplayName: "Guest",
		Platform:    "web",
	})
	require.NoError(t, err)

	select {
	case p := <-snapshots:
		assert.Len(t, p.Participants, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after join")
	}

	require.NoError(t, svc.LeaveParty(ctx, &LeavePartyParams{Code: created.Code, UserId: "host-1"}))

	var last Party
	for p := range snapshots {
		last = p
	}
	assert.Equal(t, StatusEnded, last.Status, "terminal snapshot must be delivered before close")
}

func TestChatValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	_, err := svc.SendChatMessage(ctx, &SendChatMessageParams{
		Code:        created.Code,
		UserId:      "host-1",
		DisplayName: "Host",
		Platform:    "web",
		Message:     strings.Repeat("a", 201),
	})
	assert.ErrorIs(t, err, ErrMessageTooLong)

	exact := strings.Repeat("a", 200)
	sent, err := svc.SendChatMessage(ctx, &SendChatMessageParams{
		Code:        created.Code,
		UserId:      "host-1",
		DisplayName: "Host",
		Platform:    "web",
		Message:     exact,
	})
	require.NoError(t, err)
	assert.Equal(t, exact, sent.Message)

	messages, err := svc.FetchChatMessages(ctx, created.Code, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, exact, messages[0].Message)
	assert.Equal(t, "web", messages[0].Platform, "sender platform is stored on the message")
}

func TestChatFetchOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	for i := 1; i <= 3; i++ {
		_, err := svc.SendChatMessage(ctx, &SendChatMessageParams{
			Code:        created.Code,
			UserId:      "host-1",
			DisplayName: "Host",
			Platform:    "web",
			Message:     fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		// Distinct server timestamps keep ordering observable.
		time.Sleep(2 * time.Millisecond)
	}

	messages, err := svc.FetchChatMessages(ctx, created.Code, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "message 2", messages[0].Message)
	assert.Equal(t, "message 3", messages[1].Message)
}

func TestSubscribeDeliversEndCommittedRightAfterAttach(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	snapshots, cancel, err := svc.Subscribe(ctx, created.Code)
	require.NoError(t, err)
	defer cancel()

	// End the party before reading anything from the feed. The terminal
	// snapshot must still arrive and close the channel rather than leaving
	// the subscriber hanging on a quiet feed.
	require.NoError(t, svc.LeaveParty(ctx, &LeavePartyParams{Code: created.Code, UserId: "host-1"}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-snapshots:
			if !ok {
				return
			}
			if p.Status == StatusEnded {
				return
			}
		case <-deadline:
			t.Fatal("terminal snapshot never delivered")
		}
	}
}

func TestVoiceSignalReplacement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	require.NoError(t, svc.JoinVoice(ctx, &JoinVoiceParams{
		Code:        created.Code,
		UserId:      "host-1",
		DisplayName: "Host",
	}))

	require.NoError(t, svc.SendVoiceSignal(ctx, &SendVoiceSignalParams{
		Code:         created.Code,
		FromUserId:   "host-1",
		TargetUserId: "user-2",
		Payload:      []byte(`{"kind":"offer","sdp":"v=0 first"}`),
	}))
	require.NoError(t, svc.SendVoiceSignal(ctx, &SendVoiceSignalParams{
		Code:         created.Code,
		FromUserId:   "host-1",
		TargetUserId: "user-2",
		Payload:      []byte(`{"kind":"offer","sdp":"v=0 second"}`),
	}))

	states, err := svc.GetVoiceStates(ctx, created.Code)
	require.NoError(t, err)
	require.Len(t, states, 1)

	// Only the latest message per (sender, target) pair is visible.
	require.Contains(t, states[0].Signals, "user-2")
	assert.Contains(t, string(states[0].Signals["user-2"]), "second")

	assert.True(t, states[0].IsMuted, "voice participants start muted")
}

func TestVoiceSignalRequiresVoiceRecord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	// Signaling without joining voice first must be rejected, not silently
	// written to a record no reader will ever see.
	err := svc.SendVoiceSignal(ctx, &SendVoiceSignalParams{
		Code:         created.Code,
		FromUserId:   "host-1",
		TargetUserId: "user-2",
		Payload:      []byte(`{"kind":"offer","sdp":"v=0"}`),
	})
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	states, err := svc.GetVoiceStates(ctx, created.Code)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestVoiceLeaveRemovesState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := createTestParty(t, svc)

	require.NoError(t, svc.JoinVoice(ctx, &JoinVoiceParams{
		Code:        created.Code,
		UserId:      "host-1",
		DisplayName: "Host",
	}))

	events, cancel, err := svc.WatchVoice(ctx, created.Code)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, svc.LeaveVoice(ctx, created.Code, "host-1"))

	select {
	case event := <-events:
		assert.Equal(t, VoiceRemoved, event.Kind)
		assert.Equal(t, "host-1", event.UserId)
	case <-time.After(2 * time.Second):
		t.Fatal("no removal event")
	}

	states, err := svc.GetVoiceStates(ctx, created.Code)
	require.NoError(t, err)
	assert.Empty(t, states)
}
