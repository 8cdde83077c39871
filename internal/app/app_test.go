package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	partyRedis "github.com/storyscout/server/internal/repository/party/redis"
	"github.com/storyscout/server/internal/service/party"
)

func TestWatchPartyFlow(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)
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

	ctx := context.Background()

	// user A creates a party
	created, err := service.CreateParty(ctx, &party.CreatePartyParams{
		UserId:       "user-a",
		DisplayName:  "Alice",
		Platform:     "web",
		ContentId:    "movie-42",
		ContentTitle: "The Movie",
		VideoURL:     "https://cdn.example.com/movie-42.mp4",
	})
	require.NoError(t, err)
	require.Len(t, created.Code, 6)
	assert.Equal(t, party.StatusWaiting, created.Status)
	t.Log("party created", created.Code)

	// user B subscribes and joins
	snapshots, cancelSub, err := service.Subscribe(ctx, created.Code)
	require.NoError(t, err)
	defer cancelSub()
	<-snapshots // initial snapshot

	joined, err := service.JoinParty(ctx, &party.JoinPartyParams{
		Code:        created.Code,
		UserId:      "user-b",
		DisplayName: "Bob",
		Platform:    "mobile",
	})
	require.NoError(t, err)
	assert.Len(t, joined.Participants, 2)
	t.Log("user B joined")

	// drain the join snapshot
	select {
	case <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after join")
	}

	// host starts playback; B observes the transition out of the lobby
	require.NoError(t, service.UpdatePlaybackState(ctx, &party.UpdatePlaybackStateParams{
		Code:        created.Code,
		SenderId:    "user-a",
		Status:      party.StatusPlaying,
		CurrentTime: 0,
	}))

	select {
	case p := <-snapshots:
		assert.Equal(t, party.StatusPlaying, p.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after playback start")
	}
	t.Log("playback started")

	// a later heartbeat puts the host well ahead of B's playhead
	require.NoError(t, service.UpdatePlaybackState(ctx, &party.UpdatePlaybackStateParams{
		Code:        created.Code,
		SenderId:    "user-a",
		Status:      party.StatusPlaying,
		CurrentTime: 47.2,
	}))

	select {
	case p := <-snapshots:
		// B at 43.0 is 4.2 s behind, outside the 3 s tolerance band, so a
		// follower at that position must hard-seek to 47.2.
		assert.Equal(t, 47.2, p.CurrentTime)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after heartbeat")
	}

	// chat both ways
	_, err = service.SendChatMessage(ctx, &party.SendChatMessageParams{
		Code:        created.Code,
		UserId:      "user-a",
		DisplayName: "Alice",
		Platform:    "web",
		Message:     "ready?",
	})
	require.NoError(t, err)
	_, err = service.SendChatMessage(ctx, &party.SendChatMessageParams{
		Code:        created.Code,
		UserId:      "user-b",
		DisplayName: "Bob",
		Platform:    "mobile",
		Message:     "go",
	})
	require.NoError(t, err)

	messages, err := service.FetchChatMessages(ctx, created.Code, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "ready?", messages[0].Message)
	assert.Equal(t, "go", messages[1].Message)
	t.Log("chat exchanged")

	// voice join and one signal A -> B
	require.NoError(t, service.JoinVoice(ctx, &party.JoinVoiceParams{
		Code:        created.Code,
		UserId:      "user-a",
		DisplayName: "Alice",
	}))
	require.NoError(t, service.SendVoiceSignal(ctx, &party.SendVoiceSignalParams{
		Code:         created.Code,
		FromUserId:   "user-a",
		TargetUserId: "user-b",
		Payload:      []byte(`{"kind":"offer","sdp":"v=0"}`),
	}))

	states, err := service.GetVoiceStates(ctx, created.Code)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Contains(t, states[0].Signals, "user-b")
	t.Log("voice signal relayed")

	// host leaves, party ends, B's feed delivers the terminal snapshot
	require.NoError(t, service.LeaveParty(ctx, &party.LeavePartyParams{
		Code:   created.Code,
		UserId: "user-a",
	}))

	var last party.Party
	for p := range snapshots {
		last = p
	}
	assert.Equal(t, party.StatusEnded, last.Status)
	assert.NotZero(t, last.EndedAt)
	t.Log("party ended")

	t.Log(rc.Keys(ctx, "*").Val())
}
