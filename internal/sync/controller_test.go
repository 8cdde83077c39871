package sync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	party "github.com/storyscout/server/internal/service/party"
)

type fakePlayer struct {
	position float64
	paused   bool

	seeks  []float64
	plays  int
	pauses int
}

func (f *fakePlayer) Play() error  { f.paused = false; f.plays++; return nil }
func (f *fakePlayer) Pause() error { f.paused = true; f.pauses++; return nil }
func (f *fakePlayer) SeekTo(seconds float64) error {
	f.position = seconds
	f.seeks = append(f.seeks, seconds)
	return nil
}
func (f *fakePlayer) Position() (float64, error) { return f.position, nil }
func (f *fakePlayer) Paused() (bool, error)      { return f.paused, nil }

type fakePartyService struct {
	snapshots chan party.Party
	updates   chan party.UpdatePlaybackStateParams
}

func newFakePartyService() *fakePartyService {
	return &fakePartyService{
		snapshots: make(chan party.Party, 16),
		updates:   make(chan party.UpdatePlaybackStateParams, 16),
	}
}

func (f *fakePartyService) UpdatePlaybackState(_ context.Context, params *party.UpdatePlaybackStateParams) error {
	f.updates <- *params
	return nil
}

func (f *fakePartyService) Subscribe(_ context.Context, _ string) (<-chan party.Party, func(), error) {
	return f.snapshots, func() {}, nil
}

func newTestController(cfg *Config) (*controller, *fakePlayer, *fakePartyService) {
	player := &fakePlayer{}
	svc := newFakePartyService()
	return NewController(svc, player, cfg, slog.Default()), player, svc
}

func playingSnapshot(currentTime float64) party.Party {
	return party.Party{
		Code:        "ABCDEF",
		HostUserId:  "host-1",
		Status:      party.StatusPlaying,
		CurrentTime: currentTime,
	}
}

func TestApplySeeksOnLargeDrift(t *testing.T) {
	c, player, _ := newTestController(&Config{Code: "ABCDEF", UserId: "user-2"})

	player.position = 43.0
	c.apply(playingSnapshot(47.2))

	require.Len(t, player.seeks, 1)
	assert.Equal(t, 47.2, player.seeks[0])
	assert.Equal(t, 1, player.plays, "playing snapshot resumes a fresh player")
}

func TestApplyToleratesSmallDrift(t *testing.T) {
	c, player, _ := newTestController(&Config{Code: "ABCDEF", UserId: "user-2"})
	player.paused = false

	player.position = 10.0
	c.apply(playingSnapshot(12.9))
	assert.Empty(t, player.seeks, "drift below the tolerance band must not seek")

	c.apply(playingSnapshot(13.1))
	require.Len(t, player.seeks, 1)
	assert.Equal(t, 13.1, player.seeks[0])
}

func TestApplyPausedNeverSeeks(t *testing.T) {
	c, player, _ := newTestController(&Config{Code: "ABCDEF", UserId: "user-2"})
	player.paused = false
	player.position = 0

	c.apply(party.Party{
		Code:        "ABCDEF",
		HostUserId:  "host-1",
		Status:      party.StatusPaused,
		CurrentTime: 100,
	})

	assert.True(t, player.paused)
	assert.Empty(t, player.seeks, "seeking applies only while playing")
}

func TestApplyWaitingKeepsPlayerPaused(t *testing.T) {
	c, player, _ := newTestController(&Config{Code: "ABCDEF", UserId: "user-2"})
	player.paused = false

	c.apply(party.Party{
		Code:       "ABCDEF",
		HostUserId: "host-1",
		Status:     party.StatusWaiting,
	})

	assert.True(t, player.paused)
	assert.Zero(t, player.plays)
}

func TestOnPartyStartFiresOnce(t *testing.T) {
	var starts atomic.Int32
	c, player, _ := newTestController(&Config{
		Code:         "ABCDEF",
		UserId:       "user-2",
		OnPartyStart: func() { starts.Add(1) },
	})
	player.paused = true

	// A playing snapshot while the lobby is showing switches to content.
	c.apply(playingSnapshot(0))
	assert.Equal(t, int32(1), starts.Load())

	// Further playing snapshots, even after a pause, must not retrigger it.
	c.apply(party.Party{Code: "ABCDEF", HostUserId: "host-1", Status: party.StatusPaused})
	c.apply(playingSnapshot(5))
	c.apply(playingSnapshot(10))
	assert.Equal(t, int32(1), starts.Load())
}

func TestHostHeartbeatPublishesPlayerState(t *testing.T) {
	c, player, svc := newTestController(&Config{
		Code:              "ABCDEF",
		UserId:            "host-1",
		HeartbeatInterval: 10 * time.Millisecond,
	})
	player.position = 31.5
	player.paused = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	svc.snapshots <- playingSnapshot(30)

	select {
	case update := <-svc.updates:
		assert.Equal(t, "host-1", update.SenderId)
		assert.Equal(t, party.StatusPlaying, update.Status)
		assert.Equal(t, 31.5, update.CurrentTime)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat published")
	}

	cancel()
	<-done
}

func TestHostSkipsHeartbeatWhileWaiting(t *testing.T) {
	c, _, svc := newTestController(&Config{
		Code:              "ABCDEF",
		UserId:            "host-1",
		HeartbeatInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	svc.snapshots <- party.Party{Code: "ABCDEF", HostUserId: "host-1", Status: party.StatusWaiting}

	select {
	case update := <-svc.updates:
		t.Fatalf("unexpected heartbeat in waiting state: %+v", update)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	<-done
}

func TestRunStopsOnEndedSnapshot(t *testing.T) {
	c, player, svc := newTestController(&Config{Code: "ABCDEF", UserId: "user-2"})
	player.paused = false

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(context.Background())
	}()

	svc.snapshots <- party.Party{Code: "ABCDEF", HostUserId: "host-1", Status: party.StatusEnded}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop after the party ended")
	}
	assert.True(t, player.paused, "terminal snapshot pauses the player")
}
