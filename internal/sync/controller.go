package sync

import (
	"context"
	"log/slog"
	"math"
	"time"

	party "github.com/storyscout/server/internal/service/party"
)

const (
	// defaultHeartbeatInterval is how often the host samples its player and
	// publishes the authoritative playback state.
	defaultHeartbeatInterval = 5 * time.Second

	// driftTolerance is the maximum distance in seconds a participant's
	// playhead may drift from the host before a hard seek. Below it small
	// differences are left alone to avoid stutter.
	driftTolerance = 3.0
)

// Player is the local media surface the controller drives. Implementations
// wrap whatever playback engine the client embeds.
type Player interface {
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	Position() (float64, error)
	Paused() (bool, error)
}

type iPartyService interface {
	UpdatePlaybackState(ctx context.Context, params *party.UpdatePlaybackStateParams) error
	Subscribe(ctx context.Context, code string) (<-chan party.Party, func(), error)
}

type Config struct {
	Code   string
	UserId string
	// HeartbeatInterval overrides the host publish cadence. Zero means the
	// default of five seconds.
	HeartbeatInterval time.Duration
	// OnPartyStart fires at most once, when playback first starts while the
	// lobby is still showing. The UI uses it to switch to the content view.
	OnPartyStart func()
}

type controller struct {
	partySvc iPartyService
	player   Player
	logger   *slog.Logger

	code              string
	userId            string
	heartbeatInterval time.Duration
	onPartyStart      func()

	lobbyOpen bool
}

func NewController(partySvc iPartyService, player Player, cfg *Config, logger *slog.Logger) *controller {
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &controller{
		partySvc:          partySvc,
		player:            player,
		logger:            logger,
		code:              cfg.Code,
		userId:            cfg.UserId,
		heartbeatInterval: interval,
		onPartyStart:      cfg.OnPartyStart,
		lobbyOpen:         true,
	}
}

// Run drives the player until the context is cancelled or the party ends.
// The host publishes heartbeats; everyone else follows the published state.
// Player and publish errors are transient by assumption: they are logged and
// the loop keeps going.
func (c *controller) Run(ctx context.Context) error {
	snapshots, cancel, err := c.partySvc.Subscribe(ctx, c.code)
	if err != nil {
		return err
	}
	defer cancel()

	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	var last party.Party
	var have bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-snapshots:
			if !ok {
				return nil
			}
			last, have = p, true
			if p.HostUserId != c.userId {
				c.apply(p)
			}
			if p.Status == party.StatusEnded {
				return nil
			}
		case <-ticker.C:
			if !have || last.HostUserId != c.userId {
				continue
			}
			// The lobby screen has no playback to report.
			if last.Status == party.StatusWaiting {
				continue
			}
			c.heartbeat(ctx)
		}
	}
}

// heartbeat samples the local player and publishes its state so participants
// can converge on it.
func (c *controller) heartbeat(ctx context.Context) {
	pos, err := c.player.Position()
	if err != nil {
		c.logger.WarnContext(ctx, "heartbeat: read position", "error", err)
		return
	}
	paused, err := c.player.Paused()
	if err != nil {
		c.logger.WarnContext(ctx, "heartbeat: read paused", "error", err)
		return
	}

	status := party.StatusPlaying
	if paused {
		status = party.StatusPaused
	}

	if err := c.partySvc.UpdatePlaybackState(ctx, &party.UpdatePlaybackStateParams{
		Code:        c.code,
		SenderId:    c.userId,
		Status:      status,
		CurrentTime: pos,
	}); err != nil {
		c.logger.WarnContext(ctx, "heartbeat: publish", "error", err)
	}
}

// apply reconciles the local player against one published snapshot.
func (c *controller) apply(p party.Party) {
	// The switch from lobby to content happens on the first observed playing
	// status, and only once; repeated playing snapshots must not retrigger it.
	if p.Status == party.StatusPlaying && c.lobbyOpen {
		c.lobbyOpen = false
		if c.onPartyStart != nil {
			c.onPartyStart()
		}
	}

	paused, err := c.player.Paused()
	if err != nil {
		c.logger.Warn("apply: read paused", "error", err)
		return
	}

	switch p.Status {
	case party.StatusWaiting, party.StatusEnded:
		if !paused {
			if err := c.player.Pause(); err != nil {
				c.logger.Warn("apply: pause", "error", err)
			}
		}
	case party.StatusPaused:
		if !paused {
			if err := c.player.Pause(); err != nil {
				c.logger.Warn("apply: pause", "error", err)
			}
		}
	case party.StatusPlaying:
		if paused {
			if err := c.player.Play(); err != nil {
				c.logger.Warn("apply: play", "error", err)
			}
		}
		pos, err := c.player.Position()
		if err != nil {
			c.logger.Warn("apply: read position", "error", err)
			return
		}
		if math.Abs(pos-p.CurrentTime) >= driftTolerance {
			if err := c.player.SeekTo(p.CurrentTime); err != nil {
				c.logger.Warn("apply: seek", "error", err)
			}
		}
	}
}
