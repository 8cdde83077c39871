// Package client is a headless watch party participant. It joins (or
// creates) a party over the REST surface, follows playback through the sync
// controller against a simulated player, and keeps a voice mesh alive over
// the party websocket. It exists to exercise the full client-side wiring
// without a UI.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/storyscout/server/internal/service/party"
	syncctl "github.com/storyscout/server/internal/sync"
	"github.com/storyscout/server/internal/voice"
)

const keepaliveInterval = 30 * time.Second

type Config struct {
	ServerURL   string
	Code        string
	UserId      string
	DisplayName string
	Platform    string

	// Content fields are only used when Code is empty and a new party is
	// created.
	ContentId    string
	ContentTitle string
	VideoURL     string
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server url is required")
	}
	if c.DisplayName == "" {
		return errors.New("display name is required")
	}
	if c.Code == "" && (c.ContentId == "" || c.VideoURL == "") {
		return errors.New("creating a party requires content id and video url")
	}
	return nil
}

// syncBackend satisfies the sync controller's service surface: playback
// updates go out over REST, snapshots come in over the websocket.
type syncBackend struct {
	api  *apiClient
	sock *partySocket
}

func (b syncBackend) UpdatePlaybackState(ctx context.Context, params *party.UpdatePlaybackStateParams) error {
	return b.api.updatePlayback(ctx, params)
}

func (b syncBackend) Subscribe(context.Context, string) (<-chan party.Party, func(), error) {
	return b.sock.snapshots, func() {}, nil
}

// Run enters the party and blocks until it ends or ctx is cancelled.
func Run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	userId := cfg.UserId
	if userId == "" {
		userId = "user-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}

	api := newAPIClient(cfg.ServerURL)

	var p party.Party
	var err error
	if cfg.Code == "" {
		p, err = api.createParty(ctx, createPartyRequest{
			UserId:       userId,
			DisplayName:  cfg.DisplayName,
			Platform:     cfg.Platform,
			ContentId:    cfg.ContentId,
			ContentTitle: cfg.ContentTitle,
			VideoUrl:     cfg.VideoURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create party: %w", err)
		}
		logger.InfoContext(ctx, "party created", "code", p.Code)
	} else {
		p, err = api.joinParty(ctx, joinPartyRequest{
			Code:        cfg.Code,
			UserId:      userId,
			DisplayName: cfg.DisplayName,
			Platform:    cfg.Platform,
		})
		if err != nil {
			return fmt.Errorf("failed to join party: %w", err)
		}
		logger.InfoContext(ctx, "party joined", "code", p.Code)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sock, err := dialPartySocket(ctx, cfg.ServerURL, p.Code, userId, logger)
	if err != nil {
		return err
	}
	defer sock.close()
	go func() {
		sock.run(ctx)
		cancel()
	}()

	manager := voice.NewManager(sock, userId, logger)
	defer manager.Close()
	go func() {
		if err := manager.Run(ctx); err != nil {
			logger.WarnContext(ctx, "voice manager", "error", err)
		}
	}()

	if err := sock.joinVoice(cfg.DisplayName); err != nil {
		return fmt.Errorf("failed to join voice: %w", err)
	}

	go func() {
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sock.alive(); err != nil {
					logger.WarnContext(ctx, "keepalive", "error", err)
					return
				}
			}
		}
	}()

	// Voice record updates double as peer discovery: the first sight of a
	// record opens the session, a peer-left event tears it down.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case state, ok := <-sock.voiceStates:
				if !ok {
					return
				}
				manager.PeerSeen(ctx, state.UserId)
			case peerId, ok := <-sock.peersGone:
				if !ok {
					return
				}
				manager.PeerGone(peerId)
			}
		}
	}()

	controller := syncctl.NewController(syncBackend{api: api, sock: sock}, newWallClockPlayer(), &syncctl.Config{
		Code:   p.Code,
		UserId: userId,
		OnPartyStart: func() {
			logger.InfoContext(ctx, "playback started")
		},
	}, logger)

	err = controller.Run(ctx)

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer leaveCancel()
	if leaveErr := api.leaveParty(leaveCtx, p.Code, userId); leaveErr != nil {
		logger.WarnContext(leaveCtx, "leave party", "error", leaveErr)
	}

	return err
}
