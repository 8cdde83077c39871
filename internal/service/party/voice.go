package party

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slices"

	"github.com/storyscout/server/internal/repository/party"
	"github.com/storyscout/server/pkg/joincode"
)

type JoinVoiceParams struct {
	Code        string
	UserId      string
	DisplayName string
}

// JoinVoice publishes the caller's voice record, announcing it to every
// watcher so existing participants can begin negotiating an audio path.
// New participants start muted.
func (s service) JoinVoice(ctx context.Context, params *JoinVoiceParams) error {
	code := joincode.Normalize(params.Code)

	if err := s.partyRepo.SetVoiceState(ctx, &party.SetVoiceStateParams{
		Code:        code,
		UserId:      params.UserId,
		DisplayName: params.DisplayName,
		IsMuted:     true,
		IsSpeaking:  false,
		PeerId:      params.UserId,
		Timestamp:   time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to set voice state: %w", err)
	}

	return nil
}

type UpdateVoicePresenceParams struct {
	Code       string
	UserId     string
	IsMuted    bool
	IsSpeaking bool
}

// UpdateVoicePresence publishes mute/speaking flags for UI display. It does
// not gate mesh connections.
func (s service) UpdateVoicePresence(ctx context.Context, params *UpdateVoicePresenceParams) error {
	code := joincode.Normalize(params.Code)

	existing, err := s.partyRepo.GetVoiceState(ctx, code, params.UserId)
	if err != nil {
		if errors.Is(err, party.ErrVoiceStateMissing) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to get voice state: %w", err)
	}

	if err := s.partyRepo.SetVoiceState(ctx, &party.SetVoiceStateParams{
		Code:        code,
		UserId:      params.UserId,
		DisplayName: existing.DisplayName,
		IsMuted:     params.IsMuted,
		IsSpeaking:  params.IsSpeaking,
		PeerId:      existing.PeerId,
		Timestamp:   time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to set voice state: %w", err)
	}

	return nil
}

type SendVoiceSignalParams struct {
	Code         string
	FromUserId   string
	TargetUserId string
	Payload      json.RawMessage
}

// SendVoiceSignal relays one negotiation message (offer, answer or
// candidate) to a specific peer. Only the latest message per (sender,
// target) pair is guaranteed visible; senders must tolerate replacement.
func (s service) SendVoiceSignal(ctx context.Context, params *SendVoiceSignalParams) error {
	if len(params.Payload) == 0 {
		return errors.New("empty signal payload")
	}

	code := joincode.Normalize(params.Code)

	// A signal write to a non-existent record would create a headless hash
	// that readers treat as missing, silently dropping the signal.
	if _, err := s.partyRepo.GetVoiceState(ctx, code, params.FromUserId); err != nil {
		if errors.Is(err, party.ErrVoiceStateMissing) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to get voice state: %w", err)
	}

	if err := s.partyRepo.SetVoiceSignal(ctx, &party.SetVoiceSignalParams{
		Code:         code,
		FromUserId:   params.FromUserId,
		TargetUserId: params.TargetUserId,
		Payload:      string(params.Payload),
		Timestamp:    time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to set voice signal: %w", err)
	}

	return nil
}

func (s service) LeaveVoice(ctx context.Context, code, userId string) error {
	if err := s.partyRepo.RemoveVoiceState(ctx, &party.RemoveVoiceStateParams{
		Code:   joincode.Normalize(code),
		UserId: userId,
	}); err != nil {
		return fmt.Errorf("failed to remove voice state: %w", err)
	}

	return nil
}

func (s service) GetVoiceStates(ctx context.Context, code string) ([]VoiceState, error) {
	code = joincode.Normalize(code)

	userIds, err := s.partyRepo.GetVoiceUserIds(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get voice user ids: %w", err)
	}
	slices.Sort(userIds)

	states := make([]VoiceState, 0, len(userIds))
	for _, userId := range userIds {
		state, err := s.partyRepo.GetVoiceState(ctx, code, userId)
		if err != nil {
			if errors.Is(err, party.ErrVoiceStateMissing) {
				// Roster and record can diverge briefly during removal.
				continue
			}
			return nil, fmt.Errorf("failed to get voice state: %w", err)
		}
		states = append(states, voiceStateFromRepo(state))
	}

	return states, nil
}

// WatchVoice streams voice-record changes for one party. Updated events
// carry the full record including pending signals; removed events carry only
// the user id. The cancel func must always be called.
func (s service) WatchVoice(ctx context.Context, code string) (<-chan VoiceEvent, func(), error) {
	code = joincode.Normalize(code)

	if _, err := s.partyRepo.GetParty(ctx, code); err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return nil, nil, ErrPartyNotFound
		}
		return nil, nil, fmt.Errorf("failed to get party: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events, cancelEvents := s.partyRepo.SubscribeVoiceEvents(watchCtx, code)

	out := make(chan VoiceEvent, 1)
	go func() {
		defer close(out)
		defer cancelEvents()

		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}

				voiceEvent := VoiceEvent{UserId: event.UserId}
				switch event.Kind {
				case party.EventVoiceRemoved:
					voiceEvent.Kind = VoiceRemoved
				case party.EventVoiceUpdated:
					state, err := s.partyRepo.GetVoiceState(watchCtx, code, event.UserId)
					if err != nil {
						s.logger.InfoContext(watchCtx, "failed to read voice state", "code", code,
							"user_id", event.UserId, "error", err)
						continue
					}
					voiceEvent.Kind = VoiceUpdated
					voiceEvent.State = voiceStateFromRepo(state)
				default:
					continue
				}

				select {
				case out <- voiceEvent:
				case <-watchCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
