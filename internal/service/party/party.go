package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storyscout/server/internal/repository/party"
	"github.com/storyscout/server/pkg/joincode"
)

// codeAttempts bounds regeneration when a generated join code collides with
// an existing party.
const codeAttempts = 5

type CreatePartyParams struct {
	UserId       string
	DisplayName  string
	Platform     string
	ContentId    string
	ContentTitle string
	VideoURL     string
}

func (s service) CreateParty(ctx context.Context, params *CreatePartyParams) (Party, error) {
	now := time.Now().UnixMilli()

	var code string
	for attempt := 0; ; attempt++ {
		code = s.generator.Generate()
		err := s.partyRepo.SetPartyIfAbsent(ctx, &party.SetPartyParams{
			Code:            code,
			HostUserId:      params.UserId,
			ContentId:       params.ContentId,
			ContentTitle:    params.ContentTitle,
			VideoURL:        params.VideoURL,
			MaxParticipants: s.maxParticipants,
			CreatedAt:       now,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, party.ErrPartyExists) {
			return Party{}, fmt.Errorf("failed to create party: %w", err)
		}
		if attempt == codeAttempts-1 {
			return Party{}, fmt.Errorf("failed to create party: code space exhausted after %d attempts", codeAttempts)
		}
		s.logger.InfoContext(ctx, "join code collision, regenerating", "code", code)
	}

	if _, err := s.partyRepo.AddParticipant(ctx, &party.AddParticipantParams{
		Code:        code,
		UserId:      params.UserId,
		DisplayName: params.DisplayName,
		Platform:    params.Platform,
		JoinedAt:    now,
		MaxCount:    s.maxParticipants,
	}); err != nil {
		return Party{}, fmt.Errorf("failed to add host participant: %w", err)
	}

	return s.getPartySnapshot(ctx, code)
}

type JoinPartyParams struct {
	Code        string
	UserId      string
	DisplayName string
	Platform    string
}

// JoinParty is idempotent: joining a party the user already belongs to
// returns the current snapshot without error or duplicate entries.
func (s service) JoinParty(ctx context.Context, params *JoinPartyParams) (Party, error) {
	code := joincode.Normalize(params.Code)

	p, err := s.partyRepo.GetParty(ctx, code)
	if err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, fmt.Errorf("failed to get party: %w", err)
	}

	if Status(p.Status) == StatusEnded {
		return Party{}, ErrPartyEnded
	}

	result, err := s.partyRepo.AddParticipant(ctx, &party.AddParticipantParams{
		Code:        code,
		UserId:      params.UserId,
		DisplayName: params.DisplayName,
		Platform:    params.Platform,
		JoinedAt:    time.Now().UnixMilli(),
		MaxCount:    p.MaxParticipants,
	})
	if err != nil {
		return Party{}, fmt.Errorf("failed to add participant: %w", err)
	}

	if result == party.ParticipantListFull {
		return Party{}, ErrPartyFull
	}

	return s.getPartySnapshot(ctx, code)
}

func (s service) GetParty(ctx context.Context, code string) (Party, error) {
	return s.getPartySnapshot(ctx, joincode.Normalize(code))
}

type UpdatePlaybackStateParams struct {
	Code        string
	SenderId    string
	Status      Status
	CurrentTime float64
}

// UpdatePlaybackState overwrites the authoritative playback fields. Only the
// host may call it; a non-host sender is rejected rather than trusted.
func (s service) UpdatePlaybackState(ctx context.Context, params *UpdatePlaybackStateParams) error {
	if params.Status != StatusPlaying && params.Status != StatusPaused {
		return ErrInvalidStatus
	}

	code := joincode.Normalize(params.Code)
	p, err := s.partyRepo.GetParty(ctx, code)
	if err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return ErrPartyNotFound
		}
		return fmt.Errorf("failed to get party: %w", err)
	}

	if Status(p.Status) == StatusEnded {
		return ErrPartyEnded
	}
	if p.HostUserId != params.SenderId {
		return ErrPermissionDenied
	}

	if err := s.partyRepo.UpdatePlayback(ctx, &party.UpdatePlaybackParams{
		Code:        code,
		Status:      params.Status,
		CurrentTime: params.CurrentTime,
		LastSync:    time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	return nil
}

type LeavePartyParams struct {
	Code   string
	UserId string
}

// LeaveParty removes the participant. A host leave, or a leave that empties
// the list, transitions the party to ended instead of shrinking it.
func (s service) LeaveParty(ctx context.Context, params *LeavePartyParams) error {
	code := joincode.Normalize(params.Code)

	p, err := s.partyRepo.GetParty(ctx, code)
	if err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return ErrPartyNotFound
		}
		return fmt.Errorf("failed to get party: %w", err)
	}

	if Status(p.Status) == StatusEnded {
		return nil
	}

	if p.HostUserId == params.UserId {
		return s.endParty(ctx, code)
	}

	if err := s.partyRepo.RemoveParticipant(ctx, &party.RemoveParticipantParams{
		Code:   code,
		UserId: params.UserId,
	}); err != nil {
		if errors.Is(err, party.ErrParticipantMissing) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	userIds, err := s.partyRepo.GetParticipantIds(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to get participant ids: %w", err)
	}
	if len(userIds) == 0 {
		return s.endParty(ctx, code)
	}

	return nil
}

func (s service) endParty(ctx context.Context, code string) error {
	if err := s.partyRepo.EndParty(ctx, &party.EndPartyParams{
		Code:    code,
		EndedAt: time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to end party: %w", err)
	}

	return nil
}

// Subscribe delivers the current snapshot immediately and then a fresh
// snapshot after every committed change, in commit order. The channel closes
// after the terminal (ended) snapshot, or when the subscription is cancelled.
// The returned cancel func must always be called.
func (s service) Subscribe(ctx context.Context, code string) (<-chan Party, func(), error) {
	code = joincode.Normalize(code)

	// Attach to the event feed before reading the snapshot; the other order
	// loses any write (including the terminal end) committed in between.
	subCtx, cancel := context.WithCancel(ctx)
	events, cancelEvents := s.partyRepo.SubscribeEvents(subCtx, code)

	snapshot, err := s.getPartySnapshot(ctx, code)
	if err != nil {
		cancelEvents()
		cancel()
		return nil, nil, err
	}

	out := make(chan Party, 1)
	go func() {
		defer close(out)
		defer cancelEvents()

		deliver := func(p Party) bool {
			select {
			case out <- p:
				return true
			case <-subCtx.Done():
				return false
			}
		}

		if !deliver(snapshot) {
			return
		}
		if snapshot.Status == StatusEnded {
			return
		}

		for {
			select {
			case <-subCtx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}

				p, err := s.getPartySnapshot(subCtx, code)
				if err != nil {
					// Document gone (or unreadable): terminal signal.
					s.logger.InfoContext(subCtx, "party snapshot unavailable, closing subscription",
						"code", code, "error", err)
					return
				}

				if !deliver(p) {
					return
				}
				if event.Kind == party.EventPartyEnded || p.Status == StatusEnded {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func (s service) getPartySnapshot(ctx context.Context, code string) (Party, error) {
	p, err := s.partyRepo.GetParty(ctx, code)
	if err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, fmt.Errorf("failed to get party: %w", err)
	}

	userIds, err := s.partyRepo.GetParticipantIds(ctx, code)
	if err != nil {
		return Party{}, fmt.Errorf("failed to get participant ids: %w", err)
	}

	participants := make([]Participant, 0, len(userIds))
	for _, userId := range userIds {
		participant, err := s.partyRepo.GetParticipant(ctx, code, userId)
		if err != nil {
			return Party{}, fmt.Errorf("failed to get participant: %w", err)
		}
		participants = append(participants, participantFromRepo(participant))
	}

	return Party{
		Code:            p.Code,
		HostUserId:      p.HostUserId,
		ContentId:       p.ContentId,
		ContentTitle:    p.ContentTitle,
		VideoURL:        p.VideoURL,
		Status:          Status(p.Status),
		CurrentTime:     p.CurrentTime,
		LastSync:        p.LastSync,
		Participants:    participants,
		MaxParticipants: p.MaxParticipants,
		CreatedAt:       p.CreatedAt,
		EndedAt:         p.EndedAt,
	}, nil
}
