package redis

import (
	"context"
	"fmt"

	"github.com/storyscout/server/internal/repository/party"
)

// AddParticipant atomically appends a participant to the join-ordered list,
// enforcing capacity and idempotency in one script so two joins in the same
// instant cannot lose an update or exceed the cap.
func (r repo) AddParticipant(ctx context.Context, params *party.AddParticipantParams) (party.AddParticipantResult, error) {
	participantsKey := r.getParticipantsKey(params.Code)

	rank, err := r.rc.EvalSha(ctx, r.appendMemberScript,
		[]string{participantsKey}, params.UserId, params.MaxCount,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to append participant: %w", err)
	}

	switch rank {
	case -1:
		return party.ParticipantAlreadyPresent, nil
	case -2:
		return party.ParticipantListFull, nil
	}

	participant := party.Participant{
		UserId:      params.UserId,
		DisplayName: params.DisplayName,
		Platform:    params.Platform,
		JoinedAt:    params.JoinedAt,
	}

	participantKey := r.getParticipantKey(params.Code, params.UserId)
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, participantKey, participant)
	pipe.Expire(ctx, participantKey, r.expireDuration)
	pipe.Expire(ctx, participantsKey, r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		return 0, fmt.Errorf("failed to set participant: %w", err)
	}

	r.publish(ctx, r.getEventsChannel(params.Code), party.Event{
		Kind:   party.EventPartyUpdated,
		Code:   params.Code,
		UserId: params.UserId,
	})

	return party.ParticipantAdded, nil
}

func (r repo) RemoveParticipant(ctx context.Context, params *party.RemoveParticipantParams) error {
	removed, err := r.rc.ZRem(ctx, r.getParticipantsKey(params.Code), params.UserId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove participant from list: %w", err)
	}

	if removed == 0 {
		return party.ErrParticipantMissing
	}

	if err := r.rc.Del(ctx, r.getParticipantKey(params.Code, params.UserId)).Err(); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	r.publish(ctx, r.getEventsChannel(params.Code), party.Event{
		Kind:   party.EventPartyUpdated,
		Code:   params.Code,
		UserId: params.UserId,
	})

	return nil
}

func (r repo) GetParticipantIds(ctx context.Context, code string) ([]string, error) {
	userIds, err := r.rc.ZRange(ctx, r.getParticipantsKey(code), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get participant ids: %w", err)
	}

	return userIds, nil
}

func (r repo) GetParticipant(ctx context.Context, code, userId string) (party.Participant, error) {
	var participant party.Participant
	if err := r.rc.HGetAll(ctx, r.getParticipantKey(code, userId)).Scan(&participant); err != nil {
		return party.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if participant.UserId == "" {
		return party.Participant{}, party.ErrParticipantMissing
	}

	return participant, nil
}
