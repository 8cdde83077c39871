package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/storyscout/server/internal/repository/party"
)

const signalFieldPrefix = "signal:"

// SetVoiceState upserts the base fields of a participant's voice record and
// adds the user to the party's voice roster.
func (r repo) SetVoiceState(ctx context.Context, params *party.SetVoiceStateParams) error {
	voiceKey := r.getVoiceKey(params.Code, params.UserId)
	voiceListKey := r.getVoiceListKey(params.Code)

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, voiceKey,
		"user_id", params.UserId,
		"display_name", params.DisplayName,
		"is_muted", params.IsMuted,
		"is_speaking", params.IsSpeaking,
		"peer_id", params.PeerId,
		"timestamp", params.Timestamp,
	)
	pipe.SAdd(ctx, voiceListKey, params.UserId)
	pipe.Expire(ctx, voiceKey, r.expireDuration)
	pipe.Expire(ctx, voiceListKey, r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set voice state: %w", err)
	}

	r.publish(ctx, r.getVoiceEventsChannel(params.Code), party.Event{
		Kind:   party.EventVoiceUpdated,
		Code:   params.Code,
		UserId: params.UserId,
	})

	return nil
}

// SetVoiceSignal stores the latest negotiation message from FromUserId
// addressed to TargetUserId. A newer message for the same target replaces
// the previous one; consumers must tolerate replacement, not expect a queue.
func (r repo) SetVoiceSignal(ctx context.Context, params *party.SetVoiceSignalParams) error {
	voiceKey := r.getVoiceKey(params.Code, params.FromUserId)

	if err := r.rc.HSet(ctx, voiceKey,
		signalFieldPrefix+params.TargetUserId, params.Payload,
		"timestamp", params.Timestamp,
	).Err(); err != nil {
		return fmt.Errorf("failed to set voice signal: %w", err)
	}

	r.rc.Expire(ctx, voiceKey, r.expireDuration)
	r.publish(ctx, r.getVoiceEventsChannel(params.Code), party.Event{
		Kind:   party.EventVoiceUpdated,
		Code:   params.Code,
		UserId: params.FromUserId,
	})

	return nil
}

func (r repo) GetVoiceState(ctx context.Context, code, userId string) (party.VoiceState, error) {
	fields, err := r.rc.HGetAll(ctx, r.getVoiceKey(code, userId)).Result()
	if err != nil {
		return party.VoiceState{}, fmt.Errorf("failed to get voice state: %w", err)
	}

	if fields["user_id"] == "" {
		return party.VoiceState{}, party.ErrVoiceStateMissing
	}

	state := party.VoiceState{
		UserId:      fields["user_id"],
		DisplayName: fields["display_name"],
		IsMuted:     fieldToBool(fields["is_muted"]),
		IsSpeaking:  fieldToBool(fields["is_speaking"]),
		PeerId:      fields["peer_id"],
		Timestamp:   fieldToInt64(fields["timestamp"]),
		Signals:     make(map[string]string),
	}

	for field, value := range fields {
		if target, ok := strings.CutPrefix(field, signalFieldPrefix); ok {
			state.Signals[target] = value
		}
	}

	return state, nil
}

func (r repo) GetVoiceUserIds(ctx context.Context, code string) ([]string, error) {
	userIds, err := r.rc.SMembers(ctx, r.getVoiceListKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get voice user ids: %w", err)
	}

	return userIds, nil
}

func (r repo) RemoveVoiceState(ctx context.Context, params *party.RemoveVoiceStateParams) error {
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getVoiceKey(params.Code, params.UserId))
	pipe.SRem(ctx, r.getVoiceListKey(params.Code), params.UserId)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove voice state: %w", err)
	}

	r.publish(ctx, r.getVoiceEventsChannel(params.Code), party.Event{
		Kind:   party.EventVoiceRemoved,
		Code:   params.Code,
		UserId: params.UserId,
	})

	return nil
}

func fieldToBool(field string) bool {
	return field == "1" || field == "true"
}

func fieldToInt64(field string) int64 {
	n, _ := strconv.ParseInt(field, 10, 64)
	return n
}
