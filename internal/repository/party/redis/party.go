package redis

import (
	"context"
	"fmt"

	"github.com/storyscout/server/internal/repository/party"
)

// SetPartyIfAbsent writes a new party document keyed by its join code.
// Returns party.ErrPartyExists when the code is already taken, which the
// caller resolves by regenerating the code.
func (r repo) SetPartyIfAbsent(ctx context.Context, params *party.SetPartyParams) error {
	partyKey := r.getPartyKey(params.Code)

	created, err := r.rc.EvalSha(ctx, r.createIfAbsentScript, []string{partyKey},
		"code", params.Code,
		"host_user_id", params.HostUserId,
		"content_id", params.ContentId,
		"content_title", params.ContentTitle,
		"video_url", params.VideoURL,
		"status", string(party.StatusWaiting),
		"current_time", 0,
		"last_sync", params.CreatedAt,
		"max_participants", params.MaxParticipants,
		"created_at", params.CreatedAt,
		"ended_at", 0,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to set party: %w", err)
	}

	if created == 0 {
		return party.ErrPartyExists
	}

	r.rc.Expire(ctx, partyKey, r.expireDuration)
	r.publish(ctx, r.getEventsChannel(params.Code), party.Event{
		Kind: party.EventPartyUpdated,
		Code: params.Code,
	})

	return nil
}

func (r repo) GetParty(ctx context.Context, code string) (party.Party, error) {
	var p party.Party
	if err := r.rc.HGetAll(ctx, r.getPartyKey(code)).Scan(&p); err != nil {
		return party.Party{}, fmt.Errorf("failed to get party: %w", err)
	}

	if p.Code == "" {
		return party.Party{}, party.ErrPartyNotFound
	}

	return p, nil
}

// UpdatePlayback overwrites only the playback fields so it cannot clobber a
// concurrent membership mutation.
func (r repo) UpdatePlayback(ctx context.Context, params *party.UpdatePlaybackParams) error {
	partyKey := r.getPartyKey(params.Code)

	exists, err := r.rc.Exists(ctx, partyKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check party exists: %w", err)
	}
	if exists == 0 {
		return party.ErrPartyNotFound
	}

	if err := r.rc.HSet(ctx, partyKey,
		"status", string(params.Status),
		"current_time", params.CurrentTime,
		"last_sync", params.LastSync,
	).Err(); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	r.rc.Expire(ctx, partyKey, r.expireDuration)
	r.publish(ctx, r.getEventsChannel(params.Code), party.Event{
		Kind: party.EventPartyUpdated,
		Code: params.Code,
	})

	return nil
}

// EndParty transitions the party to its terminal state. The document is
// retained; it is never deleted.
func (r repo) EndParty(ctx context.Context, params *party.EndPartyParams) error {
	partyKey := r.getPartyKey(params.Code)

	exists, err := r.rc.Exists(ctx, partyKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check party exists: %w", err)
	}
	if exists == 0 {
		return party.ErrPartyNotFound
	}

	if err := r.rc.HSet(ctx, partyKey,
		"status", string(party.StatusEnded),
		"ended_at", params.EndedAt,
		"last_sync", params.EndedAt,
	).Err(); err != nil {
		return fmt.Errorf("failed to end party: %w", err)
	}

	r.publish(ctx, r.getEventsChannel(params.Code), party.Event{
		Kind: party.EventPartyEnded,
		Code: params.Code,
	})

	return nil
}
