// Package redis implements the party store on top of a redis instance.
//
// One party is a hash at party:<CODE> plus a zset of participant ids ordered
// by join sequence. Every mutation publishes a change notification on the
// party's event channel so subscribers can re-read the snapshot; conflicting
// writes are last-writer-wins at field granularity.
package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storyscout/server/internal/repository/party"
)

type repo struct {
	rc             *redis.Client
	logger         *slog.Logger
	expireDuration time.Duration

	createIfAbsentScript string
	appendMemberScript   string
}

func NewRepo(rc *redis.Client, logger *slog.Logger, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		logger:         logger,
		expireDuration: expireDuration,
		// Creates the hash only when the key does not exist yet.
		// ARGV is a flat field/value list.
		createIfAbsentScript: rc.ScriptLoad(context.Background(), `
			if redis.call('EXISTS', KEYS[1]) == 1 then
				return 0
			end
			redis.call('HSET', KEYS[1], unpack(ARGV))
			return 1
		`).Val(),
		// Appends ARGV[1] to the join-ordered zset at KEYS[1] unless it is
		// already present (-1) or the list holds ARGV[2] members (-2).
		appendMemberScript: rc.ScriptLoad(context.Background(), `
			if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
				return -1
			end
			if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
				return -2
			end
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`).Val(),
	}
}

func (r repo) getPartyKey(code string) string {
	return "party:" + code
}

func (r repo) getParticipantsKey(code string) string {
	return "party:" + code + ":participants"
}

func (r repo) getParticipantKey(code, userId string) string {
	return "party:" + code + ":participant:" + userId
}

func (r repo) getChatKey(code string) string {
	return "party:" + code + ":chat"
}

func (r repo) getVoiceKey(code, userId string) string {
	return "party:" + code + ":voice:" + userId
}

func (r repo) getVoiceListKey(code string) string {
	return "party:" + code + ":voicelist"
}

func (r repo) getEventsChannel(code string) string {
	return "party:" + code + ":events"
}

func (r repo) getVoiceEventsChannel(code string) string {
	return "party:" + code + ":voice-events"
}

func (r repo) publish(ctx context.Context, channel string, event party.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to marshal event", "error", err)
		return
	}

	if err := r.rc.Publish(ctx, channel, payload).Err(); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish event", "channel", channel, "error", err)
	}
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
