package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/storyscout/server/internal/repository/party"
)

// AddChatMessage appends one message to the party's chat, scored by its
// server-assigned timestamp so fetches come back in submission order.
func (r repo) AddChatMessage(ctx context.Context, params *party.AddChatMessageParams) error {
	doc, err := json.Marshal(params.Message)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	chatKey := r.getChatKey(params.Message.PartyCode)
	pipe := r.rc.TxPipeline()
	pipe.ZAdd(ctx, chatKey, redis.Z{
		Score:  float64(params.Message.Timestamp),
		Member: string(doc),
	})
	pipe.Expire(ctx, chatKey, r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to add chat message: %w", err)
	}

	return nil
}

// GetChatMessages returns the most recent limit messages in ascending
// timestamp order.
func (r repo) GetChatMessages(ctx context.Context, code string, limit int) ([]party.ChatMessage, error) {
	docs, err := r.rc.ZRevRange(ctx, r.getChatKey(code), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat messages: %w", err)
	}

	messages := make([]party.ChatMessage, 0, len(docs))
	// ZRevRange yields newest first; walk backwards to restore order.
	for i := len(docs) - 1; i >= 0; i-- {
		var message party.ChatMessage
		if err := json.Unmarshal([]byte(docs[i]), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, nil
}
