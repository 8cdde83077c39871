package party

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/storyscout/server/internal/repository/party"
	"github.com/storyscout/server/pkg/joincode"
)

type SendChatMessageParams struct {
	Code        string
	UserId      string
	DisplayName string
	Platform    string
	Message     string
}

func (s service) SendChatMessage(ctx context.Context, params *SendChatMessageParams) (ChatMessage, error) {
	if utf8.RuneCountInString(params.Message) > s.chatMessageMaxLen {
		return ChatMessage{}, ErrMessageTooLong
	}

	code := joincode.Normalize(params.Code)
	if _, err := s.partyRepo.GetParty(ctx, code); err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return ChatMessage{}, ErrPartyNotFound
		}
		return ChatMessage{}, fmt.Errorf("failed to get party: %w", err)
	}

	message := party.ChatMessage{
		Id:          uuid.NewString(),
		PartyCode:   code,
		UserId:      params.UserId,
		DisplayName: params.DisplayName,
		Platform:    params.Platform,
		Message:     params.Message,
		Timestamp:   time.Now().UnixMilli(),
	}

	if err := s.partyRepo.AddChatMessage(ctx, &party.AddChatMessageParams{Message: message}); err != nil {
		return ChatMessage{}, fmt.Errorf("failed to add chat message: %w", err)
	}

	return chatMessageFromRepo(message), nil
}

// FetchChatMessages returns the most recent limit messages in timestamp
// order. Clients wanting near-real-time delivery poll this on a short fixed
// interval; there is deliberately no push path for chat.
func (s service) FetchChatMessages(ctx context.Context, code string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = s.chatFetchLimit
	}

	code = joincode.Normalize(code)
	if _, err := s.partyRepo.GetParty(ctx, code); err != nil {
		if errors.Is(err, party.ErrPartyNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, fmt.Errorf("failed to get party: %w", err)
	}

	repoMessages, err := s.partyRepo.GetChatMessages(ctx, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat messages: %w", err)
	}

	messages := make([]ChatMessage, 0, len(repoMessages))
	for _, m := range repoMessages {
		messages = append(messages, chatMessageFromRepo(m))
	}

	return messages, nil
}
