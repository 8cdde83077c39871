package party

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storyscout/server/internal/repository/party"
	"github.com/storyscout/server/pkg/joincode"
)

var (
	ErrPartyNotFound       = errors.New("party not found")
	ErrPartyFull           = errors.New("party is full")
	ErrPartyEnded          = errors.New("party has ended")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrMessageTooLong      = errors.New("message too long")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidStatus       = errors.New("invalid playback status")
)

type iPartyRepo interface {
	// party
	SetPartyIfAbsent(context.Context, *party.SetPartyParams) error
	GetParty(context.Context, string) (party.Party, error)
	UpdatePlayback(context.Context, *party.UpdatePlaybackParams) error
	EndParty(context.Context, *party.EndPartyParams) error
	SubscribeEvents(context.Context, string) (<-chan party.Event, func())
	// participants
	AddParticipant(context.Context, *party.AddParticipantParams) (party.AddParticipantResult, error)
	RemoveParticipant(context.Context, *party.RemoveParticipantParams) error
	GetParticipantIds(context.Context, string) ([]string, error)
	GetParticipant(ctx context.Context, code, userId string) (party.Participant, error)
	// chat
	AddChatMessage(context.Context, *party.AddChatMessageParams) error
	GetChatMessages(ctx context.Context, code string, limit int) ([]party.ChatMessage, error)
	// voice
	SetVoiceState(context.Context, *party.SetVoiceStateParams) error
	SetVoiceSignal(context.Context, *party.SetVoiceSignalParams) error
	GetVoiceState(ctx context.Context, code, userId string) (party.VoiceState, error)
	GetVoiceUserIds(context.Context, string) ([]string, error)
	RemoveVoiceState(context.Context, *party.RemoveVoiceStateParams) error
	SubscribeVoiceEvents(context.Context, string) (<-chan party.Event, func())
}

type iCodeGenerator interface {
	Generate() string
}

type Config struct {
	// MaxParticipants bounds party size. The reference behavior fixes
	// this at 10.
	MaxParticipants int
	// ChatMessageMaxLen bounds one chat message, in characters.
	ChatMessageMaxLen int
	// ChatFetchLimit is the default page size for chat fetches.
	ChatFetchLimit int
}

type service struct {
	partyRepo iPartyRepo
	generator iCodeGenerator
	logger    *slog.Logger

	maxParticipants   int
	chatMessageMaxLen int
	chatFetchLimit    int
}

func NewService(partyRepo iPartyRepo, cfg *Config, logger *slog.Logger) *service {
	return &service{
		partyRepo:         partyRepo,
		generator:         joincode.New(),
		logger:            logger,
		maxParticipants:   cfg.MaxParticipants,
		chatMessageMaxLen: cfg.ChatMessageMaxLen,
		chatFetchLimit:    cfg.ChatFetchLimit,
	}
}
