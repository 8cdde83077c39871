package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/storyscout/server/internal/service/party"
	"github.com/storyscout/server/pkg/validator"
)

type iPartyService interface {
	CreateParty(ctx context.Context, params *party.CreatePartyParams) (party.Party, error)
	JoinParty(ctx context.Context, params *party.JoinPartyParams) (party.Party, error)
	GetParty(ctx context.Context, code string) (party.Party, error)
	UpdatePlaybackState(ctx context.Context, params *party.UpdatePlaybackStateParams) error
	LeaveParty(ctx context.Context, params *party.LeavePartyParams) error
	Subscribe(ctx context.Context, code string) (<-chan party.Party, func(), error)

	SendChatMessage(ctx context.Context, params *party.SendChatMessageParams) (party.ChatMessage, error)
	FetchChatMessages(ctx context.Context, code string, limit int) ([]party.ChatMessage, error)

	JoinVoice(ctx context.Context, params *party.JoinVoiceParams) error
	UpdateVoicePresence(ctx context.Context, params *party.UpdateVoicePresenceParams) error
	SendVoiceSignal(ctx context.Context, params *party.SendVoiceSignalParams) error
	LeaveVoice(ctx context.Context, code, userId string) error
	GetVoiceStates(ctx context.Context, code string) ([]party.VoiceState, error)
	WatchVoice(ctx context.Context, code string) (<-chan party.VoiceEvent, func(), error)
}

type controller struct {
	partyService iPartyService
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	logger       *slog.Logger
}

func NewController(partyService iPartyService, logger *slog.Logger) *controller {
	return &controller{
		partyService: partyService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.New(),
		logger:   logger,
	}
}
