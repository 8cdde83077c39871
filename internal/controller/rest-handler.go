package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storyscout/server/internal/service/party"
	"github.com/storyscout/server/pkg/rest"
)

type CreatePartyInput struct {
	UserId       string `json:"userId" validate:"required"`
	DisplayName  string `json:"displayName" validate:"required,max=50"`
	Platform     string `json:"platform" validate:"required"`
	ContentId    string `json:"contentId" validate:"required"`
	ContentTitle string `json:"contentTitle" validate:"required"`
	VideoUrl     string `json:"videoUrl" validate:"required,url"`
}

func (c controller) createParty(w http.ResponseWriter, r *http.Request) {
	var input CreatePartyInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	p, err := c.partyService.CreateParty(r.Context(), &party.CreatePartyParams{
		UserId:       input.UserId,
		DisplayName:  input.DisplayName,
		Platform:     input.Platform,
		ContentId:    input.ContentId,
		ContentTitle: input.ContentTitle,
		VideoURL:     input.VideoUrl,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"code": p.Code, "party": p})
}

type JoinPartyInput struct {
	Code        string `json:"code" validate:"required,len=6"`
	UserId      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=50"`
	Platform    string `json:"platform" validate:"required"`
}

func (c controller) joinParty(w http.ResponseWriter, r *http.Request) {
	var input JoinPartyInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	p, err := c.partyService.JoinParty(r.Context(), &party.JoinPartyParams{
		Code:        input.Code,
		UserId:      input.UserId,
		DisplayName: input.DisplayName,
		Platform:    input.Platform,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"party": p})
}

func (c controller) getParty(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "code is required"})
		return
	}

	p, err := c.partyService.GetParty(r.Context(), code)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"party": p})
}

type UpdatePlaybackInput struct {
	SenderId    string  `json:"senderId" validate:"required"`
	Status      string  `json:"status" validate:"required,oneof=playing paused"`
	CurrentTime float64 `json:"currentTime" validate:"min=0"`
}

func (c controller) updatePlayback(w http.ResponseWriter, r *http.Request) {
	var input UpdatePlaybackInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	if err := c.partyService.UpdatePlaybackState(r.Context(), &party.UpdatePlaybackStateParams{
		Code:        chi.URLParam(r, "code"),
		SenderId:    input.SenderId,
		Status:      party.Status(input.Status),
		CurrentTime: input.CurrentTime,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type LeavePartyInput struct {
	UserId string `json:"userId" validate:"required"`
}

func (c controller) leaveParty(w http.ResponseWriter, r *http.Request) {
	var input LeavePartyInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	if err := c.partyService.LeaveParty(r.Context(), &party.LeavePartyParams{
		Code:   chi.URLParam(r, "code"),
		UserId: input.UserId,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type SendChatMessageInput struct {
	UserId      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=50"`
	Platform    string `json:"platform" validate:"required"`
	Message     string `json:"message" validate:"required"`
}

func (c controller) sendChatMessage(w http.ResponseWriter, r *http.Request) {
	var input SendChatMessageInput
	if err := rest.ReadJSON(r, &input); err != nil {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}
	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	message, err := c.partyService.SendChatMessage(r.Context(), &party.SendChatMessageParams{
		Code:        chi.URLParam(r, "code"),
		UserId:      input.UserId,
		DisplayName: input.DisplayName,
		Platform:    input.Platform,
		Message:     input.Message,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"message": message})
}

func (c controller) getChatMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	messages, err := c.partyService.FetchChatMessages(r.Context(), chi.URLParam(r, "code"), limit)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"messages": messages})
}
