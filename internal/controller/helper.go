package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/storyscout/server/internal/service/party"
	"github.com/storyscout/server/pkg/rest"
)

func (c controller) generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

// writeServiceError maps service errors onto HTTP statuses. Anything not in
// the known set is an internal error and gets logged with its cause; the
// client only sees a generic message.
func (c controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, party.ErrPartyNotFound), errors.Is(err, party.ErrParticipantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, party.ErrPartyFull),
		errors.Is(err, party.ErrMessageTooLong),
		errors.Is(err, party.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, party.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, party.ErrPartyEnded):
		status = http.StatusConflict
	default:
		c.logger.ErrorContext(r.Context(), "internal error", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal server error"})
		return
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}

func (c controller) writeValidationErrors(w http.ResponseWriter, validationErrors any) {
	rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"validation_errors": validationErrors})
}
