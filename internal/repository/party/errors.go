package party

import "errors"

var (
	ErrPartyNotFound      = errors.New("party not found")
	ErrPartyExists        = errors.New("party already exists")
	ErrParticipantMissing = errors.New("participant not found")
	ErrVoiceStateMissing  = errors.New("voice state not found")
)
