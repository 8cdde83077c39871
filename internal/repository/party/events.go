package party

// EventKind tags a change notification from the store.
type EventKind string

const (
	// EventPartyUpdated means the party document changed; subscribers
	// should re-read the snapshot.
	EventPartyUpdated EventKind = "party_updated"
	// EventPartyEnded is the terminal notification for a party.
	EventPartyEnded EventKind = "party_ended"
	// EventVoiceUpdated means one participant's voice record changed.
	EventVoiceUpdated EventKind = "voice_updated"
	// EventVoiceRemoved means a participant's voice record was removed.
	EventVoiceRemoved EventKind = "voice_removed"
)

type Event struct {
	Kind   EventKind `json:"kind"`
	Code   string    `json:"code"`
	UserId string    `json:"user_id,omitempty"`
}
