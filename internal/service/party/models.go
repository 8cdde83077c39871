package party

import (
	"encoding/json"

	"github.com/storyscout/server/internal/repository/party"
)

type Status = party.Status

const (
	StatusWaiting = party.StatusWaiting
	StatusPlaying = party.StatusPlaying
	StatusPaused  = party.StatusPaused
	StatusEnded   = party.StatusEnded
)

type Participant struct {
	UserId      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Platform    string `json:"platform"`
	JoinedAt    int64  `json:"joinedAt"`
}

// Party is the externally observable snapshot of one watch session.
type Party struct {
	Code            string        `json:"code"`
	HostUserId      string        `json:"hostUserId"`
	ContentId       string        `json:"contentId"`
	ContentTitle    string        `json:"contentTitle"`
	VideoURL        string        `json:"videoUrl"`
	Status          Status        `json:"status"`
	CurrentTime     float64       `json:"currentTime"`
	LastSync        int64         `json:"lastSync"`
	Participants    []Participant `json:"participants"`
	MaxParticipants int           `json:"maxParticipants"`
	CreatedAt       int64         `json:"createdAt"`
	EndedAt         int64         `json:"endedAt,omitempty"`
}

type ChatMessage struct {
	Id          string `json:"id"`
	PartyCode   string `json:"partyId"`
	UserId      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Platform    string `json:"platform"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}

// VoiceState mirrors one participant's voice record. Signals maps a target
// user id to the latest serialized negotiation message addressed to it.
type VoiceState struct {
	UserId      string                     `json:"userId"`
	DisplayName string                     `json:"displayName"`
	IsMuted     bool                       `json:"isMuted"`
	IsSpeaking  bool                       `json:"isSpeaking"`
	PeerId      string                     `json:"peerId"`
	Timestamp   int64                      `json:"timestamp"`
	Signals     map[string]json.RawMessage `json:"signals,omitempty"`
}

type VoiceEventKind string

const (
	VoiceUpdated VoiceEventKind = "updated"
	VoiceRemoved VoiceEventKind = "removed"
)

type VoiceEvent struct {
	Kind   VoiceEventKind `json:"kind"`
	UserId string         `json:"userId"`
	State  VoiceState     `json:"state,omitempty"`
}

func participantFromRepo(p party.Participant) Participant {
	return Participant{
		UserId:      p.UserId,
		DisplayName: p.DisplayName,
		Platform:    p.Platform,
		JoinedAt:    p.JoinedAt,
	}
}

func chatMessageFromRepo(m party.ChatMessage) ChatMessage {
	return ChatMessage{
		Id:          m.Id,
		PartyCode:   m.PartyCode,
		UserId:      m.UserId,
		DisplayName: m.DisplayName,
		Platform:    m.Platform,
		Message:     m.Message,
		Timestamp:   m.Timestamp,
	}
}

func voiceStateFromRepo(s party.VoiceState) VoiceState {
	state := VoiceState{
		UserId:      s.UserId,
		DisplayName: s.DisplayName,
		IsMuted:     s.IsMuted,
		IsSpeaking:  s.IsSpeaking,
		PeerId:      s.PeerId,
		Timestamp:   s.Timestamp,
	}

	if len(s.Signals) > 0 {
		state.Signals = make(map[string]json.RawMessage, len(s.Signals))
		for target, payload := range s.Signals {
			state.Signals[target] = json.RawMessage(payload)
		}
	}

	return state
}
