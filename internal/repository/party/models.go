package party

// Status is the party lifecycle state. Transitions:
// waiting -> playing <-> paused, any -> ended. Ended is terminal.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusPlaying, StatusPaused, StatusEnded:
		return true
	}
	return false
}

type Party struct {
	Code            string  `redis:"code"`
	HostUserId      string  `redis:"host_user_id"`
	ContentId       string  `redis:"content_id"`
	ContentTitle    string  `redis:"content_title"`
	VideoURL        string  `redis:"video_url"`
	Status          string  `redis:"status"`
	CurrentTime     float64 `redis:"current_time"`
	LastSync        int64   `redis:"last_sync"`
	MaxParticipants int     `redis:"max_participants"`
	CreatedAt       int64   `redis:"created_at"`
	EndedAt         int64   `redis:"ended_at"`
}

type Participant struct {
	UserId      string `redis:"user_id"`
	DisplayName string `redis:"display_name"`
	Platform    string `redis:"platform"`
	JoinedAt    int64  `redis:"joined_at"`
}

// VoiceState is one participant's ephemeral voice record. Signals holds the
// latest serialized negotiation message per target user id; a newer message
// for the same target replaces the older one.
type VoiceState struct {
	UserId      string `redis:"user_id"`
	DisplayName string `redis:"display_name"`
	IsMuted     bool   `redis:"is_muted"`
	IsSpeaking  bool   `redis:"is_speaking"`
	PeerId      string `redis:"peer_id"`
	Timestamp   int64  `redis:"timestamp"`

	Signals map[string]string `redis:"-"`
}

type ChatMessage struct {
	Id          string `json:"id"`
	PartyCode   string `json:"party_code"`
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Platform    string `json:"platform"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}
