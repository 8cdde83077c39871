package party

type SetPartyParams struct {
	Code            string
	HostUserId      string
	ContentId       string
	ContentTitle    string
	VideoURL        string
	MaxParticipants int
	CreatedAt       int64
}

type AddParticipantParams struct {
	Code        string
	UserId      string
	DisplayName string
	Platform    string
	JoinedAt    int64
	MaxCount    int
}

// AddParticipantResult reports the outcome of the atomic membership append.
type AddParticipantResult int

const (
	ParticipantAdded AddParticipantResult = iota
	ParticipantAlreadyPresent
	ParticipantListFull
)

type RemoveParticipantParams struct {
	Code   string
	UserId string
}

type UpdatePlaybackParams struct {
	Code        string
	Status      Status
	CurrentTime float64
	LastSync    int64
}

type EndPartyParams struct {
	Code    string
	EndedAt int64
}

type SetVoiceStateParams struct {
	Code        string
	UserId      string
	DisplayName string
	IsMuted     bool
	IsSpeaking  bool
	PeerId      string
	Timestamp   int64
}

type SetVoiceSignalParams struct {
	Code         string
	FromUserId   string
	TargetUserId string
	Payload      string
	Timestamp    int64
}

type RemoveVoiceStateParams struct {
	Code   string
	UserId string
}

type AddChatMessageParams struct {
	Message ChatMessage
}
