package domain

// Server to client event names.
const (
	EventStateUpdate     = "state:update"
	EventQuestion        = "game:question"
	EventQuestionResults = "game:questionResults"
	EventEnded           = "game:ended"
	EventHostPlayers     = "host:players"
	EventFrozen          = "player:frozen"
	EventKicked          = "player:kicked"
	EventError           = "player:error"
	EventAck             = "ack"
)

// Event is one outbound message on the room channel.
type Event struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload"`
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	Streak    int    `json:"streak"`
	SphereID  string `json:"sphereId,omitempty"`
	Connected bool   `json:"connected"`
}

// TeamStanding is one row of the team leaderboard.
type TeamStanding struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Size  int    `json:"size"`
}

// SurvivalInfo exposes a player's remaining lives.
type SurvivalInfo struct {
	Lives int `json:"lives"`
}

// PublicView is broadcast to every room member after each mutation.
type PublicView struct {
	Code            string                       `json:"code"`
	Status          Status                       `json:"status"`
	QIndex          int                          `json:"qIndex"`
	TotalQuestions  int                          `json:"totalQuestions"`
	Mode            Mode                         `json:"mode"`
	Locked          bool                         `json:"locked"`
	Leaderboard     []LeaderboardEntry           `json:"leaderboard"`
	TeamLeaderboard []TeamStanding               `json:"teamLeaderboard,omitempty"`
	SurvivalInfo    map[string]SurvivalInfo      `json:"survivalInfo,omitempty"`
	CafeInfo        map[string]CafeState         `json:"cafeInfo,omitempty"`
	TDInfo          map[string]TowerDefenseState `json:"tdInfo,omitempty"`
	CafeMoney       *int                         `json:"cafeMoney,omitempty"`
	CafeCustomers   []ServedCustomer             `json:"cafeCustomers,omitempty"`
	MutedPlayerIDs  []string                     `json:"mutedPlayerIds,omitempty"`
}

// HostPlayer is the privileged roster row sent only to the host.
type HostPlayer struct {
	Player
	Muted bool `json:"muted"`
	Lives *int `json:"lives,omitempty"`
}

// QuestionPayload announces a question. CorrectIndex is only set for the host.
type QuestionPayload struct {
	Index        int      `json:"index"`
	Prompt       string   `json:"prompt"`
	Choices      []Choice `json:"choices"`
	TimeLimitSec int      `json:"timeLimitSec"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
}

// FrozenPayload tells a player they are muted by a Freeze.
type FrozenPayload struct {
	DurationMs int64 `json:"durationMs"`
}

// ErrorPayload carries a human-readable failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RoomInfo is the REST lookup response.
type RoomInfo struct {
	OK             bool     `json:"ok"`
	Status         Status   `json:"status"`
	Locked         bool     `json:"locked"`
	Mode           Mode     `json:"mode"`
	Teams          []string `json:"teams"`
	LivesPerPlayer *int     `json:"livesPerPlayer,omitempty"`
}
