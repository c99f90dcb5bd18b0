package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the rule set layered on top of the shared question/answer protocol.
type Mode string

const (
	ModeClassic      Mode = "classic"
	ModeTeam         Mode = "team"
	ModeSurvival     Mode = "survival"
	ModeSprint       Mode = "sprint"
	ModeCafe         Mode = "cafe"
	ModeTowerDefense Mode = "td"
)

// ParseMode maps client input onto the closed mode set, defaulting to Classic.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "team":
		return ModeTeam
	case "survival":
		return ModeSurvival
	case "sprint":
		return ModeSprint
	case "cafe":
		return ModeCafe
	case "td", "towerdefense", "tower_defense":
		return ModeTowerDefense
	default:
		return ModeClassic
	}
}

// Status is the session lifecycle position.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusQuestion Status = "question"
	StatusResults  Status = "results"
	StatusEnded    Status = "ended"
)

// PowerUp occupies a player's single power-up slot.
type PowerUp string

const (
	PowerUpNone         PowerUp = ""
	PowerUpDoublePoints PowerUp = "double_points"
	PowerUpShield       PowerUp = "shield"
	PowerUpFreeze       PowerUp = "freeze"
	PowerUpThief        PowerUp = "thief"
)

// ParsePowerUp reports whether raw names a known power-up.
func ParsePowerUp(raw string) (PowerUp, bool) {
	switch p := PowerUp(raw); p {
	case PowerUpDoublePoints, PowerUpShield, PowerUpFreeze, PowerUpThief:
		return p, true
	default:
		return PowerUpNone, false
	}
}

const (
	// ChoicesPerQuestion is fixed by the answer pad layout.
	ChoicesPerQuestion = 4
	// DefaultTimeLimitSec applies when a question omits its limit.
	DefaultTimeLimitSec = 20
	// MaxNicknameLength bounds trimmed nicknames.
	MaxNicknameLength = 20
)

// Choice is one answer option.
type Choice struct {
	Text string `json:"text" yaml:"text"`
}

// Question models an MCQ question with exactly four choices.
type Question struct {
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Choices      []Choice `json:"choices" yaml:"choices"`
	CorrectIndex int      `json:"correctIndex" yaml:"correctIndex"`
	TimeLimitSec int      `json:"timeLimitSec,omitempty" yaml:"timeLimitSec"`
}

// TimeLimit returns the answering window.
func (q Question) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitSec) * time.Second
}

// QuestionSet is an ordered, immutable list of questions.
type QuestionSet struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Normalize validates the set and fills in defaults, returning a copy safe to share.
func (s QuestionSet) Normalize() (QuestionSet, error) {
	if len(s.Questions) == 0 {
		return QuestionSet{}, fmt.Errorf("%w: no questions", ErrInvalidQuestionSet)
	}
	out := QuestionSet{ID: s.ID, Title: s.Title, Questions: make([]Question, len(s.Questions))}
	for i, q := range s.Questions {
		if len(q.Choices) != ChoicesPerQuestion {
			return QuestionSet{}, fmt.Errorf("%w: question %d has %d choices", ErrInvalidQuestionSet, i+1, len(q.Choices))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= ChoicesPerQuestion {
			return QuestionSet{}, fmt.Errorf("%w: question %d correct index %d", ErrInvalidQuestionSet, i+1, q.CorrectIndex)
		}
		if q.TimeLimitSec <= 0 {
			q.TimeLimitSec = DefaultTimeLimitSec
		}
		q.Choices = append([]Choice(nil), q.Choices...)
		out.Questions[i] = q
	}
	return out, nil
}

// Player is the per-session state of one participant.
type Player struct {
	ID            string    `json:"id"`
	Nickname      string    `json:"nickname"`
	Score         int       `json:"score"`
	Streak        int       `json:"streak"`
	Connected     bool      `json:"connected"`
	Kicked        bool      `json:"kicked,omitempty"`
	SphereID      string    `json:"sphereId,omitempty"`
	ActivePowerUp PowerUp   `json:"activePowerUp,omitempty"`
	TeamName      string    `json:"teamName,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// Present reports whether the player can currently take part.
func (p *Player) Present() bool {
	return p.Connected && !p.Kicked
}

// Team accumulates mirrored scores of its roster.
type Team struct {
	Name    string   `json:"name"`
	Score   int      `json:"score"`
	Players []string `json:"players"`
}

// QuestionResult is the frozen outcome of one question.
type QuestionResult struct {
	QuestionIndex          int            `json:"index"`
	CorrectIndex           int            `json:"correctIndex"`
	Answers                map[string]int `json:"answers"`
	FastestCorrectPlayerID string         `json:"fastestCorrectPlayerId,omitempty"`
	FastestCorrectTimeMs   *int64         `json:"fastestCorrectTimeMs,omitempty"`
}
