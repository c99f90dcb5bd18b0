package http

import (
	"quiz-room-service/internal/domain"
)

// Client to server event names.
const (
	msgCreateRoom     = "host:createRoom"
	msgHostResume     = "host:resume"
	msgStart          = "host:start"
	msgNext           = "host:next"
	msgEndQuestion    = "host:endQuestion"
	msgLock           = "host:lock"
	msgUnlock         = "host:unlock"
	msgMute           = "host:mute"
	msgUnmute         = "host:unmute"
	msgKick           = "host:kick"
	msgUpdateSettings = "host:updateSettings"
	msgJoin           = "player:join"
	msgPlayerResume   = "player:resume"
	msgAnswer         = "player:answer"
	msgUsePowerUp     = "player:usePowerUp"
	msgCafeServe      = "cafe:serve"
	msgCafeUpgrade    = "cafe:upgrade"
	msgTDBuild        = "td:build"
	msgTDUpgrade      = "td:upgrade"
	msgTDWaveComplete = "td:waveComplete"
	msgTDDamage       = "td:damage"
)

type createRoomPayload struct {
	Set            *domain.QuestionSet `json:"set"`
	SetID          string              `json:"setId"`
	Mode           string              `json:"mode"`
	TeamNames      []string            `json:"teamNames"`
	BannedWords    []string            `json:"bannedWords"`
	LivesPerPlayer *int                `json:"livesPerPlayer"`
}

type createRoomAck struct {
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	HostToken string `json:"hostToken,omitempty"`
	Error     string `json:"error,omitempty"`
}

type hostResumePayload struct {
	Code      string `json:"code"`
	HostToken string `json:"hostToken"`
}

type joinPayload struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
	TeamName string `json:"teamName"`
	SphereID string `json:"sphereId"`
}

type joinAck struct {
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
	PlayerID    string `json:"playerId,omitempty"`
	ResumeToken string `json:"resumeToken,omitempty"`
}

type playerResumePayload struct {
	Code        string `json:"code"`
	PlayerID    string `json:"playerId"`
	ResumeToken string `json:"resumeToken"`
}

type resumeAck struct {
	OK        bool   `json:"ok"`
	HostToken string `json:"hostToken,omitempty"`
}

type codePayload struct {
	Code string `json:"code"`
}

type targetPayload struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

type settingsPayload struct {
	Code           string   `json:"code"`
	BannedWords    []string `json:"bannedWords"`
	LivesPerPlayer *int     `json:"livesPerPlayer"`
}

type answerPayload struct {
	Code        string `json:"code"`
	ChoiceIndex *int   `json:"choiceIndex"`
}

type powerUpPayload struct {
	Code      string `json:"code"`
	PowerUpID string `json:"powerUpId"`
}

type servePayload struct {
	Code       string `json:"code"`
	CustomerID string `json:"customerId"`
}

type upgradePayload struct {
	Code      string `json:"code"`
	UpgradeID string `json:"upgradeId"`
}

type buildPayload struct {
	Code    string  `json:"code"`
	TowerID string  `json:"towerId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type towerIndexPayload struct {
	Code       string `json:"code"`
	TowerIndex int    `json:"towerIndex"`
}

type damagePayload struct {
	Code   string `json:"code"`
	Amount int    `json:"amount"`
}
