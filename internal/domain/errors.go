package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no active session uses the code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidQuestionSet indicates a set that cannot be played.
	ErrInvalidQuestionSet = errors.New("invalid question set")
	// ErrQuestionSetNotFound indicates the referenced set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrCodeSpaceExhausted is returned when no free room code could be reserved.
	ErrCodeSpaceExhausted = errors.New("no free room code available")
	// ErrInvalidHostToken rejects host resume attempts.
	ErrInvalidHostToken = errors.New("invalid host token")
)

// JoinReason is the machine-readable outcome of a rejected join.
type JoinReason string

const (
	JoinOK              JoinReason = ""
	JoinRoomNotFound    JoinReason = "room_not_found"
	JoinRoomLocked      JoinReason = "room_locked"
	JoinAlreadyStarted  JoinReason = "already_started"
	JoinInvalidNickname JoinReason = "invalid_nickname"
	JoinBlockedNickname JoinReason = "blocked_nickname"
	JoinDuplicateName   JoinReason = "duplicate_nickname"
	JoinInvalidTeam     JoinReason = "invalid_team"
	JoinRateLimited     JoinReason = "rate_limited"
)

// Message is the text shown to players.
func (r JoinReason) Message() string {
	switch r {
	case JoinRoomNotFound:
		return "Room not found"
	case JoinRoomLocked:
		return "Room locked"
	case JoinAlreadyStarted:
		return "Game already started"
	case JoinInvalidNickname:
		return "Invalid nickname"
	case JoinBlockedNickname:
		return "Nickname blocked"
	case JoinDuplicateName:
		return "Nickname in use"
	case JoinInvalidTeam:
		return "Select a valid team"
	case JoinRateLimited:
		return "Too many joins"
	default:
		return ""
	}
}
