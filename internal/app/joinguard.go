package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"quiz-room-service/internal/domain"
)

// JoinLimiter admits at most N successful joins per key within a trailing window. Admit records
// the attempt only when it is admitted.
type JoinLimiter interface {
	Admit(ctx context.Context, key string, now time.Time) (bool, error)
}

type unlimited struct{}

func (unlimited) Admit(context.Context, string, time.Time) (bool, error) { return true, nil }

// JoinRequest is a player's admission attempt.
type JoinRequest struct {
	ConnID   string
	Nickname string
	TeamName string
	SphereID string
	SourceIP string
}

// JoinResult is the acknowledged outcome of Join. Reason is empty on success.
type JoinResult struct {
	Reason       domain.JoinReason
	PlayerID     string
	ResumeToken  string
	Subscription *Subscription
}

// OK reports whether the player was admitted.
func (r JoinResult) OK() bool {
	return r.Reason == domain.JoinOK
}

// cleanNickname trims the raw nickname and applies the length and banned-word rules.
func cleanNickname(raw string, bannedWords []string) (string, domain.JoinReason) {
	nick := strings.TrimSpace(raw)
	if nick == "" || utf8.RuneCountInString(nick) > domain.MaxNicknameLength {
		return "", domain.JoinInvalidNickname
	}
	lower := strings.ToLower(nick)
	for _, w := range bannedWords {
		if strings.Contains(lower, w) {
			return "", domain.JoinBlockedNickname
		}
	}
	return nick, domain.JoinOK
}

// joinLimiterTimeout bounds a limiter round trip made on behalf of a join.
const joinLimiterTimeout = 2 * time.Second

// Join runs the admission checks in order, stopping at the first failure, and seeds the
// mode-specific state of an admitted player. The rate limiter runs without the room lock,
// so the cheap checks are repeated once it answers.
func (s *Session) Join(ctx context.Context, req JoinRequest) JoinResult {
	s.mu.Lock()
	_, _, reason := s.checkJoinLocked(req)
	s.mu.Unlock()
	if reason != domain.JoinOK {
		return JoinResult{Reason: reason}
	}
	if !s.admitRate(ctx, req.SourceIP) {
		return JoinResult{Reason: domain.JoinRateLimited}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	nick, team, reason := s.checkJoinLocked(req)
	if reason != domain.JoinOK {
		return JoinResult{Reason: reason}
	}

	id := s.newPlayerID()
	p := &domain.Player{
		ID:        id,
		Nickname:  nick,
		Connected: true,
		SphereID:  req.SphereID,
		JoinedAt:  s.now(),
	}
	s.players[id] = p
	s.order = append(s.order, id)
	if team != nil {
		p.TeamName = team.Name
		team.Players = append(team.Players, id)
	}
	switch s.mode {
	case domain.ModeSurvival:
		s.lives[id] = s.livesPerPlayer
	case domain.ModeCafe:
		s.cafe[id] = s.newCafeLocked()
	case domain.ModeTowerDefense:
		s.towers[id] = newTowerDefense()
	}
	token := uuid.NewString()
	s.resumeTokens[id] = token
	s.touchLocked()

	sub := s.attachLocked(req.ConnID, id, false)
	s.opts.Logger.Info().Str("code", s.code).Str("player", id).Str("nickname", nick).Msg("player joined")
	s.syncLocked()
	return JoinResult{PlayerID: id, ResumeToken: token, Subscription: sub}
}

func (s *Session) checkJoinLocked(req JoinRequest) (string, *domain.Team, domain.JoinReason) {
	if s.disposed {
		return "", nil, domain.JoinRoomNotFound
	}
	if s.locked {
		return "", nil, domain.JoinRoomLocked
	}
	if s.status != domain.StatusLobby {
		return "", nil, domain.JoinAlreadyStarted
	}
	nick, reason := cleanNickname(req.Nickname, s.bannedWords)
	if reason != domain.JoinOK {
		return "", nil, reason
	}
	lower := strings.ToLower(nick)
	for _, p := range s.players {
		if strings.ToLower(p.Nickname) == lower {
			return "", nil, domain.JoinDuplicateName
		}
	}
	var team *domain.Team
	if s.mode == domain.ModeTeam {
		t, ok := s.teams[req.TeamName]
		if !ok {
			return "", nil, domain.JoinInvalidTeam
		}
		team = t
	}
	return nick, team, domain.JoinOK
}

// admitRate consults the limiter and fails open when it errors or times out.
func (s *Session) admitRate(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, joinLimiterTimeout)
	defer cancel()
	ok, err := s.opts.Limiter.Admit(ctx, joinKey(s.code, ip), s.now())
	if err != nil {
		s.opts.Logger.Warn().Err(err).Str("code", s.code).Msg("join limiter unavailable, admitting")
		return true
	}
	return ok
}
