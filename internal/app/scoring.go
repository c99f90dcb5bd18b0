package app

import (
	"math"
	"time"

	"quiz-room-service/internal/domain"
)

const (
	basePoints     = 100
	streakStep     = 20
	streakBonusCap = 100
	speedBonusMax  = 100
)

// AnswerInput is everything the scoring rules need to know about one answer.
type AnswerInput struct {
	Correct   bool
	Streak    int
	PowerUp   domain.PowerUp
	Mode      domain.Mode
	Elapsed   time.Duration
	TimeLimit time.Duration
}

// AnswerOutcome is the delta produced by ScoreAnswer.
type AnswerOutcome struct {
	Points     int
	Streak     int
	PowerUp    domain.PowerUp
	SpeedBonus int
	Tokens     int
	Restock    bool
	LifeLost   bool
}

// ScoreAnswer computes score and streak changes. It has no side effects.
func ScoreAnswer(in AnswerInput) AnswerOutcome {
	out := AnswerOutcome{Streak: in.Streak, PowerUp: in.PowerUp}
	if !in.Correct {
		if in.PowerUp == domain.PowerUpShield {
			out.PowerUp = domain.PowerUpNone
		} else {
			out.Streak = 0
		}
		out.LifeLost = in.Mode == domain.ModeSurvival
		return out
	}

	out.Streak = in.Streak + 1
	base := basePoints
	bonus := min(out.Streak*streakStep, streakBonusCap)
	if in.PowerUp == domain.PowerUpDoublePoints {
		base *= 2
		bonus *= 2
		out.PowerUp = domain.PowerUpNone
	}
	out.Points = base + bonus
	switch in.Mode {
	case domain.ModeSprint:
		out.SpeedBonus = speedBonus(in.Elapsed, in.TimeLimit)
		out.Points += out.SpeedBonus
	case domain.ModeCafe:
		out.Restock = true
	case domain.ModeTowerDefense:
		out.Tokens = domain.TokensPerCorrect
	}
	return out
}

func speedBonus(elapsed, limit time.Duration) int {
	limitMs := float64(limit.Milliseconds())
	if limitMs <= 0 {
		return 0
	}
	remaining := math.Max(0, limitMs-float64(elapsed.Milliseconds()))
	return int(math.Round(remaining / limitMs * speedBonusMax))
}

// Answer records a player's choice for the open question and applies scoring. Stale, duplicate,
// late or otherwise ineligible answers are dropped.
func (s *Session) Answer(playerID string, choice int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.status != domain.StatusQuestion {
		return false
	}
	p, ok := s.players[playerID]
	if !ok || !p.Present() || s.mutedLocked(playerID) {
		return false
	}
	if _, answered := s.answers[playerID]; answered {
		return false
	}
	if choice < 0 || choice >= domain.ChoicesPerQuestion {
		return false
	}
	q := s.set.Questions[s.qIndex]
	elapsed := s.now().Sub(s.questionStartedAt)
	if elapsed > q.TimeLimit() {
		return false
	}
	if s.mode == domain.ModeSurvival && s.lives[playerID] <= 0 {
		return false
	}

	s.answers[playerID] = choice
	s.answerElapsed[playerID] = elapsed
	s.answerOrder = append(s.answerOrder, playerID)

	out := ScoreAnswer(AnswerInput{
		Correct:   choice == q.CorrectIndex,
		Streak:    p.Streak,
		PowerUp:   p.ActivePowerUp,
		Mode:      s.mode,
		Elapsed:   elapsed,
		TimeLimit: q.TimeLimit(),
	})
	p.Streak = out.Streak
	p.ActivePowerUp = out.PowerUp
	p.Score += out.Points
	if out.Points > 0 && s.mode == domain.ModeTeam {
		if t, ok := s.teams[p.TeamName]; ok {
			t.Score += out.Points
		}
	}
	if out.Restock {
		if c, ok := s.cafe[playerID]; ok {
			s.restockLocked(c)
		}
	}
	if out.Tokens > 0 {
		if td, ok := s.towers[playerID]; ok {
			td.Tokens += out.Tokens
		}
	}
	if out.LifeLost {
		s.lives[playerID] = max(0, s.lives[playerID]-1)
	}
	s.touchLocked()
	s.syncLocked()
	s.maybeCloseLocked()
	return true
}
