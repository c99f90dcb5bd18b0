package app

import (
	"quiz-room-service/internal/domain"
)

// UsePowerUp applies a power-up on behalf of a player. DoublePoints and Shield occupy the single
// slot, overwriting whatever was there. Freeze and Thief take effect immediately.
func (s *Session) UsePowerUp(playerID, raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.status == domain.StatusEnded {
		return false
	}
	p, ok := s.players[playerID]
	if !ok || !p.Present() {
		return false
	}
	power, ok := domain.ParsePowerUp(raw)
	if !ok {
		return false
	}

	applied := false
	switch power {
	case domain.PowerUpDoublePoints, domain.PowerUpShield:
		p.ActivePowerUp = power
		applied = true
	case domain.PowerUpFreeze:
		applied = s.freezeLocked(playerID)
	case domain.PowerUpThief:
		applied = s.stealLocked(p)
	}
	if !applied {
		return false
	}
	s.touchLocked()
	s.syncLocked()
	return true
}

// freezeLocked mutes one random other connected player for FreezeDuration.
func (s *Session) freezeLocked(casterID string) bool {
	var candidates []string
	for _, id := range s.order {
		if id != casterID && s.players[id].Present() {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return false
	}
	target := candidates[s.rnd.Intn(len(candidates))]
	s.frozen[target] = true
	stopTimer(s.freezeTimers[target])
	s.freezeTimers[target] = s.opts.Scheduler.AfterFunc(FreezeDuration, func() {
		s.unfreeze(target)
	})
	s.sendToPlayerLocked(target, domain.Event{
		Type:    domain.EventFrozen,
		Payload: domain.FrozenPayload{DurationMs: FreezeDuration.Milliseconds()},
	})
	s.opts.Logger.Debug().Str("code", s.code).Str("player", casterID).Str("target", target).Msg("freeze applied")
	return true
}

func (s *Session) unfreeze(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	delete(s.freezeTimers, playerID)
	if !s.frozen[playerID] {
		return
	}
	delete(s.frozen, playerID)
	s.syncLocked()
}

// stealLocked moves 10% of the best other player's score to the caster. A caster who already
// leads, or ties for the lead, steals nothing.
func (s *Session) stealLocked(caster *domain.Player) bool {
	var leader *domain.Player
	for _, id := range s.order {
		p := s.players[id]
		if p.ID == caster.ID || p.Kicked {
			continue
		}
		if leader == nil || p.Score > leader.Score {
			leader = p
		}
	}
	if leader == nil || caster.Score >= leader.Score {
		return false
	}
	amount := leader.Score / 10
	leader.Score -= amount
	caster.Score += amount
	return true
}
