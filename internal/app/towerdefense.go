package app

import (
	"quiz-room-service/internal/domain"
)

// Wave and damage reports come from the client-side combat simulation and are trusted as sent.

func newTowerDefense() *domain.TowerDefenseState {
	return &domain.TowerDefenseState{
		Tokens: domain.StartingTokens,
		Health: domain.StartingHealth,
		Wave:   1,
		Towers: []domain.Tower{},
	}
}

// towerLocked returns the caller's state when a TowerDefense action is allowed.
func (s *Session) towerLocked(playerID string) (*domain.TowerDefenseState, bool) {
	if s.disposed || s.mode != domain.ModeTowerDefense || s.status == domain.StatusEnded {
		return nil, false
	}
	td, ok := s.towers[playerID]
	if !ok || !s.players[playerID].Present() {
		return nil, false
	}
	return td, true
}

// Build spends the tower's cost and places it. Unknown types and short funds are no-ops.
func (s *Session) Build(playerID, towerType string, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	td, ok := s.towerLocked(playerID)
	if !ok {
		return false
	}
	cost, ok := domain.TowerBuildCosts[towerType]
	if !ok || td.Tokens < cost {
		return false
	}
	td.Tokens -= cost
	td.Towers = append(td.Towers, domain.Tower{Type: towerType, X: x, Y: y, Level: 1})
	s.touchLocked()
	s.syncLocked()
	return true
}

// UpgradeTower spends baseCost*level to raise the tower one level.
func (s *Session) UpgradeTower(playerID string, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	td, ok := s.towerLocked(playerID)
	if !ok || index < 0 || index >= len(td.Towers) {
		return false
	}
	tower := &td.Towers[index]
	cost := domain.TowerUpgradeBaseCosts[tower.Type] * tower.Level
	if td.Tokens < cost {
		return false
	}
	td.Tokens -= cost
	tower.Level++
	s.touchLocked()
	s.syncLocked()
	return true
}

// WaveComplete advances the wave and grants wave*5 tokens.
func (s *Session) WaveComplete(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	td, ok := s.towerLocked(playerID)
	if !ok {
		return false
	}
	td.Wave++
	td.Tokens += td.Wave * domain.TokensPerWaveMultiple
	s.touchLocked()
	s.syncLocked()
	return true
}

// Damage lowers health, floored at zero.
func (s *Session) Damage(playerID string, amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	td, ok := s.towerLocked(playerID)
	if !ok || amount <= 0 {
		return false
	}
	td.Health = max(0, td.Health-amount)
	s.touchLocked()
	s.syncLocked()
	return true
}
