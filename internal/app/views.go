package app

import (
	"sort"

	"quiz-room-service/internal/domain"
)

func (s *Session) leaderboardLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(s.order))
	for _, id := range s.order {
		p := s.players[id]
		if p.Kicked {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			ID:        p.ID,
			Nickname:  p.Nickname,
			Score:     p.Score,
			Streak:    p.Streak,
			SphereID:  p.SphereID,
			Connected: p.Connected,
		})
	}
	// Stable on join order: score desc, then streak desc.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Streak > entries[j].Streak
	})
	return entries
}

func (s *Session) teamLeaderboardLocked() []domain.TeamStanding {
	standings := make([]domain.TeamStanding, 0, len(s.teamOrder))
	for _, name := range s.teamOrder {
		t := s.teams[name]
		standings = append(standings, domain.TeamStanding{Name: t.Name, Score: t.Score, Size: len(t.Players)})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	return standings
}

func (s *Session) mutedIDsLocked() []string {
	var ids []string
	for _, id := range s.order {
		if s.mutedLocked(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Session) publicViewLocked() domain.PublicView {
	view := domain.PublicView{
		Code:           s.code,
		Status:         s.status,
		QIndex:         s.qIndex,
		TotalQuestions: len(s.set.Questions),
		Mode:           s.mode,
		Locked:         s.locked,
		Leaderboard:    s.leaderboardLocked(),
		MutedPlayerIDs: s.mutedIDsLocked(),
	}
	switch s.mode {
	case domain.ModeTeam:
		view.TeamLeaderboard = s.teamLeaderboardLocked()
	case domain.ModeSurvival:
		view.SurvivalInfo = make(map[string]domain.SurvivalInfo, len(s.order))
		for _, id := range s.order {
			view.SurvivalInfo[id] = domain.SurvivalInfo{Lives: s.lives[id]}
		}
	case domain.ModeCafe:
		view.CafeInfo = make(map[string]domain.CafeState, len(s.cafe))
		for id, c := range s.cafe {
			view.CafeInfo[id] = c.Clone()
		}
		money := s.cafeMoney
		view.CafeMoney = &money
		view.CafeCustomers = append([]domain.ServedCustomer(nil), s.cafeServed...)
	case domain.ModeTowerDefense:
		view.TDInfo = make(map[string]domain.TowerDefenseState, len(s.towers))
		for id, td := range s.towers {
			view.TDInfo[id] = td.Clone()
		}
	}
	return view
}

func (s *Session) hostRosterLocked() []domain.HostPlayer {
	roster := make([]domain.HostPlayer, 0, len(s.order))
	for _, id := range s.order {
		row := domain.HostPlayer{Player: *s.players[id], Muted: s.mutedLocked(id)}
		if s.mode == domain.ModeSurvival {
			lives := s.lives[id]
			row.Lives = &lives
		}
		roster = append(roster, row)
	}
	return roster
}

// RoomInfo is the summary served by the REST lookup.
func (s *Session) RoomInfo() domain.RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := domain.RoomInfo{
		OK:     true,
		Status: s.status,
		Locked: s.locked,
		Mode:   s.mode,
		Teams:  []string{},
	}
	if s.mode == domain.ModeTeam {
		info.Teams = append(info.Teams, s.teamOrder...)
	}
	if s.mode == domain.ModeSurvival {
		lives := s.livesPerPlayer
		info.LivesPerPlayer = &lives
	}
	return info
}
