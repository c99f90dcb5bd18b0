package app

import (
	"quiz-room-service/internal/domain"
)

// member is one attached connection. Its channel is only sent to and closed while holding the
// session lock.
type member struct {
	ch       chan domain.Event
	playerID string
	host     bool
}

// Subscription is the outbound event stream of one connection. Events is closed when the
// connection is kicked, replaced or the room is disposed.
type Subscription struct {
	Code     string
	PlayerID string
	Host     bool
	Events   <-chan domain.Event
}

func (s *Session) attachLocked(connID, playerID string, host bool) *Subscription {
	if _, exists := s.members[connID]; exists {
		s.removeMemberLocked(connID)
	}
	m := &member{
		ch:       make(chan domain.Event, s.opts.SendBuffer),
		playerID: playerID,
		host:     host,
	}
	s.members[connID] = m
	return &Subscription{Code: s.code, PlayerID: playerID, Host: host, Events: m.ch}
}

func (s *Session) removeMemberLocked(connID string) {
	m, ok := s.members[connID]
	if !ok {
		return
	}
	delete(s.members, connID)
	close(m.ch)
}

func (s *Session) detachPlayerLocked(playerID string, farewell domain.Event) {
	for connID, m := range s.members {
		if m.playerID != playerID {
			continue
		}
		deliver(m.ch, farewell)
		s.removeMemberLocked(connID)
	}
}

func (s *Session) playerAttachedLocked(playerID string) bool {
	for _, m := range s.members {
		if m.playerID == playerID {
			return true
		}
	}
	return false
}

// publishLocked sends the same event to every member.
func (s *Session) publishLocked(ev domain.Event) {
	for _, m := range s.members {
		deliver(m.ch, ev)
	}
}

// publishSplitLocked sends hostEv to the host connection and ev to everyone else.
func (s *Session) publishSplitLocked(ev, hostEv domain.Event) {
	for connID, m := range s.members {
		if connID == s.hostConnID {
			deliver(m.ch, hostEv)
			continue
		}
		deliver(m.ch, ev)
	}
}

func (s *Session) publishHostLocked(ev domain.Event) {
	if m, ok := s.members[s.hostConnID]; ok {
		deliver(m.ch, ev)
	}
}

func (s *Session) sendToPlayerLocked(playerID string, ev domain.Event) {
	for _, m := range s.members {
		if m.playerID == playerID {
			deliver(m.ch, ev)
		}
	}
}

// syncLocked pushes the public view to the room and the full roster to the host.
func (s *Session) syncLocked() {
	s.publishLocked(domain.Event{Type: domain.EventStateUpdate, Payload: s.publicViewLocked()})
	s.publishHostLocked(domain.Event{Type: domain.EventHostPlayers, Payload: s.hostRosterLocked()})
}

// deliver never blocks: when a subscriber falls behind, its oldest queued event is dropped.
func deliver(ch chan domain.Event, ev domain.Event) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Snapshot returns the current public view without mutating anything.
func (s *Session) Snapshot() domain.PublicView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicViewLocked()
}
