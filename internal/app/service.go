package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"quiz-room-service/internal/domain"
)

// QuestionSetRepository loads stored question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// HostCredentials issues and verifies the host token handed out at room creation.
type HostCredentials interface {
	Issue(code string) (token, tokenID string, err error)
	Verify(token string) (code, tokenID string, err error)
}

// GameService is the entry point transports use. Every room-scoped call on an unknown code is a
// silent no-op.
type GameService struct {
	rooms *Registry
	sets  QuestionSetRepository
	creds HostCredentials
	log   zerolog.Logger
}

func NewGameService(rooms *Registry, sets QuestionSetRepository, creds HostCredentials, logger zerolog.Logger) *GameService {
	return &GameService{rooms: rooms, sets: sets, creds: creds, log: logger}
}

// CreateRoomRequest is host:createRoom. Either Set or SetID must be provided.
type CreateRoomRequest struct {
	Set            *domain.QuestionSet
	SetID          string
	Mode           string
	TeamNames      []string
	BannedWords    []string
	LivesPerPlayer *int
}

// CreateRoomResult is acknowledged to the host.
type CreateRoomResult struct {
	Code         string
	HostToken    string
	Subscription *Subscription
}

// CreateRoom resolves and validates the question set, then registers a new room.
func (g *GameService) CreateRoom(ctx context.Context, connID string, req CreateRoomRequest) (CreateRoomResult, error) {
	var raw domain.QuestionSet
	switch {
	case req.Set != nil:
		raw = *req.Set
	case req.SetID != "" && g.sets != nil:
		loaded, err := g.sets.GetQuestionSet(ctx, req.SetID)
		if err != nil {
			return CreateRoomResult{}, err
		}
		raw = loaded
	default:
		return CreateRoomResult{}, fmt.Errorf("%w: no set supplied", domain.ErrInvalidQuestionSet)
	}
	set, err := raw.Normalize()
	if err != nil {
		return CreateRoomResult{}, err
	}

	// The code is not known until the registry allocates it, so the credential is bound afterwards.
	session, sub, err := g.rooms.Create(ctx, connID, "", CreateConfig{
		Set:            set,
		Mode:           req.Mode,
		TeamNames:      req.TeamNames,
		BannedWords:    req.BannedWords,
		LivesPerPlayer: req.LivesPerPlayer,
	})
	if err != nil {
		return CreateRoomResult{}, err
	}
	token, tokenID, err := g.creds.Issue(session.Code())
	if err != nil {
		g.rooms.Dispose(ctx, session.Code())
		return CreateRoomResult{}, fmt.Errorf("issue host token: %w", err)
	}
	session.setHostToken(tokenID)
	return CreateRoomResult{Code: session.Code(), HostToken: token, Subscription: sub}, nil
}

func (s *Session) setHostToken(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostTokenID = tokenID
}

// Join admits a player into the room identified by code.
func (g *GameService) Join(ctx context.Context, code string, req JoinRequest) JoinResult {
	s, ok := g.rooms.Lookup(code)
	if !ok {
		return JoinResult{Reason: domain.JoinRoomNotFound}
	}
	res := s.Join(ctx, req)
	if !res.OK() {
		g.log.Debug().Str("code", code).Str("ip", req.SourceIP).Str("reason", string(res.Reason)).Msg("join rejected")
	}
	return res
}

// ResumeHost re-binds host control using a previously issued token and returns a rotated one.
func (g *GameService) ResumeHost(connID, code, token string) (*Subscription, string, error) {
	tokenCode, tokenID, err := g.creds.Verify(token)
	if err != nil || tokenCode != code {
		return nil, "", domain.ErrInvalidHostToken
	}
	s, ok := g.rooms.Lookup(code)
	if !ok {
		return nil, "", domain.ErrRoomNotFound
	}
	next, nextID, err := g.creds.Issue(code)
	if err != nil {
		return nil, "", fmt.Errorf("issue host token: %w", err)
	}
	sub, ok := s.ResumeHost(connID, tokenID, nextID)
	if !ok {
		return nil, "", domain.ErrInvalidHostToken
	}
	g.log.Info().Str("code", code).Str("conn", connID).Msg("host resumed")
	return sub, next, nil
}

// ResumePlayer re-attaches a dropped player.
func (g *GameService) ResumePlayer(connID, code, playerID, token string) (*Subscription, bool) {
	s, ok := g.rooms.Lookup(code)
	if !ok {
		return nil, false
	}
	return s.ResumePlayer(connID, playerID, token)
}

func (g *GameService) with(code string, fn func(*Session) bool) bool {
	s, ok := g.rooms.Lookup(code)
	if !ok {
		return false
	}
	return fn(s)
}

func (g *GameService) Start(code, connID string) bool {
	return g.with(code, func(s *Session) bool { return s.Start(connID) })
}

func (g *GameService) Next(code, connID string) bool {
	return g.with(code, func(s *Session) bool { return s.Next(connID) })
}

func (g *GameService) EndQuestion(code, connID string) bool {
	return g.with(code, func(s *Session) bool { return s.EndQuestion(connID) })
}

func (g *GameService) Lock(code, connID string) bool {
	return g.with(code, func(s *Session) bool { return s.Lock(connID) })
}

func (g *GameService) Unlock(code, connID string) bool {
	return g.with(code, func(s *Session) bool { return s.Unlock(connID) })
}

func (g *GameService) Mute(code, connID, playerID string) bool {
	return g.with(code, func(s *Session) bool { return s.Mute(connID, playerID) })
}

func (g *GameService) Unmute(code, connID, playerID string) bool {
	return g.with(code, func(s *Session) bool { return s.Unmute(connID, playerID) })
}

func (g *GameService) Kick(code, connID, playerID string) bool {
	return g.with(code, func(s *Session) bool { return s.Kick(connID, playerID) })
}

func (g *GameService) UpdateSettings(code, connID string, update SettingsUpdate) bool {
	return g.with(code, func(s *Session) bool { return s.UpdateSettings(connID, update) })
}

func (g *GameService) Answer(code, playerID string, choice int) bool {
	return g.with(code, func(s *Session) bool { return s.Answer(playerID, choice) })
}

func (g *GameService) UsePowerUp(code, playerID, powerUp string) bool {
	return g.with(code, func(s *Session) bool { return s.UsePowerUp(playerID, powerUp) })
}

func (g *GameService) CafeServe(code, playerID, customerID string) bool {
	return g.with(code, func(s *Session) bool { return s.Serve(playerID, customerID) })
}

func (g *GameService) CafeUpgrade(code, playerID, upgradeID string) bool {
	return g.with(code, func(s *Session) bool { return s.PurchaseUpgrade(playerID, upgradeID) })
}

func (g *GameService) TDBuild(code, playerID, towerType string, x, y float64) bool {
	return g.with(code, func(s *Session) bool { return s.Build(playerID, towerType, x, y) })
}

func (g *GameService) TDUpgrade(code, playerID string, towerIndex int) bool {
	return g.with(code, func(s *Session) bool { return s.UpgradeTower(playerID, towerIndex) })
}

func (g *GameService) TDWaveComplete(code, playerID string) bool {
	return g.with(code, func(s *Session) bool { return s.WaveComplete(playerID) })
}

func (g *GameService) TDDamage(code, playerID string, amount int) bool {
	return g.with(code, func(s *Session) bool { return s.Damage(playerID, amount) })
}

// Disconnect detaches a connection from its room, if any.
func (g *GameService) Disconnect(code, connID string) {
	if s, ok := g.rooms.Lookup(code); ok {
		s.Disconnect(connID)
	}
}

// RoomInfo returns the REST summary of a room.
func (g *GameService) RoomInfo(code string) (domain.RoomInfo, error) {
	s, ok := g.rooms.Lookup(code)
	if !ok {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	return s.RoomInfo(), nil
}

// ExportCSV writes the correctness matrix of a room.
func (g *GameService) ExportCSV(code string, w io.Writer) error {
	s, ok := g.rooms.Lookup(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return s.WriteCSV(w)
}

// Exists reports whether code names a held room.
func (g *GameService) Exists(code string) bool {
	_, ok := g.rooms.Lookup(code)
	return ok
}
