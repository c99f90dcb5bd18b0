package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-room-service/internal/domain"
)

// CodeReservations tracks which room codes are in use, possibly across processes.
type CodeReservations interface {
	Reserve(ctx context.Context, code string) (bool, error)
	Refresh(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

// roomForgetter is implemented by limiters that keep per-room history in process.
type roomForgetter interface {
	ForgetRoom(code string)
}

// RegistryConfig controls disposal and the background loops.
type RegistryConfig struct {
	IdleTTL      time.Duration
	EndedTTL     time.Duration
	ReapInterval time.Duration
	CafeTick     time.Duration
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.EndedTTL <= 0 {
		c.EndedTTL = 5 * time.Minute
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = time.Minute
	}
	if c.CafeTick <= 0 {
		c.CafeTick = time.Second
	}
	return c
}

// Registry owns the active sessions keyed by join code. Its lock guards only the table;
// each session serializes its own state.
type Registry struct {
	cfg      RegistryConfig
	opts     SessionOptions
	codes    CodeReservations
	log      zerolog.Logger
	generate func() (string, error)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds a registry whose sessions share opts.
func NewRegistry(cfg RegistryConfig, opts SessionOptions, codes CodeReservations) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		cfg:      cfg.withDefaults(),
		opts:     opts,
		codes:    codes,
		log:      opts.Logger,
		generate: GenerateRoomCode,
		sessions: make(map[string]*Session),
	}
}

// Create allocates a unique code and installs a new Lobby session hosted by hostConnID.
// The code is reserved outside the table lock.
func (r *Registry) Create(ctx context.Context, hostConnID, hostTokenID string, cfg CreateConfig) (*Session, *Subscription, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.generate()
		if err != nil {
			return nil, nil, fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := r.Lookup(code); taken {
			continue
		}
		if r.codes != nil {
			ok, err := r.codes.Reserve(ctx, code)
			if err != nil {
				return nil, nil, fmt.Errorf("reserve room code: %w", err)
			}
			if !ok {
				continue
			}
		}

		session := newSession(code, hostConnID, hostTokenID, cfg, r.opts)
		sub := session.attachHost(hostConnID)
		r.mu.Lock()
		if _, taken := r.sessions[code]; taken {
			r.mu.Unlock()
			session.dispose()
			r.release(ctx, code)
			continue
		}
		r.sessions[code] = session
		r.mu.Unlock()

		r.log.Info().Str("code", code).Str("mode", string(session.mode)).Int("questions", len(cfg.Set.Questions)).Msg("room created")
		return session, sub, nil
	}
	return nil, nil, domain.ErrCodeSpaceExhausted
}

func (r *Registry) release(ctx context.Context, code string) {
	if r.codes == nil {
		return
	}
	if err := r.codes.Release(ctx, code); err != nil {
		r.log.Warn().Err(err).Str("code", code).Msg("release room code")
	}
}

func (s *Session) attachHost(connID string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.attachLocked(connID, "", true)
	s.syncLocked()
	return sub
}

// Lookup returns the session for code.
func (r *Registry) Lookup(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Len reports the number of sessions held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Dispose removes the session, cancels its timers and releases its code.
func (r *Registry) Dispose(ctx context.Context, code string) bool {
	r.mu.Lock()
	s, ok := r.sessions[code]
	if ok {
		delete(r.sessions, code)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.dispose()
	if f, ok := r.opts.Limiter.(roomForgetter); ok {
		f.ForgetRoom(code)
	}
	r.release(ctx, code)
	r.log.Info().Str("code", code).Msg("room disposed")
	return true
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Reap disposes sessions idle beyond IdleTTL or ended for longer than EndedTTL, and refreshes
// the code reservations of the rest. It returns the number disposed.
func (r *Registry) Reap(ctx context.Context, now time.Time) int {
	reaped := 0
	for _, s := range r.snapshot() {
		idle, ended, endedFor := s.idleFor(now)
		if idle >= r.cfg.IdleTTL || (ended && endedFor >= r.cfg.EndedTTL) {
			if r.Dispose(ctx, s.code) {
				reaped++
			}
			continue
		}
		if r.codes != nil {
			if err := r.codes.Refresh(ctx, s.code); err != nil {
				r.log.Warn().Err(err).Str("code", s.code).Msg("refresh room code")
			}
		}
	}
	return reaped
}

// TickCafes applies one patience tick to every Cafe session with an open question.
func (r *Registry) TickCafes() int {
	changed := 0
	for _, s := range r.snapshot() {
		if s.mode != domain.ModeCafe {
			continue
		}
		if s.tickCafe() {
			changed++
		}
	}
	return changed
}

// Run drives the cafe ticker and the idle reaper until ctx is cancelled, then disposes every
// remaining session.
func (r *Registry) Run(ctx context.Context) error {
	cafeTicker := time.NewTicker(r.cfg.CafeTick)
	defer cafeTicker.Stop()
	reapTicker := time.NewTicker(r.cfg.ReapInterval)
	defer reapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close(context.Background())
			return nil
		case <-cafeTicker.C:
			r.TickCafes()
		case now := <-reapTicker.C:
			if n := r.Reap(ctx, now); n > 0 {
				r.log.Info().Int("rooms", n).Int("remaining", r.Len()).Msg("reaped idle rooms")
			}
		}
	}
}

// Close disposes every session.
func (r *Registry) Close(ctx context.Context) {
	for _, s := range r.snapshot() {
		r.Dispose(ctx, s.code)
	}
}
