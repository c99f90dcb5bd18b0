package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-room-service/internal/domain"
)

// QuorumPolicy decides which players must answer before a question closes on its own.
type QuorumPolicy string

const (
	// QuorumPresent waits only for players who can currently answer.
	QuorumPresent QuorumPolicy = "present"
	// QuorumAll waits for every player entry, including disconnected ones.
	QuorumAll QuorumPolicy = "all"
)

const (
	// FreezeDuration is how long a Freeze mutes its target.
	FreezeDuration = 5 * time.Second

	minLives     = 1
	maxLives     = 9
	defaultLives = 3
)

// DefaultBannedWords seeds a new room's nickname filter.
var DefaultBannedWords = []string{"badword", "offensive", "swear"}

// DefaultTeamNames seeds Team mode rooms created without names.
var DefaultTeamNames = []string{"Red", "Blue"}

// SessionOptions carries the collaborators and policies shared by every session of a registry.
type SessionOptions struct {
	Now         func() time.Time
	Scheduler   Scheduler
	Rand        *rand.Rand
	Limiter     JoinLimiter
	Quorum      QuorumPolicy
	AutoClose   bool
	HostGrace   time.Duration
	SendBuffer  int
	BannedWords []string
	Logger      zerolog.Logger
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Scheduler == nil {
		o.Scheduler = RealScheduler()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Limiter == nil {
		o.Limiter = unlimited{}
	}
	if o.Quorum == "" {
		o.Quorum = QuorumPresent
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.BannedWords == nil {
		o.BannedWords = DefaultBannedWords
	}
	return o
}

// CreateConfig is the host's room setup request after question-set resolution.
type CreateConfig struct {
	Set            domain.QuestionSet
	Mode           string
	TeamNames      []string
	BannedWords    []string
	LivesPerPlayer *int
}

// Session is one room. All fields are guarded by mu; no two goroutines mutate it concurrently.
type Session struct {
	mu   sync.Mutex
	opts SessionOptions
	rnd  *rand.Rand

	code        string
	hostConnID  string
	hostTokenID string
	mode        domain.Mode
	status      domain.Status
	set         domain.QuestionSet

	qIndex            int
	questionSeq       int
	questionStartedAt time.Time
	answers           map[string]int
	answerOrder       []string
	answerElapsed     map[string]time.Duration
	results           []domain.QuestionResult

	players      map[string]*domain.Player
	order        []string
	resumeTokens map[string]string
	locked       bool
	hostMuted    map[string]bool
	frozen       map[string]bool
	bannedWords  []string

	livesPerPlayer int
	lives          map[string]int
	teams          map[string]*domain.Team
	teamOrder      []string

	cafe        map[string]*domain.CafeState
	cafeMoney   int
	cafeServed  []domain.ServedCustomer
	customerSeq int
	towers      map[string]*domain.TowerDefenseState

	createdAt    time.Time
	lastActivity time.Time
	endedAt      time.Time
	disposed     bool

	questionTimer  Timer
	hostGraceTimer Timer
	freezeTimers   map[string]Timer

	members map[string]*member
}

func newSession(code, hostConnID, hostTokenID string, cfg CreateConfig, opts SessionOptions) *Session {
	opts = opts.withDefaults()
	now := opts.Now()
	s := &Session{
		opts:           opts,
		rnd:            opts.Rand,
		code:           code,
		hostConnID:     hostConnID,
		hostTokenID:    hostTokenID,
		mode:           domain.ParseMode(cfg.Mode),
		status:         domain.StatusLobby,
		set:            cfg.Set,
		qIndex:         -1,
		answers:        make(map[string]int),
		answerElapsed:  make(map[string]time.Duration),
		players:        make(map[string]*domain.Player),
		resumeTokens:   make(map[string]string),
		hostMuted:      make(map[string]bool),
		frozen:         make(map[string]bool),
		bannedWords:    normalizeWords(opts.BannedWords),
		livesPerPlayer: defaultLives,
		lives:          make(map[string]int),
		teams:          make(map[string]*domain.Team),
		cafe:           make(map[string]*domain.CafeState),
		towers:         make(map[string]*domain.TowerDefenseState),
		createdAt:      now,
		lastActivity:   now,
		freezeTimers:   make(map[string]Timer),
		members:        make(map[string]*member),
	}
	if cfg.BannedWords != nil {
		s.bannedWords = normalizeWords(cfg.BannedWords)
	}
	if cfg.LivesPerPlayer != nil {
		s.livesPerPlayer = clampLives(*cfg.LivesPerPlayer)
	}
	if s.mode == domain.ModeTeam {
		names := cfg.TeamNames
		if len(names) == 0 {
			names = DefaultTeamNames
		}
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := s.teams[name]; dup {
				continue
			}
			s.teams[name] = &domain.Team{Name: name, Players: []string{}}
			s.teamOrder = append(s.teamOrder, name)
		}
	}
	return s
}

func clampLives(n int) int {
	if n < minLives {
		return minLives
	}
	if n > maxLives {
		return maxLives
	}
	return n
}

func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Code returns the room's join code.
func (s *Session) Code() string {
	return s.code
}

// Status returns the current lifecycle status.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Mode returns the room's game mode.
func (s *Session) Mode() domain.Mode {
	return s.mode
}

// Player returns a copy of a player's state.
func (s *Session) Player(playerID string) (domain.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// Results returns a copy of the results history.
func (s *Session) Results() []domain.QuestionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.QuestionResult(nil), s.results...)
}

func (s *Session) now() time.Time {
	return s.opts.Now()
}

func (s *Session) touchLocked() {
	s.lastActivity = s.now()
}

func (s *Session) isHostLocked(connID string) bool {
	return !s.disposed && connID != "" && connID == s.hostConnID
}

// Start moves the room from Lobby to the first question.
func (s *Session) Start(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status != domain.StatusLobby || len(s.set.Questions) == 0 {
		return false
	}
	s.opts.Logger.Info().Str("code", s.code).Int("players", len(s.players)).Msg("game started")
	s.beginQuestionLocked(0)
	return true
}

// Next closes the open question if needed and advances to the next one, or ends the game.
func (s *Session) Next(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) {
		return false
	}
	switch s.status {
	case domain.StatusQuestion:
		s.closeQuestionLocked()
		if s.status == domain.StatusResults {
			s.advanceLocked()
		}
		return true
	case domain.StatusResults:
		s.advanceLocked()
		return true
	default:
		return false
	}
}

// EndQuestion forces Question to Results before the timer elapses.
func (s *Session) EndQuestion(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status != domain.StatusQuestion {
		return false
	}
	s.closeQuestionLocked()
	return true
}

func (s *Session) beginQuestionLocked(index int) {
	s.status = domain.StatusQuestion
	s.qIndex = index
	s.questionSeq++
	s.clearAnswersLocked()
	s.questionStartedAt = s.now()
	s.touchLocked()

	q := s.set.Questions[index]
	stopTimer(s.questionTimer)
	s.questionTimer = nil
	if s.opts.AutoClose {
		seq := s.questionSeq
		s.questionTimer = s.opts.Scheduler.AfterFunc(q.TimeLimit(), func() {
			s.onQuestionTimeout(seq)
		})
	}

	public := domain.QuestionPayload{
		Index:        index,
		Prompt:       q.Prompt,
		Choices:      q.Choices,
		TimeLimitSec: q.TimeLimitSec,
	}
	hostView := public
	correct := q.CorrectIndex
	hostView.CorrectIndex = &correct
	s.publishSplitLocked(
		domain.Event{Type: domain.EventQuestion, Payload: public},
		domain.Event{Type: domain.EventQuestion, Payload: hostView},
	)
	s.syncLocked()
}

func (s *Session) onQuestionTimeout(seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.status != domain.StatusQuestion || s.questionSeq != seq {
		return
	}
	s.closeQuestionLocked()
}

func (s *Session) clearAnswersLocked() {
	s.answers = make(map[string]int)
	s.answerElapsed = make(map[string]time.Duration)
	s.answerOrder = nil
}

// closeQuestionLocked records the QuestionResult and moves to Results, or straight to Ended when
// Survival has fewer than two players alive.
func (s *Session) closeQuestionLocked() {
	stopTimer(s.questionTimer)
	s.questionTimer = nil

	q := s.set.Questions[s.qIndex]
	result := domain.QuestionResult{
		QuestionIndex: s.qIndex,
		CorrectIndex:  q.CorrectIndex,
		Answers:       make(map[string]int, len(s.answers)),
	}
	for id, choice := range s.answers {
		result.Answers[id] = choice
	}
	// answerOrder is submission order, so strict < keeps the first submitter on ties.
	for _, id := range s.answerOrder {
		if s.answers[id] != q.CorrectIndex {
			continue
		}
		ms := s.answerElapsed[id].Milliseconds()
		if result.FastestCorrectTimeMs == nil || ms < *result.FastestCorrectTimeMs {
			fastest := ms
			result.FastestCorrectTimeMs = &fastest
			result.FastestCorrectPlayerID = id
		}
	}
	s.results = append(s.results, result)
	s.status = domain.StatusResults
	s.touchLocked()
	s.publishLocked(domain.Event{Type: domain.EventQuestionResults, Payload: result})

	if s.mode == domain.ModeSurvival && s.aliveCountLocked() < 2 {
		s.endLocked()
		return
	}
	s.syncLocked()
}

func (s *Session) advanceLocked() {
	s.clearAnswersLocked()
	next := s.qIndex + 1
	if next >= len(s.set.Questions) {
		s.qIndex = next
		s.endLocked()
		return
	}
	s.beginQuestionLocked(next)
}

// endLocked is terminal: every timer bound to the session is cancelled.
func (s *Session) endLocked() {
	if s.status == domain.StatusEnded {
		return
	}
	s.status = domain.StatusEnded
	s.endedAt = s.now()
	s.touchLocked()
	s.cancelTimersLocked()
	s.opts.Logger.Info().Str("code", s.code).Int("questions", len(s.results)).Msg("game ended")
	s.publishLocked(domain.Event{Type: domain.EventEnded, Payload: s.publicViewLocked()})
	s.syncLocked()
}

func (s *Session) cancelTimersLocked() {
	stopTimer(s.questionTimer)
	s.questionTimer = nil
	stopTimer(s.hostGraceTimer)
	s.hostGraceTimer = nil
	for id, t := range s.freezeTimers {
		stopTimer(t)
		delete(s.freezeTimers, id)
	}
}

func (s *Session) aliveCountLocked() int {
	alive := 0
	for _, id := range s.order {
		if s.players[id].Kicked {
			continue
		}
		if s.lives[id] > 0 {
			alive++
		}
	}
	return alive
}

// quorumReachedLocked reports whether every required player has answered the open question.
func (s *Session) quorumReachedLocked() bool {
	if len(s.answers) == 0 {
		return false
	}
	if s.opts.Quorum == QuorumAll {
		return len(s.answers) >= len(s.players)
	}
	for _, id := range s.order {
		if _, answered := s.answers[id]; answered {
			continue
		}
		p := s.players[id]
		// A Freeze only delays its target, so frozen players still count.
		if !p.Present() || s.hostMuted[id] {
			continue
		}
		if s.mode == domain.ModeSurvival && s.lives[id] <= 0 {
			continue
		}
		return false
	}
	return true
}

func (s *Session) maybeCloseLocked() {
	if s.status == domain.StatusQuestion && s.quorumReachedLocked() {
		s.closeQuestionLocked()
	}
}

func (s *Session) mutedLocked(playerID string) bool {
	return s.hostMuted[playerID] || s.frozen[playerID]
}

// Lock stops new players from joining.
func (s *Session) Lock(connID string) bool {
	return s.setLocked(connID, true)
}

// Unlock reopens the room to joins.
func (s *Session) Unlock(connID string) bool {
	return s.setLocked(connID, false)
}

func (s *Session) setLocked(connID string, locked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status == domain.StatusEnded {
		return false
	}
	s.locked = locked
	s.touchLocked()
	s.syncLocked()
	return true
}

// Mute blocks a player from answering until unmuted.
func (s *Session) Mute(connID, playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status == domain.StatusEnded {
		return false
	}
	if _, ok := s.players[playerID]; !ok {
		return false
	}
	s.hostMuted[playerID] = true
	s.touchLocked()
	s.syncLocked()
	s.maybeCloseLocked()
	return true
}

// Unmute lifts a host mute. Freeze mutes expire on their own.
func (s *Session) Unmute(connID, playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status == domain.StatusEnded {
		return false
	}
	if !s.hostMuted[playerID] {
		return false
	}
	delete(s.hostMuted, playerID)
	s.touchLocked()
	s.syncLocked()
	return true
}

// Kick flags the player as removed and drops their connections. The entry stays for history.
func (s *Session) Kick(connID, playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status == domain.StatusEnded {
		return false
	}
	p, ok := s.players[playerID]
	if !ok || p.Kicked {
		return false
	}
	p.Kicked = true
	p.Connected = false
	delete(s.resumeTokens, playerID)
	s.touchLocked()
	s.detachPlayerLocked(playerID, domain.Event{Type: domain.EventKicked, Payload: domain.ErrorPayload{Message: "Removed by host"}})
	s.opts.Logger.Info().Str("code", s.code).Str("player", playerID).Msg("player kicked")
	s.syncLocked()
	s.maybeCloseLocked()
	return true
}

// SettingsUpdate carries optional host-editable settings.
type SettingsUpdate struct {
	BannedWords    []string
	LivesPerPlayer *int
}

// UpdateSettings replaces the banned word list and/or the lives granted to future Survival joins.
func (s *Session) UpdateSettings(connID string, update SettingsUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isHostLocked(connID) || s.status == domain.StatusEnded {
		return false
	}
	if update.BannedWords != nil {
		s.bannedWords = normalizeWords(update.BannedWords)
	}
	if update.LivesPerPlayer != nil {
		s.livesPerPlayer = clampLives(*update.LivesPerPlayer)
	}
	s.touchLocked()
	s.syncLocked()
	return true
}

// Disconnect detaches a connection. Players are flagged offline; losing the host ends the room,
// immediately or after the configured grace period.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	m, ok := s.members[connID]
	if !ok {
		return
	}
	s.removeMemberLocked(connID)
	s.touchLocked()

	if m.playerID != "" && !s.playerAttachedLocked(m.playerID) {
		if p, ok := s.players[m.playerID]; ok {
			p.Connected = false
		}
	}
	if connID == s.hostConnID {
		s.hostConnID = ""
		if s.status != domain.StatusEnded {
			if s.opts.HostGrace > 0 {
				stopTimer(s.hostGraceTimer)
				s.hostGraceTimer = s.opts.Scheduler.AfterFunc(s.opts.HostGrace, s.onHostGraceExpired)
				s.opts.Logger.Info().Str("code", s.code).Dur("grace", s.opts.HostGrace).Msg("host disconnected, waiting for resume")
			} else {
				s.opts.Logger.Info().Str("code", s.code).Msg("host disconnected, ending game")
				s.endLocked()
				return
			}
		}
	}
	s.syncLocked()
	s.maybeCloseLocked()
}

func (s *Session) onHostGraceExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.hostConnID != "" {
		return
	}
	s.hostGraceTimer = nil
	s.endLocked()
}

// ResumeHost binds host control to a new connection when presentedID matches the current
// credential, and rotates the credential to nextID.
func (s *Session) ResumeHost(connID, presentedID, nextID string) (*Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || presentedID == "" || presentedID != s.hostTokenID {
		return nil, false
	}
	if s.hostConnID != "" && s.hostConnID != connID {
		s.removeMemberLocked(s.hostConnID)
	}
	stopTimer(s.hostGraceTimer)
	s.hostGraceTimer = nil
	s.hostConnID = connID
	s.hostTokenID = nextID
	s.touchLocked()
	sub := s.attachLocked(connID, "", true)
	s.syncLocked()
	return sub, true
}

// ResumePlayer re-attaches a dropped player without re-validating their nickname.
func (s *Session) ResumePlayer(connID, playerID, token string) (*Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || token == "" || s.resumeTokens[playerID] != token {
		return nil, false
	}
	p, ok := s.players[playerID]
	if !ok || p.Kicked {
		return nil, false
	}
	p.Connected = true
	s.touchLocked()
	sub := s.attachLocked(connID, playerID, false)
	s.syncLocked()
	return sub, true
}

func (s *Session) newPlayerID() string {
	return uuid.NewString()
}

// idleFor reports how long the session has been without activity, and whether it has ended.
func (s *Session) idleFor(now time.Time) (idle time.Duration, ended bool, endedFor time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idle = now.Sub(s.lastActivity)
	if s.status == domain.StatusEnded {
		return idle, true, now.Sub(s.endedAt)
	}
	return idle, false, 0
}

// dispose cancels every bound task and closes all subscriptions. The session is unusable afterwards.
func (s *Session) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.cancelTimersLocked()
	for connID := range s.members {
		s.removeMemberLocked(connID)
	}
	s.disposed = true
}

// joinKey scopes rate limiting to a room and a source address.
func joinKey(code, ip string) string {
	return code + "|" + ip
}
