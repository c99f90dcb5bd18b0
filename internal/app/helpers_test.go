package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
)

const hostConn = "host-conn"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// manualScheduler records scheduled callbacks; tests fire them explicitly.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{s: m, delay: d, f: f}
	m.tasks = append(m.tasks, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// FireAll runs every pending callback outside the scheduler lock.
func (m *manualScheduler) FireAll() int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.tasks {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (m *manualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type harness struct {
	t      *testing.T
	s      *Session
	clock  *fakeClock
	sched  *manualScheduler
	host   *Subscription
	subs   map[string]*Subscription
	tokens map[string]string
}

func testSet(n int) domain.QuestionSet {
	set := domain.QuestionSet{ID: "test", Title: "Test"}
	for i := 0; i < n; i++ {
		set.Questions = append(set.Questions, domain.Question{
			Prompt:       fmt.Sprintf("Question %d", i+1),
			Choices:      []domain.Choice{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
			CorrectIndex: i % domain.ChoicesPerQuestion,
			TimeLimitSec: 20,
		})
	}
	return set
}

func newHarness(t *testing.T, cfg CreateConfig, tweak ...func(*SessionOptions)) *harness {
	t.Helper()
	clock := newFakeClock()
	sched := &manualScheduler{}
	opts := SessionOptions{
		Now:        clock.Now,
		Scheduler:  sched,
		Rand:       rand.New(rand.NewSource(7)),
		SendBuffer: 256,
		Logger:     zerolog.Nop(),
	}
	for _, f := range tweak {
		f(&opts)
	}
	if len(cfg.Set.Questions) == 0 {
		cfg.Set = testSet(3)
	}
	s := newSession("ABC234", hostConn, "host-token-1", cfg, opts)
	h := &harness{t: t, s: s, clock: clock, sched: sched, subs: make(map[string]*Subscription), tokens: make(map[string]string)}
	h.host = s.attachHost(hostConn)
	return h
}

// join admits nickname from its own address and returns the player id.
func (h *harness) join(nickname string) string {
	h.t.Helper()
	return h.joinTeam(nickname, "")
}

func (h *harness) joinTeam(nickname, team string) string {
	h.t.Helper()
	res := h.s.Join(context.Background(), JoinRequest{
		ConnID:   "conn-" + nickname,
		Nickname: nickname,
		TeamName: team,
		SourceIP: "ip-" + nickname,
	})
	require.True(h.t, res.OK(), "join %s: %s", nickname, res.Reason)
	h.subs[res.PlayerID] = res.Subscription
	h.tokens[res.PlayerID] = res.ResumeToken
	return res.PlayerID
}

func (h *harness) player(id string) domain.Player {
	h.t.Helper()
	p, ok := h.s.Player(id)
	require.True(h.t, ok)
	return p
}

func (h *harness) correct() int {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.set.Questions[h.s.qIndex].CorrectIndex
}

func (h *harness) wrong() int {
	return (h.correct() + 1) % domain.ChoicesPerQuestion
}

// drain returns every event queued on sub without blocking.
func drain(sub *Subscription) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOfType(events []domain.Event, typ string) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func closed(sub *Subscription) bool {
	for {
		select {
		case _, ok := <-sub.Events:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}
