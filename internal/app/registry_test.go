package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

func newTestRegistry(t *testing.T, cfg RegistryConfig) (*Registry, *memory.CodeReservations, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	codes := memory.NewCodeReservations()
	r := NewRegistry(cfg, SessionOptions{
		Now:       clock.Now,
		Scheduler: &manualScheduler{},
		Limiter:   memory.NewJoinLimiter(5, 30*time.Second),
		Logger:    zerolog.Nop(),
	}, codes)
	return r, codes, clock
}

func TestGenerateRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateRoomCode()
		require.NoError(t, err)
		require.Len(t, code, RoomCodeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(RoomCodeChars, ch), "unexpected %q in %s", ch, code)
		}
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestRegistryCreateReservesUniqueCodes(t *testing.T) {
	r, codes, _ := newTestRegistry(t, RegistryConfig{})
	ctx := context.Background()
	queue := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	r.generate = func() (string, error) {
		code := queue[0]
		queue = queue[1:]
		return code, nil
	}

	first, sub, err := r.Create(ctx, "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code())
	assert.True(t, sub.Host)
	second, _, err := r.Create(ctx, "h2", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Code(), "taken codes are skipped")

	assert.True(t, codes.Held("AAAAAA"))
	assert.True(t, codes.Held("BBBBBB"))
	assert.Equal(t, 2, r.Len())
	got, ok := r.Lookup("AAAAAA")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryCreateSkipsCodesReservedElsewhere(t *testing.T) {
	r, codes, _ := newTestRegistry(t, RegistryConfig{})
	ctx := context.Background()
	ok, err := codes.Reserve(ctx, "AAAAAA")
	require.NoError(t, err)
	require.True(t, ok)
	queue := []string{"AAAAAA", "CCCCCC"}
	r.generate = func() (string, error) {
		code := queue[0]
		queue = queue[1:]
		return code, nil
	}

	s, _, err := r.Create(ctx, "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	assert.Equal(t, "CCCCCC", s.Code())
}

func TestRegistryCodeSpaceExhausted(t *testing.T) {
	r, _, _ := newTestRegistry(t, RegistryConfig{})
	ctx := context.Background()
	r.generate = func() (string, error) { return "ZZZZZZ", nil }
	_, _, err := r.Create(ctx, "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)

	_, _, err = r.Create(ctx, "h2", "tok", CreateConfig{Set: testSet(1)})
	assert.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDisposeReleasesEverything(t *testing.T) {
	r, codes, _ := newTestRegistry(t, RegistryConfig{})
	ctx := context.Background()
	s, hostSub, err := r.Create(ctx, "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	res := s.Join(ctx, JoinRequest{ConnID: "c1", Nickname: "Alice", SourceIP: "10.0.0.1"})
	require.True(t, res.OK())
	limiter := r.opts.Limiter.(*memory.JoinLimiter)
	require.Equal(t, 1, limiter.Keys())

	require.True(t, r.Dispose(ctx, s.Code()))
	assert.False(t, r.Dispose(ctx, s.Code()))
	_, ok := r.Lookup(s.Code())
	assert.False(t, ok)
	assert.False(t, codes.Held(s.Code()))
	assert.Zero(t, limiter.Keys())
	assert.True(t, closed(hostSub))
	assert.True(t, closed(res.Subscription))
}

func TestRegistryReap(t *testing.T) {
	r, _, clock := newTestRegistry(t, RegistryConfig{IdleTTL: 30 * time.Minute, EndedTTL: 5 * time.Minute})
	ctx := context.Background()
	idle, _, err := r.Create(ctx, "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	busy, _, err := r.Create(ctx, "h2", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	ended, _, err := r.Create(ctx, "h3", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	require.True(t, ended.Start("h3"))
	require.True(t, ended.Next("h3"))
	require.Equal(t, domain.StatusEnded, ended.Status())
	assert.Zero(t, r.Reap(ctx, clock.Now()))

	clock.Advance(6 * time.Minute)
	require.True(t, busy.Lock("h2"))
	assert.Equal(t, 1, r.Reap(ctx, clock.Now()), "ended room past its retention")
	_, ok := r.Lookup(ended.Code())
	assert.False(t, ok)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, r.Reap(ctx, clock.Now()), "idle room past its ttl")
	_, ok = r.Lookup(idle.Code())
	assert.False(t, ok)
	_, ok = r.Lookup(busy.Code())
	assert.True(t, ok)
}

func TestRegistryTickCafes(t *testing.T) {
	r, _, _ := newTestRegistry(t, RegistryConfig{})
	ctx := context.Background()
	cafe, _, err := r.Create(ctx, "h1", "tok", CreateConfig{Set: testSet(1), Mode: "cafe"})
	require.NoError(t, err)
	_, _, err = r.Create(ctx, "h2", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	res := cafe.Join(ctx, JoinRequest{ConnID: "c1", Nickname: "Alice", SourceIP: "10.0.0.1"})
	require.True(t, res.OK())
	require.True(t, cafe.Start("h1"))

	cafe.mu.Lock()
	cafe.cafe[res.PlayerID].Customers[0].Patience = 0.1
	cafe.mu.Unlock()
	assert.Equal(t, 1, r.TickCafes())
}

func TestRegistryRunClosesSessionsOnShutdown(t *testing.T) {
	r, codes, _ := newTestRegistry(t, RegistryConfig{ReapInterval: time.Hour, CafeTick: time.Hour})
	s, _, err := r.Create(context.Background(), "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("registry did not stop")
	}
	assert.Zero(t, r.Len())
	assert.False(t, codes.Held(s.Code()))
}

type stubReservations struct {
	reserve  func(ctx context.Context, code string) (bool, error)
	released []string
}

func (s *stubReservations) Reserve(ctx context.Context, code string) (bool, error) {
	return s.reserve(ctx, code)
}

func (s *stubReservations) Refresh(context.Context, string) error { return nil }

func (s *stubReservations) Release(_ context.Context, code string) error {
	s.released = append(s.released, code)
	return nil
}

func TestRegistryLookupDuringSlowReservation(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	codes := &stubReservations{reserve: func(ctx context.Context, code string) (bool, error) {
		close(entered)
		<-unblock
		return true, nil
	}}
	r, _, _ := newTestRegistry(t, RegistryConfig{})
	r.codes = codes
	r.generate = func() (string, error) { return "NEWONE", nil }
	existing := newSession("EXIST1", "h0", "tok", CreateConfig{Set: testSet(1)}, r.opts)
	r.sessions["EXIST1"] = existing

	created := make(chan error, 1)
	go func() {
		_, _, err := r.Create(context.Background(), "h1", "tok", CreateConfig{Set: testSet(1)})
		created <- err
	}()
	<-entered

	found := make(chan *Session, 1)
	go func() {
		s, _ := r.Lookup("EXIST1")
		found <- s
	}()
	select {
	case s := <-found:
		assert.Same(t, existing, s)
	case <-time.After(5 * time.Second):
		close(unblock)
		t.Fatal("lookup blocked behind code reservation")
	}

	close(unblock)
	select {
	case err := <-created:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("create did not finish")
	}
	assert.Equal(t, 2, r.Len())
}

func TestRegistryCreateReleasesCodeLostToConcurrentCreate(t *testing.T) {
	r, _, _ := newTestRegistry(t, RegistryConfig{})
	queue := []string{"RACE22", "SAFE33"}
	r.generate = func() (string, error) {
		code := queue[0]
		queue = queue[1:]
		return code, nil
	}
	rival := newSession("RACE22", "h0", "tok", CreateConfig{Set: testSet(1)}, r.opts)
	codes := &stubReservations{reserve: func(ctx context.Context, code string) (bool, error) {
		if code == "RACE22" {
			r.mu.Lock()
			r.sessions[code] = rival
			r.mu.Unlock()
		}
		return true, nil
	}}
	r.codes = codes

	s, sub, err := r.Create(context.Background(), "h1", "tok", CreateConfig{Set: testSet(1)})
	require.NoError(t, err)
	assert.Equal(t, "SAFE33", s.Code())
	assert.True(t, sub.Host)
	assert.Equal(t, []string{"RACE22"}, codes.released)
	got, ok := r.Lookup("RACE22")
	require.True(t, ok)
	assert.Same(t, rival, got, "the winning session is left in place")
}
