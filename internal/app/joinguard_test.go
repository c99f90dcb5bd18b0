package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

type failingLimiter struct{ calls int }

func (f *failingLimiter) Admit(context.Context, string, time.Time) (bool, error) {
	f.calls++
	return false, errors.New("limiter offline")
}

func TestCleanNickname(t *testing.T) {
	banned := normalizeWords(DefaultBannedWords)
	cases := []struct {
		raw    string
		want   string
		reason domain.JoinReason
	}{
		{raw: "  Alice  ", want: "Alice"},
		{raw: "", reason: domain.JoinInvalidNickname},
		{raw: "    ", reason: domain.JoinInvalidNickname},
		{raw: strings.Repeat("x", 20), want: strings.Repeat("x", 20)},
		{raw: strings.Repeat("x", 21), reason: domain.JoinInvalidNickname},
		{raw: "ÉléonoreÉléonoreÉlé", want: "ÉléonoreÉléonoreÉlé"},
		{raw: "BigSwearer", reason: domain.JoinBlockedNickname},
		{raw: "OFFENSIVEguy", reason: domain.JoinBlockedNickname},
	}
	for _, tc := range cases {
		got, reason := cleanNickname(tc.raw, banned)
		assert.Equal(t, tc.reason, reason, "nickname %q", tc.raw)
		assert.Equal(t, tc.want, got, "nickname %q", tc.raw)
	}
}

func TestJoinChecksRunInOrder(t *testing.T) {
	h := newHarness(t, CreateConfig{Mode: "team", TeamNames: []string{"Red"}})
	h.joinTeam("Alice", "Red")
	ctx := context.Background()

	// Each request fails several checks; only the earliest one is reported.
	res := h.s.Join(ctx, JoinRequest{Nickname: "alice", TeamName: "Green"})
	assert.Equal(t, domain.JoinDuplicateName, res.Reason)
	res = h.s.Join(ctx, JoinRequest{Nickname: "swear", TeamName: "Green"})
	assert.Equal(t, domain.JoinBlockedNickname, res.Reason)
	res = h.s.Join(ctx, JoinRequest{Nickname: "Bob", TeamName: "Green"})
	assert.Equal(t, domain.JoinInvalidTeam, res.Reason)

	require.True(t, h.s.Lock(hostConn))
	res = h.s.Join(ctx, JoinRequest{Nickname: "", TeamName: "Red"})
	assert.Equal(t, domain.JoinRoomLocked, res.Reason)
	require.True(t, h.s.Unlock(hostConn))

	require.True(t, h.s.Start(hostConn))
	res = h.s.Join(ctx, JoinRequest{Nickname: "", TeamName: "Red"})
	assert.Equal(t, domain.JoinAlreadyStarted, res.Reason)
	require.True(t, h.s.Lock(hostConn))
	res = h.s.Join(ctx, JoinRequest{Nickname: "Bob", TeamName: "Red"})
	assert.Equal(t, domain.JoinRoomLocked, res.Reason)
}

func TestJoinAdmitsAndSeedsPlayer(t *testing.T) {
	h := newHarness(t, CreateConfig{})
	res := h.s.Join(context.Background(), JoinRequest{ConnID: "c1", Nickname: " Alice ", SphereID: "sphere-3", SourceIP: "10.0.0.1"})
	require.True(t, res.OK())
	assert.NotEmpty(t, res.PlayerID)
	assert.NotEmpty(t, res.ResumeToken)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, "ABC234", res.Subscription.Code)

	p := h.player(res.PlayerID)
	assert.Equal(t, "Alice", p.Nickname)
	assert.Equal(t, "sphere-3", p.SphereID)
	assert.True(t, p.Connected)
	assert.Equal(t, h.clock.Now(), p.JoinedAt)

	states := eventsOfType(drain(res.Subscription), domain.EventStateUpdate)
	require.NotEmpty(t, states)
	view := states[len(states)-1].Payload.(domain.PublicView)
	require.Len(t, view.Leaderboard, 1)
	assert.Equal(t, "Alice", view.Leaderboard[0].Nickname)

	roster := eventsOfType(drain(h.host), domain.EventHostPlayers)
	require.NotEmpty(t, roster)
	assert.Len(t, roster[len(roster)-1].Payload.([]domain.HostPlayer), 1)
}

func TestJoinSeedsModeState(t *testing.T) {
	survival := newHarness(t, CreateConfig{Mode: "survival"})
	id := survival.join("Alice")
	assert.Equal(t, 3, survival.s.Snapshot().SurvivalInfo[id].Lives)

	cafe := newHarness(t, CreateConfig{Mode: "cafe"})
	id = cafe.join("Alice")
	state := cafe.s.Snapshot().CafeInfo[id]
	assert.Equal(t, 5, state.Stock[domain.ItemToast])
	assert.Len(t, state.Customers, domain.MinCafeCustomers)
	assert.Equal(t, 1, state.Upgrades.Multiplier)

	td := newHarness(t, CreateConfig{Mode: "td"})
	id = td.join("Alice")
	assert.Equal(t, domain.TowerDefenseState{
		Tokens: domain.StartingTokens,
		Health: domain.StartingHealth,
		Wave:   1,
		Towers: []domain.Tower{},
	}, td.s.Snapshot().TDInfo[id])
}

func TestJoinRateLimitedPerAddress(t *testing.T) {
	limiter := memory.NewJoinLimiter(5, 30*time.Second)
	h := newHarness(t, CreateConfig{}, func(o *SessionOptions) { o.Limiter = limiter })
	ctx := context.Background()
	join := func(nick, ip string) domain.JoinReason {
		return h.s.Join(ctx, JoinRequest{ConnID: "conn-" + nick, Nickname: nick, SourceIP: ip}).Reason
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, domain.JoinOK, join("p"+string(rune('a'+i)), "10.0.0.9"))
	}
	assert.Equal(t, domain.JoinRateLimited, join("pf", "10.0.0.9"))
	assert.Equal(t, domain.JoinOK, join("other", "10.0.0.10"), "limit is per address")

	h.clock.Advance(30 * time.Second)
	assert.Equal(t, domain.JoinOK, join("pf", "10.0.0.9"))
}

func TestFailedChecksDoNotConsumeRateBudget(t *testing.T) {
	limiter := memory.NewJoinLimiter(1, time.Minute)
	h := newHarness(t, CreateConfig{}, func(o *SessionOptions) { o.Limiter = limiter })
	ctx := context.Background()

	res := h.s.Join(ctx, JoinRequest{Nickname: "swear", SourceIP: "10.0.0.1"})
	require.Equal(t, domain.JoinBlockedNickname, res.Reason)
	res = h.s.Join(ctx, JoinRequest{ConnID: "c", Nickname: "Alice", SourceIP: "10.0.0.1"})
	assert.True(t, res.OK())
}

func TestJoinLimiterErrorAdmits(t *testing.T) {
	limiter := &failingLimiter{}
	h := newHarness(t, CreateConfig{}, func(o *SessionOptions) { o.Limiter = limiter })
	h.join("Alice")
	assert.Equal(t, 1, limiter.calls)
}

type limiterFunc func(ctx context.Context, key string, now time.Time) (bool, error)

func (f limiterFunc) Admit(ctx context.Context, key string, now time.Time) (bool, error) {
	return f(ctx, key, now)
}

func TestJoinLimiterRunsOutsideRoomLock(t *testing.T) {
	var h *harness
	h = newHarness(t, CreateConfig{}, func(o *SessionOptions) {
		o.Limiter = limiterFunc(func(ctx context.Context, key string, now time.Time) (bool, error) {
			h.s.Snapshot()
			h.s.Lock(hostConn)
			return true, nil
		})
	})

	done := make(chan JoinResult, 1)
	go func() {
		done <- h.s.Join(context.Background(), JoinRequest{ConnID: "c1", Nickname: "Alice", SourceIP: "10.0.0.1"})
	}()
	select {
	case res := <-done:
		assert.Equal(t, domain.JoinRoomLocked, res.Reason, "checks repeated after the limiter answers")
	case <-time.After(5 * time.Second):
		t.Fatal("join held the room lock while waiting on the limiter")
	}
	assert.Empty(t, h.s.Snapshot().Leaderboard)
}

func TestJoinLimiterCallHasDeadline(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	h := newHarness(t, CreateConfig{}, func(o *SessionOptions) {
		o.Limiter = limiterFunc(func(ctx context.Context, key string, now time.Time) (bool, error) {
			deadline, hasDeadline = ctx.Deadline()
			return true, nil
		})
	})
	start := time.Now()
	res := h.s.Join(context.Background(), JoinRequest{ConnID: "c1", Nickname: "Alice", SourceIP: "10.0.0.1"})
	require.True(t, res.OK())
	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(joinLimiterTimeout), deadline, time.Second)
}
