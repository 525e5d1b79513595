package command

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func fixedRoll(v int) func(int, int) int {
	return func(int, int) int { return v }
}

func message(sender shared.MemberID, channel shared.ChannelID, at time.Time) MessageEvent {
	return MessageEvent{
		CommunityID: guild,
		ChannelID:   channel,
		SenderID:    sender,
		HasContent:  true,
		Timestamp:   at,
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
}

func (r *countingRecorder) AwardOutcome(o Outcome, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[Outcome]int)
	}
	r.outcomes[o]++
}

func TestRollXP(t *testing.T) {
	tests := []struct {
		name       string
		base       int
		multiplier float64
		want       int64
	}{
		{"identity", 20, 1.0, 20},
		{"half rounds up", 15, 1.5, 23},
		{"small multiplier rounds half up", 25, 0.1, 3},
		{"tenth of minimum", 15, 0.1, 2},
		{"maximum", 25, 10, 250},
		{"never below one", 1, 0.1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RollXP(tt.base, tt.multiplier))
		})
	}
}

func TestAwardXP_Filtered(t *testing.T) {
	store := newLedger(t, true)
	h := NewAwardXPHandler(store, nil, discardLogger(), DefaultAwardXPConfig())

	bot := message(alice, "1", t0)
	bot.IsAutomated = true
	res, err := h.Handle(context.Background(), bot)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFiltered, res.Outcome)

	empty := message(alice, "1", t0)
	empty.HasContent = false
	res, err = h.Handle(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFiltered, res.Outcome)

	_, err = store.Member(context.Background(), guild, alice)
	assert.ErrorIs(t, err, shared.ErrMemberNotFound)
}

func TestAwardXP_NotProvisionedIsNotAnError(t *testing.T) {
	store := newLedger(t, false)
	h := NewAwardXPHandler(store, nil, discardLogger(), DefaultAwardXPConfig())

	res, err := h.Handle(context.Background(), message(alice, "1", t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotProvisioned, res.Outcome)
}

func TestAwardXP_NotProvisionedWarnsOncePerCommunity(t *testing.T) {
	store := newLedger(t, false)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := NewAwardXPHandler(store, nil, log, DefaultAwardXPConfig())

	for i := 0; i < 3; i++ {
		res, err := h.Handle(context.Background(), message(alice, "1", t0))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNotProvisioned, res.Outcome)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "setup required"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "guild_id="+string(guild))
}

func TestAwardXP_IgnoredChannelAndParent(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	require.NoError(t, store.SetSetting(ctx, guild, ledger.KeyIgnoredChannels, "10,20"))
	h := NewAwardXPHandler(store, nil, discardLogger(), DefaultAwardXPConfig())

	res, err := h.Handle(ctx, message(alice, "10", t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	inCategory := message(alice, "30", t0)
	inCategory.ParentID = "20"
	res, err = h.Handle(ctx, inCategory)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	_, err = store.Member(ctx, guild, alice)
	assert.ErrorIs(t, err, shared.ErrMemberNotFound)
}

func TestAwardXP_CooldownBlocksWithoutMutation(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	rec := &countingRecorder{}
	h := NewAwardXPHandler(store, nil, discardLogger(), DefaultAwardXPConfig()).
		WithRoll(fixedRoll(20)).
		WithRecorder(rec)

	res, err := h.Handle(ctx, message(alice, "1", t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, res.Outcome)
	assert.Equal(t, int64(20), res.XP)

	res, err = h.Handle(ctx, message(alice, "1", t0.Add(10*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCooldown, res.Outcome)

	m, err := store.Member(ctx, guild, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(20), m.XP)
	assert.Equal(t, t0.UnixMilli(), m.LastAwardAt)

	assert.Equal(t, 1, rec.outcomes[OutcomeAwarded])
	assert.Equal(t, 1, rec.outcomes[OutcomeCooldown])
}

func TestAwardXP_SumsExactlyAtDefaultMultiplier(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	h := NewAwardXPHandler(store, nil, discardLogger(), DefaultAwardXPConfig())

	var total int64
	for i := 0; i < 20; i++ {
		res, err := h.Handle(ctx, message(bob, "1", t0.Add(time.Duration(i)*31*time.Second)))
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Delta, int64(15))
		require.LessOrEqual(t, res.Delta, int64(25))
		total += res.Delta
	}

	m, err := store.Member(ctx, guild, bob)
	require.NoError(t, err)
	assert.Equal(t, total, m.XP)
}

func TestAwardXP_AppliesMultiplier(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	require.NoError(t, store.SetSetting(ctx, guild, ledger.KeyChannelMultipliers, `{"7":1.5}`))
	h := NewAwardXPHandler(store, nil, discardLogger(), DefaultAwardXPConfig()).WithRoll(fixedRoll(15))

	res, err := h.Handle(ctx, message(alice, "7", t0))
	require.NoError(t, err)
	assert.Equal(t, int64(23), res.Delta)

	res, err = h.Handle(ctx, message(bob, "8", t0))
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Delta)
}

func TestAwardXP_LevelUpPublishesOnce(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	pub := &recordingPublisher{}

	// Level 1 at 100 XP; the next award crosses 282.
	require.NoError(t, store.SetLevel(ctx, guild, alice, 1, 270))
	h := NewAwardXPHandler(store, pub, discardLogger(), DefaultAwardXPConfig()).WithRoll(fixedRoll(20))

	res, err := h.Handle(ctx, message(alice, "1", t0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeveledUp, res.Outcome)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, int64(290), res.XP)

	levelUps := pub.ofType(shared.EventLevelUp)
	require.Len(t, levelUps, 1)
	ev := levelUps[0].(shared.LevelUpEvent)
	assert.Equal(t, 1, ev.OldLevel)
	assert.Equal(t, 2, ev.NewLevel)
	assert.Equal(t, shared.ChannelID("1"), ev.ChannelID)

	res, err = h.Handle(ctx, message(alice, "1", t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, res.Outcome)
	assert.Len(t, pub.ofType(shared.EventLevelUp), 1)

	m, err := store.Member(ctx, guild, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Level)
	assert.Equal(t, int64(310), m.XP, "xp is kept across the level transition")
}

func TestAwardXP_SingleStepLevelUp(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	pub := &recordingPublisher{}
	h := NewAwardXPHandler(store, pub, discardLogger(), DefaultAwardXPConfig()).WithRoll(fixedRoll(25))

	// 600 XP at level 0 qualifies for level 3, but one award moves one step.
	require.NoError(t, store.SetLevel(ctx, guild, carol, 0, 600))

	res, err := h.Handle(ctx, message(carol, "1", t0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Level)

	res, err = h.Handle(ctx, message(carol, "1", t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Level)
	assert.Len(t, pub.ofType(shared.EventLevelUp), 2)
}

func TestAwardXP_DuplicateDeliveryLevelsUpOnce(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	pub := &recordingPublisher{}
	require.NoError(t, store.SetLevel(ctx, guild, alice, 1, 270))
	h := NewAwardXPHandler(store, pub, discardLogger(), DefaultAwardXPConfig()).WithRoll(fixedRoll(20))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Handle(ctx, message(alice, "1", t0))
		}()
	}
	wg.Wait()

	m, err := store.Member(ctx, guild, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(290), m.XP)
	assert.Equal(t, 2, m.Level)
	assert.Len(t, pub.ofType(shared.EventLevelUp), 1)
}
