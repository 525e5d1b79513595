package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

const (
	guildA shared.CommunityID = "111111111111111111"
	guildB shared.CommunityID = "222222222222222222"
	alice  shared.MemberID    = "900000000000000001"
	bob    shared.MemberID    = "900000000000000002"
	carol  shared.MemberID    = "900000000000000003"
)

var cooldown = 30 * time.Second

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func provisioned(t *testing.T, communities ...shared.CommunityID) *Store {
	t.Helper()
	store := newStore(t)
	for _, c := range communities {
		require.NoError(t, store.Provision(context.Background(), c))
	}
	return store
}

func TestStore_NotProvisioned(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Settings(ctx, guildA)
	assert.True(t, shared.IsNotProvisioned(err), "settings: %v", err)

	_, err = store.Member(ctx, guildA, alice)
	assert.True(t, shared.IsNotProvisioned(err), "member: %v", err)

	_, err = store.AwardXP(ctx, guildA, alice, 20, time.Now(), cooldown)
	assert.True(t, shared.IsNotProvisioned(err), "award: %v", err)

	_, err = store.TopN(ctx, guildA, 10)
	assert.True(t, shared.IsNotProvisioned(err), "top: %v", err)

	err = store.SetSetting(ctx, guildA, ledger.KeyLevelUpChannel, "1")
	assert.True(t, shared.IsNotProvisioned(err), "set setting: %v", err)
}

func TestStore_RejectsInvalidCommunityID(t *testing.T) {
	store := newStore(t)

	for _, bad := range []shared.CommunityID{"", "abc", "1; DROP TABLE x", "123456789012345678901"} {
		err := store.Provision(context.Background(), bad)
		assert.ErrorIs(t, err, shared.ErrInvalidCommunity, "id %q", bad)
	}
}

func TestStore_ProvisionSeedsSettings(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)

	// Idempotent.
	require.NoError(t, store.Provision(ctx, guildA))

	settings, err := store.Settings(ctx, guildA)
	require.NoError(t, err)
	for _, key := range ledger.WellKnownKeys {
		value, ok := settings[key]
		assert.True(t, ok, "key %s seeded", key)
		assert.Empty(t, value)
	}
}

func TestStore_SettingsUpsert(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)

	require.NoError(t, store.SetSetting(ctx, guildA, ledger.KeyLevelUpChannel, "42"))
	require.NoError(t, store.SetSetting(ctx, guildA, ledger.KeyLevelUpChannel, "43"))
	require.NoError(t, store.SetSettings(ctx, guildA, map[ledger.SettingKey]string{
		ledger.KeyIgnoredChannels:    "1,2",
		ledger.KeyChannelMultipliers: `{"3":2}`,
	}))

	settings, err := store.Settings(ctx, guildA)
	require.NoError(t, err)
	assert.Equal(t, shared.ChannelID("43"), settings.LevelUpChannel())
	assert.Equal(t, "1,2", settings.Get(ledger.KeyIgnoredChannels))
	assert.Equal(t, `{"3":2}`, settings.Get(ledger.KeyChannelMultipliers))
}

func TestStore_AwardXP_Cooldown(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)
	t0 := time.UnixMilli(1_700_000_000_000)

	res, err := store.AwardXP(ctx, guildA, alice, 20, t0, cooldown)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.XP)
	assert.Equal(t, 0, res.Level)

	_, err = store.AwardXP(ctx, guildA, alice, 20, t0.Add(29*time.Second), cooldown)
	assert.True(t, shared.IsCooldown(err))

	m, err := store.Member(ctx, guildA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(20), m.XP)
	assert.Equal(t, t0.UnixMilli(), m.LastAwardAt)

	res, err = store.AwardXP(ctx, guildA, alice, 15, t0.Add(cooldown), cooldown)
	require.NoError(t, err)
	assert.Equal(t, int64(35), res.XP)
}

func TestStore_AwardXP_SumsExactly(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)
	t0 := time.UnixMilli(1_700_000_000_000)

	var want int64
	for i := 0; i < 25; i++ {
		delta := int64(15 + i%11)
		want += delta
		_, err := store.AwardXP(ctx, guildA, alice, delta, t0.Add(time.Duration(i)*cooldown), cooldown)
		require.NoError(t, err)
	}

	m, err := store.Member(ctx, guildA, alice)
	require.NoError(t, err)
	assert.Equal(t, want, m.XP)
}

func TestStore_AwardXP_ConcurrentDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)
	now := time.UnixMilli(1_700_000_000_000)

	// Seed a record so every concurrent call takes the conflict path.
	_, err := store.AwardXP(ctx, guildA, alice, 10, now.Add(-time.Minute), cooldown)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AwardXP(ctx, guildA, alice, 20, now, cooldown); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	m, err := store.Member(ctx, guildA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(30), m.XP)
}

func TestStore_AdvanceLevel(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)

	_, err := store.AwardXP(ctx, guildA, alice, 300, time.Now(), cooldown)
	require.NoError(t, err)

	ok, err := store.AdvanceLevel(ctx, guildA, alice, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AdvanceLevel(ctx, guildA, alice, 0, 1)
	require.NoError(t, err)
	assert.False(t, ok, "second transition from the same level must lose")

	m, err := store.Member(ctx, guildA, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Level)
	assert.Equal(t, int64(300), m.XP)
}

func TestStore_SetLevel(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)

	require.NoError(t, store.SetLevel(ctx, guildA, bob, 5, 1118))

	m, err := store.Member(ctx, guildA, bob)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Level)
	assert.Equal(t, int64(1118), m.XP)

	require.NoError(t, store.SetLevel(ctx, guildA, bob, 2, 282))
	m, err = store.Member(ctx, guildA, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Level)
	assert.Equal(t, int64(282), m.XP)
}

func TestStore_TopN(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)

	require.NoError(t, store.SetLevel(ctx, guildA, alice, 1, 100))
	require.NoError(t, store.SetLevel(ctx, guildA, bob, 3, 519))
	require.NoError(t, store.SetLevel(ctx, guildA, carol, 2, 282))

	top, err := store.TopN(ctx, guildA, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, bob, top[0].MemberID)
	assert.Equal(t, carol, top[1].MemberID)
}

func TestStore_MemberNotFound(t *testing.T) {
	store := provisioned(t, guildA)

	_, err := store.Member(context.Background(), guildA, alice)
	assert.ErrorIs(t, err, shared.ErrMemberNotFound)
	assert.False(t, shared.IsNotProvisioned(err))
}

func TestStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA, guildB)

	_, err := store.AwardXP(ctx, guildA, alice, 25, time.Now(), cooldown)
	require.NoError(t, err)

	_, err = store.Member(ctx, guildB, alice)
	assert.ErrorIs(t, err, shared.ErrMemberNotFound)
}

func TestStore_TeardownThenReprovision(t *testing.T) {
	ctx := context.Background()
	store := provisioned(t, guildA)

	_, err := store.AwardXP(ctx, guildA, alice, 25, time.Now(), cooldown)
	require.NoError(t, err)

	require.NoError(t, store.Teardown(ctx, guildA))
	require.NoError(t, store.Teardown(ctx, guildA))

	_, err = store.Settings(ctx, guildA)
	assert.True(t, shared.IsNotProvisioned(err))

	require.NoError(t, store.Provision(ctx, guildA))
	top, err := store.TopN(ctx, guildA, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
