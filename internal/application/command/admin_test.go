package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/policy"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

func TestSetup_ProvisionsAndStoresChannel(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, false)
	pub := &recordingPublisher{}
	h := NewSetupHandler(store, pub, discardLogger())

	require.NoError(t, h.Handle(ctx, SetupCommand{CommunityID: guild, ActorID: admin, AnnouncementChannel: "42"}))
	require.NoError(t, h.Handle(ctx, SetupCommand{CommunityID: guild, ActorID: admin, AnnouncementChannel: "43"}))

	settings, err := store.Settings(ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, shared.ChannelID("43"), settings.LevelUpChannel())
	assert.Len(t, pub.ofType(shared.EventCommunityProvisioned), 2)
}

func TestSetup_RejectsInvalidCommunity(t *testing.T) {
	h := NewSetupHandler(newLedger(t, false), nil, discardLogger())

	err := h.Handle(context.Background(), SetupCommand{CommunityID: "guild_1; --", AnnouncementChannel: "1"})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestAssignLevel(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	h := NewAssignLevelHandler(store, nil, discardLogger())

	res, err := h.Handle(ctx, AssignLevelCommand{CommunityID: guild, ActorID: admin, TargetID: alice, Level: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1118), res.XP)

	m, err := store.Member(ctx, guild, alice)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Level)
	assert.Equal(t, int64(1118), m.XP)

	res, err = h.Handle(ctx, AssignLevelCommand{CommunityID: guild, ActorID: admin, TargetID: alice, Level: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.XP)
}

func TestAssignLevel_Rejections(t *testing.T) {
	ctx := context.Background()
	h := NewAssignLevelHandler(newLedger(t, true), nil, discardLogger())

	_, err := h.Handle(ctx, AssignLevelCommand{CommunityID: guild, TargetID: alice, Level: -1})
	assert.ErrorIs(t, err, shared.ErrNegativeLevel)

	_, err = h.Handle(ctx, AssignLevelCommand{CommunityID: guild, TargetID: alice, TargetIsAutomated: true, Level: 3})
	assert.ErrorIs(t, err, shared.ErrAutomatedTarget)

	unprovisioned := NewAssignLevelHandler(newLedger(t, false), nil, discardLogger())
	_, err = unprovisioned.Handle(ctx, AssignLevelCommand{CommunityID: guild, TargetID: alice, Level: 3})
	assert.True(t, shared.IsNotProvisioned(err))
}

func categoryFixture() fakeChannels {
	return fakeChannels{
		"100": {ID: "100", Name: "General", Kind: platform.ChannelCategory},
		"101": {ID: "101", ParentID: "100", Name: "chat", Kind: platform.ChannelText},
		"102": {ID: "102", ParentID: "100", Name: "memes", Kind: platform.ChannelText},
		"200": {ID: "200", Name: "standalone", Kind: platform.ChannelText},
	}
}

func readPolicy(t *testing.T, store ledger.Store) *policy.Policy {
	t.Helper()
	settings, err := store.Settings(context.Background(), guild)
	require.NoError(t, err)
	p, err := policy.FromSettings(settings)
	require.NoError(t, err)
	return p
}

func TestToggleIgnore_CategoryExpandsAndPurgesMultipliers(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	h := NewChannelPolicyHandler(store, categoryFixture(), newLocker(), discardLogger())

	_, err := h.SetMultiplier(ctx, ChannelTarget{CommunityID: guild, ChannelID: "101"}, 2)
	require.NoError(t, err)

	res, err := h.ToggleIgnore(ctx, ChannelTarget{CommunityID: guild, ChannelID: "100"})
	require.NoError(t, err)
	assert.Len(t, res.Added, 3)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 2, res.Children)

	p := readPolicy(t, store)
	assert.ElementsMatch(t, []shared.ChannelID{"100", "101", "102"}, p.Ignored())
	assert.Empty(t, p.Multipliers())

	res, err = h.ToggleIgnore(ctx, ChannelTarget{CommunityID: guild, ChannelID: "100"})
	require.NoError(t, err)
	assert.Len(t, res.Removed, 3)
	assert.Empty(t, readPolicy(t, store).Ignored())
}

func TestSetMultiplier_RemovesFromIgnoreList(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	h := NewChannelPolicyHandler(store, categoryFixture(), newLocker(), discardLogger())

	_, err := h.ToggleIgnore(ctx, ChannelTarget{CommunityID: guild, ChannelID: "200"})
	require.NoError(t, err)

	res, err := h.SetMultiplier(ctx, ChannelTarget{CommunityID: guild, ChannelID: "200"}, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	p := readPolicy(t, store)
	assert.Empty(t, p.Ignored())
	m, ok := p.Multiplier("200")
	assert.True(t, ok)
	assert.Equal(t, 1.5, m)
}

func TestSetMultiplier_Validation(t *testing.T) {
	h := NewChannelPolicyHandler(newLedger(t, true), categoryFixture(), newLocker(), discardLogger())

	for _, v := range []float64{0, 0.09, 10.01, -1} {
		_, err := h.SetMultiplier(context.Background(), ChannelTarget{CommunityID: guild, ChannelID: "200"}, v)
		assert.ErrorIs(t, err, shared.ErrMultiplierRange, "value %v", v)
	}
}

func TestChannelPolicy_UnknownChannel(t *testing.T) {
	h := NewChannelPolicyHandler(newLedger(t, true), categoryFixture(), newLocker(), discardLogger())

	_, err := h.ToggleIgnore(context.Background(), ChannelTarget{CommunityID: guild, ChannelID: "999"})
	assert.True(t, shared.IsEntityGone(err))
}

func TestDeleteData_ConfirmTearsDown(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	pub := &recordingPublisher{}
	h := NewDeleteDataHandler(store, pub, discardLogger(), time.Minute)

	req, err := h.Request(ctx, guild, admin)
	require.NoError(t, err)

	_, err = h.Confirm(ctx, req.Token, alice)
	assert.ErrorIs(t, err, shared.ErrConfirmationOwner)

	_, err = h.Confirm(ctx, req.Token, admin)
	require.NoError(t, err)

	_, err = store.Settings(ctx, guild)
	assert.True(t, shared.IsNotProvisioned(err))
	assert.Len(t, pub.ofType(shared.EventCommunityDeleted), 1)

	_, err = h.Confirm(ctx, req.Token, admin)
	assert.ErrorIs(t, err, shared.ErrConfirmationGone)
}

func TestDeleteData_CancelKeepsData(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	h := NewDeleteDataHandler(store, nil, discardLogger(), time.Minute)

	req, err := h.Request(ctx, guild, admin)
	require.NoError(t, err)

	_, err = h.Cancel(ctx, req.Token, admin)
	require.NoError(t, err)

	_, err = h.Confirm(ctx, req.Token, admin)
	assert.ErrorIs(t, err, shared.ErrConfirmationGone)

	_, err = store.Settings(ctx, guild)
	assert.NoError(t, err)
}

func TestDeleteData_ExpiredRequestCountsAsCancelled(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t, true)
	h := NewDeleteDataHandler(store, nil, discardLogger(), time.Minute)

	clock := t0
	h.now = func() time.Time { return clock }

	req, err := h.Request(ctx, guild, admin)
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	_, err = h.Confirm(ctx, req.Token, admin)
	assert.ErrorIs(t, err, shared.ErrConfirmationGone)

	_, err = store.Settings(ctx, guild)
	assert.NoError(t, err)
}

func TestDeleteData_ExpiryCallback(t *testing.T) {
	h := NewDeleteDataHandler(newLedger(t, true), nil, discardLogger(), 20*time.Millisecond)

	expired := make(chan DeletionRequest, 1)
	h.OnExpired(func(req DeletionRequest) { expired <- req })

	req, err := h.Request(context.Background(), guild, admin)
	require.NoError(t, err)

	select {
	case got := <-expired:
		assert.Equal(t, req.Token, got.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback not called")
	}
}
