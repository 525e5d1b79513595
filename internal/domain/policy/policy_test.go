package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

func TestParseIgnored(t *testing.T) {
	assert.Nil(t, ParseIgnored(""))
	assert.Equal(t,
		[]shared.ChannelID{"1", "2", "3"},
		ParseIgnored("1, 2,,3,2,"),
	)
}

func TestParseMultipliers(t *testing.T) {
	t.Run("empty is empty map", func(t *testing.T) {
		m, err := ParseMultipliers("")
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("decodes object", func(t *testing.T) {
		m, err := ParseMultipliers(`{"10":1.5,"20":0.1}`)
		require.NoError(t, err)
		assert.Equal(t, 1.5, m["10"])
		assert.Equal(t, 0.1, m["20"])
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseMultipliers(`{"10":`)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrMalformedPolicy)
	})
}

func TestResolve(t *testing.T) {
	p, err := FromSettings(ledger.Settings{
		ledger.KeyIgnoredChannels:    "100,900",
		ledger.KeyChannelMultipliers: `{"200":2,"300":0.5}`,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		channel shared.ChannelID
		parent  shared.ChannelID
		want    Disposition
	}{
		{"ignored channel", "100", "", Disposition{Ignored: true}},
		{"ignored parent category", "555", "900", Disposition{Ignored: true}},
		{"explicit multiplier", "200", "", Disposition{Multiplier: 2}},
		{"explicit multiplier under category", "300", "800", Disposition{Multiplier: 0.5}},
		{"default", "400", "", Disposition{Multiplier: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Resolve(tt.channel, tt.parent))
		})
	}
}

func TestResolve_IgnoreWinsOverMultiplier(t *testing.T) {
	// Conflicting state written by an older version must still resolve safely.
	p, err := FromSettings(ledger.Settings{
		ledger.KeyIgnoredChannels:    "100",
		ledger.KeyChannelMultipliers: `{"100":3}`,
	})
	require.NoError(t, err)

	assert.True(t, p.Resolve("100", "").Ignored)
}

func TestToggleIgnore_CategoryPurgesMultipliers(t *testing.T) {
	p, err := FromSettings(ledger.Settings{
		ledger.KeyChannelMultipliers: `{"11":2,"12":3,"99":4}`,
	})
	require.NoError(t, err)

	result := p.ToggleIgnore([]shared.ChannelID{"10", "11", "12"})

	assert.Equal(t, []shared.ChannelID{"10", "11", "12"}, result.Added)
	assert.Empty(t, result.Removed)
	assert.Equal(t, []shared.ChannelID{"10", "11", "12"}, p.Ignored())

	_, has11 := p.Multiplier("11")
	_, has12 := p.Multiplier("12")
	assert.False(t, has11)
	assert.False(t, has12)

	m, ok := p.Multiplier("99")
	assert.True(t, ok)
	assert.Equal(t, 4.0, m)

	encoded := p.Settings()
	assert.Equal(t, "10,11,12", encoded[ledger.KeyIgnoredChannels])
	assert.Equal(t, `{"99":4}`, encoded[ledger.KeyChannelMultipliers])
}

func TestToggleIgnore_Twice(t *testing.T) {
	p := New()

	p.ToggleIgnore([]shared.ChannelID{"1"})
	result := p.ToggleIgnore([]shared.ChannelID{"1"})

	assert.Equal(t, []shared.ChannelID{"1"}, result.Removed)
	assert.Empty(t, p.Ignored())
}

func TestSetMultiplier(t *testing.T) {
	t.Run("removes from ignore list", func(t *testing.T) {
		p, err := FromSettings(ledger.Settings{ledger.KeyIgnoredChannels: "1,2,3"})
		require.NoError(t, err)

		n, err := p.SetMultiplier([]shared.ChannelID{"2", "4"}, 1.5)
		require.NoError(t, err)

		assert.Equal(t, 2, n)
		assert.Equal(t, []shared.ChannelID{"1", "3"}, p.Ignored())
		assert.Equal(t, Disposition{Multiplier: 1.5}, p.Resolve("2", ""))
		assert.Equal(t, `{"2":1.5,"4":1.5}`, p.Settings()[ledger.KeyChannelMultipliers])
	})

	t.Run("rejects out of range", func(t *testing.T) {
		p := New()
		for _, v := range []float64{0, 0.09, 10.01, -1} {
			_, err := p.SetMultiplier([]shared.ChannelID{"1"}, v)
			assert.ErrorIs(t, err, shared.ErrMultiplierRange, "value %v", v)
			assert.True(t, shared.IsValidation(err))
		}
	})

	t.Run("accepts bounds", func(t *testing.T) {
		p := New()
		_, err := p.SetMultiplier([]shared.ChannelID{"1"}, MinMultiplier)
		assert.NoError(t, err)
		_, err = p.SetMultiplier([]shared.ChannelID{"1"}, MaxMultiplier)
		assert.NoError(t, err)
	})
}
