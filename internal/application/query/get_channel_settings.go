package query

import (
	"context"
	"fmt"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/policy"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHANNEL SETTINGS QUERY
// Lists ignored channels and non-default multipliers, grouping channels under
// their category when the category itself is listed.
// ══════════════════════════════════════════════════════════════════════════════

// ChannelLister lists every channel of a community.
type ChannelLister interface {
	Channels(ctx context.Context, community shared.CommunityID) ([]platform.Channel, error)
}

// PolicyLine is one rendered entry of a policy list.
type PolicyLine struct {
	ChannelID  shared.ChannelID
	Name       string
	IsCategory bool

	// Nested is true for a channel listed under its listed category.
	Nested bool

	Multiplier float64
}

// ChannelSettingsResult is the grouped policy view.
type ChannelSettingsResult struct {
	Ignored     []PolicyLine
	Multipliers []PolicyLine
}

// GetChannelSettingsHandler builds the channel settings view.
type GetChannelSettingsHandler struct {
	store    ledger.Store
	channels ChannelLister
}

// NewGetChannelSettingsHandler creates a new GetChannelSettingsHandler.
func NewGetChannelSettingsHandler(store ledger.Store, channels ChannelLister) *GetChannelSettingsHandler {
	return &GetChannelSettingsHandler{store: store, channels: channels}
}

// Handle executes the query.
func (h *GetChannelSettingsHandler) Handle(ctx context.Context, community shared.CommunityID) (*ChannelSettingsResult, error) {
	settings, err := h.store.Settings(ctx, community)
	if err != nil {
		return nil, fmt.Errorf("get_channel_settings: %w", err)
	}

	// A malformed multiplier document renders as "no multipliers".
	pol, err := policy.FromSettings(settings)
	if err != nil {
		pol, _ = policy.FromSettings(ledger.Settings{ledger.KeyIgnoredChannels: settings.Get(ledger.KeyIgnoredChannels)})
	}

	known := make(map[shared.ChannelID]platform.Channel)
	if h.channels != nil {
		list, err := h.channels.Channels(ctx, community)
		if err != nil {
			return nil, fmt.Errorf("get_channel_settings: list channels: %w", err)
		}
		for _, ch := range list {
			known[ch.ID] = ch
		}
	}

	ignored := make([]listed, 0)
	for _, id := range pol.Ignored() {
		ignored = append(ignored, listed{id: id})
	}

	var multiplied []listed
	for _, m := range pol.Multipliers() {
		if m.Multiplier == policy.DefaultMultiplier {
			continue
		}
		multiplied = append(multiplied, listed{id: m.ChannelID, multiplier: m.Multiplier})
	}

	return &ChannelSettingsResult{
		Ignored:     group(ignored, known),
		Multipliers: group(multiplied, known),
	}, nil
}

type listed struct {
	id         shared.ChannelID
	multiplier float64
}

// group puts listed categories first, each followed by its listed children,
// then every channel whose category is not listed. Unknown IDs are shown as
// standalone channels.
func group(entries []listed, known map[shared.ChannelID]platform.Channel) []PolicyLine {
	var categories, channels []PolicyLine
	parents := make(map[shared.ChannelID]shared.ChannelID)

	for _, e := range entries {
		line := PolicyLine{ChannelID: e.id, Multiplier: e.multiplier}
		ch, ok := known[e.id]
		if !ok {
			line.Name = "Unknown (" + string(e.id) + ")"
			channels = append(channels, line)
			continue
		}
		line.Name = ch.Name
		if ch.IsCategory() {
			line.IsCategory = true
			categories = append(categories, line)
			continue
		}
		parents[e.id] = ch.ParentID
		channels = append(channels, line)
	}

	listedCategory := make(map[shared.ChannelID]bool, len(categories))
	for _, c := range categories {
		listedCategory[c.ChannelID] = true
	}

	lines := make([]PolicyLine, 0, len(entries))
	for _, c := range categories {
		lines = append(lines, c)
		for _, ch := range channels {
			if parent, ok := parents[ch.ChannelID]; ok && parent == c.ChannelID {
				ch.Nested = true
				lines = append(lines, ch)
			}
		}
	}
	for _, ch := range channels {
		if parent, ok := parents[ch.ChannelID]; ok && listedCategory[parent] {
			continue
		}
		lines = append(lines, ch)
	}
	return lines
}
