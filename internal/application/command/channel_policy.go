package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/policy"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL POLICY COMMANDS
// Toggle-ignore and set-multiplier. A category target is expanded at write
// time into the category plus every channel currently filed under it.
// ══════════════════════════════════════════════════════════════════════════════

// ChannelTarget names the channel or category an admin picked.
type ChannelTarget struct {
	CommunityID shared.CommunityID
	ActorID     shared.MemberID
	ChannelID   shared.ChannelID
}

// PolicyChangeResult describes a policy mutation.
type PolicyChangeResult struct {
	Target platform.Channel

	// Children is how many channels were included through the category.
	Children int

	Added   []shared.ChannelID
	Removed []shared.ChannelID
	Updated int

	Multiplier float64
}

// ChannelPolicyHandler handles ignore toggles and multiplier changes.
type ChannelPolicyHandler struct {
	store    ledger.Store
	channels ChannelDirectory
	locker   Locker
	logger   *slog.Logger
}

// NewChannelPolicyHandler creates a new ChannelPolicyHandler.
func NewChannelPolicyHandler(store ledger.Store, channels ChannelDirectory, locker Locker, logger *slog.Logger) *ChannelPolicyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelPolicyHandler{
		store:    store,
		channels: channels,
		locker:   locker,
		logger:   logger.With("handler", "channel_policy"),
	}
}

// ToggleIgnore flips the ignore state of the target and, for a category, of
// each child. Every toggled ID loses its multiplier.
func (h *ChannelPolicyHandler) ToggleIgnore(ctx context.Context, target ChannelTarget) (*PolicyChangeResult, error) {
	result := &PolicyChangeResult{}

	err := h.mutate(ctx, target, result, func(p *policy.Policy, ids []shared.ChannelID) error {
		toggled := p.ToggleIgnore(ids)
		result.Added = toggled.Added
		result.Removed = toggled.Removed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggle_ignore: %w", err)
	}

	h.logger.Info("ignore list toggled",
		"guild_id", target.CommunityID,
		"actor_id", target.ActorID,
		"channel_id", target.ChannelID,
		"added", len(result.Added),
		"removed", len(result.Removed),
	)
	return result, nil
}

// SetMultiplier assigns value to the target and, for a category, to each
// child, removing all of them from the ignore list.
func (h *ChannelPolicyHandler) SetMultiplier(ctx context.Context, target ChannelTarget, value float64) (*PolicyChangeResult, error) {
	if err := policy.ValidateMultiplier(value); err != nil {
		return nil, fmt.Errorf("set_multiplier: validation failed: %w", err)
	}

	result := &PolicyChangeResult{Multiplier: value}
	err := h.mutate(ctx, target, result, func(p *policy.Policy, ids []shared.ChannelID) error {
		n, err := p.SetMultiplier(ids, value)
		result.Updated = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("set_multiplier: %w", err)
	}

	h.logger.Info("channel multiplier set",
		"guild_id", target.CommunityID,
		"actor_id", target.ActorID,
		"channel_id", target.ChannelID,
		"multiplier", value,
		"updated", result.Updated,
	)
	return result, nil
}

// mutate runs a read-modify-write of both policy lists under the community
// lock and stores them in one transaction.
func (h *ChannelPolicyHandler) mutate(
	ctx context.Context,
	target ChannelTarget,
	result *PolicyChangeResult,
	apply func(p *policy.Policy, ids []shared.ChannelID) error,
) error {
	if !target.CommunityID.IsValid() {
		return shared.ErrInvalidCommunity
	}

	ids, err := h.expand(ctx, target, result)
	if err != nil {
		return err
	}

	release, err := h.locker.Acquire(ctx, target.CommunityID)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer release()

	settings, err := h.store.Settings(ctx, target.CommunityID)
	if err != nil {
		return err
	}
	p, err := policy.FromSettings(settings)
	if err != nil {
		return err
	}

	if err := apply(p, ids); err != nil {
		return err
	}

	return h.store.SetSettings(ctx, target.CommunityID, p.Settings())
}

func (h *ChannelPolicyHandler) expand(ctx context.Context, target ChannelTarget, result *PolicyChangeResult) ([]shared.ChannelID, error) {
	ch, err := h.channels.Channel(ctx, target.CommunityID, target.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", target.ChannelID, err)
	}
	result.Target = *ch

	if !ch.IsCategory() {
		return []shared.ChannelID{ch.ID}, nil
	}

	children, err := h.channels.Children(ctx, target.CommunityID, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", ch.ID, err)
	}
	result.Children = len(children)

	ids := make([]shared.ChannelID, 0, len(children)+1)
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return append(ids, ch.ID), nil
}
