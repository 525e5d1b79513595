package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/leveling"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// AssignLevelCommand overrides a member's level.
type AssignLevelCommand struct {
	CommunityID       shared.CommunityID
	ActorID           shared.MemberID
	TargetID          shared.MemberID
	TargetIsAutomated bool
	Level             int
}

// Validate validates the command.
func (c AssignLevelCommand) Validate() error {
	switch {
	case !c.CommunityID.IsValid():
		return shared.ErrInvalidCommunity
	case c.TargetID.IsEmpty():
		return shared.ErrInvalidMember
	case c.TargetIsAutomated:
		return shared.ErrAutomatedTarget
	case c.Level < 0:
		return shared.ErrNegativeLevel
	}
	return nil
}

// AssignLevelResult is the member's state after the override.
type AssignLevelResult struct {
	Level int
	XP    int64
}

// AssignLevelHandler handles AssignLevelCommand.
type AssignLevelHandler struct {
	store     ledger.Store
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewAssignLevelHandler creates a new AssignLevelHandler.
func NewAssignLevelHandler(store ledger.Store, publisher shared.EventPublisher, logger *slog.Logger) *AssignLevelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignLevelHandler{store: store, publisher: publisher, logger: logger.With("handler", "assign_level")}
}

// Handle sets the level and resets XP to that level's threshold.
func (h *AssignLevelHandler) Handle(ctx context.Context, cmd AssignLevelCommand) (*AssignLevelResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("assign_level: validation failed: %w", err)
	}

	xp := leveling.XPThreshold(cmd.Level)
	if err := h.store.SetLevel(ctx, cmd.CommunityID, cmd.TargetID, cmd.Level, xp); err != nil {
		return nil, fmt.Errorf("assign_level: %w", err)
	}

	h.logger.Info("level assigned",
		"guild_id", cmd.CommunityID,
		"actor_id", cmd.ActorID,
		"user_id", cmd.TargetID,
		"level", cmd.Level,
		"xp", xp,
	)
	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewLevelAssignedEvent(cmd.CommunityID, cmd.TargetID, cmd.Level, xp))
	}

	return &AssignLevelResult{Level: cmd.Level, XP: xp}, nil
}
