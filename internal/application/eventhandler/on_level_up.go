// Package eventhandler contains domain event handlers: the side effects that
// follow a state change without blocking the write that caused it.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Re-syncs the top role, then announces the new level in the community's
// configured channel.
// ═══════════════════════════════════════════════════════════════════════════

// Announcer posts level-up announcements.
type Announcer interface {
	// AnnounceLevelUp returns shared.ErrEntityGone when the channel no longer
	// exists or cannot take messages.
	AnnounceLevelUp(ctx context.Context, community shared.CommunityID, channel shared.ChannelID, member shared.MemberID, level int) error
}

// TopRoleSyncer runs a top-role synchronization.
type TopRoleSyncer interface {
	Handle(ctx context.Context, community shared.CommunityID) (*command.SyncTopRoleResult, error)
}

// OnLevelUpHandler handles shared.LevelUpEvent.
type OnLevelUpHandler struct {
	store     ledger.Store
	sync      TopRoleSyncer
	announcer Announcer
	logger    *slog.Logger
	timeout   time.Duration
}

// NewOnLevelUpHandler creates a new OnLevelUpHandler.
func NewOnLevelUpHandler(
	store ledger.Store,
	sync TopRoleSyncer,
	announcer Announcer,
	logger *slog.Logger,
	timeout time.Duration,
) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OnLevelUpHandler{
		store:     store,
		sync:      sync,
		announcer: announcer,
		logger:    logger.With("handler", "on_level_up"),
		timeout:   timeout,
	}
}

// Handle implements shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	ev, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Role sync failure must not suppress the announcement.
	if _, err := h.sync.Handle(ctx, ev.CommunityID); err != nil {
		h.logger.Error("top role sync after level up failed",
			"guild_id", ev.CommunityID,
			"user_id", ev.MemberID,
			"error", err,
		)
	}

	return h.announce(ctx, ev)
}

func (h *OnLevelUpHandler) announce(ctx context.Context, ev shared.LevelUpEvent) error {
	settings, err := h.store.Settings(ctx, ev.CommunityID)
	if err != nil {
		return fmt.Errorf("on_level_up: read settings: %w", err)
	}

	channel := settings.LevelUpChannel()
	if channel.IsEmpty() {
		h.logger.Warn("level up channel not configured", "guild_id", ev.CommunityID)
		return nil
	}

	err = h.announcer.AnnounceLevelUp(ctx, ev.CommunityID, channel, ev.MemberID, ev.NewLevel)
	switch {
	case err == nil:
		return nil
	case shared.IsEntityGone(err):
		h.logger.Warn("configured level up channel is unavailable",
			"guild_id", ev.CommunityID,
			"channel_id", channel,
		)
		return nil
	default:
		return fmt.Errorf("on_level_up: announce: %w", err)
	}
}
