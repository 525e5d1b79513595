package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// SetupCommand provisions a community and sets its announcement channel.
type SetupCommand struct {
	CommunityID         shared.CommunityID
	ActorID             shared.MemberID
	AnnouncementChannel shared.ChannelID
}

// Validate validates the command.
func (c SetupCommand) Validate() error {
	if !c.CommunityID.IsValid() {
		return shared.ErrInvalidCommunity
	}
	if c.AnnouncementChannel.IsEmpty() {
		return shared.NewDomainError("admin", "Setup", shared.ErrInvalidInput, "announcement channel is required")
	}
	return nil
}

// SetupHandler handles SetupCommand. Re-running setup is safe and only
// changes the announcement channel.
type SetupHandler struct {
	store     ledger.Store
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(store ledger.Store, publisher shared.EventPublisher, logger *slog.Logger) *SetupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SetupHandler{store: store, publisher: publisher, logger: logger.With("handler", "setup")}
}

// Handle executes the setup command.
func (h *SetupHandler) Handle(ctx context.Context, cmd SetupCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("setup: validation failed: %w", err)
	}

	if err := h.store.Provision(ctx, cmd.CommunityID); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := h.store.SetSetting(ctx, cmd.CommunityID, ledger.KeyLevelUpChannel, string(cmd.AnnouncementChannel)); err != nil {
		return fmt.Errorf("setup: set announcement channel: %w", err)
	}

	h.logger.Info("community provisioned",
		"guild_id", cmd.CommunityID,
		"actor_id", cmd.ActorID,
		"channel_id", cmd.AnnouncementChannel,
	)
	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewCommunityEvent(shared.EventCommunityProvisioned, cmd.CommunityID, cmd.ActorID))
	}
	return nil
}
