package command

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ShenPrime/Levelington/internal/domain/leaderboard"
	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC TOP ROLE COMMAND
// Moves the exclusive top-contributor role to the clear leader, or takes it
// away when the top of the leaderboard is tied.
// ══════════════════════════════════════════════════════════════════════════════

// SyncTopRoleResult reports what a synchronization changed.
type SyncTopRoleResult struct {
	Transition leaderboard.Transition
	Role       platform.RoleID

	// Holder is the pointer persisted after the run.
	Holder  shared.MemberID
	Granted bool
	Revoked bool

	// Incomplete is set when a member lookup failed and the pointer was
	// left unchanged.
	Incomplete bool
}

// SyncTopRoleHandler handles top-role synchronization.
type SyncTopRoleHandler struct {
	store     ledger.Store
	roles     RoleManager
	locker    Locker
	publisher shared.EventPublisher
	logger    *slog.Logger
	size      int
}

// NewSyncTopRoleHandler creates a new SyncTopRoleHandler.
func NewSyncTopRoleHandler(
	store ledger.Store,
	roles RoleManager,
	locker Locker,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *SyncTopRoleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncTopRoleHandler{
		store:     store,
		roles:     roles,
		locker:    locker,
		publisher: publisher,
		logger:    logger.With("handler", "sync_top_role"),
		size:      leaderboard.DefaultSize,
	}
}

// Handle synchronizes the top role of one community. Runs for the same
// community never overlap.
func (h *SyncTopRoleHandler) Handle(ctx context.Context, community shared.CommunityID) (*SyncTopRoleResult, error) {
	release, err := h.locker.Acquire(ctx, community)
	if err != nil {
		return nil, fmt.Errorf("sync_top_role: acquire lock: %w", err)
	}
	defer release()

	role, err := h.roles.EnsureRole(ctx, community, leaderboard.TopRoleName, leaderboard.TopRoleColor)
	if err != nil {
		return nil, fmt.Errorf("sync_top_role: ensure role: %w", err)
	}

	top, err := h.store.TopN(ctx, community, h.size)
	if err != nil {
		return nil, fmt.Errorf("sync_top_role: read ranking: %w", err)
	}
	settings, err := h.store.Settings(ctx, community)
	if err != nil {
		return nil, fmt.Errorf("sync_top_role: read settings: %w", err)
	}

	transition := leaderboard.Decide(top, settings.TopUser())
	result := &SyncTopRoleResult{
		Transition: transition,
		Role:       role,
		Holder:     transition.Previous,
	}
	if transition.Action == leaderboard.ActionNone {
		return result, nil
	}

	previous, leader, unresolved := h.fetchMembers(ctx, community, transition)

	if transition.RevokesPrevious() && previous != nil && previous.HasRole(role) {
		if err := h.roles.RevokeRole(ctx, community, previous.ID, role); err != nil {
			h.logPlatformError("revoke top role", community, previous.ID, err)
		} else {
			result.Revoked = true
		}
	}

	result.Holder = ""
	if transition.Action == leaderboard.ActionAssign && leader != nil {
		switch {
		case leader.HasRole(role):
			result.Holder = leader.ID
		default:
			if err := h.roles.GrantRole(ctx, community, leader.ID, role); err != nil {
				h.logPlatformError("grant top role", community, leader.ID, err)
			} else {
				result.Holder = leader.ID
				result.Granted = true
			}
		}
	}

	if unresolved {
		// Keep the pointer so the next run finishes the move.
		result.Holder = transition.Previous
		result.Incomplete = true
		return result, nil
	}

	if result.Holder != transition.Previous {
		if err := h.store.SetSetting(ctx, community, ledger.KeyTopUserID, string(result.Holder)); err != nil {
			return result, fmt.Errorf("sync_top_role: persist holder: %w", err)
		}

		h.logger.Info("top role changed hands",
			"guild_id", community,
			"previous", transition.Previous,
			"holder", result.Holder,
			"action", transition.Action.String(),
		)
		if h.publisher != nil {
			if err := h.publisher.Publish(shared.NewTopRoleChangedEvent(community, transition.Previous, result.Holder)); err != nil {
				h.logger.Warn("failed to publish event", "error", err)
			}
		}
	}

	return result, nil
}

// fetchMembers looks up the previous holder and the leader in parallel. A
// member who left yields nil. A failed lookup is logged and also yields nil,
// with unresolved set so the caller leaves the pointer alone.
func (h *SyncTopRoleHandler) fetchMembers(
	ctx context.Context,
	community shared.CommunityID,
	t leaderboard.Transition,
) (previous, leader *platform.Member, unresolved bool) {
	var (
		g                    errgroup.Group
		previousErr, leadErr error
	)

	if t.RevokesPrevious() {
		g.Go(func() error {
			previous, previousErr = h.lookup(ctx, community, t.Previous)
			return nil
		})
	}
	if t.Action == leaderboard.ActionAssign {
		g.Go(func() error {
			leader, leadErr = h.lookup(ctx, community, t.Leader)
			return nil
		})
	}
	_ = g.Wait()

	if previousErr != nil {
		h.logPlatformError("fetch previous holder", community, t.Previous, previousErr)
		previous = nil
	}
	if leadErr != nil {
		h.logPlatformError("fetch leader", community, t.Leader, leadErr)
		leader = nil
	}
	return previous, leader, previousErr != nil || leadErr != nil
}

func (h *SyncTopRoleHandler) lookup(ctx context.Context, community shared.CommunityID, id shared.MemberID) (*platform.Member, error) {
	m, err := h.roles.FetchMember(ctx, community, id)
	if shared.IsEntityGone(err) {
		h.logger.Debug("member no longer in community", "guild_id", community, "user_id", id)
		return nil, nil
	}
	return m, err
}

func (h *SyncTopRoleHandler) logPlatformError(action string, community shared.CommunityID, member shared.MemberID, err error) {
	level := slog.LevelWarn
	if shared.IsEntityGone(err) {
		level = slog.LevelDebug
	}
	h.logger.Log(context.Background(), level, "failed to "+action,
		"guild_id", community,
		"user_id", member,
		"error", err,
	)
}
