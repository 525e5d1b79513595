// Package query contains read operations following CQRS pattern.
// Queries never modify ledger state; the leaderboard query may trigger a
// top-role sync as a side effect of being viewed.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/domain/leaderboard"
	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// MemberDirectory looks up platform members.
type MemberDirectory interface {
	// FetchMember returns shared.ErrEntityGone when the member left.
	FetchMember(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*platform.Member, error)
}

// TopRoleSyncer runs a top-role synchronization.
type TopRoleSyncer interface {
	Handle(ctx context.Context, community shared.CommunityID) (*command.SyncTopRoleResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// maxParallelLookups bounds concurrent member fetches for one leaderboard.
const maxParallelLookups = 5

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	CommunityID shared.CommunityID

	// Limit defaults to leaderboard.DefaultSize and is capped at 25.
	Limit int

	// SyncRole re-derives the top role before reading.
	SyncRole bool
}

// LeaderboardRow is one ranked member with a display name.
type LeaderboardRow struct {
	leaderboard.Entry
	DisplayName string

	// Present is false when the lookup failed and DisplayName is the
	// fallback.
	Present bool

	gone bool
}

// GetLeaderboardResult contains the ranked rows.
type GetLeaderboardResult struct {
	CommunityID shared.CommunityID
	Rows        []LeaderboardRow
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	store   ledger.Store
	members MemberDirectory
	sync    TopRoleSyncer
	logger  *slog.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler. members and
// sync may be nil; rows then carry fallback names and no sync is run.
func NewGetLeaderboardHandler(store ledger.Store, members MemberDirectory, sync TopRoleSyncer, logger *slog.Logger) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{
		store:   store,
		members: members,
		sync:    sync,
		logger:  logger.With("handler", "get_leaderboard"),
	}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if !q.CommunityID.IsValid() {
		return nil, fmt.Errorf("get_leaderboard: %w", shared.ErrInvalidCommunity)
	}
	if q.Limit <= 0 {
		q.Limit = leaderboard.DefaultSize
	}
	if q.Limit > 25 {
		q.Limit = 25
	}

	if q.SyncRole && h.sync != nil {
		if _, err := h.sync.Handle(ctx, q.CommunityID); err != nil && !shared.IsNotProvisioned(err) {
			h.logger.Warn("top role sync failed", "guild_id", q.CommunityID, "error", err)
		}
	}

	top, err := h.store.TopN(ctx, q.CommunityID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	entries := leaderboard.FromMembers(top)
	rows := make([]LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = LeaderboardRow{Entry: e, DisplayName: FallbackName(e.MemberID)}
	}

	if h.members != nil {
		h.resolveNames(ctx, q.CommunityID, rows)
		rows = withoutDeparted(rows)
	}

	return &GetLeaderboardResult{CommunityID: q.CommunityID, Rows: rows}, nil
}

// resolveNames fills display names in parallel. Members who left are marked
// gone. Any other failed lookup keeps the fallback name and never fails the
// query.
func (h *GetLeaderboardHandler) resolveNames(ctx context.Context, community shared.CommunityID, rows []LeaderboardRow) {
	var g errgroup.Group
	g.SetLimit(maxParallelLookups)

	for i := range rows {
		row := &rows[i]
		g.Go(func() error {
			m, err := h.members.FetchMember(ctx, community, row.MemberID)
			switch {
			case err == nil:
				row.DisplayName = m.DisplayName
				row.Present = true
			case shared.IsEntityGone(err):
				row.gone = true
			default:
				h.logger.Debug("member lookup failed", "guild_id", community, "user_id", row.MemberID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// withoutDeparted drops members who left and renumbers the rest from 1.
func withoutDeparted(rows []LeaderboardRow) []LeaderboardRow {
	kept := rows[:0]
	for _, row := range rows {
		if row.gone {
			continue
		}
		row.Rank = leaderboard.Rank(len(kept) + 1)
		kept = append(kept, row)
	}
	return kept
}

// FallbackName is shown for members who can no longer be resolved.
func FallbackName(id shared.MemberID) string {
	s := string(id)
	if len(s) > 6 {
		s = s[:6]
	}
	return "User (" + s + "...)"
}
