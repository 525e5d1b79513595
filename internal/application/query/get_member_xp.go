package query

import (
	"context"
	"fmt"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/leveling"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MEMBER XP QUERY
// Backs /rank and /xp.
// ══════════════════════════════════════════════════════════════════════════════

// MemberXPResult is one member's standing.
type MemberXPResult struct {
	MemberID shared.MemberID
	Level    int
	XP       int64

	// NextThreshold is the total XP needed for the next level.
	NextThreshold int64

	Progress leveling.Progress
}

// GetMemberXPHandler reads a member's XP and level.
type GetMemberXPHandler struct {
	store ledger.Store
}

// NewGetMemberXPHandler creates a new GetMemberXPHandler.
func NewGetMemberXPHandler(store ledger.Store) *GetMemberXPHandler {
	return &GetMemberXPHandler{store: store}
}

// Handle returns shared.ErrMemberNotFound for members without XP and
// shared.ErrNotProvisioned when the community was never set up.
func (h *GetMemberXPHandler) Handle(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*MemberXPResult, error) {
	m, err := h.store.Member(ctx, community, member)
	if err != nil {
		return nil, fmt.Errorf("get_member_xp: %w", err)
	}

	return &MemberXPResult{
		MemberID:      m.MemberID,
		Level:         m.Level,
		XP:            m.XP,
		NextThreshold: leveling.XPThreshold(m.Level + 1),
		Progress:      leveling.ProgressFor(m.XP, m.Level),
	}, nil
}
