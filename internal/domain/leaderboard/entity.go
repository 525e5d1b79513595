// Package leaderboard holds the ranking read model and the decision rule for
// the exclusive top-contributor role.
package leaderboard

import (
	"fmt"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// TopRoleName is the name of the exclusive top-contributor role.
	TopRoleName = "Biggest Yapper"

	// TopRoleColor is the role colour (#FFD700).
	TopRoleColor = 0xFFD700

	// DefaultSize is how many ranked members are read for display and sync.
	DefaultSize = 10
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// Medal returns the podium marker for the top three ranks.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", r)
	}
}

// Entry is one row of a ranked leaderboard.
type Entry struct {
	Rank     Rank
	MemberID shared.MemberID
	XP       int64
	Level    int
}

// FromMembers numbers members, already sorted by XP descending, from rank 1.
func FromMembers(members []ledger.Member) []Entry {
	entries := make([]Entry, len(members))
	for i, m := range members {
		entries[i] = Entry{
			Rank:     Rank(i + 1),
			MemberID: m.MemberID,
			XP:       m.XP,
			Level:    m.Level,
		}
	}
	return entries
}

// ══════════════════════════════════════════════════════════════════════════════
// TOP ROLE DECISION
// ══════════════════════════════════════════════════════════════════════════════

// ClearLeader returns the unambiguous leader of a ranking ordered by XP
// descending. There is a clear leader when fewer than two members are ranked
// or the first strictly out-scores the second.
func ClearLeader(top []ledger.Member) (shared.MemberID, bool) {
	switch {
	case len(top) == 0:
		return "", false
	case len(top) == 1:
		return top[0].MemberID, true
	case top[0].XP > top[1].XP:
		return top[0].MemberID, true
	default:
		return "", false
	}
}

// Action is what the role synchronizer must do.
type Action int

const (
	// ActionNone leaves role membership untouched.
	ActionNone Action = iota
	// ActionAssign moves the role to Leader, revoking it from Previous when
	// Previous is set and differs.
	ActionAssign
	// ActionClear revokes the role from Previous and clears the pointer.
	ActionClear
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionAssign:
		return "assign"
	case ActionClear:
		return "clear"
	default:
		return "none"
	}
}

// Transition is the outcome of Decide.
type Transition struct {
	Action   Action
	Leader   shared.MemberID
	Previous shared.MemberID
}

// RevokesPrevious reports whether the previous holder must lose the role.
func (t Transition) RevokesPrevious() bool {
	if t.Previous.IsEmpty() {
		return false
	}
	return t.Action == ActionClear || (t.Action == ActionAssign && t.Previous != t.Leader)
}

// Decide maps the current ranking and the persisted holder pointer to a
// role transition.
func Decide(top []ledger.Member, previous shared.MemberID) Transition {
	if len(top) == 0 {
		return Transition{Action: ActionNone, Previous: previous}
	}

	if leader, ok := ClearLeader(top); ok {
		return Transition{Action: ActionAssign, Leader: leader, Previous: previous}
	}

	if previous.IsEmpty() {
		return Transition{Action: ActionNone}
	}
	return Transition{Action: ActionClear, Previous: previous}
}
