// Package leveling maps accumulated XP to levels.
package leveling

import (
	"math"
	"strings"
)

// ProgressBarCells is the width of the rendered progress bar.
const ProgressBarCells = 10

// XPThreshold returns the total XP required to reach level:
// floor(100 * level^1.5). Levels below 1 require nothing.
func XPThreshold(level int) int64 {
	if level <= 0 {
		return 0
	}
	return int64(math.Floor(100 * math.Pow(float64(level), 1.5)))
}

// NextLevel reports whether xp is enough to leave level. Only a single step
// is ever taken: a member several thresholds behind advances one level per
// award.
func NextLevel(xp int64, level int) (int, bool) {
	if level < 0 {
		level = 0
	}
	if xp >= XPThreshold(level+1) {
		return level + 1, true
	}
	return level, false
}

// Progress is a member's position between two level thresholds.
type Progress struct {
	Level int
	// Current is XP earned since the current level's threshold.
	Current int64
	// Needed is the XP span between the current and the next threshold.
	Needed int64
}

// ProgressFor computes display progress for a stored (xp, level) pair.
func ProgressFor(xp int64, level int) Progress {
	if level < 0 {
		level = 0
	}
	floor := XPThreshold(level)
	return Progress{
		Level:   level,
		Current: xp - floor,
		Needed:  XPThreshold(level+1) - floor,
	}
}

// Ratio returns Current/Needed clamped to [0, 1].
func (p Progress) Ratio() float64 {
	if p.Needed <= 0 {
		return 0
	}
	r := float64(p.Current) / float64(p.Needed)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// Bar renders the progress as filled and empty cells.
func (p Progress) Bar() string {
	filled := int(math.Round(p.Ratio() * ProgressBarCells))
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", ProgressBarCells-filled)
}
