/*
Package gamification tracks user progress earned from mission and habit
outcomes.

PURPOSE:
  - levels.go: the quadratic XP curve and level lookups
  - ledger.go: the append-only energy log and stats mutations
  - balance.go: the rolling 7-day energy balance read model

KEY CONCEPTS:
  - Points are lifetime XP. They only move when the StatsLedger applies or
    reverses an outcome, and they never go below zero.
  - The energy log is append-only: reversing an entry flips its IsActive
    flag rather than deleting the row, so the audit trail is complete.
*/
package gamification

// XPForLevel returns the total points needed to reach level l.
//
// The curve is quadratic: 50*(l-1)^2 + 50*(l-1). Level 1 is free, level 2
// costs 100, level 3 costs 300, level 10 costs 4500.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return 50*n*n + 50*n
}

// LevelForPoints returns the highest level whose threshold the points
// total meets. Negative totals are treated as zero.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	level := 1
	for XPForLevel(level+1) <= points {
		level++
	}
	return level
}

// NextLevelXP returns the total points needed for the level after the one
// the points total currently sits at.
func NextLevelXP(points int) int {
	return XPForLevel(LevelForPoints(points) + 1)
}

// LevelStartXP returns the threshold of the current level, useful for
// rendering progress within a level.
func LevelStartXP(points int) int {
	return XPForLevel(LevelForPoints(points))
}
