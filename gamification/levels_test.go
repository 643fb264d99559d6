package gamification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/questlog/habit-engine/gamification"
)

func TestXPForLevel(t *testing.T) {
	assert.Equal(t, 0, gamification.XPForLevel(1))
	assert.Equal(t, 100, gamification.XPForLevel(2))
	assert.Equal(t, 300, gamification.XPForLevel(3))
	assert.Equal(t, 600, gamification.XPForLevel(4))
	assert.Equal(t, 4500, gamification.XPForLevel(10))

	// Degenerate inputs clamp to the free level.
	assert.Equal(t, 0, gamification.XPForLevel(0))
	assert.Equal(t, 0, gamification.XPForLevel(-3))
}

func TestLevelForPoints(t *testing.T) {
	assert.Equal(t, 1, gamification.LevelForPoints(0))
	assert.Equal(t, 1, gamification.LevelForPoints(99))
	assert.Equal(t, 2, gamification.LevelForPoints(100))
	assert.Equal(t, 2, gamification.LevelForPoints(299))
	assert.Equal(t, 3, gamification.LevelForPoints(300))
	assert.Equal(t, 10, gamification.LevelForPoints(4500))
	assert.Equal(t, 1, gamification.LevelForPoints(-50))
}

func TestLevelForPoints_MonotoneAndConsistent(t *testing.T) {
	prev := 0
	for points := 0; points <= 10_000; points += 37 {
		level := gamification.LevelForPoints(points)
		assert.GreaterOrEqual(t, level, prev, "level must never decrease with points")
		prev = level

		// The reported level's own threshold is always met, the next one never.
		assert.LessOrEqual(t, gamification.XPForLevel(level), points)
		assert.Greater(t, gamification.XPForLevel(level+1), points)
	}
}

func TestLevelProgressBounds(t *testing.T) {
	points := 450 // level 3 (300..599)
	assert.Equal(t, 3, gamification.LevelForPoints(points))
	assert.Equal(t, 300, gamification.LevelStartXP(points))
	assert.Equal(t, 600, gamification.NextLevelXP(points))
}
