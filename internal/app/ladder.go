package app

import (
	"fmt"

	"xpbattle-service/internal/domain"
)

// LadderLevels is the fixed number of rungs a run climbs.
const LadderLevels = 15

// prizeLadder is defined once; rewards are strictly increasing.
var prizeLadder = [LadderLevels]domain.PrizeLadderEntry{
	{Level: 1, Reward: 50, Difficulty: domain.DifficultyEasy},
	{Level: 2, Reward: 100, Difficulty: domain.DifficultyEasy},
	{Level: 3, Reward: 200, Difficulty: domain.DifficultyEasy},
	{Level: 4, Reward: 300, Difficulty: domain.DifficultyEasy},
	{Level: 5, Reward: 450, Difficulty: domain.DifficultyMedium},
	{Level: 6, Reward: 600, Difficulty: domain.DifficultyMedium},
	{Level: 7, Reward: 800, Difficulty: domain.DifficultyMedium},
	{Level: 8, Reward: 1000, Difficulty: domain.DifficultyMedium},
	{Level: 9, Reward: 1250, Difficulty: domain.DifficultyMedium},
	{Level: 10, Reward: 1600, Difficulty: domain.DifficultyHard},
	{Level: 11, Reward: 2000, Difficulty: domain.DifficultyHard},
	{Level: 12, Reward: 2500, Difficulty: domain.DifficultyHard},
	{Level: 13, Reward: 3200, Difficulty: domain.DifficultyHard},
	{Level: 14, Reward: 4200, Difficulty: domain.DifficultyHard},
	{Level: 15, Reward: 5600, Difficulty: domain.DifficultyHard},
}

// RewardAt returns the XP reward for a 1-based ladder level.
// Levels outside 1..15 are a caller contract violation.
func RewardAt(level int) int {
	return ladderEntry(level).Reward
}

// DifficultyAt returns the question difficulty for a 1-based ladder level.
func DifficultyAt(level int) domain.Difficulty {
	return ladderEntry(level).Difficulty
}

// PrizeLadder returns a copy of the full ladder for display.
func PrizeLadder() []domain.PrizeLadderEntry {
	out := make([]domain.PrizeLadderEntry, LadderLevels)
	copy(out, prizeLadder[:])
	return out
}

func ladderEntry(level int) domain.PrizeLadderEntry {
	if level < 1 || level > LadderLevels {
		panic(fmt.Sprintf("ladder level out of range: %d", level))
	}
	return prizeLadder[level-1]
}
