package app

import (
	"math/rand"

	"xpbattle-service/internal/domain"
)

// maxDrawAttempts bounds random retries before falling back to a scan.
const maxDrawAttempts = 24

// drawLadder picks one distinct question per ladder level from the pool,
// matching each level's difficulty. Uniqueness holds within the drawn set;
// determinism across sessions is not a goal.
func drawLadder(pool domain.QuestionPool, rnd *rand.Rand) ([]domain.Question, error) {
	used := map[domain.Difficulty]map[int]struct{}{
		domain.DifficultyEasy:   {},
		domain.DifficultyMedium: {},
		domain.DifficultyHard:   {},
	}

	drawn := make([]domain.Question, 0, LadderLevels)
	for level := 1; level <= LadderLevels; level++ {
		difficulty := DifficultyAt(level)
		bucket := pool[difficulty]
		taken := used[difficulty]
		if len(taken) >= len(bucket) {
			return nil, domain.ErrInsufficientQuestions
		}

		idx := -1
		for attempt := 0; attempt < maxDrawAttempts; attempt++ {
			candidate := rnd.Intn(len(bucket))
			if _, collision := taken[candidate]; !collision {
				idx = candidate
				break
			}
		}
		if idx < 0 {
			// Bucket is not exhausted, so a free slot exists; scan from a
			// random offset to keep the pick unbiased across runs.
			offset := rnd.Intn(len(bucket))
			for i := 0; i < len(bucket); i++ {
				candidate := (offset + i) % len(bucket)
				if _, collision := taken[candidate]; !collision {
					idx = candidate
					break
				}
			}
		}

		taken[idx] = struct{}{}
		drawn = append(drawn, bucket[idx])
	}
	return drawn, nil
}
