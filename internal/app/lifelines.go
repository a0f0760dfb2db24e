package app

import (
	"math/rand"

	"xpbattle-service/internal/domain"
)

// Lifeline accuracy tuning.
const (
	fiftyFiftyKeepRate = 0.70 // chance the correct option survives the cut
	audiencePollBias   = 60   // percentage points steered to the correct option

	storedAnswerCost = 500
	expertAdviceCost = 100
)

// LifelineCost returns the XP price charged on invocation. Charged
// immediately and never refunded.
func LifelineCost(kind domain.LifelineKind) int {
	switch kind {
	case domain.LifelineStoredAnswer:
		return storedAnswerCost
	case domain.LifelineExpertAdvice:
		return expertAdviceCost
	default:
		return 0
	}
}

// fiftyFiftyEffect removes two of the four options. Most invocations keep
// the correct option on the board; a 30% adversarial slice removes it.
func fiftyFiftyEffect(q domain.Question, rnd *rand.Rand) domain.LifelineEffect {
	wrong := make([]int, 0, len(q.Options)-1)
	for i := range q.Options {
		if i != q.CorrectIndex {
			wrong = append(wrong, i)
		}
	}
	rnd.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })

	var removed []int
	if rnd.Float64() < fiftyFiftyKeepRate {
		removed = []int{wrong[0], wrong[1]}
	} else {
		removed = []int{q.CorrectIndex, wrong[0]}
	}
	return domain.LifelineEffect{Kind: domain.LifelineFiftyFifty, RemovedOptions: removed}
}

// audiencePollEffect builds a percentage distribution over all options,
// summing to 100, with a fixed bias toward the correct option. Cosmetic
// only; it never alters correctness.
func audiencePollEffect(q domain.Question, rnd *rand.Rand) domain.LifelineEffect {
	percents := make([]int, len(q.Options))
	rest := 100 - audiencePollBias
	for i := 0; i < len(percents)-1; i++ {
		share := rnd.Intn(rest + 1)
		percents[i] = share
		rest -= share
	}
	percents[len(percents)-1] = rest
	percents[q.CorrectIndex] += audiencePollBias
	return domain.LifelineEffect{Kind: domain.LifelineAudiencePoll, PollPercents: percents}
}

// storedAnswerEffect reveals the correct option; the session auto-submits it.
func storedAnswerEffect(q domain.Question) domain.LifelineEffect {
	answer := q.CorrectIndex
	return domain.LifelineEffect{Kind: domain.LifelineStoredAnswer, RevealedAnswer: &answer}
}

// expertAdviceEffect hints the correct option without submitting.
func expertAdviceEffect(q domain.Question) domain.LifelineEffect {
	hint := q.CorrectIndex
	return domain.LifelineEffect{Kind: domain.LifelineExpertAdvice, HintedAnswer: &hint}
}

// doubleDipEffect arms a second submission attempt on the current question.
func doubleDipEffect() domain.LifelineEffect {
	return domain.LifelineEffect{Kind: domain.LifelineDoubleDip, ExtraAttempt: true}
}
