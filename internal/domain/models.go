package domain

import "time"

// Difficulty buckets pool questions for the ladder draw.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is read-only content owned by the question pool provider.
// The engine never mutates it.
type Question struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"` // exactly 4, ordered
	CorrectIndex int        `json:"correctIndex"`
	Difficulty   Difficulty `json:"difficulty"`
}

// QuestionPool partitions available questions by difficulty.
type QuestionPool map[Difficulty][]Question

// PrizeLadderEntry is one rung of the fixed 15-step ladder.
type PrizeLadderEntry struct {
	Level      int        `json:"level"` // 1..15
	Reward     int        `json:"reward"`
	Difficulty Difficulty `json:"difficulty"`
}

// SessionStatus is the lifecycle state of a run.
type SessionStatus string

const (
	StatusActive     SessionStatus = "active"
	StatusWon        SessionStatus = "won"
	StatusLost       SessionStatus = "lost"
	StatusQuitLocked SessionStatus = "quitLocked"
)

// Terminal reports whether the status admits no further play.
func (s SessionStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusQuitLocked
}

// LifelineKind enumerates the five one-shot assists.
type LifelineKind string

const (
	LifelineFiftyFifty   LifelineKind = "fiftyFifty"
	LifelineAudiencePoll LifelineKind = "audiencePoll"
	LifelineStoredAnswer LifelineKind = "storedAnswer"
	LifelineExpertAdvice LifelineKind = "expertAdvice"
	LifelineDoubleDip    LifelineKind = "doubleDip"
)

// Valid reports whether k names a known lifeline.
func (k LifelineKind) Valid() bool {
	switch k {
	case LifelineFiftyFifty, LifelineAudiencePoll, LifelineStoredAnswer,
		LifelineExpertAdvice, LifelineDoubleDip:
		return true
	}
	return false
}

// ViolationKind classifies anti-cheat signals observed by the client shell.
type ViolationKind string

const (
	ViolationFocusLost      ViolationKind = "focusLost"
	ViolationFullscreenExit ViolationKind = "fullscreenExit"
)

// LifelineEffect is the transient per-question outcome of a lifeline.
// It is discarded when the session advances or ends.
type LifelineEffect struct {
	Kind           LifelineKind `json:"kind"`
	RemovedOptions []int        `json:"removedOptions,omitempty"`
	PollPercents   []int        `json:"pollPercents,omitempty"` // sums to 100
	RevealedAnswer *int         `json:"revealedAnswer,omitempty"`
	HintedAnswer   *int         `json:"hintedAnswer,omitempty"`
	ExtraAttempt   bool         `json:"extraAttempt,omitempty"`
}

// QuestionView is the client-safe projection of the current question.
type QuestionView struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"prompt"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
}

// SessionView is a snapshot of a session for rendering and persistence.
type SessionView struct {
	ID            string           `json:"id"`
	PlayerID      string           `json:"playerId"`
	Status        SessionStatus    `json:"status"`
	Level         int              `json:"level"` // 1-based ladder level in play
	Question      *QuestionView    `json:"question,omitempty"`
	EarnedReward  int              `json:"earnedReward"`
	LifelineCost  int              `json:"lifelineCost"`
	UsedLifelines []LifelineKind   `json:"usedLifelines"`
	Effects       []LifelineEffect `json:"effects,omitempty"`
	Strikes       int              `json:"strikes"`
	SettledReward int              `json:"settledReward"`
	StartedAt     time.Time        `json:"startedAt"`
	CompletedAt   time.Time        `json:"completedAt,omitempty"`
}

// AnswerResult summarizes the outcome of one submission.
type AnswerResult struct {
	Correct      bool        `json:"correct"`
	SecondChance bool        `json:"secondChance"` // Double Dip absorbed a miss
	Session      SessionView `json:"session"`
}

// LifelineOutcome pairs the produced effect with the updated session.
type LifelineOutcome struct {
	Effect  LifelineEffect `json:"effect"`
	Session SessionView    `json:"session"`
}

// LockRecord marks a voluntary mid-session quit and carries the data
// needed to settle the abandoned run once the cooldown elapses.
type LockRecord struct {
	PlayerID     string    `json:"playerId"`
	SessionID    string    `json:"sessionId"`
	LockedAt     time.Time `json:"lockedAt"`
	RewardAtQuit int       `json:"rewardAtQuit"`
}

// LockStatus is the player-facing view of the quit cooldown.
type LockStatus struct {
	Locked     bool `json:"locked"`
	RetryAfter int  `json:"retryAfterSeconds"`
}
