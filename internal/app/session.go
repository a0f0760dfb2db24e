package app

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"xpbattle-service/internal/domain"
)

// Session is the in-memory runtime of one XP Battle run. All mutation goes
// through the state machine methods below; the countdown timer and the
// anti-cheat signals are the only concurrent inputs besides the player.
type Session struct {
	id           string
	playerID     string
	now          func() time.Time
	rnd          *rand.Rand
	questionTime time.Duration
	strikeLimit  int
	onTerminal   func(domain.SessionView)

	mu            sync.Mutex
	status        domain.SessionStatus
	questions     []domain.Question // one per ladder level, fixed at start
	level         int               // 0-based index into questions
	earned        int               // last confirmed reward
	lifelineCost  int
	used          map[domain.LifelineKind]struct{}
	effects       []domain.LifelineEffect
	doubleDip     bool
	missAbsorbed  bool
	strikes       int
	settledReward int
	startedAt     time.Time
	completedAt   time.Time

	// One timer per question. Re-armed, never reused: timerSeq invalidates
	// ticks from a timer that belongs to an earlier question.
	timer    *time.Timer
	timerSeq int

	subscribers map[chan domain.SessionView]struct{}
}

func newSession(id, playerID string, questions []domain.Question, questionTime time.Duration, strikeLimit int, now func() time.Time, rnd *rand.Rand, onTerminal func(domain.SessionView)) *Session {
	s := &Session{
		id:           id,
		playerID:     playerID,
		now:          now,
		rnd:          rnd,
		questionTime: questionTime,
		strikeLimit:  strikeLimit,
		onTerminal:   onTerminal,
		status:       domain.StatusActive,
		questions:    questions,
		used:         make(map[domain.LifelineKind]struct{}),
		subscribers:  make(map[chan domain.SessionView]struct{}),
	}
	s.startedAt = now()

	s.mu.Lock()
	s.armTimerLocked()
	s.mu.Unlock()
	return s
}

// View returns the current snapshot.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) submitAnswer(optionIndex int) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.AnswerResult{}, domain.ErrInvalidTransition
	}
	q := s.questions[s.level]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return domain.AnswerResult{}, domain.ErrInvalidTransition
	}
	return s.resolveLocked(optionIndex == q.CorrectIndex)
}

// resolveLocked scores the current question. Shared by player submission,
// Stored Answer auto-resolution, and (via terminateLocked) timeout.
func (s *Session) resolveLocked(correct bool) (domain.AnswerResult, error) {
	if correct {
		s.confirmCorrectLocked()
		return domain.AnswerResult{Correct: true, Session: s.snapshotLocked()}, nil
	}

	if s.doubleDip && !s.missAbsorbed {
		// First miss under Double Dip: same question stays live and the
		// countdown keeps running.
		s.missAbsorbed = true
		view := s.broadcastLocked()
		return domain.AnswerResult{Correct: false, SecondChance: true, Session: view}, nil
	}

	s.terminateLocked(domain.StatusLost)
	return domain.AnswerResult{Correct: false, Session: s.snapshotLocked()}, nil
}

func (s *Session) confirmCorrectLocked() {
	s.earned = RewardAt(s.level + 1)
	if s.level == LadderLevels-1 {
		s.terminateLocked(domain.StatusWon)
		return
	}
	s.level++
	s.effects = nil
	s.doubleDip = false
	s.missAbsorbed = false
	s.armTimerLocked()
	s.broadcastLocked()
}

func (s *Session) useLifeline(kind domain.LifelineKind) (domain.LifelineOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.LifelineOutcome{}, domain.ErrInvalidTransition
	}
	if !kind.Valid() {
		return domain.LifelineOutcome{}, domain.ErrLifelineUnavailable
	}
	if _, dup := s.used[kind]; dup {
		return domain.LifelineOutcome{}, domain.ErrLifelineUnavailable
	}

	// Irrevocable from here: the cost is charged regardless of outcome.
	s.used[kind] = struct{}{}
	s.lifelineCost += LifelineCost(kind)

	q := s.questions[s.level]
	var effect domain.LifelineEffect
	switch kind {
	case domain.LifelineFiftyFifty:
		effect = fiftyFiftyEffect(q, s.rnd)
	case domain.LifelineAudiencePoll:
		effect = audiencePollEffect(q, s.rnd)
	case domain.LifelineExpertAdvice:
		effect = expertAdviceEffect(q)
	case domain.LifelineDoubleDip:
		effect = doubleDipEffect()
		s.doubleDip = true
	case domain.LifelineStoredAnswer:
		effect = storedAnswerEffect(q)
		s.effects = append(s.effects, effect)
		res, err := s.resolveLocked(true)
		if err != nil {
			return domain.LifelineOutcome{}, err
		}
		return domain.LifelineOutcome{Effect: effect, Session: res.Session}, nil
	}

	s.effects = append(s.effects, effect)
	view := s.broadcastLocked()
	return domain.LifelineOutcome{Effect: effect, Session: view}, nil
}

func (s *Session) reportViolation(_ domain.ViolationKind) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.SessionView{}, domain.ErrInvalidTransition
	}
	s.strikes++
	if s.strikes >= s.strikeLimit {
		s.terminateLocked(domain.StatusLost)
	} else {
		s.broadcastLocked()
	}
	return s.snapshotLocked(), nil
}

func (s *Session) quit() (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.SessionView{}, domain.ErrInvalidTransition
	}
	s.terminateLocked(domain.StatusQuitLocked)
	return s.snapshotLocked(), nil
}

// discard stops a session that lost the creation race before it was ever
// visible to the player. No settlement, no broadcast.
func (s *Session) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	s.status = domain.StatusLost
}

// terminateLocked performs the single exit from Active. It cancels the
// countdown before anything else so a late tick can never race the new state.
func (s *Session) terminateLocked(status domain.SessionStatus) {
	s.cancelTimerLocked()
	s.status = status
	s.completedAt = s.now()
	s.effects = nil
	if status == domain.StatusWon || status == domain.StatusLost {
		settled := s.earned - s.lifelineCost
		if settled < 0 {
			settled = 0
		}
		s.settledReward = settled
	}
	view := s.broadcastLocked()
	if (status == domain.StatusWon || status == domain.StatusLost) && s.onTerminal != nil {
		s.onTerminal(view)
	}
}

func (s *Session) armTimerLocked() {
	s.cancelTimerLocked()
	s.timerSeq++
	seq := s.timerSeq
	s.timer = time.AfterFunc(s.questionTime, func() { s.expire(seq) })
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire handles a countdown reaching zero. A tick whose seq no longer
// matches belongs to an already-resolved question and is dropped.
func (s *Session) expire(seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.timerSeq || s.status != domain.StatusActive {
		return
	}
	s.terminateLocked(domain.StatusLost)
}

func (s *Session) subscribe() (<-chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)

	// Register and send the initial snapshot under the lock so a concurrent
	// broadcast cannot slip a newer snapshot in ahead of it.
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.SessionView {
	view := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Drop the stale snapshot rather than block the state machine.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}

func (s *Session) snapshotLocked() domain.SessionView {
	used := lo.Keys(s.used)
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })

	view := domain.SessionView{
		ID:            s.id,
		PlayerID:      s.playerID,
		Status:        s.status,
		Level:         s.level + 1,
		EarnedReward:  s.earned,
		LifelineCost:  s.lifelineCost,
		UsedLifelines: used,
		Strikes:       s.strikes,
		SettledReward: s.settledReward,
		StartedAt:     s.startedAt,
		CompletedAt:   s.completedAt,
	}
	if s.status == domain.StatusActive {
		q := s.questions[s.level]
		view.Question = &domain.QuestionView{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			Difficulty: q.Difficulty,
		}
		view.Effects = append([]domain.LifelineEffect(nil), s.effects...)
	}
	return view
}
