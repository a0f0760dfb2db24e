package app

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"xpbattle-service/internal/domain"
)

// PoolProvider fetches the question pool (from cache/backing store).
type PoolProvider interface {
	FetchPool(ctx context.Context) (domain.QuestionPool, error)
}

// SessionPersistence records session lifecycle for audit and assigns ids.
type SessionPersistence interface {
	CreateSession(ctx context.Context, playerID string, questions []domain.Question) (string, error)
	UpdateSession(ctx context.Context, view domain.SessionView) error
	// FinalizeQuit closes out an abandoned session once its quit lock expires.
	FinalizeQuit(ctx context.Context, sessionID string, settledReward int) error
}

// LockStore owns quit-cooldown records. Expiry is measured against the
// store's clock, never the caller's, so local time manipulation cannot
// shorten the cooldown.
type LockStore interface {
	// GetLockRecord returns the record and the remaining cooldown, or nil
	// when no lock exists.
	GetLockRecord(ctx context.Context, playerID string) (*domain.LockRecord, time.Duration, error)
	// WriteLockRecord stamps lockedAt from the trusted clock and returns the
	// stored record plus the full cooldown.
	WriteLockRecord(ctx context.Context, playerID, sessionID string, rewardAtQuit int) (domain.LockRecord, time.Duration, error)
	ClearStaleLock(ctx context.Context, playerID string) error
}

// RewardLedger credits settled XP. Credits are idempotent per settlement
// token; the engine uses the session id as the token.
type RewardLedger interface {
	CreditReward(ctx context.Context, playerID, settlementToken string, amount int) (int, error)
}

// SessionRegistry tracks the at-most-one active session per player.
type SessionRegistry interface {
	PutIfAbsent(playerID string, session *Session) bool
	Get(playerID string) (*Session, bool)
	Delete(playerID string)
}

// GameService drives the XP Battle use cases: session creation behind the
// quit-cooldown guard, answer scoring, lifelines, anti-cheat strikes, and
// one-time settlement.
type GameService struct {
	registry SessionRegistry
	pool     PoolProvider
	store    SessionPersistence
	locks    LockStore
	ledger   RewardLedger
	log      *zap.Logger

	questionTime time.Duration
	strikeLimit  int
	now          func() time.Time
	newRand      func() *rand.Rand
}

const defaultStrikeLimit = 3

func NewGameService(registry SessionRegistry, pool PoolProvider, store SessionPersistence, locks LockStore, ledger RewardLedger, log *zap.Logger, questionTime time.Duration) *GameService {
	return &GameService{
		registry:     registry,
		pool:         pool,
		store:        store,
		locks:        locks,
		ledger:       ledger,
		log:          log,
		questionTime: questionTime,
		strikeLimit:  defaultStrikeLimit,
		now:          time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// WithClock is test-only for deterministic timestamps.
func (g *GameService) WithClock(now func() time.Time) *GameService {
	g.now = now
	return g
}

// WithRandSeed is test-only for deterministic draws and lifeline rolls.
func (g *GameService) WithRandSeed(seed int64) *GameService {
	g.newRand = func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
	return g
}

// Ladder returns the fixed prize ladder for display.
func (g *GameService) Ladder() []domain.PrizeLadderEntry {
	return PrizeLadder()
}

// StartSession creates a new run for the player. It re-checks the quit lock
// every time; the lock store's clock is authoritative.
func (g *GameService) StartSession(ctx context.Context, playerID string) (domain.SessionView, error) {
	if err := g.checkLock(ctx, playerID); err != nil {
		return domain.SessionView{}, err
	}
	if _, exists := g.registry.Get(playerID); exists {
		return domain.SessionView{}, domain.ErrSessionActive
	}

	pool, err := g.pool.FetchPool(ctx)
	if err != nil {
		return domain.SessionView{}, fmt.Errorf("%w: %v", domain.ErrPoolUnavailable, err)
	}

	rnd := g.newRand()
	questions, err := drawLadder(pool, rnd)
	if err != nil {
		return domain.SessionView{}, err
	}

	id, err := g.store.CreateSession(ctx, playerID, questions)
	if err != nil {
		return domain.SessionView{}, fmt.Errorf("create session: %w", err)
	}

	session := newSession(id, playerID, questions, g.questionTime, g.strikeLimit, g.now, rnd, g.settle)
	if !g.registry.PutIfAbsent(playerID, session) {
		session.discard()
		// The audit row was created above; close it out so it does not sit
		// in the log as active forever.
		if err := g.store.FinalizeQuit(ctx, id, 0); err != nil {
			g.log.Warn("finalize discarded session failed", zap.String("sessionId", id), zap.Error(err))
		}
		return domain.SessionView{}, domain.ErrSessionActive
	}
	return session.View(), nil
}

// SubmitAnswer scores the player's pick against the current question.
func (g *GameService) SubmitAnswer(ctx context.Context, playerID string, optionIndex int) (domain.AnswerResult, error) {
	session, ok := g.registry.Get(playerID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	result, err := session.submitAnswer(optionIndex)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	g.persistProgress(ctx, result.Session)
	return result, nil
}

// UseLifeline invokes a one-shot assist against the current question.
func (g *GameService) UseLifeline(ctx context.Context, playerID string, kind domain.LifelineKind) (domain.LifelineOutcome, error) {
	session, ok := g.registry.Get(playerID)
	if !ok {
		return domain.LifelineOutcome{}, domain.ErrSessionNotFound
	}
	outcome, err := session.useLifeline(kind)
	if err != nil {
		return domain.LifelineOutcome{}, err
	}
	g.persistProgress(ctx, outcome.Session)
	return outcome, nil
}

// ReportViolation records one anti-cheat strike; the third forces a loss.
func (g *GameService) ReportViolation(ctx context.Context, playerID string, kind domain.ViolationKind) (domain.SessionView, error) {
	session, ok := g.registry.Get(playerID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	view, err := session.reportViolation(kind)
	if err != nil {
		return domain.SessionView{}, err
	}
	g.persistProgress(ctx, view)
	return view, nil
}

// QuitSession abandons the run, writes the cooldown lock, and discards the
// session. The run is not resumable.
func (g *GameService) QuitSession(ctx context.Context, playerID string) (domain.LockStatus, error) {
	session, ok := g.registry.Get(playerID)
	if !ok {
		return domain.LockStatus{}, domain.ErrSessionNotFound
	}
	view, err := session.quit()
	if err != nil {
		return domain.LockStatus{}, err
	}

	_, cooldown, err := g.locks.WriteLockRecord(ctx, playerID, view.ID, view.EarnedReward)
	if err != nil {
		// The run is already terminal; without the record no cooldown can be
		// enforced, so settle right away instead of leaving the player with a
		// dead session that blocks every retry.
		g.log.Error("lock record write failed, settling quit immediately",
			zap.String("sessionId", view.ID),
			zap.String("playerId", playerID),
			zap.Error(err))
		if _, cerr := g.ledger.CreditReward(ctx, playerID, view.ID, view.EarnedReward); cerr != nil {
			g.log.Error("quit settlement failed", zap.String("sessionId", view.ID), zap.Error(cerr))
		}
		if serr := g.store.FinalizeQuit(ctx, view.ID, view.EarnedReward); serr != nil {
			g.log.Warn("finalize quit session failed", zap.String("sessionId", view.ID), zap.Error(serr))
		}
		g.registry.Delete(playerID)
		return domain.LockStatus{}, fmt.Errorf("write lock record: %w", err)
	}
	if err := g.store.UpdateSession(ctx, view); err != nil {
		g.log.Warn("session update failed on quit", zap.String("sessionId", view.ID), zap.Error(err))
	}
	g.registry.Delete(playerID)

	return domain.LockStatus{Locked: true, RetryAfter: ceilSeconds(cooldown)}, nil
}

// GetLockStatus reports the quit cooldown. Discovering an expired lock
// triggers the one-time cleanup of the abandoned session.
func (g *GameService) GetLockStatus(ctx context.Context, playerID string) (domain.LockStatus, error) {
	rec, remaining, err := g.locks.GetLockRecord(ctx, playerID)
	if err != nil {
		return domain.LockStatus{}, fmt.Errorf("lock check: %w", err)
	}
	if rec == nil {
		return domain.LockStatus{}, nil
	}
	if remaining <= 0 {
		g.finalizeStaleLock(ctx, rec)
		return domain.LockStatus{}, nil
	}
	return domain.LockStatus{Locked: true, RetryAfter: ceilSeconds(remaining)}, nil
}

// Subscribe streams session snapshots so timer- and strike-driven
// transitions reach the presentation layer without polling. The caller must
// invoke the returned cancel function to avoid leaks.
func (g *GameService) Subscribe(playerID string) (<-chan domain.SessionView, func(), error) {
	session, ok := g.registry.Get(playerID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func (g *GameService) checkLock(ctx context.Context, playerID string) error {
	rec, remaining, err := g.locks.GetLockRecord(ctx, playerID)
	if err != nil {
		return fmt.Errorf("lock check: %w", err)
	}
	if rec == nil {
		return nil
	}
	if remaining > 0 {
		return domain.ErrSessionLocked
	}
	g.finalizeStaleLock(ctx, rec)
	return nil
}

// finalizeStaleLock settles the reward held at quit (idempotent on the
// session id) and clears the lock. On credit failure the lock stays so the
// cleanup is retried on the next check.
func (g *GameService) finalizeStaleLock(ctx context.Context, rec *domain.LockRecord) {
	if _, err := g.ledger.CreditReward(ctx, rec.PlayerID, rec.SessionID, rec.RewardAtQuit); err != nil {
		g.log.Error("stale lock settlement failed",
			zap.String("playerId", rec.PlayerID),
			zap.String("sessionId", rec.SessionID),
			zap.Error(err))
		return
	}
	if err := g.store.FinalizeQuit(ctx, rec.SessionID, rec.RewardAtQuit); err != nil {
		g.log.Warn("finalize quit session failed", zap.String("sessionId", rec.SessionID), zap.Error(err))
	}
	if err := g.locks.ClearStaleLock(ctx, rec.PlayerID); err != nil {
		g.log.Warn("clear stale lock failed", zap.String("playerId", rec.PlayerID), zap.Error(err))
	}
}

// settle runs exactly once per terminal (Won/Lost) transition. The ledger
// call is idempotent per session id, so retries never double-credit; a
// failure never rolls the session back to Active.
func (g *GameService) settle(view domain.SessionView) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := g.ledger.CreditReward(ctx, view.PlayerID, view.ID, view.SettledReward); err != nil {
		g.log.Error("reward settlement failed",
			zap.String("sessionId", view.ID),
			zap.String("playerId", view.PlayerID),
			zap.Int("amount", view.SettledReward),
			zap.Error(err))
	}
	if err := g.store.UpdateSession(ctx, view); err != nil {
		g.log.Warn("session update failed on settlement", zap.String("sessionId", view.ID), zap.Error(err))
	}
	g.registry.Delete(view.PlayerID)

	g.log.Info("session settled",
		zap.String("sessionId", view.ID),
		zap.String("playerId", view.PlayerID),
		zap.String("status", string(view.Status)),
		zap.Int("reward", view.SettledReward))
}

// persistProgress is best-effort: in-memory state is authoritative while
// the run is live, and terminal snapshots are persisted by settle.
func (g *GameService) persistProgress(ctx context.Context, view domain.SessionView) {
	if view.Status.Terminal() {
		return
	}
	if err := g.store.UpdateSession(ctx, view); err != nil {
		g.log.Warn("session update failed", zap.String("sessionId", view.ID), zap.Error(err))
	}
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
