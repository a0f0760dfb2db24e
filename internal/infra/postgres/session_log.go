package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"xpbattle-service/internal/domain"
)

// SessionLog persists session lifecycle rows; it implements
// app.SessionPersistence and assigns session ids.
type SessionLog struct {
	pool *pgxpool.Pool
}

func NewSessionLog(pool *pgxpool.Pool) *SessionLog {
	return &SessionLog{pool: pool}
}

func (l *SessionLog) CreateSession(ctx context.Context, playerID string, _ []domain.Question) (string, error) {
	id := uuid.NewString()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO sessions (id, player_id, status, started_at) VALUES ($1, $2, $3, now())`,
		id, playerID, string(domain.StatusActive))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (l *SessionLog) UpdateSession(ctx context.Context, view domain.SessionView) error {
	used, err := json.Marshal(view.UsedLifelines)
	if err != nil {
		return fmt.Errorf("marshal lifelines: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`UPDATE sessions
		 SET status=$2, current_level=$3, earned_reward=$4, lifeline_cost=$5,
		     used_lifelines=$6, strikes=$7, settled_reward=$8,
		     completed_at=CASE WHEN $9 THEN now() ELSE completed_at END
		 WHERE id=$1`,
		view.ID, string(view.Status), view.Level, view.EarnedReward, view.LifelineCost,
		used, view.Strikes, view.SettledReward, view.Status.Terminal())
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (l *SessionLog) FinalizeQuit(ctx context.Context, sessionID string, settledReward int) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE sessions SET status=$2, settled_reward=$3, completed_at=now() WHERE id=$1`,
		sessionID, string(domain.StatusLost), settledReward)
	if err != nil {
		return fmt.Errorf("finalize quit session: %w", err)
	}
	return nil
}
