package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"xpbattle-service/internal/domain"
)

// PoolLoader loads the question pool from Postgres, options as JSONB.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context) (domain.QuestionPool, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, prompt, options, correct_index, difficulty FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	defer rows.Close()

	out := make(domain.QuestionPool)
	for rows.Next() {
		var (
			q          domain.Question
			rawOptions []byte
			difficulty string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &rawOptions, &q.CorrectIndex, &difficulty); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		q.Difficulty = domain.Difficulty(difficulty)
		out[q.Difficulty] = append(out[q.Difficulty], q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return out, nil
}
