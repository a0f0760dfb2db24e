package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// creditScript claims the settlement token and credits the total in one
// atomic step. A token claimed without the credit landing is impossible, so
// a failed call can always be retried; a replay returns the current total.
var creditScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[2]) == 1 then
	return redis.call("INCRBY", KEYS[2], ARGV[1])
end
local total = redis.call("GET", KEYS[2])
if total then
	return tonumber(total)
end
return 0
`)

// Ledger credits settled XP in Redis, idempotently per settlement token.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) CreditReward(ctx context.Context, playerID, settlementToken string, amount int) (int, error) {
	total, err := creditScript.Run(ctx, l.client,
		[]string{l.tokenKey(settlementToken), l.totalKey(playerID)},
		amount, playerID).Int()
	if err != nil {
		return 0, fmt.Errorf("credit reward: %w", err)
	}
	return total, nil
}

func (l *Ledger) tokenKey(token string) string {
	return "xpbattle:settled:" + token
}

func (l *Ledger) totalKey(playerID string) string {
	return "xpbattle:xp:" + playerID
}
