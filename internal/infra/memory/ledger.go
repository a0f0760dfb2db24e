package memory

import (
	"context"
	"sync"
)

// Ledger is an in-memory reward ledger. Credits are idempotent per
// settlement token and serialized per process, so read-modify-write of a
// player's total cannot lose updates.
type Ledger struct {
	mu      sync.Mutex
	totals  map[string]int
	settled map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		totals:  make(map[string]int),
		settled: make(map[string]struct{}),
	}
}

func (l *Ledger) CreditReward(_ context.Context, playerID, settlementToken string, amount int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, done := l.settled[settlementToken]; done {
		return l.totals[playerID], nil
	}
	l.settled[settlementToken] = struct{}{}
	l.totals[playerID] += amount
	return l.totals[playerID], nil
}

// Total reports the player's accumulated XP.
func (l *Ledger) Total(playerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[playerID]
}
