package domain

import "errors"

var (
	// ErrPoolUnavailable indicates the question pool could not be fetched.
	ErrPoolUnavailable = errors.New("question pool unavailable")
	// ErrInsufficientQuestions indicates a difficulty bucket ran out while drawing the ladder.
	ErrInsufficientQuestions = errors.New("insufficient questions for ladder")
	// ErrSessionLocked is returned while a quit cooldown is still running.
	ErrSessionLocked = errors.New("session creation locked by quit cooldown")
	// ErrSessionActive is returned when the player already has a running session.
	ErrSessionActive = errors.New("player already has an active session")
	// ErrSessionNotFound is returned when no session exists for the player.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLifelineUnavailable is returned for a used or inapplicable lifeline.
	ErrLifelineUnavailable = errors.New("lifeline unavailable")
	// ErrInvalidTransition is returned for operations against a terminal or mismatched state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSettlementFailure indicates the ledger credit failed after a terminal transition.
	ErrSettlementFailure = errors.New("reward settlement failed")
)
