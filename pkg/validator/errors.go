package validator

import "errors"

// The validator's error taxonomy (§7). Malformed-event and protocol-violation
// failures are wrapped in ErrMalformedEvent / ErrProtocolViolation and
// silently dropped by the caller with no state transition. Commitment,
// token, and logic failures are fatal: the caller transitions the match to
// INVALIDATED and stops processing it. Infrastructure failures are never
// fatal: the caller leaves the match pending and retries.

var (
	// ErrMalformedEvent covers bad JSON, a missing required tag, or a bad
	// signature. Silent drop; no state transition.
	ErrMalformedEvent = errors.New("validator: malformed event")

	// ErrProtocolViolation covers an out-of-turn author, wrong kind for the
	// current phase, or similar shape violations. Silent drop.
	ErrProtocolViolation = errors.New("validator: protocol violation")

	// ErrCommitmentFailure covers a reveal that does not hash to its prior
	// commitment. Fatal: INVALIDATED.
	ErrCommitmentFailure = errors.New("validator: commitment verification failed")

	// ErrTokenFailure covers a proof that is not unspent, uses the wrong
	// currency, or does not sum to the declared wager. Fatal: INVALIDATED.
	ErrTokenFailure = errors.New("validator: token verification failed")

	// ErrLogicFailure covers an illegal move, an unknown ability, or a
	// mismatch between a player's asserted result and the validator's own
	// re-execution. Fatal: INVALIDATED.
	ErrLogicFailure = errors.New("validator: logic verification failed")

	// ErrInfrastructure covers a mint RPC or relay failure. Never fatal: the
	// match is left pending for retry.
	ErrInfrastructure = errors.New("validator: infrastructure failure")
)

// Fatal reports whether err should transition a match to INVALIDATED.
func Fatal(err error) bool {
	switch {
	case errors.Is(err, ErrCommitmentFailure):
		return true
	case errors.Is(err, ErrTokenFailure):
		return true
	case errors.Is(err, ErrLogicFailure):
		return true
	default:
		return false
	}
}
