package validator

import (
	"encoding/hex"
	"fmt"

	"github.com/manastr/validator/pkg/commitment"
	"github.com/manastr/validator/pkg/event"
)

// expectedPreviousEventID returns the previous_event_id a KIND 31003 from
// author s for round must chain from (§4.1.4): the acceptor's KIND 31001 id
// for the challenger's round-1 opener, the opposing author's KIND 31003 id
// for the same round for the acceptor's move, or the previous round's
// acceptor KIND 31003 id for a challenger opener in round > 1.
func (m *MatchRecord) expectedPreviousEventID(s side, round int) (string, error) {
	if round < 1 || round > len(m.Rounds) {
		return "", fmt.Errorf("%w: round %d out of range", ErrProtocolViolation, round)
	}

	if s == sideAcceptor {
		rc := m.Rounds[round-1].Challenger
		if rc == nil {
			return "", fmt.Errorf("%w: acceptor cannot commit round %d before challenger's commitment", ErrProtocolViolation, round)
		}
		return rc.CommitEventID, nil
	}

	// Challenger opener.
	if round == 1 {
		if m.AcceptanceEventID == "" {
			return "", fmt.Errorf("%w: match not yet accepted", ErrProtocolViolation)
		}
		return m.AcceptanceEventID, nil
	}
	if m.roundBoundaryID == "" {
		return "", fmt.Errorf("%w: round %d not yet reachable", ErrProtocolViolation, round)
	}
	return m.roundBoundaryID, nil
}

// VerifyChainedReveal re-verifies a move reveal's commitment using the full
// round history rather than trusting the stored previous_event_id blindly:
// it recomputes the expected previous_event_id from the match's own record
// and rejects any mismatch, then recomputes the commitment hash itself
// (§9 "treat the round-level history as an append-only log").
func (m *MatchRecord) VerifyChainedReveal(s side, round int, committed commitment.Hash, moves []event.CombatMove, nonce []byte, claimedPrevID string) error {
	wantPrevID, err := m.expectedPreviousEventID(s, round)
	if err != nil {
		return err
	}
	if claimedPrevID != wantPrevID {
		return fmt.Errorf("%w: round %d previous_event_id %q, want %q", ErrProtocolViolation, round, claimedPrevID, wantPrevID)
	}

	prevBytes, err := hex.DecodeString(claimedPrevID)
	if err != nil {
		return fmt.Errorf("%w: previous_event_id is not hex: %v", ErrMalformedEvent, err)
	}

	ok, err := commitment.VerifyChained(committed, moves, nonce, prevBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitmentFailure, err)
	}
	if !ok {
		return fmt.Errorf("%w: round %d move reveal does not match commitment", ErrCommitmentFailure, round)
	}
	return nil
}
