package validator

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/combat"
	"github.com/manastr/validator/pkg/commitment"
	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/mint"
)

// applyChallenge handles a well-formed KIND 31000, creating a new record in
// CHALLENGED phase. Returns an error (never fatal to any existing record,
// since none exists yet) if the event itself is malformed.
func applyChallenge(ev *event.Event) (*MatchRecord, error) {
	if err := event.Verify(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	var payload event.ChallengePayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.WagerAmount < MinCombinedWager {
		return nil, fmt.Errorf("%w: wager_amount %d below minimum combined wager %d", ErrProtocolViolation, payload.WagerAmount, MinCombinedWager)
	}
	armyCommitment, err := commitment.HashFromHex(payload.ArmyCommitment)
	if err != nil {
		return nil, fmt.Errorf("%w: army_commitment: %v", ErrMalformedEvent, err)
	}
	tokenCommitment, err := commitment.HashFromHex(payload.TokenCommitment)
	if err != nil {
		return nil, fmt.Errorf("%w: token_commitment: %v", ErrMalformedEvent, err)
	}

	rec := NewMatchRecord(ev.ID, ev.PubKey, payload)
	rec.Challenger.ArmyCommitment = armyCommitment
	rec.Challenger.TokenCommitment = tokenCommitment
	return rec, nil
}

// applyAcceptance handles a KIND 31001 against an existing CHALLENGED
// record. Only the first well-formed acceptance from an author other than
// the challenger has any effect (§8 "single acceptor").
func applyAcceptance(rec *MatchRecord, ev *event.Event) error {
	if rec.Phase != Challenged {
		return fmt.Errorf("%w: acceptance received outside CHALLENGED phase (phase=%s)", ErrProtocolViolation, rec.Phase)
	}
	if err := event.Verify(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.MatchID() != rec.MatchID {
		return fmt.Errorf("%w: match tag mismatch", ErrProtocolViolation)
	}
	if ev.PubKey == rec.Challenger.Pubkey {
		return fmt.Errorf("%w: acceptor must differ from challenger", ErrProtocolViolation)
	}

	var payload event.AcceptancePayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.WagerAmount < MinWagerPerPlayer {
		return fmt.Errorf("%w: wager_amount %d below minimum %d", ErrProtocolViolation, payload.WagerAmount, MinWagerPerPlayer)
	}
	if payload.LeagueID != rec.LeagueID {
		return fmt.Errorf("%w: league_id mismatch", ErrProtocolViolation)
	}

	armyCommitment, err := commitment.HashFromHex(payload.ArmyCommitment)
	if err != nil {
		return fmt.Errorf("%w: army_commitment: %v", ErrMalformedEvent, err)
	}
	tokenCommitment, err := commitment.HashFromHex(payload.TokenCommitment)
	if err != nil {
		return fmt.Errorf("%w: token_commitment: %v", ErrMalformedEvent, err)
	}

	rec.Acceptor = playerState{
		Pubkey:          ev.PubKey,
		WagerAmount:     payload.WagerAmount,
		ArmyCommitment:  armyCommitment,
		TokenCommitment: tokenCommitment,
	}
	rec.AcceptanceEventID = ev.ID
	rec.roundBoundaryID = ev.ID
	rec.Phase = Accepted
	return nil
}

// refSet collects context a token-reveal or move handler needs beyond the
// record itself.
type refSet struct {
	Mint   mint.Client
	League army.LeagueTable
}

// applyTokenReveal handles a KIND 31002 for one side. On the second side's
// reveal, the match automatically advances to IN_COMBAT(1).
func applyTokenReveal(ctx context.Context, rec *MatchRecord, ev *event.Event, refs refSet) error {
	if rec.Phase != Accepted && rec.Phase != TokensRevealed {
		return fmt.Errorf("%w: token reveal received outside ACCEPTED phase (phase=%s)", ErrProtocolViolation, rec.Phase)
	}
	if err := event.Verify(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	s, ok := rec.sideOfAuthor(ev.PubKey)
	if !ok {
		return fmt.Errorf("%w: author is not a registered player", ErrProtocolViolation)
	}
	player := rec.playerBySide(s)
	if player.Proofs != nil {
		// Only the first KIND 31002 from this author counts (§8).
		return fmt.Errorf("%w: duplicate token reveal from this author", ErrProtocolViolation)
	}

	var payload event.TokenRevealPayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	nonce, err := hex.DecodeString(payload.Nonce)
	if err != nil {
		return fmt.Errorf("%w: nonce is not hex: %v", ErrMalformedEvent, err)
	}

	ok, err = commitment.Verify(player.TokenCommitment, payload.Proofs, nonce)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitmentFailure, err)
	}
	if !ok {
		return fmt.Errorf("%w: revealed proofs do not match token_commitment", ErrCommitmentFailure)
	}

	proofs := make([]mint.Proof, len(payload.Proofs))
	var sum int64
	var firstC army.CValue
	for i, ref := range payload.Proofs {
		cBytes, err := hex.DecodeString(ref.C)
		if err != nil || len(cBytes) != 32 {
			return fmt.Errorf("%w: proof C is not 32 bytes hex", ErrMalformedEvent)
		}
		var c [32]byte
		copy(c[:], cBytes)
		if i == 0 {
			firstC = army.CValue(c)
		}
		proofs[i] = mint.Proof{
			Amount:   ref.Amount,
			Secret:   ref.Secret,
			C:        c,
			KeysetID: ref.KeysetID,
			Currency: mint.CurrencyMana,
		}
		sum += ref.Amount
	}
	if sum != player.WagerAmount {
		return fmt.Errorf("%w: revealed proofs sum to %d, wager is %d", ErrTokenFailure, sum, player.WagerAmount)
	}

	derived, err := army.DeriveArmy(firstC, rec.LeagueID, refs.League)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogicFailure, err)
	}
	armyOK, err := commitment.Verify(player.ArmyCommitment, derived, nonce)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitmentFailure, err)
	}
	if !armyOK {
		return fmt.Errorf("%w: derived army does not match army_commitment", ErrCommitmentFailure)
	}

	for _, p := range proofs {
		unspent, err := refs.Mint.VerifyUnspent(ctx, p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInfrastructure, err)
		}
		if !unspent {
			return fmt.Errorf("%w: proof with secret %q is already spent or unknown to the mint", ErrTokenFailure, p.Secret)
		}
	}

	player.Proofs = proofs
	player.Army = derived
	player.State = combat.NewArmyState(derived)

	if rec.Challenger.Proofs != nil && rec.Acceptor.Proofs != nil {
		rec.Phase = InCombat
		rec.Round = 1
	} else {
		rec.Phase = TokensRevealed
	}
	return nil
}

// applyMoveCommitment handles a KIND 31003 for the current round.
func applyMoveCommitment(rec *MatchRecord, ev *event.Event) error {
	if rec.Phase != InCombat {
		return fmt.Errorf("%w: move commitment received outside IN_COMBAT phase (phase=%s)", ErrProtocolViolation, rec.Phase)
	}
	if err := event.Verify(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	s, ok := rec.sideOfAuthor(ev.PubKey)
	if !ok {
		return fmt.Errorf("%w: author is not a registered player", ErrProtocolViolation)
	}

	var payload event.MoveCommitmentPayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.Round != rec.Round {
		return fmt.Errorf("%w: move commitment for round %d, expected round %d", ErrProtocolViolation, payload.Round, rec.Round)
	}
	if payload.Round < 1 || payload.Round > combat.Rounds {
		return fmt.Errorf("%w: round %d out of range", ErrProtocolViolation, payload.Round)
	}

	wantPrevID, err := rec.expectedPreviousEventID(s, payload.Round)
	if err != nil {
		return err
	}
	if payload.PreviousEventID != wantPrevID {
		return fmt.Errorf("%w: previous_event_id %q, want %q", ErrProtocolViolation, payload.PreviousEventID, wantPrevID)
	}

	committed, err := commitment.HashFromHex(payload.MoveCommitment)
	if err != nil {
		return fmt.Errorf("%w: move_commitment: %v", ErrMalformedEvent, err)
	}

	rc := &roundCommit{
		CommitEventID:   ev.ID,
		Commitment:      committed,
		PreviousEventID: payload.PreviousEventID,
	}

	slot := &rec.Rounds[payload.Round-1]
	if s == sideChallenger {
		if slot.Challenger != nil {
			return fmt.Errorf("%w: duplicate challenger move commitment for round %d", ErrProtocolViolation, payload.Round)
		}
		slot.Challenger = rc
	} else {
		if slot.Challenger == nil {
			return fmt.Errorf("%w: acceptor cannot commit before challenger in round %d", ErrProtocolViolation, payload.Round)
		}
		if slot.Acceptor != nil {
			return fmt.Errorf("%w: duplicate acceptor move commitment for round %d", ErrProtocolViolation, payload.Round)
		}
		slot.Acceptor = rc
	}
	return nil
}

// applyMoveReveal handles a KIND 31004 for the current round. When both
// sides of the current round have revealed, the round is resolved and the
// match either advances to the next round or to RESULT_SUBMITTED.
func applyMoveReveal(rec *MatchRecord, ev *event.Event) error {
	if rec.Phase != InCombat {
		return fmt.Errorf("%w: move reveal received outside IN_COMBAT phase (phase=%s)", ErrProtocolViolation, rec.Phase)
	}
	if err := event.Verify(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	s, ok := rec.sideOfAuthor(ev.PubKey)
	if !ok {
		return fmt.Errorf("%w: author is not a registered player", ErrProtocolViolation)
	}

	var payload event.MoveRevealPayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.Round != rec.Round {
		return fmt.Errorf("%w: move reveal for round %d, expected round %d", ErrProtocolViolation, payload.Round, rec.Round)
	}

	slot := &rec.Rounds[payload.Round-1]
	rc := slot.Challenger
	if s == sideAcceptor {
		rc = slot.Acceptor
	}
	if rc == nil {
		return fmt.Errorf("%w: no move commitment on record for this author in round %d", ErrProtocolViolation, payload.Round)
	}
	if rc.Revealed {
		return fmt.Errorf("%w: duplicate move reveal for round %d", ErrProtocolViolation, payload.Round)
	}

	nonce, err := hex.DecodeString(payload.Nonce)
	if err != nil {
		return fmt.Errorf("%w: nonce is not hex: %v", ErrMalformedEvent, err)
	}
	if err := rec.VerifyChainedReveal(s, payload.Round, rc.Commitment, payload.Moves, nonce, rc.PreviousEventID); err != nil {
		return err
	}

	attacker := rec.playerBySide(s)
	if len(payload.Moves) != len(attacker.State.AlivePositions()) {
		return fmt.Errorf("%w: %d moves, expected one per surviving unit (%d)", ErrLogicFailure, len(payload.Moves), len(attacker.State.AlivePositions()))
	}

	rc.Revealed = true
	rc.Moves = payload.Moves

	if slot.Challenger == nil || slot.Acceptor == nil || !slot.Challenger.Revealed || !slot.Acceptor.Revealed {
		return nil
	}

	outcome, nextChallenger, nextAcceptor, err := combat.ResolveRound(
		payload.Round,
		rec.Challenger.State,
		rec.Acceptor.State,
		toCombatMoves(slot.Challenger.Moves),
		toCombatMoves(slot.Acceptor.Moves),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogicFailure, err)
	}

	rec.Challenger.State = nextChallenger
	rec.Acceptor.State = nextAcceptor
	slot.Outcome = &outcome

	if payload.Round == combat.Rounds {
		rec.Phase = ResultSubmitted
	} else {
		rec.Round = payload.Round + 1
		rec.roundBoundaryID = slot.Acceptor.CommitEventID
	}
	return nil
}

func toCombatMoves(moves []event.CombatMove) []combat.Move {
	out := make([]combat.Move, len(moves))
	for i, m := range moves {
		out[i] = combat.Move{TargetIndex: m.TargetIndex, UseAbility: m.UseAbility}
	}
	return out
}

// matchOutcome derives the authoritative winner from the accumulated round
// outcomes, matching combat.PlayMatch's aggregation rule.
func (m *MatchRecord) matchOutcome() (winner string, draw bool, err error) {
	winsChallenger, winsAcceptor := 0, 0
	cumChallenger, cumAcceptor := 0, 0
	for i := range m.Rounds {
		o := m.Rounds[i].Outcome
		if o == nil {
			return "", false, fmt.Errorf("%w: round %d has no resolved outcome", ErrLogicFailure, i+1)
		}
		cumChallenger += o.DamageByA
		cumAcceptor += o.DamageByB
		switch {
		case o.Draw:
		case o.Winner == combat.Challenger:
			winsChallenger++
		case o.Winner == combat.Acceptor:
			winsAcceptor++
		}
	}

	switch {
	case winsChallenger > winsAcceptor:
		return m.Challenger.Pubkey, false, nil
	case winsAcceptor > winsChallenger:
		return m.Acceptor.Pubkey, false, nil
	case cumChallenger > cumAcceptor:
		return m.Challenger.Pubkey, false, nil
	case cumAcceptor > cumChallenger:
		return m.Acceptor.Pubkey, false, nil
	default:
		return "", true, nil
	}
}

// applyMatchResult handles a KIND 31005. On the first asserted result that
// matches the validator's own re-execution, the match advances to
// RESULT_SUBMITTED's conclusion (the caller performs the mint burn/mint and
// KIND 31006 publication).
func applyMatchResult(rec *MatchRecord, ev *event.Event) error {
	if rec.Phase != ResultSubmitted {
		return fmt.Errorf("%w: match result received outside RESULT_SUBMITTED phase (phase=%s)", ErrProtocolViolation, rec.Phase)
	}
	if err := event.Verify(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	s, ok := rec.sideOfAuthor(ev.PubKey)
	if !ok {
		return fmt.Errorf("%w: author is not a registered player", ErrProtocolViolation)
	}

	var payload event.MatchResultPayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	winner, draw, err := rec.matchOutcome()
	if err != nil {
		return err
	}
	assertedWinner := payload.Winner
	if draw {
		if assertedWinner != "draw" {
			return fmt.Errorf("%w: asserted winner %q disagrees with validator's draw re-execution", ErrLogicFailure, assertedWinner)
		}
	} else if assertedWinner != winner {
		return fmt.Errorf("%w: asserted winner %q disagrees with validator's re-execution (%q)", ErrLogicFailure, assertedWinner, winner)
	}

	rec.playerBySide(s).ResultSubmitted = true
	rec.Winner = winner
	rec.Draw = draw
	return nil
}
