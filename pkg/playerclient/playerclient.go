// Package playerclient is a reference implementation of the player-side
// protocol obligations (§1 scope, §4.1): building, signing, and chaining the
// KIND 31000-31005 events a player client emits, plus a local combat replay
// so a player can verify a match's outcome independently of the validator.
// It exists to give the protocol a runnable counterparty in tests, not as a
// full end-user client.
package playerclient

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/combat"
	"github.com/manastr/validator/pkg/commitment"
	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/wallet"
)

// Client is one player's signing key, wallet, and the league table it
// derives armies against.
type Client struct {
	priv   *btcec.PrivateKey
	Wallet *wallet.Wallet
	league army.LeagueTable
}

// New constructs a Client from a private key and a wallet the caller has
// already funded via wallet.Deposit.
func New(priv *btcec.PrivateKey, w *wallet.Wallet, league army.LeagueTable) *Client {
	return &Client{priv: priv, Wallet: w, league: league}
}

// Pubkey returns the client's own event.Event.PubKey hex string, computing
// it the same way event.Sign does.
func (c *Client) Pubkey() string {
	return fmt.Sprintf("%x", schnorr.SerializePubKey(c.priv.PubKey()))
}

// BuildChallenge commits the named proofs to a wager and builds a signed
// KIND 31000 event. Returns the event and the commitment material the
// caller must retain until BuildTokenReveal (nonce, derived army, ordered
// secrets).
func (c *Client) BuildChallenge(secrets []string, wagerAmount int64, leagueID uint8, expiresAt, createdAt int64, nonce []byte) (*event.Event, wallet.WagerCommitment, error) {
	wc, err := c.Wallet.CommitWager(secrets, wagerAmount, leagueID, c.league, nonce)
	if err != nil {
		return nil, wallet.WagerCommitment{}, fmt.Errorf("playerclient: commit wager: %w", err)
	}

	payload := event.ChallengePayload{
		WagerAmount:     wagerAmount,
		LeagueID:        leagueID,
		ArmyCommitment:  wc.ArmyCommitment.Hex(),
		TokenCommitment: wc.TokenCommitment.Hex(),
		ExpiresAt:       expiresAt,
	}
	tags := []event.Tag{
		event.DTag(fmt.Sprintf("challenge-%x", nonce)),
		{"wager", fmt.Sprintf("%d", wagerAmount)},
		{"league", fmt.Sprintf("%d", leagueID)},
	}
	ev, err := event.Build(event.KindMatchChallenge, tags, createdAt, payload)
	if err != nil {
		return nil, wallet.WagerCommitment{}, err
	}
	if err := event.Sign(ev, c.priv); err != nil {
		return nil, wallet.WagerCommitment{}, err
	}
	return ev, wc, nil
}

// BuildAcceptance commits the acceptor's proofs and builds a signed
// KIND 31001 event referencing matchID (the challenge's event id).
func (c *Client) BuildAcceptance(matchID string, secrets []string, wagerAmount int64, leagueID uint8, createdAt int64, nonce []byte) (*event.Event, wallet.WagerCommitment, error) {
	wc, err := c.Wallet.CommitWager(secrets, wagerAmount, leagueID, c.league, nonce)
	if err != nil {
		return nil, wallet.WagerCommitment{}, fmt.Errorf("playerclient: commit wager: %w", err)
	}

	payload := event.AcceptancePayload{
		ArmyCommitment:  wc.ArmyCommitment.Hex(),
		TokenCommitment: wc.TokenCommitment.Hex(),
		MatchRef:        matchID,
		WagerAmount:     wagerAmount,
		LeagueID:        leagueID,
	}
	tags := []event.Tag{event.MatchTag(matchID), event.ETag(matchID)}
	ev, err := event.Build(event.KindMatchAcceptance, tags, createdAt, payload)
	if err != nil {
		return nil, wallet.WagerCommitment{}, err
	}
	if err := event.Sign(ev, c.priv); err != nil {
		return nil, wallet.WagerCommitment{}, err
	}
	return ev, wc, nil
}

// BuildTokenReveal reveals the proofs previously committed under secrets and
// builds a signed KIND 31002 event.
func (c *Client) BuildTokenReveal(matchID string, secrets []string, nonce []byte, createdAt int64) (*event.Event, error) {
	payload, err := c.Wallet.Reveal(secrets, nonce)
	if err != nil {
		return nil, fmt.Errorf("playerclient: reveal: %w", err)
	}
	tags := []event.Tag{event.MatchTag(matchID)}
	ev, err := event.Build(event.KindTokenReveal, tags, createdAt, payload)
	if err != nil {
		return nil, err
	}
	if err := event.Sign(ev, c.priv); err != nil {
		return nil, err
	}
	return ev, nil
}

// BuildMoveCommitment computes move_commitment = commit_chained(moves,
// nonce, previousEventID) and builds a signed KIND 31003 event for round.
func (c *Client) BuildMoveCommitment(matchID string, round int, moves []event.CombatMove, nonce []byte, previousEventID string, createdAt int64) (*event.Event, error) {
	prevBytes, err := hex.DecodeString(previousEventID)
	if err != nil {
		return nil, fmt.Errorf("playerclient: previous_event_id: %w", err)
	}
	h, err := commitment.CommitChained(moves, nonce, prevBytes)
	if err != nil {
		return nil, err
	}
	payload := event.MoveCommitmentPayload{
		Round:           round,
		MoveCommitment:  h.Hex(),
		PreviousEventID: previousEventID,
	}
	tags := []event.Tag{event.MatchTag(matchID)}
	ev, err := event.Build(event.KindMoveCommitment, tags, createdAt, payload)
	if err != nil {
		return nil, err
	}
	if err := event.Sign(ev, c.priv); err != nil {
		return nil, err
	}
	return ev, nil
}

// BuildMoveReveal builds a signed KIND 31004 event revealing the moves and
// nonce behind a prior move commitment.
func (c *Client) BuildMoveReveal(matchID string, round int, moves []event.CombatMove, nonce []byte, createdAt int64) (*event.Event, error) {
	payload := event.MoveRevealPayload{
		Round: round,
		Moves: moves,
		Nonce: fmt.Sprintf("%x", nonce),
	}
	tags := []event.Tag{event.MatchTag(matchID)}
	ev, err := event.Build(event.KindMoveReveal, tags, createdAt, payload)
	if err != nil {
		return nil, err
	}
	if err := event.Sign(ev, c.priv); err != nil {
		return nil, err
	}
	return ev, nil
}

// BuildMatchResult builds a signed KIND 31005 event asserting the outcome
// the client computed from its own local replay.
func (c *Client) BuildMatchResult(matchID string, payload event.MatchResultPayload, createdAt int64) (*event.Event, error) {
	tags := []event.Tag{event.MatchTag(matchID)}
	ev, err := event.Build(event.KindMatchResult, tags, createdAt, payload)
	if err != nil {
		return nil, err
	}
	if err := event.Sign(ev, c.priv); err != nil {
		return nil, err
	}
	return ev, nil
}

// ReplayCombat runs the deterministic combat engine locally over both
// sides' armies and full per-round moves so a player can verify a match's
// outcome without trusting the validator's assertion.
func ReplayCombat(armyA, armyB army.Army, movesA, movesB [][]combat.Move) (combat.MatchOutcome, combat.ArmyState, combat.ArmyState, error) {
	return combat.PlayMatch(armyA, armyB, movesA, movesB)
}

// ToCombatMoves converts wire-format moves (as carried in a KIND 31003/31004
// payload) into pkg/combat's Move type.
func ToCombatMoves(moves []event.CombatMove) []combat.Move {
	out := make([]combat.Move, len(moves))
	for i, m := range moves {
		out[i] = combat.Move{TargetIndex: m.TargetIndex, UseAbility: m.UseAbility}
	}
	return out
}

// FromCombatMoves converts pkg/combat moves back into the wire format for a
// KIND 31003/31004 payload.
func FromCombatMoves(moves []combat.Move) []event.CombatMove {
	out := make([]event.CombatMove, len(moves))
	for i, m := range moves {
		out[i] = event.CombatMove{TargetIndex: m.TargetIndex, UseAbility: m.UseAbility}
	}
	return out
}
