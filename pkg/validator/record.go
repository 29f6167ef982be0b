package validator

import (
	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/combat"
	"github.com/manastr/validator/pkg/commitment"
	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/mint"
)

// side identifies the challenger or acceptor within a MatchRecord.
type side int

const (
	sideChallenger side = iota
	sideAcceptor
)

// playerState holds everything the validator has learned about one side of
// a match. Fields are filled monotonically; once revealed/derived, they are
// never overwritten (§3.4).
type playerState struct {
	Pubkey          string
	WagerAmount     int64
	ArmyCommitment  commitment.Hash
	TokenCommitment commitment.Hash

	Proofs          []mint.Proof
	Army            army.Army
	State           combat.ArmyState
	ResultSubmitted bool
}

// roundCommit is one author's move-commitment-then-reveal for a single
// round, kept so the full chain (not just the immediate predecessor) can be
// re-verified on every new reveal (§9 design notes).
type roundCommit struct {
	CommitEventID   string
	Commitment      commitment.Hash
	PreviousEventID string
	Revealed        bool
	Moves           []event.CombatMove
}

type roundState struct {
	Challenger *roundCommit
	Acceptor   *roundCommit
	Outcome    *combat.RoundOutcome
}

// MatchRecord is the validator's complete view of one live match, keyed by
// the KIND 31000 challenge's event id (§3.4).
type MatchRecord struct {
	MatchID  string
	LeagueID uint8

	Challenger playerState
	Acceptor   playerState

	AcceptanceEventID string // the acceptor's KIND 31001 id; anchors round 1's chain
	roundBoundaryID   string // event id that the next round's challenger commitment chains from

	Rounds [combat.Rounds]roundState
	Round  int // 1-indexed round currently in progress; 0 before IN_COMBAT

	Phase             Phase
	InvalidationReason string
	Winner            string // winner's pubkey; empty on a draw (see Draw)
	Draw              bool

	BurnedSecrets []string
	LootIssued    map[string][]mint.Proof // pubkey -> loot proofs, for idempotent re-publish
}

// NewMatchRecord creates a record in the CHALLENGED phase from a well-formed
// KIND 31000 challenge.
func NewMatchRecord(matchID string, challenger string, payload event.ChallengePayload) *MatchRecord {
	return &MatchRecord{
		MatchID:  matchID,
		LeagueID: payload.LeagueID,
		Challenger: playerState{
			Pubkey:      challenger,
			WagerAmount: payload.WagerAmount,
		},
		Phase: Challenged,
	}
}

// playerBySide returns a pointer to the named side's state.
func (m *MatchRecord) playerBySide(s side) *playerState {
	if s == sideChallenger {
		return &m.Challenger
	}
	return &m.Acceptor
}

// sideOfAuthor returns which side pubkey occupies, or false if it is
// neither recorded player (§7 "author impersonation").
func (m *MatchRecord) sideOfAuthor(pubkey string) (side, bool) {
	switch pubkey {
	case m.Challenger.Pubkey:
		return sideChallenger, true
	case m.Acceptor.Pubkey:
		return sideAcceptor, true
	default:
		return 0, false
	}
}

func (m *MatchRecord) totalWager() int64 {
	return m.Challenger.WagerAmount + m.Acceptor.WagerAmount
}
