package event

import (
	"encoding/json"
	"fmt"

	"github.com/manastr/validator/pkg/commitment"
)

// ChallengePayload is the content of a KIND 31000 match challenge.
type ChallengePayload struct {
	WagerAmount      int64  `json:"wager_amount"`
	LeagueID         uint8  `json:"league_id"`
	ArmyCommitment   string `json:"army_commitment"`
	TokenCommitment  string `json:"token_commitment"`
	ExpiresAt        int64  `json:"expires_at"`
}

// AcceptancePayload is the content of a KIND 31001 match acceptance.
type AcceptancePayload struct {
	ArmyCommitment  string `json:"army_commitment"`
	TokenCommitment string `json:"token_commitment"`
	MatchRef        string `json:"match_ref"`
	WagerAmount     int64  `json:"wager_amount"`
	LeagueID        uint8  `json:"league_id"`
}

// ProofRef is the wire shape of a single ecash proof as revealed in a
// KIND 31002 event.
type ProofRef struct {
	Amount   int64  `json:"amount"`
	Secret   string `json:"secret"`
	C        string `json:"C"`
	KeysetID string `json:"keyset_id"`
}

// TokenRevealPayload is the content of a KIND 31002 token reveal.
type TokenRevealPayload struct {
	Proofs []ProofRef `json:"proofs"`
	Nonce  string     `json:"nonce"`
}

// MoveCommitmentPayload is the content of a KIND 31003 move commitment.
type MoveCommitmentPayload struct {
	Round            int    `json:"round"`
	MoveCommitment   string `json:"move_commitment"`
	PreviousEventID  string `json:"previous_event_id"`
}

// CombatMove is one unit's action for a round: its target position and
// whether it invoked its ability.
type CombatMove struct {
	TargetIndex int  `json:"target_index"`
	UseAbility  bool `json:"use_ability"`
}

// MoveRevealPayload is the content of a KIND 31004 move reveal.
type MoveRevealPayload struct {
	Round int          `json:"round"`
	Moves []CombatMove `json:"moves"`
	Nonce string       `json:"nonce"`
}

// RoundOutcomeSummary records one round's result for KIND 31005.
type RoundOutcomeSummary struct {
	Round         int    `json:"round"`
	Winner        string `json:"winner"` // "challenger", "acceptor", or "draw"
	DamageByA     int    `json:"damage_by_challenger"`
	DamageByB     int    `json:"damage_by_acceptor"`
}

// MatchResultPayload is the content of a KIND 31005 match result.
type MatchResultPayload struct {
	FinalHealthA []int                 `json:"final_health_challenger"`
	FinalHealthB []int                 `json:"final_health_acceptor"`
	Rounds       []RoundOutcomeSummary `json:"rounds"`
	Winner       string                `json:"winner"` // pubkey hex, or "draw"
}

// LootDistributionPayload is the content of the validator-authored KIND 31006.
type LootDistributionPayload struct {
	Winner        string     `json:"winner"`
	Draw          bool       `json:"draw"`
	LootProofs    []ProofRef `json:"loot_proofs"`
	BurnedSecrets []string   `json:"burned_secrets"`
	Summary       string     `json:"summary"`
}

// DecodeContent unmarshals e.Content into out.
func DecodeContent(e *Event, out interface{}) error {
	if err := json.Unmarshal([]byte(e.Content), out); err != nil {
		return fmt.Errorf("event: decode content for kind %d: %w", e.Kind, err)
	}
	return nil
}

// EncodeContent marshals payload into canonical JSON and sets it as e.Content.
// Using the canonical form for Content keeps content-hashing (e.g. inside
// commitments that embed an event's content) stable.
func EncodeContent(e *Event, payload interface{}) error {
	canon, err := commitment.CanonicalJSON(payload)
	if err != nil {
		return fmt.Errorf("event: encode content: %w", err)
	}
	e.Content = string(canon)
	return nil
}

// Build assembles an unsigned Event with the given kind, tags, and payload.
// Callers must call Sign before publishing.
func Build(kind Kind, tags []Tag, createdAt int64, payload interface{}) (*Event, error) {
	e := &Event{
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
	}
	if err := EncodeContent(e, payload); err != nil {
		return nil, err
	}
	return e, nil
}

// MatchTag returns the {"match", matchID} tag required on every event of
// kind >= KindMatchAcceptance.
func MatchTag(matchID string) Tag { return Tag{"match", matchID} }

// ETag returns an {"e", eventID} reference tag.
func ETag(eventID string) Tag { return Tag{"e", eventID} }

// PTag returns a {"p", pubkey} reference tag.
func PTag(pubkey string) Tag { return Tag{"p", pubkey} }

// DTag returns a {"d", identifier} per-author replaceable-event tag.
func DTag(id string) Tag { return Tag{"d", id} }
