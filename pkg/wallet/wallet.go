// Package wallet tracks a player's ecash proofs through the lifecycle a
// match imposes on them (§3.2): held, committed to a wager, revealed on
// chain, and finally burned once the match completes. It is the client-side
// counterpart to the commitments the validator checks.
package wallet

import (
	"fmt"
	"sync"

	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/commitment"
	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/mint"
)

// State is a proof's position in the commit/reveal/burn lifecycle.
type State int

const (
	Held State = iota
	Committed
	Revealed
	Burned
)

func (s State) String() string {
	switch s {
	case Held:
		return "held"
	case Committed:
		return "committed"
	case Revealed:
		return "revealed"
	case Burned:
		return "burned"
	default:
		return "unknown"
	}
}

// entry is one proof plus its lifecycle state. The holder only learns C
// once the mint hands back an unblinded proof (§3.2); wallet never fabricates
// a C value itself.
type entry struct {
	proof mint.Proof
	state State
}

// Wallet holds one player's proofs across however many matches they enter.
// A Wallet is safe for concurrent use.
type Wallet struct {
	mu      sync.Mutex
	entries map[string]*entry // secret -> entry
}

// New returns an empty wallet.
func New() *Wallet {
	return &Wallet{entries: make(map[string]*entry)}
}

// Deposit registers a freshly minted or received proof as Held.
func (w *Wallet) Deposit(p mint.Proof) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[p.Secret] = &entry{proof: p, state: Held}
}

// Proof returns the proof registered under secret and its current state.
func (w *Wallet) Proof(secret string) (mint.Proof, State, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[secret]
	if !ok {
		return mint.Proof{}, 0, false
	}
	return e.proof, e.state, true
}

// Balance sums the amount of every Held proof of the given currency, i.e.
// funds available to commit to a new wager.
func (w *Wallet) Balance(currency mint.Currency) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total int64
	for _, e := range w.entries {
		if e.state == Held && e.proof.Currency == currency {
			total += e.proof.Amount
		}
	}
	return total
}

// WagerCommitment is everything needed to populate a KIND 31000/31001
// payload's commitment fields, plus the material the caller must keep
// secret until KIND 31002.
type WagerCommitment struct {
	TokenCommitment commitment.Hash
	ArmyCommitment  commitment.Hash
	Nonce           []byte
	Secrets         []string // ordered, as later revealed in KIND 31002
	Army            army.Army
}

// CommitWager selects the proofs named by secrets (in the order supplied,
// which becomes the reveal order in KIND 31002), verifies they are all
// `mana` and sum to wagerAmount, derives the army from the first proof's C
// value per the canonical single-C design (§4.3), and computes both
// commitments over a single random nonce. Matching proofs move from Held to
// Committed.
func (w *Wallet) CommitWager(secrets []string, wagerAmount int64, leagueID uint8, table army.LeagueTable, nonce []byte) (WagerCommitment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(secrets) == 0 {
		return WagerCommitment{}, fmt.Errorf("wallet: at least one proof is required")
	}

	proofs := make([]mint.Proof, len(secrets))
	var sum int64
	for i, s := range secrets {
		e, ok := w.entries[s]
		if !ok {
			return WagerCommitment{}, fmt.Errorf("wallet: unknown secret %q", s)
		}
		if e.state != Held {
			return WagerCommitment{}, fmt.Errorf("wallet: secret %q is %s, not held", s, e.state)
		}
		if e.proof.Currency != mint.CurrencyMana {
			return WagerCommitment{}, fmt.Errorf("wallet: secret %q is not a mana proof", s)
		}
		proofs[i] = e.proof
		sum += e.proof.Amount
	}
	if sum != wagerAmount {
		return WagerCommitment{}, fmt.Errorf("wallet: proofs sum to %d, wager is %d", sum, wagerAmount)
	}

	a, err := army.DeriveArmy(army.CValue(proofs[0].C), leagueID, table)
	if err != nil {
		return WagerCommitment{}, fmt.Errorf("wallet: derive army: %w", err)
	}

	refs := make([]event.ProofRef, len(proofs))
	for i, p := range proofs {
		refs[i] = toProofRef(p)
	}

	tokenCommitment, err := commitment.Commit(refs, nonce)
	if err != nil {
		return WagerCommitment{}, fmt.Errorf("wallet: commit proofs: %w", err)
	}
	armyCommitment, err := commitment.Commit(a, nonce)
	if err != nil {
		return WagerCommitment{}, fmt.Errorf("wallet: commit army: %w", err)
	}

	for _, s := range secrets {
		w.entries[s].state = Committed
	}

	return WagerCommitment{
		TokenCommitment: tokenCommitment,
		ArmyCommitment:  armyCommitment,
		Nonce:           nonce,
		Secrets:         secrets,
		Army:            a,
	}, nil
}

// Reveal returns the TokenRevealPayload for a previously committed set of
// secrets and moves them from Committed to Revealed. Secrets must have been
// committed together by the same CommitWager call and in the same order.
func (w *Wallet) Reveal(secrets []string, nonce []byte) (event.TokenRevealPayload, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	refs := make([]event.ProofRef, len(secrets))
	for i, s := range secrets {
		e, ok := w.entries[s]
		if !ok {
			return event.TokenRevealPayload{}, fmt.Errorf("wallet: unknown secret %q", s)
		}
		if e.state != Committed {
			return event.TokenRevealPayload{}, fmt.Errorf("wallet: secret %q is %s, not committed", s, e.state)
		}
		refs[i] = toProofRef(e.proof)
	}
	for _, s := range secrets {
		w.entries[s].state = Revealed
	}

	return event.TokenRevealPayload{
		Proofs: refs,
		Nonce:  fmt.Sprintf("%x", nonce),
	}, nil
}

// MarkBurned transitions previously revealed secrets to Burned, to be called
// once the wallet's holder observes (e.g. via KIND 31006) that the mint
// actually burned them.
func (w *Wallet) MarkBurned(secrets []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range secrets {
		e, ok := w.entries[s]
		if !ok {
			return fmt.Errorf("wallet: unknown secret %q", s)
		}
		if e.state != Revealed {
			return fmt.Errorf("wallet: secret %q is %s, not revealed", s, e.state)
		}
	}
	for _, s := range secrets {
		w.entries[s].state = Burned
	}
	return nil
}

func toProofRef(p mint.Proof) event.ProofRef {
	return event.ProofRef{
		Amount:   p.Amount,
		Secret:   p.Secret,
		C:        fmt.Sprintf("%x", p.C),
		KeysetID: p.KeysetID,
	}
}
