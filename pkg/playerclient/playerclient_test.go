package playerclient

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/mint"
	"github.com/manastr/validator/pkg/wallet"
)

func mustClient(t *testing.T, secret string, amount int64, cByte byte) *Client {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	w := wallet.New()
	var c [32]byte
	c[0] = cByte
	w.Deposit(mint.Proof{Amount: amount, Secret: secret, C: c, KeysetID: "mana", Currency: mint.CurrencyMana})
	return New(priv, w, army.DefaultLeagueTable())
}

func TestChallengeAcceptanceRevealRoundTrip(t *testing.T) {
	challenger := mustClient(t, "chal-secret", 100, 1)
	acceptor := mustClient(t, "acc-secret", 100, 2)

	challengeEv, _, err := challenger.BuildChallenge([]string{"chal-secret"}, 100, 0, 0, 1000, []byte("challenger-nonce"))
	if err != nil {
		t.Fatalf("BuildChallenge: %v", err)
	}
	if err := event.Verify(challengeEv); err != nil {
		t.Fatalf("challenge event does not verify: %v", err)
	}

	matchID := challengeEv.ID
	acceptEv, _, err := acceptor.BuildAcceptance(matchID, []string{"acc-secret"}, 100, 0, 1001, []byte("acceptor-nonce"))
	if err != nil {
		t.Fatalf("BuildAcceptance: %v", err)
	}
	if err := event.Verify(acceptEv); err != nil {
		t.Fatalf("acceptance event does not verify: %v", err)
	}
	if acceptEv.MatchID() != matchID {
		t.Fatalf("acceptance match tag = %q, want %q", acceptEv.MatchID(), matchID)
	}

	revealEv, err := challenger.BuildTokenReveal(matchID, []string{"chal-secret"}, []byte("challenger-nonce"), 1002)
	if err != nil {
		t.Fatalf("BuildTokenReveal: %v", err)
	}
	var payload event.TokenRevealPayload
	if err := event.DecodeContent(revealEv, &payload); err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	if len(payload.Proofs) != 1 || payload.Proofs[0].Secret != "chal-secret" {
		t.Fatalf("unexpected reveal payload: %+v", payload)
	}
}

func TestMoveCommitmentChainsToPreviousEvent(t *testing.T) {
	client := mustClient(t, "s", 10, 9)
	moves := []event.CombatMove{{TargetIndex: 0}, {TargetIndex: 1}, {TargetIndex: 2}, {TargetIndex: 3}}

	prevID := "00" // stands in for the acceptor's KIND 31001 id in round 1
	ev, err := client.BuildMoveCommitment("match-1", 1, moves, []byte("move-nonce"), prevID, 2000)
	if err != nil {
		t.Fatalf("BuildMoveCommitment: %v", err)
	}
	var payload event.MoveCommitmentPayload
	if err := event.DecodeContent(ev, &payload); err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	if payload.PreviousEventID != prevID {
		t.Fatalf("previous_event_id = %q, want %q", payload.PreviousEventID, prevID)
	}
	if err := event.Verify(ev); err != nil {
		t.Fatalf("move commitment event does not verify: %v", err)
	}
}

func TestMoveConversionRoundTrips(t *testing.T) {
	wire := []event.CombatMove{{TargetIndex: 2, UseAbility: true}}
	back := FromCombatMoves(ToCombatMoves(wire))
	if len(back) != 1 || back[0] != wire[0] {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, wire)
	}
}
