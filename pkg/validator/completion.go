package validator

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/mint"
)

// economy bundles the mint client and winner-share configuration needed to
// settle a match once its result has been confirmed (§6.5).
type economy struct {
	Mint          mint.Client
	WinnerShareBP int64
	Signer        *btcec.PrivateKey
}

func secretsOf(proofs []mint.Proof) []string {
	out := make([]string, len(proofs))
	for i, p := range proofs {
		out[i] = p.Secret
	}
	return out
}

func proofToRef(p mint.Proof) event.ProofRef {
	return event.ProofRef{
		Amount:   p.Amount,
		Secret:   p.Secret,
		C:        hex.EncodeToString(p.C[:]),
		KeysetID: p.KeysetID,
	}
}

// settle performs the RESULT_SUBMITTED -> COMPLETED transition (§9 design
// notes): burn every revealed mana proof from both sides, mint loot (or, for
// a draw, a same-share refund to each side), and publish the authoritative
// KIND 31006. Idempotent on rec.BurnedSecrets (burn) and rec.LootIssued
// (mint), so a retry after a partial mint-RPC failure never double-burns or
// double-mints (§5 "idempotent keyed on match id").
func settle(ctx context.Context, rec *MatchRecord, econ economy, createdAt int64) (*event.Event, error) {
	if rec.Phase == Completed {
		return nil, nil
	}
	if rec.Phase != ResultSubmitted {
		return nil, fmt.Errorf("%w: settle called outside RESULT_SUBMITTED (phase=%s)", ErrProtocolViolation, rec.Phase)
	}

	if len(rec.BurnedSecrets) == 0 {
		for _, p := range append(append([]mint.Proof{}, rec.Challenger.Proofs...), rec.Acceptor.Proofs...) {
			unspent, err := econ.Mint.VerifyUnspent(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("%w: verify_unspent: %v", ErrInfrastructure, err)
			}
			if !unspent {
				return nil, fmt.Errorf("%w: proof with secret %q is already spent ahead of settlement", ErrTokenFailure, p.Secret)
			}
		}

		secrets := append(secretsOf(rec.Challenger.Proofs), secretsOf(rec.Acceptor.Proofs)...)
		if err := econ.Mint.BurnBySecret(ctx, secrets); err != nil {
			return nil, fmt.Errorf("%w: burn_by_secret: %v", ErrInfrastructure, err)
		}
		rec.BurnedSecrets = secrets
	}

	if rec.LootIssued == nil {
		rec.LootIssued = make(map[string][]mint.Proof)
	}

	var refs []event.ProofRef
	var tags []event.Tag

	if rec.Draw {
		for _, p := range []*playerState{&rec.Challenger, &rec.Acceptor} {
			if _, done := rec.LootIssued[p.Pubkey]; done {
				continue
			}
			amount := DrawRefund(p.WagerAmount, econ.WinnerShareBP)
			proofs, err := econ.Mint.MintLockedToPubkey(ctx, p.Pubkey, amount, mint.CurrencyLoot)
			if err != nil {
				return nil, fmt.Errorf("%w: mint_locked_to_pubkey: %v", ErrInfrastructure, err)
			}
			rec.LootIssued[p.Pubkey] = proofs
		}
		for _, p := range []*playerState{&rec.Challenger, &rec.Acceptor} {
			for _, proof := range rec.LootIssued[p.Pubkey] {
				refs = append(refs, proofToRef(proof))
			}
			tags = append(tags, event.PTag(p.Pubkey))
		}
	} else {
		if _, done := rec.LootIssued[rec.Winner]; !done {
			lootAmount := LootAmount(rec.totalWager(), econ.WinnerShareBP)
			proofs, err := econ.Mint.MintLockedToPubkey(ctx, rec.Winner, lootAmount, mint.CurrencyLoot)
			if err != nil {
				return nil, fmt.Errorf("%w: mint_locked_to_pubkey: %v", ErrInfrastructure, err)
			}
			rec.LootIssued[rec.Winner] = proofs
		}
		for _, proof := range rec.LootIssued[rec.Winner] {
			refs = append(refs, proofToRef(proof))
		}
		tags = append(tags, event.PTag(rec.Winner))
	}

	payload := event.LootDistributionPayload{
		Winner:        winnerOrDraw(rec),
		Draw:          rec.Draw,
		LootProofs:    refs,
		BurnedSecrets: rec.BurnedSecrets,
		Summary:       fmt.Sprintf("match %s settled: draw=%v winner=%s total_wager=%d", rec.MatchID, rec.Draw, winnerOrDraw(rec), rec.totalWager()),
	}

	tags = append(tags, event.MatchTag(rec.MatchID))
	ev, err := event.Build(event.KindLootDistribution, tags, createdAt, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	if err := event.Sign(ev, econ.Signer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}

	rec.Phase = Completed
	return ev, nil
}

func winnerOrDraw(rec *MatchRecord) string {
	if rec.Draw {
		return "draw"
	}
	return rec.Winner
}

func nowUnix() int64 { return time.Now().Unix() }
