// Package mint implements the validator's client to the ecash mint RPC
// (§6.2): verify_unspent, burn_by_secret, mint_locked_to_pubkey. The mint
// itself is an external collaborator (§1 scope) — this package only models
// the abstract contract and a concrete HTTP+JSON client.
package mint

import (
	"context"
	"time"
)

// Currency tags a proof's keyset as mana (stake, burnable only) or loot
// (reward, meltable), per §3.2.
type Currency string

const (
	CurrencyMana Currency = "mana"
	CurrencyLoot Currency = "loot"
)

// Proof is an ecash proof as understood by the mint RPC boundary.
type Proof struct {
	Amount   int64
	Secret   string
	C        [32]byte
	KeysetID string
	Currency Currency
}

// Client is the abstract mint RPC contract (§6.2). Implementations MUST
// restrict burn/mint-locked calls to authenticated validator keys on the
// mint side; this package's job is only to call them correctly and retry
// on infrastructure failure without ever treating a retry as a reason to
// skip re-verifying unspent status immediately before a burn (§5).
type Client interface {
	// VerifyUnspent reports whether secret has never been burned and C is a
	// valid mint signature for the stated amount/keyset.
	VerifyUnspent(ctx context.Context, p Proof) (bool, error)
	// BurnBySecret permanently marks each secret as spent. Idempotent on
	// already-spent secrets.
	BurnBySecret(ctx context.Context, secrets []string) error
	// MintLockedToPubkey issues amount of currency locked to pubkey, usable
	// only by that pubkey.
	MintLockedToPubkey(ctx context.Context, pubkey string, amount int64, currency Currency) ([]Proof, error)
}

// RetryConfig bounds the exponential backoff applied to infrastructure
// failures (§5, §7): mint RPCs that fail or time out retry with bounded
// backoff; on exhaustion the caller must leave the match pending, not
// invalidated.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig matches the teacher's five-attempt, doubling-delay
// convention used for its own external RPC calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseDelay: time.Second}
}

// withRetry runs op up to cfg.MaxAttempts times with exponential backoff
// (1s, 2s, 4s, ...), returning the last error if every attempt fails, or
// ctx.Err() if ctx is cancelled first.
func withRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op(ctx); err != nil {
			lastErr = err
			delay := cfg.BaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return lastErr
}
