// Package fake provides an in-memory mint.Client double for validator
// tests, modeling just enough state (spent secrets, locked mints) to drive
// the double-spend and payout scenarios without a real mint RPC.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/manastr/validator/pkg/mint"
)

// Client is a thread-safe in-memory mint.Client.
type Client struct {
	mu       sync.Mutex
	spent    map[string]bool
	known    map[string]mint.Proof // secret -> proof, for proofs registered as unspent
	minted   []mint.Proof
	nextID   int
	failNext int // number of remaining calls to force-fail, for retry tests
}

// New returns an empty fake mint client.
func New() *Client {
	return &Client{
		spent: make(map[string]bool),
		known: make(map[string]mint.Proof),
	}
}

// Seed registers p as a known, unspent proof, as if previously minted.
func (c *Client) Seed(p mint.Proof) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[p.Secret] = p
}

// FailNext forces the next n calls (across all methods) to return an error,
// simulating infrastructure failure for retry-path tests.
func (c *Client) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = n
}

func (c *Client) maybeFail() error {
	if c.failNext > 0 {
		c.failNext--
		return fmt.Errorf("fake mint: injected failure")
	}
	return nil
}

// VerifyUnspent reports true only for proofs previously Seed()-ed or minted
// by MintLockedToPubkey and not yet burned.
func (c *Client) VerifyUnspent(ctx context.Context, p mint.Proof) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return false, err
	}
	if c.spent[p.Secret] {
		return false, nil
	}
	_, known := c.known[p.Secret]
	return known, nil
}

// BurnBySecret marks each secret as spent. Repeating a secret is a no-op,
// matching the real mint's idempotent burn semantics.
func (c *Client) BurnBySecret(ctx context.Context, secrets []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return err
	}
	for _, s := range secrets {
		c.spent[s] = true
	}
	return nil
}

// MintLockedToPubkey issues amount of currency as a single new proof locked
// to pubkey. The secret encodes an incrementing counter so repeated calls in
// a test never collide.
func (c *Client) MintLockedToPubkey(ctx context.Context, pubkey string, amount int64, currency mint.Currency) ([]mint.Proof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.maybeFail(); err != nil {
		return nil, err
	}
	c.nextID++
	p := mint.Proof{
		Amount:   amount,
		Secret:   fmt.Sprintf("locked-%s-%d", pubkey, c.nextID),
		KeysetID: "fake-keyset",
		Currency: currency,
	}
	c.known[p.Secret] = p
	c.minted = append(c.minted, p)
	return []mint.Proof{p}, nil
}

// Minted returns every proof issued by MintLockedToPubkey so far, for test
// assertions.
func (c *Client) Minted() []mint.Proof {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]mint.Proof, len(c.minted))
	copy(out, c.minted)
	return out
}

// IsSpent reports whether secret has been burned.
func (c *Client) IsSpent(secret string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spent[secret]
}

var _ mint.Client = (*Client)(nil)
