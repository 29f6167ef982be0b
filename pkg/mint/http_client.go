package mint

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// HTTPClient is the concrete HTTP+JSON implementation of Client, matching
// the teacher's style for calling an external service: a prefixed logger,
// bounded retries around each call, and a shared http.Client.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryConfig
	logger     *log.Logger
}

// NewHTTPClient constructs an HTTPClient against baseURL (e.g.
// "https://mint.example.org").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Retry:      DefaultRetryConfig(),
		logger:     log.New(log.Writer(), "[mint] ", log.LstdFlags),
	}
}

type proofWire struct {
	Amount   int64  `json:"amount"`
	Secret   string `json:"secret"`
	C        string `json:"C"`
	KeysetID string `json:"keyset_id"`
}

func toWire(p Proof) proofWire {
	return proofWire{Amount: p.Amount, Secret: p.Secret, C: hex.EncodeToString(p.C[:]), KeysetID: p.KeysetID}
}

func (w proofWire) toProof(currency Currency) (Proof, error) {
	raw, err := hex.DecodeString(w.C)
	if err != nil {
		return Proof{}, fmt.Errorf("mint: decode C: %w", err)
	}
	if len(raw) != 32 {
		return Proof{}, fmt.Errorf("mint: C must be 32 bytes, got %d", len(raw))
	}
	var c [32]byte
	copy(c[:], raw)
	return Proof{Amount: w.Amount, Secret: w.Secret, C: c, KeysetID: w.KeysetID, Currency: currency}, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, reqBody, respBody interface{}) error {
	return withRetry(ctx, c.Retry, func(ctx context.Context) error {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("mint: marshal request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("mint: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			c.logger.Printf("request to %s failed: %v", path, err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("mint: %s returned status %d", path, resp.StatusCode)
		}
		if respBody == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("mint: decode response from %s: %w", path, err)
		}
		return nil
	})
}

// VerifyUnspent calls POST /verify_unspent.
func (c *HTTPClient) VerifyUnspent(ctx context.Context, p Proof) (bool, error) {
	var resp struct {
		Unspent bool `json:"unspent"`
	}
	err := c.postJSON(ctx, "/verify_unspent", toWire(p), &resp)
	if err != nil {
		return false, err
	}
	return resp.Unspent, nil
}

// BurnBySecret calls POST /burn_by_secret.
func (c *HTTPClient) BurnBySecret(ctx context.Context, secrets []string) error {
	req := struct {
		Secrets []string `json:"secrets"`
	}{Secrets: secrets}
	return c.postJSON(ctx, "/burn_by_secret", req, nil)
}

// MintLockedToPubkey calls POST /mint_locked_to_pubkey.
func (c *HTTPClient) MintLockedToPubkey(ctx context.Context, pubkey string, amount int64, currency Currency) ([]Proof, error) {
	req := struct {
		Pubkey   string   `json:"pubkey"`
		Amount   int64    `json:"amount"`
		Currency Currency `json:"currency"`
	}{Pubkey: pubkey, Amount: amount, Currency: currency}

	var resp struct {
		Proofs []proofWire `json:"proofs"`
	}
	if err := c.postJSON(ctx, "/mint_locked_to_pubkey", req, &resp); err != nil {
		return nil, err
	}

	out := make([]Proof, len(resp.Proofs))
	for i, w := range resp.Proofs {
		p, err := w.toProof(currency)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
