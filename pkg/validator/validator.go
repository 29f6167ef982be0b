package validator

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/auditstore"
	"github.com/manastr/validator/pkg/config"
	"github.com/manastr/validator/pkg/metrics"
	"github.com/manastr/validator/pkg/mint"
	"github.com/manastr/validator/pkg/relay"
)

// Validator bundles a Dispatcher with the collaborators built from process
// configuration, so cmd/validator only has to call New and Run.
type Validator struct {
	*Dispatcher
}

// New wires a Validator from cfg: it loads (or generates) the validator's
// BIP340 signing key, builds the mint/relay clients, and constructs the
// league table and Dispatcher. audit may be nil.
func New(cfg *config.Config, metricsReg *metrics.Registry, audit *auditstore.Store) (*Validator, error) {
	signer, err := loadOrGenerateSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("validator: signing key: %w", err)
	}

	league := army.DefaultLeagueTable()
	if cfg.LeagueTablePath != "" {
		raw, err := os.ReadFile(cfg.LeagueTablePath)
		if err != nil {
			return nil, fmt.Errorf("validator: read league table: %w", err)
		}
		league, err = army.ParseLeagueTable(raw)
		if err != nil {
			return nil, fmt.Errorf("validator: parse league table: %w", err)
		}
	}

	mintClient := mint.NewHTTPClient(cfg.MintURL)
	relayClient := relay.NewClient(cfg.RelayURL)

	d := NewDispatcher(mintClient, relayClient, metricsReg, league, signer, cfg.WinnerShareBP, cfg.MatchIdleTimeout, audit)
	return &Validator{Dispatcher: d}, nil
}

// Run starts the underlying Dispatcher's event loop.
func (v *Validator) Run(ctx context.Context) error {
	return v.Dispatcher.Run(ctx)
}

// loadOrGenerateSigningKey loads a hex-encoded secp256k1 private key from
// path, generating and persisting a new one if the file does not exist yet
// (the teacher's loadOrGenerateEd25519Key pattern, adapted to BIP340).
func loadOrGenerateSigningKey(path string) (*btcec.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("validator: signing key path is empty")
	}

	if data, err := os.ReadFile(path); err == nil {
		keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("validator: decode signing key: %w", err)
		}
		priv, _ := btcec.PrivKeyFromBytes(keyBytes)
		return priv, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("validator: read signing key: %w", err)
	}

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("validator: generate signing key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv.Serialize())), 0o600); err != nil {
		return nil, fmt.Errorf("validator: save signing key: %w", err)
	}
	return priv, nil
}
