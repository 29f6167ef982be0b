// Package event implements the wire-level protocol events (KIND 31000-31006)
// shared by player clients and the validator: canonical serialization for
// signing, BIP340 Schnorr signatures over x-only public keys, and the tag
// conventions used to chain events together (§4.1, §6.3 of the protocol).
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/manastr/validator/pkg/commitment"
)

// Kind enumerates the protocol's parameterized-replaceable event kinds.
type Kind int

const (
	KindMatchChallenge   Kind = 31000
	KindMatchAcceptance  Kind = 31001
	KindTokenReveal      Kind = 31002
	KindMoveCommitment   Kind = 31003
	KindMoveReveal       Kind = 31004
	KindMatchResult      Kind = 31005
	KindLootDistribution Kind = 31006
)

// Tag is a single cross-reference entry, e.g. {"e", "<event id>"} or
// {"match", "<match id>"}.
type Tag []string

// Name returns the tag's first element (its type), or "" if empty.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the tag's second element, or "" if absent.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Event is the canonical wire-level event tuple. Content is kept as raw
// canonical JSON bytes so that re-serialization is byte-stable; typed
// payloads are decoded on demand via DecodeContent.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      Kind   `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Tag returns the value of the first tag named name, or "" if absent.
func (e *Event) Tag(name string) string {
	for _, t := range e.Tags {
		if t.Name() == name {
			return t.Value()
		}
	}
	return ""
}

// TagValues returns every value of tags named name, in order.
func (e *Event) TagValues(name string) []string {
	var out []string
	for _, t := range e.Tags {
		if t.Name() == name {
			out = append(out, t.Value())
		}
	}
	return out
}

// MatchID returns the value of the "match" tag, which every event of kind
// >= KindMatchAcceptance must carry.
func (e *Event) MatchID() string {
	return e.Tag("match")
}

// serializationArray is the NIP-01-style array form hashed and signed:
// [0, pubkey, created_at, kind, tags, content].
type serializationArray []interface{}

func (e *Event) serializationID() ([]byte, error) {
	arr := serializationArray{0, e.PubKey, e.CreatedAt, int(e.Kind), e.Tags, e.Content}
	canon, err := commitment.CanonicalJSON(arr)
	if err != nil {
		return nil, fmt.Errorf("event: canonicalize serialization array: %w", err)
	}
	return canon, nil
}

// ComputeID returns the SHA-256 hash of the event's canonical serialization,
// hex-encoded. This is the authoritative event id; it is independent of the
// Sig and ID fields already present on e.
func (e *Event) ComputeID() (string, error) {
	canon, err := e.serializationID()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	h := commitment.Hash(sum)
	return h.Hex(), nil
}

// Sign computes the event id from its current fields, signs it with priv
// using BIP340 Schnorr, and sets ID/PubKey/Sig on e.
func Sign(e *Event, priv *btcec.PrivateKey) error {
	e.PubKey = fmt.Sprintf("%x", schnorr.SerializePubKey(priv.PubKey()))
	id, err := e.ComputeID()
	if err != nil {
		return err
	}
	idBytes, err := commitment.HashFromHex(id)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(priv, idBytes[:])
	if err != nil {
		return fmt.Errorf("event: sign: %w", err)
	}
	e.ID = id
	e.Sig = fmt.Sprintf("%x", sig.Serialize())
	return nil
}

// Verify checks that e.ID matches the recomputed id and that e.Sig is a
// valid BIP340 Schnorr signature by e.PubKey over e.ID.
func Verify(e *Event) error {
	wantID, err := e.ComputeID()
	if err != nil {
		return fmt.Errorf("event: compute id: %w", err)
	}
	if wantID != e.ID {
		return errors.New("event: id does not match canonical serialization")
	}

	pubBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("event: decode pubkey: %w", err)
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("event: parse pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("event: decode signature: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("event: parse signature: %w", err)
	}

	idBytes, err := commitment.HashFromHex(e.ID)
	if err != nil {
		return fmt.Errorf("event: decode id: %w", err)
	}
	if !sig.Verify(idBytes[:], pub) {
		return errors.New("event: signature verification failed")
	}
	return nil
}
