// Package commitment implements the canonical-JSON commit/reveal primitives
// shared by every protocol kind that binds a secret payload to a public hash
// before later revealing it (army commitments, token commitments, move
// commitments).
package commitment

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
)

// Size is the length in bytes of a commitment hash.
const Size = 32

// Hash is a 32-byte commitment or event id.
type Hash [Size]byte

// Hex returns the lowercase hex encoding of h.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex parses a lowercase hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != Size {
		return h, errors.New("commitment: invalid hash length")
	}
	copy(h[:], b)
	return h, nil
}

// CanonicalJSON marshals v to JSON and then rewrites it with lexicographically
// sorted object keys at every depth and no insignificant whitespace. This is
// the single canonicalization rule used both for commitments and for hashing
// that enters event signatures; it must stay fixed across client, validator,
// and auditor (see the protocol's frozen canonical-JSON requirement).
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return canonicalizeRaw(raw)
}

func canonicalizeRaw(raw []byte) ([]byte, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	canonical := canonicalizeValue(v)
	return json.Marshal(canonical)
}

// canonicalizeValue recursively sorts map keys; arrays retain order.
func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// hashConcat returns SHA-256 of the concatenation of parts.
func hashConcat(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Commit implements commit(payload, nonce) = SHA256(canonical_json(payload) || 0x00 || nonce),
// used for army and token commitments.
func Commit(payload interface{}, nonce []byte) (Hash, error) {
	canon, err := CanonicalJSON(payload)
	if err != nil {
		return Hash{}, err
	}
	return hashConcat(canon, []byte{0x00}, nonce), nil
}

// CommitChained implements
// commit_chained(payload, nonce, prev_id) = SHA256(canonical_json(payload) || 0x00 || nonce || prev_id),
// used for move commitments.
func CommitChained(payload interface{}, nonce []byte, prevID []byte) (Hash, error) {
	canon, err := CanonicalJSON(payload)
	if err != nil {
		return Hash{}, err
	}
	return hashConcat(canon, []byte{0x00}, nonce, prevID), nil
}

// Verify recomputes Commit(payload, nonce) and compares it to want in
// constant time.
func Verify(want Hash, payload interface{}, nonce []byte) (bool, error) {
	got, err := Commit(payload, nonce)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1, nil
}

// VerifyChained recomputes CommitChained(payload, nonce, prevID) and compares
// it to want in constant time.
func VerifyChained(want Hash, payload interface{}, nonce []byte, prevID []byte) (bool, error) {
	got, err := CommitChained(payload, nonce, prevID)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1, nil
}
