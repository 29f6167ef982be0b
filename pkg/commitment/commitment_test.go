package commitment

import "testing"

type samplePayload struct {
	Amount int      `json:"amount"`
	Tags   []string `json:"tags"`
}

func TestCommitRoundTrip(t *testing.T) {
	payload := samplePayload{Amount: 100, Tags: []string{"b", "a"}}
	nonce := []byte("nonce-1")

	h, err := Commit(payload, nonce)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ok, err := Verify(h, payload, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected commitment to verify against its own payload/nonce")
	}
}

func TestVerifyRejectsAlteredPayload(t *testing.T) {
	nonce := []byte("nonce-1")
	h, err := Commit(samplePayload{Amount: 100}, nonce)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ok, err := Verify(h, samplePayload{Amount: 101}, nonce)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("altered payload must not verify against the original commitment")
	}
}

func TestVerifyRejectsAlteredNonce(t *testing.T) {
	payload := samplePayload{Amount: 100}
	h, err := Commit(payload, []byte("nonce-1"))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ok, err := Verify(h, payload, []byte("nonce-2"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("altered nonce must not verify against the original commitment")
	}
}

func TestCommitChainedBindsPrevID(t *testing.T) {
	payload := samplePayload{Amount: 7}
	nonce := []byte("n")
	prevA := []byte("event-a")
	prevB := []byte("event-b")

	hA, err := CommitChained(payload, nonce, prevA)
	if err != nil {
		t.Fatalf("CommitChained: %v", err)
	}

	ok, err := VerifyChained(hA, payload, nonce, prevB)
	if err != nil {
		t.Fatalf("VerifyChained: %v", err)
	}
	if ok {
		t.Fatal("commitment chained to prevA must not verify against prevB")
	}

	ok, err = VerifyChained(hA, payload, nonce, prevA)
	if err != nil {
		t.Fatalf("VerifyChained: %v", err)
	}
	if !ok {
		t.Fatal("commitment chained to prevA must verify against prevA")
	}
}

func TestCanonicalJSONKeyOrderIndependence(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "nested": map[string]interface{}{"z": 1, "y": 2}}
	b := map[string]interface{}{"a": 2, "b": 1, "nested": map[string]interface{}{"y": 2, "z": 1}}

	canonA, err := CanonicalJSON(a)
	if err != nil {
		t.Fatalf("CanonicalJSON(a): %v", err)
	}
	canonB, err := CanonicalJSON(b)
	if err != nil {
		t.Fatalf("CanonicalJSON(b): %v", err)
	}
	if string(canonA) != string(canonB) {
		t.Fatalf("canonical encodings differ despite equal key sets: %s vs %s", canonA, canonB)
	}
}

func TestHashFromHexRejectsWrongLength(t *testing.T) {
	if _, err := HashFromHex("abcd"); err == nil {
		t.Fatal("expected error for short hex string")
	}
}
