package kdf

import (
	"errors"
	"testing"
)

func TestPairwiseKeyOrderIndependent(t *testing.T) {
	a := PairwiseKey("alice@example.com", "bob@example.com")
	b := PairwiseKey("bob@example.com", "alice@example.com")
	if a != b {
		t.Fatalf("pairwise key depends on argument order: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("pairwise key length = %d, want 64 hex chars", len(a))
	}
}

func TestPairwiseKeyDistinctForDistinctPairs(t *testing.T) {
	a := PairwiseKey("alice@example.com", "bob@example.com")
	b := PairwiseKey("alice@example.com", "carol@example.com")
	if a == b {
		t.Fatalf("distinct pairs produced the same key")
	}
}

func TestStorageAESKeyLength(t *testing.T) {
	pairwise := PairwiseKey("alice@example.com", "bob@example.com")
	secret := []byte("0123456789abcdef-padding-secret")

	key, err := StorageAESKey(pairwise, secret)
	if err != nil {
		t.Fatalf("StorageAESKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d, want 32", len(key))
	}
	if string(key[:16]) != pairwise[:16] {
		t.Fatalf("first half of key does not match the pairwise key prefix")
	}
	if string(key[16:]) != string(secret[:16]) {
		t.Fatalf("second half of key does not match the server secret prefix")
	}
}

func TestStorageAESKeyRejectsShortSecret(t *testing.T) {
	pairwise := PairwiseKey("alice@example.com", "bob@example.com")
	if _, err := StorageAESKey(pairwise, []byte("short")); !errors.Is(err, ErrKeyMaterialTooShort) {
		t.Fatalf("got err %v, want ErrKeyMaterialTooShort", err)
	}
}

func TestContentHashDeterministicAndDistinct(t *testing.T) {
	h1 := ContentHash([]byte("payload one"))
	h2 := ContentHash([]byte("payload one"))
	h3 := ContentHash([]byte("payload two"))

	if h1 != h2 {
		t.Fatalf("ContentHash is not deterministic: %q vs %q", h1, h2)
	}
	if h1 == h3 {
		t.Fatalf("distinct payloads hashed to the same content id")
	}
	if len(h1) != 64 {
		t.Fatalf("content hash length = %d, want 64 hex chars", len(h1))
	}
}
