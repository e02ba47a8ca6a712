// Package kdf derives the symmetric keys and content identifiers the
// envelope pipeline needs: a pairwise key between two identities, the
// AES-256 storage key built from it, and the content-addressed hash used
// for file dedup.
package kdf

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

// ErrKeyMaterialTooShort is returned by StorageAESKey when either half of
// the storage key is shorter than 16 bytes.
var ErrKeyMaterialTooShort = errors.New("kdf: key material shorter than 16 bytes")

// PairwiseKey derives a deterministic, order-independent key for the pair
// of identities (e1, e2): it sorts the two strings, concatenates them, and
// takes the SHA3-256 hex digest. Sorting first means the sender and
// recipient derive the same key regardless of which side computes it.
func PairwiseKey(e1, e2 string) string {
	pair := []string{e1, e2}
	sort.Strings(pair)

	h := sha3.New256()
	h.Write([]byte(pair[0] + pair[1]))
	return hex.EncodeToString(h.Sum(nil))
}

// StorageAESKey builds the AES-256 key used to encrypt a file at rest: the
// first 16 bytes of the pairwise key (hex string, taken as raw bytes) plus
// the first 16 bytes of the server's static secret. Neither half may be
// shorter than 16 bytes.
func StorageAESKey(pairwise string, serverSecret []byte) ([]byte, error) {
	pairwiseBytes := []byte(pairwise)
	if len(pairwiseBytes) < 16 || len(serverSecret) < 16 {
		return nil, fmt.Errorf("%w", ErrKeyMaterialTooShort)
	}

	key := make([]byte, 32)
	copy(key[:16], pairwiseBytes[:16])
	copy(key[16:], serverSecret[:16])
	return key, nil
}

// ContentHash returns the SHA3-256 hex digest of data, used as the
// content-addressed file_id for dedup in the blob store.
func ContentHash(data []byte) string {
	h := sha3.New256()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
