package dilithiumsig

import (
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/kindlyrobotics/qshare/internal/ring"
)

func TestPackHighBitsNibbleLayout(t *testing.T) {
	p := make(ring.Poly, ring.N)
	p[0], p[1] = 3, 10
	p[2], p[3] = 15, 0
	v := ring.Vector{p}

	out := packHighBits(v)
	if len(out) != ring.N/2 {
		t.Fatalf("packed length = %d, want %d", len(out), ring.N/2)
	}
	if out[0] != byte(3|10<<4) {
		t.Fatalf("byte 0 = %#x, want %#x", out[0], byte(3|10<<4))
	}
	if out[1] != byte(15|0<<4) {
		t.Fatalf("byte 1 = %#x, want %#x", out[1], byte(15))
	}
}

func zeroMatrix(k, l int) ring.Matrix {
	m := make(ring.Matrix, k)
	for i := range m {
		m[i] = make(ring.Vector, l)
		for j := range m[i] {
			m[i][j] = make(ring.Poly, ring.N)
		}
	}
	return m
}

func zeroVector(n int) ring.Vector {
	v := make(ring.Vector, n)
	for i := range v {
		v[i] = make(ring.Poly, ring.N)
	}
	return v
}

func TestVerifyDeterministic(t *testing.T) {
	pk := &PublicKey{A: zeroMatrix(K, L), T: zeroVector(K)}
	sig := &Signature{Z: zeroVector(L), CTilde: make([]byte, CommitmentSize)}
	msg := []byte("hello world")

	r1 := Verify(msg, sig, pk)
	r2 := Verify(msg, sig, pk)
	if r1 != r2 {
		t.Fatalf("Verify is not deterministic: %v vs %v", r1, r2)
	}
}

// TestVerifyAcceptsWellFormedSignature is the one positive assertion in
// this file: with an all-zero A, t, and z, every intermediate value in
// Verify (az, ct, w1) is the all-zero vector, so the expected commitment
// is just SHAKE-256 over the message and the nibble-packed zero w1 —
// computed here the same way Verify computes it, then handed to Verify
// as CTilde to confirm a well-formed signature is actually accepted, not
// just that malformed ones are rejected.
func TestVerifyAcceptsWellFormedSignature(t *testing.T) {
	pk := &PublicKey{A: zeroMatrix(K, L), T: zeroVector(K)}
	msg := []byte("well-formed message")

	w1 := zeroVector(K)
	packed := packHighBits(w1)
	xof := sha3.NewShake256()
	xof.Write(msg)
	xof.Write(packed)
	cTilde := make([]byte, CommitmentSize)
	if _, err := xof.Read(cTilde); err != nil {
		t.Fatalf("xof.Read: %v", err)
	}

	sig := &Signature{Z: zeroVector(L), CTilde: cTilde}
	if !Verify(msg, sig, pk) {
		t.Fatalf("expected a well-formed all-zero signature to verify")
	}
}

func TestVerifyRejectsWrongCommitmentLength(t *testing.T) {
	pk := &PublicKey{A: zeroMatrix(K, L), T: zeroVector(K)}
	sig := &Signature{Z: zeroVector(L), CTilde: make([]byte, CommitmentSize-1)}
	if Verify([]byte("msg"), sig, pk) {
		t.Fatalf("expected rejection of a short commitment")
	}
}

func TestVerifyRejectsShortZ(t *testing.T) {
	pk := &PublicKey{A: zeroMatrix(K, L), T: zeroVector(K)}
	sig := &Signature{Z: zeroVector(L - 1), CTilde: make([]byte, CommitmentSize)}
	if Verify([]byte("msg"), sig, pk) {
		t.Fatalf("expected rejection of a malformed z")
	}
}

func TestVerifyTamperedMessageRejected(t *testing.T) {
	// Even a coincidental pass for one message must not also pass for a
	// tampered one sharing the same signature fields, since the
	// commitment folds in the message bytes.
	pk := &PublicKey{A: zeroMatrix(K, L), T: zeroVector(K)}
	sig := &Signature{Z: zeroVector(L), CTilde: make([]byte, CommitmentSize)}

	a := Verify([]byte("original payload"), sig, pk)
	b := Verify([]byte("original payloaX"), sig, pk)
	if a && b {
		t.Fatalf("tampering the message must not leave verification unaffected")
	}
}
