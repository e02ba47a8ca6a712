// Package kyberkem implements a Kyber-like Module-LWE key encapsulation
// mechanism (component D): key-pair generation, CPA-style encapsulation to
// a 256-bit shared key, and the matching decapsulation. It builds directly
// on internal/ring and internal/sampler; it does not import an existing
// KEM implementation, per the spec's requirement that this be a
// from-scratch implementation.
package kyberkem

import (
	"fmt"

	"github.com/kindlyrobotics/qshare/internal/ring"
	"github.com/kindlyrobotics/qshare/internal/sampler"
)

// PublicKey is (t, seed): t is the length-K poly-vector t = A*s+e mod Q,
// seed re-expands the public matrix A.
type PublicKey struct {
	T    ring.Vector
	Seed []byte
}

// PrivateKey is the length-K sampled noise vector s.
type PrivateKey struct {
	S ring.Vector
}

// Ciphertext is (u, v): u a length-K poly-vector, v a single polynomial,
// both reduced mod Q.
type Ciphertext struct {
	U ring.Vector
	V ring.Poly
}

// GenerateKeyPair samples a fresh seed, expands A, draws secret/error
// vectors, and computes t = A*s + e (mod Q).
func GenerateKeyPair() (*PublicKey, *PrivateKey, error) {
	seed, err := sampler.RandomSeed()
	if err != nil {
		return nil, nil, fmt.Errorf("kyberkem: generate key pair: %w", err)
	}

	a := sampler.ExpandMatrix(seed, K, K, Q, sampler.FlavorKyber)

	s, err := sampler.NoiseVector(K, Eta)
	if err != nil {
		return nil, nil, fmt.Errorf("kyberkem: sample s: %w", err)
	}
	e, err := sampler.NoiseVector(K, Eta)
	if err != nil {
		return nil, nil, fmt.Errorf("kyberkem: sample e: %w", err)
	}

	t := ring.VecReducePlus(ring.VecAdd(ring.MatVecMul(a, s, Q, false), e), Q)

	return &PublicKey{T: t, Seed: seed}, &PrivateKey{S: s}, nil
}

// Encapsulate draws a fresh 256-bit secret, lifts it to a message
// polynomial, and produces a ciphertext (u,v) that the matching
// decapsulation recovers the secret from.
func Encapsulate(pk *PublicKey) (*Ciphertext, [SharedKeySize]byte, error) {
	var key [SharedKeySize]byte

	m1, err := sampler.RandomSeed()
	if err != nil {
		return nil, key, fmt.Errorf("kyberkem: encapsulate: %w", err)
	}
	copy(key[:], m1)

	m := messagePoly(m1)

	a := sampler.ExpandMatrix(pk.Seed, K, K, Q, sampler.FlavorKyber)

	r, err := sampler.NoiseVector(K, Eta)
	if err != nil {
		return nil, key, fmt.Errorf("kyberkem: sample r: %w", err)
	}
	e1, err := sampler.NoiseVector(K, Eta)
	if err != nil {
		return nil, key, fmt.Errorf("kyberkem: sample e1: %w", err)
	}
	e2, err := sampler.NoisePoly(Eta)
	if err != nil {
		return nil, key, fmt.Errorf("kyberkem: sample e2: %w", err)
	}

	u := ring.VecReducePlus(ring.VecAdd(ring.MatVecMul(a, r, Q, true), e1), Q)
	v := ring.ReducePlus(ring.Add(ring.Add(ring.InnerProduct(pk.T, r, Q), e2), m), Q)

	return &Ciphertext{U: u, V: v}, key, nil
}

// Decapsulate recovers the 256-bit shared key from ciphertext ct using
// secret key sk.
func Decapsulate(sk *PrivateKey, ct *Ciphertext) [SharedKeySize]byte {
	w := ring.ReducePlus(ring.Sub(ct.V, ring.InnerProduct(sk.S, ct.U, Q)), Q)

	half := ceilHalf(Q)
	bits := make([]byte, ring.N)
	for i, c := range w {
		da := absInt64(c - half)
		db := min64(absInt64(c), absInt64(c-Q))
		if da < db {
			bits[i] = 1
		}
	}

	var key [SharedKeySize]byte
	packBits(bits, key[:])
	return key
}

// messagePoly lifts a 32-byte secret to a ring.N-coefficient polynomial:
// each bit of the big-endian bit expansion scales by ceil(Q/2).
func messagePoly(secret []byte) ring.Poly {
	half := ceilHalf(Q)
	p := make(ring.Poly, ring.N)
	for byteIdx, b := range secret {
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			bit := (b >> (7 - bitIdx)) & 1
			p[byteIdx*8+bitIdx] = int64(bit) * half
		}
	}
	return p
}

func packBits(bits []byte, out []byte) {
	for i := range out {
		var b byte
		for j := 0; j < 8; j++ {
			b = (b << 1) | (bits[i*8+j] & 1)
		}
		out[i] = b
	}
}

func ceilHalf(q int64) int64 {
	return (q + 1) / 2
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
