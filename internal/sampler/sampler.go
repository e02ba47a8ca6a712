// Package sampler implements the deterministic, XOF-driven samplers that
// feed the ring arithmetic: uniform rejection sampling of ring elements
// (component B) and deterministic expansion of a poly-matrix from a seed
// (component C). Every function here is either a pure function of its
// byte inputs, or reads only from crypto/rand — this determinism is what
// lets two independent peers agree on the same matrix A from the same
// 32-byte seed.
package sampler

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/kindlyrobotics/qshare/internal/ring"
)

// SeedSize is the length in bytes of seeds consumed by ExpandMatrix and
// produced by RandomSeed.
const SeedSize = 32

// streamChunk is how many XOF bytes are squeezed per Read call while
// rejection sampling; chosen so the common case (q close to a power of
// two) needs only one chunk.
const streamChunk = 3 * 168

// RandomSeed returns 32 cryptographically strong random bytes.
func RandomSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("sampler: random seed: %w", err)
	}
	return seed, nil
}

// UniformPoly implements the Dilithium-flavored rejection sampler: absorb
// seed‖nonce into SHAKE-128, walk the squeezed stream in 3-byte groups,
// mask to 23 bits, and accept values less than q. The output is a pure
// function of (seed, nonce, q).
func UniformPoly(seed, nonce []byte, q int64) ring.Poly {
	xof := sha3.NewShake128()
	xof.Write(seed)
	xof.Write(nonce)

	out := make(ring.Poly, 0, ring.N)
	buf := make([]byte, streamChunk)
	for len(out) < ring.N {
		if _, err := xof.Read(buf); err != nil {
			panic(fmt.Sprintf("sampler: shake128 read: %v", err))
		}
		for i := 0; i+3 <= len(buf) && len(out) < ring.N; i += 3 {
			b := uint32(buf[i]) | uint32(buf[i+1])<<8 | uint32(buf[i+2])<<16
			b &= 0x7FFFFF
			if int64(b) < q {
				out = append(out, int64(b))
			}
		}
	}
	return out
}

// UniformPolyKyber implements the Kyber-flavored rejection sampler:
// identical absorption, but decodes two 12-bit candidates per 3-byte
// group.
func UniformPolyKyber(seed, nonce []byte, q int64) ring.Poly {
	xof := sha3.NewShake128()
	xof.Write(seed)
	xof.Write(nonce)

	out := make(ring.Poly, 0, ring.N)
	buf := make([]byte, streamChunk)
	for len(out) < ring.N {
		if _, err := xof.Read(buf); err != nil {
			panic(fmt.Sprintf("sampler: shake128 read: %v", err))
		}
		for i := 0; i+3 <= len(buf) && len(out) < ring.N; i += 3 {
			v0 := (uint32(buf[i]) | uint32(buf[i+1])<<8) & 0xFFF
			v1 := (uint32(buf[i+1])>>4 | uint32(buf[i+2])<<4) & 0xFFF
			if int64(v0) < q {
				out = append(out, int64(v0))
			}
			if len(out) < ring.N && int64(v1) < q {
				out = append(out, int64(v1))
			}
		}
	}
	return out
}

// Flavor selects which rejection sampler ExpandMatrix drives per cell.
type Flavor int

const (
	// FlavorDilithium uses UniformPoly (23-bit mask, one value per group).
	FlavorDilithium Flavor = iota
	// FlavorKyber uses UniformPolyKyber (12-bit pairs per group).
	FlavorKyber
)

// ExpandMatrix deterministically derives a k-by-l poly-matrix from a
// 32-byte seed: cell (i,j) is an independent uniform-poly call nonced with
// the big-endian encoding of (i,j).
func ExpandMatrix(seed []byte, k, l int, q int64, flavor Flavor) ring.Matrix {
	a := make(ring.Matrix, k)
	for i := 0; i < k; i++ {
		a[i] = make(ring.Vector, l)
		for j := 0; j < l; j++ {
			nonce := []byte{byte(i), byte(j)}
			switch flavor {
			case FlavorKyber:
				a[i][j] = UniformPolyKyber(seed, nonce, q)
			default:
				a[i][j] = UniformPoly(seed, nonce, q)
			}
		}
	}
	return a
}

// CenteredBinomial draws 2*eta independent uniform bits from a
// cryptographically secure RNG and returns the difference of their sums;
// the result lies in [-eta, eta].
func CenteredBinomial(eta int) (int64, error) {
	bits := make([]byte, 2*eta)
	if _, err := rand.Read(bits); err != nil {
		return 0, fmt.Errorf("sampler: centered binomial: %w", err)
	}
	var sum int64
	for i := 0; i < eta; i++ {
		sum += int64(bits[i] & 1)
	}
	for i := eta; i < 2*eta; i++ {
		sum -= int64(bits[i] & 1)
	}
	return sum, nil
}

// NoisePoly returns a single ring.N-length polynomial whose coefficients
// are independent CenteredBinomial(eta) draws.
func NoisePoly(eta int) (ring.Poly, error) {
	p := make(ring.Poly, ring.N)
	for i := range p {
		v, err := CenteredBinomial(eta)
		if err != nil {
			return nil, err
		}
		p[i] = v
	}
	return p, nil
}

// NoiseVector returns a poly-vector of the given size whose every
// coefficient is an independent CenteredBinomial(eta) draw.
func NoiseVector(size, eta int) (ring.Vector, error) {
	v := make(ring.Vector, size)
	for i := range v {
		p, err := NoisePoly(eta)
		if err != nil {
			return nil, err
		}
		v[i] = p
	}
	return v, nil
}

// Challenge implements the Dilithium-style sparse challenge polynomial:
// absorb seed into SHAKE-256, squeeze 256 bytes, and walk a Fisher-Yates
// style construction that places exactly tau coefficients of +-1.
func Challenge(seed []byte, tau int) ring.Poly {
	xof := sha3.NewShake256()
	xof.Write(seed)

	buf := make([]byte, 32*8)
	if _, err := xof.Read(buf); err != nil {
		panic(fmt.Sprintf("sampler: shake256 read: %v", err))
	}

	c := make(ring.Poly, ring.N)
	pos := 0
	for i := ring.N - tau; i < ring.N; i++ {
		j := int(buf[pos%ring.N]) % (i + 1)
		sign := buf[pos] & 1
		pos++

		c[i] = c[j]
		if sign == 1 {
			c[j] = -1
		} else {
			c[j] = 1
		}
	}
	return c
}
