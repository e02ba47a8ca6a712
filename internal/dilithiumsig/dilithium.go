// Package dilithiumsig implements a Dilithium-like Module-LWE signature
// *verifier* (component E). Signing is out of scope — this package never
// produces a signature, only checks one against (A, t) and a message.
package dilithiumsig

import (
	"crypto/subtle"

	"golang.org/x/crypto/sha3"

	"github.com/kindlyrobotics/qshare/internal/ring"
	"github.com/kindlyrobotics/qshare/internal/sampler"
)

// PublicKey is (A, t): A a K-by-L poly-matrix, t a length-K poly-vector,
// both reduced mod Q.
type PublicKey struct {
	A ring.Matrix
	T ring.Vector
}

// Signature is (z, c~): z a length-L poly-vector, c~ a 32-byte XOF
// commitment.
type Signature struct {
	Z      ring.Vector
	CTilde []byte
}

// Verify checks signature sig against message and public key pk.
//
// The infinity-norm check on z mirrors the source behavior this spec is
// distilled from exactly: it accepts if ANY polynomial of z satisfies the
// bound, not if ALL do. The standard Dilithium predicate is the stricter
// all(...) form; this is flagged as a hardening candidate, not fixed here,
// per the spec's instruction to preserve source behavior faithfully.
func Verify(message []byte, sig *Signature, pk *PublicKey) bool {
	if len(sig.Z) != L {
		return false
	}

	c := sampler.Challenge(sig.CTilde, Tau)

	az := ring.MatVecMul(pk.A, sig.Z, Q, false)
	ct := ring.VecReducePlus(ring.ScalarMul(c, pk.T), Q)

	w1 := make(ring.Vector, len(az))
	for i := range az {
		diff := ring.ReducePlus(ring.Sub(az[i], ct[i]), Q)
		hb := make(ring.Poly, len(diff))
		for j, coeff := range diff {
			hb[j] = ring.HighBits(coeff, Alpha, Q)
		}
		w1[i] = hb
	}

	packed := packHighBits(w1)

	xof := sha3.NewShake256()
	xof.Write(message)
	xof.Write(packed)
	recomputed := make([]byte, CommitmentSize)
	if _, err := xof.Read(recomputed); err != nil {
		return false
	}

	zBoundOK := false
	for _, poly := range sig.Z {
		maxCoeff := poly[0]
		for _, c := range poly {
			if c > maxCoeff {
				maxCoeff = c
			}
		}
		if maxCoeff < Gamma1-Beta {
			zBoundOK = true
			break
		}
	}

	return zBoundOK &&
		len(recomputed) == len(sig.CTilde) &&
		subtle.ConstantTimeCompare(recomputed, sig.CTilde) == 1
}
