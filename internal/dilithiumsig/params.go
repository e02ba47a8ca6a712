package dilithiumsig

// Parameter set for the Dilithium-flavored verifier. As with kyberkem,
// these are internally-consistent from-scratch parameters, not the NIST
// ML-DSA ones — chosen so the nibble-packed high-bits (see pack.go) fit
// the 4-bit encoding the wire format specifies.
const (
	// Q is the ring modulus.
	Q = 8380417
	// K is the number of rows of the public matrix A (and of t).
	K = 4
	// L is the number of columns of A (and the length of z).
	L = 4

	// Gamma2 is the high/low split bound; Alpha = 2*Gamma2 is the step
	// decompose uses.
	Gamma2 = (Q - 1) / 16
	Alpha  = 2 * Gamma2

	// Gamma1 bounds the infinity norm a well-formed z must respect.
	Gamma1 = 1 << 19
	// Beta is the signer-mask bound folded into the z-norm check.
	Beta = 196
	// Tau is the number of nonzero coefficients of the challenge
	// polynomial.
	Tau = 39

	// CommitmentSize is the length in bytes of the c~ commitment.
	CommitmentSize = 32
)
