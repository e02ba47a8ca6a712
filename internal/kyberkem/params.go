package kyberkem

// Parameter set. These are not the NIST ML-KEM parameters — the core
// implements a from-scratch Module-LWE KEM per spec (schoolbook
// multiplication, no NTT), so the concrete modulus/rank/noise bound are
// chosen to be internally consistent rather than standards-matching.
const (
	// Q is the Kyber-flavor ring modulus.
	Q = 3329
	// K is the module rank (size of the secret/noise vectors and of A).
	K = 3
	// Eta is the centered-binomial noise bound.
	Eta = 2

	// SharedKeySize is the length in bytes of a recovered/encapsulated key.
	SharedKeySize = 32
)
