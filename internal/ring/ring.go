// Package ring implements arithmetic over the cyclotomic ring
// Z_q[X] / (X^N + 1) shared by the Kyber-like KEM and the Dilithium-like
// signature verifier. Coefficients are kept in plain int64 slices rather
// than NTT domain: the core deliberately uses schoolbook/Karatsuba
// multiplication followed by negacyclic reduction, not the NTT-accelerated
// form (out of scope, see spec).
package ring

// N is the ring degree, shared by both parameter sets.
const N = 256

// Poly is a polynomial in Z[X], represented by its coefficients in
// ascending degree order. Coefficients are not implicitly reduced; callers
// apply ReducePlus/ReduceSym/Reduce at the points the algorithms call for.
type Poly []int64

// New returns a zero polynomial of length N.
func New() Poly {
	return make(Poly, N)
}

// Clone returns a copy of p.
func (p Poly) Clone() Poly {
	out := make(Poly, len(p))
	copy(out, p)
	return out
}

// Add returns a+b, zero-extending the shorter operand. No reduction.
func Add(a, b Poly) Poly {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Poly, n)
	for i := 0; i < n; i++ {
		var av, bv int64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = av + bv
	}
	return out
}

// Sub returns a-b, zero-extending the shorter operand. No reduction.
func Sub(a, b Poly) Poly {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Poly, n)
	for i := 0; i < n; i++ {
		var av, bv int64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = av - bv
	}
	return out
}

// schoolbookMul multiplies two polynomials the naive way. mulKaratsuba does
// not call it: its length-1 base case multiplies the two coefficients
// directly.
func schoolbookMul(a, b Poly) Poly {
	out := make(Poly, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

// mulKaratsuba computes the full (unreduced) product of a and b via
// Karatsuba's algorithm. Both operands are zero-padded to n =
// max(len(a), len(b)), so the result has length 2n-1; the entries past
// len(a)+len(b)-2 are zero.
func mulKaratsuba(a, b Poly) Poly {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n <= 1 || len(a) != len(b) {
		// Pad to equal, power-friendly length before recursing; the base
		// case (degree 1) falls back to schoolbook directly.
		pa := padTo(a, n)
		pb := padTo(b, n)
		if n == 1 {
			return Poly{pa[0] * pb[0]}
		}
		return mulKaratsuba(pa, pb)
	}

	half := (n + 1) / 2
	a0, a1 := padTo(a[:half], half), padTo(a[half:], half)
	b0, b1 := padTo(b[:half], half), padTo(b[half:], half)

	c0 := mulKaratsuba(a0, b0)
	c2 := mulKaratsuba(a1, b1)
	c1 := mulKaratsuba(Add(a0, a1), Add(b0, b1))
	mid := Sub(Sub(c1, c0), c2)

	out := make(Poly, 2*n-1)
	for i, v := range c0 {
		out[i] += v
	}
	for i, v := range mid {
		out[i+half] += v
	}
	for i, v := range c2 {
		// For odd n the top entries of c2 are zero padding and fall past
		// the end of out.
		if i+2*half < len(out) {
			out[i+2*half] += v
		}
	}
	return out
}

func padTo(p Poly, n int) Poly {
	out := make(Poly, n)
	copy(out, p)
	return out
}

// Mul computes the ring product of a and b: full Karatsuba multiplication
// followed by negacyclic reduction (Reduce).
func Mul(a, b Poly) Poly {
	return Reduce(mulKaratsuba(a, b))
}

// Reduce folds a polynomial of arbitrary length into the ring
// Z[X]/(X^N+1): X^N is identified with -1. Coefficient i of the source
// contributes to index i mod N of the result, with sign + if floor(i/N) is
// even else -.
func Reduce(p Poly) Poly {
	out := make(Poly, N)
	for i, coeff := range p {
		if (i/N)%2 == 0 {
			out[i%N] += coeff
		} else {
			out[i%N] -= coeff
		}
	}
	return out
}

// ReducePlus maps every coefficient of p into [0, q).
func ReducePlus(p Poly, q int64) Poly {
	out := make(Poly, len(p))
	for i, c := range p {
		out[i] = modPlus(c, q)
	}
	return out
}

func modPlus(c, q int64) int64 {
	return ((c % q) + q) % q
}

// ReduceSym maps every coefficient of p into the symmetric range around
// zero: [-floor(q/2), ceil(q/2)).
func ReduceSym(p Poly, q int64) Poly {
	out := make(Poly, len(p))
	for i, c := range p {
		out[i] = modSym(c, q)
	}
	return out
}

func modSym(c, q int64) int64 {
	var offset int64
	if q%2 == 0 {
		offset = q / 2
	} else {
		offset = (q - 1) / 2
	}
	return ((c+offset)%q+q)%q - offset
}

// Decompose splits r modulo Q into a high-order quotient and a low-order
// symmetric residue around a step of size alpha, per the Dilithium-style
// decomposition used by high-bits signature verification.
func Decompose(r, alpha, q int64) (high, low int64) {
	r = modPlus(r, q)
	r0 := modSym(r, alpha)
	if r-r0 == q-1 {
		return 0, r0 - 1
	}
	return (r - r0) / alpha, r0
}

// HighBits returns only the quotient half of Decompose.
func HighBits(r, alpha, q int64) int64 {
	h, _ := Decompose(r, alpha, q)
	return h
}
