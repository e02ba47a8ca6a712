package ring

import "testing"

func TestReducePlusRange(t *testing.T) {
	q := int64(3329)
	p := Poly{-5000, -1, 0, 1, 3328, 3329, 3330, 9999999}
	r := ReducePlus(p, q)
	for i, c := range r {
		if c < 0 || c >= q {
			t.Fatalf("coeff %d = %d out of [0,%d)", i, c, q)
		}
	}
}

func TestReduceSymRange(t *testing.T) {
	q := int64(3329)
	lo := -(q / 2)
	hi := q - (q / 2)
	p := Poly{-5000, -1, 0, 1, 3328, 3329, 3330, 9999999}
	r := ReduceSym(p, q)
	for i, c := range r {
		if c < lo || c >= hi {
			t.Fatalf("coeff %d = %d out of [%d,%d)", i, c, lo, hi)
		}
	}
}

// TestNegacyclicIdentity checks the defining relation of the ring: reducing
// a degree-N monomial (X^N) must be equivalent to -1, i.e. ring_reduce
// folds X^N into -1 at index 0.
func TestNegacyclicIdentity(t *testing.T) {
	xN := make(Poly, N+1)
	xN[N] = 1
	r := Reduce(xN)
	if r[0] != -1 {
		t.Fatalf("X^N should reduce to -1 at index 0, got %v", r[0])
	}
	for i := 1; i < N; i++ {
		if r[i] != 0 {
			t.Fatalf("X^N should reduce to a constant, nonzero at %d: %d", i, r[i])
		}
	}
}

// TestMulReduceLength confirms Mul always returns a canonical length-N
// polynomial regardless of input shape.
func TestMulReduceLength(t *testing.T) {
	a := New()
	b := New()
	a[0], a[1] = 3, 5
	b[0], b[1] = 7, 11
	p := Mul(a, b)
	if len(p) != N {
		t.Fatalf("Mul result length = %d, want %d", len(p), N)
	}
	// (3 + 5X)(7 + 11X) = 21 + (33+35)X + 55X^2 = 21 + 68X + 55X^2, no wraparound.
	if p[0] != 21 || p[1] != 68 || p[2] != 55 {
		t.Fatalf("unexpected low-degree product: %v", p[:3])
	}
}

func TestDecomposeReconstructs(t *testing.T) {
	q := int64(8380417)
	alpha := int64(1047552)
	for _, r := range []int64{0, 1, 523775, 523776, 1047551, 1047552, 8380416, -7, 20000000} {
		high, low := Decompose(r, alpha, q)
		recon := high*alpha + low
		rModQ := modPlus(r, q)
		if modPlus(recon, q) != rModQ {
			// wrap-around branch is documented to special-case; skip it
			if !(high == 0 && modPlus(rModQ-(q-1), q) == 0) {
				t.Fatalf("decompose(%d) = (%d,%d) does not reconstruct: recon=%d want=%d", r, high, low, modPlus(recon, q), rModQ)
			}
		}
	}
}

func TestAddSubZeroExtend(t *testing.T) {
	a := Poly{1, 2, 3}
	b := Poly{10}
	sum := Add(a, b)
	want := Poly{11, 2, 3}
	for i := range want {
		if sum[i] != want[i] {
			t.Fatalf("Add mismatch at %d: got %d want %d", i, sum[i], want[i])
		}
	}
	diff := Sub(a, b)
	want = Poly{-9, 2, 3}
	for i := range want {
		if diff[i] != want[i] {
			t.Fatalf("Sub mismatch at %d: got %d want %d", i, diff[i], want[i])
		}
	}
}
