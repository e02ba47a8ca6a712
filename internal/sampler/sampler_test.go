package sampler

import "testing"

func TestUniformPolyDeterministic(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	nonce := []byte{0x01, 0x02}
	q := int64(8380417)

	a := UniformPoly(seed, nonce, q)
	b := UniformPoly(seed, nonce, q)

	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("coefficient %d differs across identical calls: %d vs %d", i, a[i], b[i])
		}
		if a[i] < 0 || a[i] >= q {
			t.Fatalf("coefficient %d = %d out of [0,%d)", i, a[i], q)
		}
	}
}

func TestUniformPolyKyberDeterministic(t *testing.T) {
	seed := make([]byte, SeedSize)
	nonce := []byte{0x00, 0x01}
	q := int64(3329)

	a := UniformPolyKyber(seed, nonce, q)
	b := UniformPolyKyber(seed, nonce, q)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("coefficient %d differs: %d vs %d", i, a[i], b[i])
		}
		if a[i] < 0 || a[i] >= q {
			t.Fatalf("coefficient %d = %d out of [0,%d)", i, a[i], q)
		}
	}
}

func TestUniformPolyDifferentNonceDiffers(t *testing.T) {
	seed := make([]byte, SeedSize)
	q := int64(8380417)
	a := UniformPoly(seed, []byte{0, 0}, q)
	b := UniformPoly(seed, []byte{0, 1}, q)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected different nonces to produce different polynomials")
	}
}

func TestCenteredBinomialSupport(t *testing.T) {
	eta := 3
	seen := map[int64]bool{}
	for i := 0; i < 20000 && len(seen) < int(2*eta+1); i++ {
		v, err := CenteredBinomial(eta)
		if err != nil {
			t.Fatalf("CenteredBinomial: %v", err)
		}
		if v < int64(-eta) || v > int64(eta) {
			t.Fatalf("value %d out of [-%d,%d]", v, eta, eta)
		}
		seen[v] = true
	}
	if len(seen) != 2*eta+1 {
		t.Fatalf("support incomplete: saw %d distinct values, want %d", len(seen), 2*eta+1)
	}
}

func TestChallengeWeight(t *testing.T) {
	seed := []byte("a fixed 32 byte commitment value")
	tau := 39
	c := Challenge(seed, tau)

	nonzero := 0
	for _, v := range c {
		switch v {
		case 0:
		case 1, -1:
			nonzero++
		default:
			t.Fatalf("challenge coefficient out of {-1,0,1}: %d", v)
		}
	}
	if nonzero != tau {
		t.Fatalf("challenge has %d nonzero coefficients, want %d", nonzero, tau)
	}

	c2 := Challenge(seed, tau)
	for i := range c {
		if c[i] != c2[i] {
			t.Fatalf("challenge is not deterministic in its seed at index %d", i)
		}
	}
}

func TestExpandMatrixShape(t *testing.T) {
	seed := make([]byte, SeedSize)
	m := ExpandMatrix(seed, 4, 4, 8380417, FlavorDilithium)
	if len(m) != 4 {
		t.Fatalf("rows = %d, want 4", len(m))
	}
	for _, row := range m {
		if len(row) != 4 {
			t.Fatalf("cols = %d, want 4", len(row))
		}
	}
}
