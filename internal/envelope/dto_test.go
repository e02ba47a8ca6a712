package envelope

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeKyberCiphertextRoundTrip(t *testing.T) {
	raw := `{"u":[[1,2,3]],"v":[4,5,6]}`

	ct, err := decodeKyberCiphertext(raw)
	if err != nil {
		t.Fatalf("decodeKyberCiphertext: %v", err)
	}
	if len(ct.U) != 1 || len(ct.U[0]) != 3 || ct.U[0][1] != 2 {
		t.Fatalf("unexpected U: %+v", ct.U)
	}
	if len(ct.V) != 3 || ct.V[2] != 6 {
		t.Fatalf("unexpected V: %+v", ct.V)
	}
}

func TestDecodeKyberCiphertextMalformed(t *testing.T) {
	_, err := decodeKyberCiphertext("not json")
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("err = %v, want ErrMalformedJSON", err)
	}
}

func TestDecodeDilithiumPublicKeyRoundTrip(t *testing.T) {
	raw := `[[[[1,2]]],[[3,4]]]`

	pk, err := decodeDilithiumPublicKey(raw)
	if err != nil {
		t.Fatalf("decodeDilithiumPublicKey: %v", err)
	}
	if len(pk.A) != 1 || len(pk.A[0]) != 1 || pk.A[0][0][1] != 2 {
		t.Fatalf("unexpected A: %+v", pk.A)
	}
	if len(pk.T) != 1 || pk.T[0][1] != 4 {
		t.Fatalf("unexpected T: %+v", pk.T)
	}
}

func TestDecodeDilithiumPublicKeyMalformed(t *testing.T) {
	_, err := decodeDilithiumPublicKey("{not valid")
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("err = %v, want ErrMalformedJSON", err)
	}
}

func TestDecodeSignatureRoundTrip(t *testing.T) {
	cp := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	raw := `{"z":[[7,8]],"cp":"` + cp + `"}`

	sig, err := decodeSignature(raw)
	if err != nil {
		t.Fatalf("decodeSignature: %v", err)
	}
	if len(sig.Z) != 1 || sig.Z[0][0] != 7 {
		t.Fatalf("unexpected Z: %+v", sig.Z)
	}
	if string(sig.CTilde) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("unexpected CTilde: %q", sig.CTilde)
	}
}

func TestDecodeSignatureRejectsBadBase64(t *testing.T) {
	raw := `{"z":[[1]],"cp":"not-base64!!"}`
	if _, err := decodeSignature(raw); !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("err = %v, want ErrMalformedJSON", err)
	}
}

func TestDecodeDownloadKyberKeyPairRoundTrip(t *testing.T) {
	seed := base64.StdEncoding.EncodeToString([]byte("seedseedseedseedseedseedseedseed"))
	raw := `{"t":[[9,10]],"seed":"` + seed + `"}`

	pk, err := decodeDownloadKyberKeyPair(raw)
	if err != nil {
		t.Fatalf("decodeDownloadKyberKeyPair: %v", err)
	}
	if len(pk.T) != 1 || pk.T[0][1] != 10 {
		t.Fatalf("unexpected T: %+v", pk.T)
	}
	if string(pk.Seed) != "seedseedseedseedseedseedseedseed" {
		t.Fatalf("unexpected seed: %q", pk.Seed)
	}
}
