package crypto

import "testing"

func TestCBCRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef") // 32 bytes, AES-256
	key = key[:32]
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, iv, err := EncryptCBC(key, plaintext)
	if err != nil {
		t.Fatalf("EncryptCBC: %v", err)
	}
	if len(ciphertext)%16 != 0 {
		t.Fatalf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	recovered, err := DecryptCBC(key, ciphertext, iv)
	if err != nil {
		t.Fatalf("DecryptCBC: %v", err)
	}
	if string(recovered) != string(plaintext) {
		t.Fatalf("recovered = %q, want %q", recovered, plaintext)
	}
}

func TestCBCRejectsTamperedPadding(t *testing.T) {
	key := make([]byte, 32)
	plaintext := []byte("short message")

	ciphertext, iv, err := EncryptCBC(key, plaintext)
	if err != nil {
		t.Fatalf("EncryptCBC: %v", err)
	}

	ciphertext[len(ciphertext)-1] ^= 0xFF
	if _, err := DecryptCBC(key, ciphertext, iv); err == nil {
		t.Fatalf("expected a padding error after tampering with the last block")
	}
}

func TestCBCEmptyPlaintext(t *testing.T) {
	key := make([]byte, 16)
	ciphertext, iv, err := EncryptCBC(key, nil)
	if err != nil {
		t.Fatalf("EncryptCBC: %v", err)
	}
	recovered, err := DecryptCBC(key, ciphertext, iv)
	if err != nil {
		t.Fatalf("DecryptCBC: %v", err)
	}
	if len(recovered) != 0 {
		t.Fatalf("recovered %d bytes from empty plaintext", len(recovered))
	}
}
