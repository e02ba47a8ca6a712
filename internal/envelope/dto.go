package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kindlyrobotics/qshare/internal/dilithiumsig"
	"github.com/kindlyrobotics/qshare/internal/kyberkem"
	"github.com/kindlyrobotics/qshare/internal/ring"
)

// FileUploadDTO is the multipart-form-adjacent metadata that accompanies a
// batch of peer-encrypted buffers on /upload. The HTTP layer decodes the
// multipart body into this struct; everything inside it is still in wire
// form (JSON-in-a-string, base64) until the decode* helpers below parse it.
type FileUploadDTO struct {
	InitVectors    []string `json:"init_vectors"`
	FileNames      []string `json:"file_names"`
	FileSizes      []int64  `json:"file_sizes"`
	FileTypes      []string `json:"file_types"`
	FileSignatures []string `json:"file_signatures"`
	DLPublicKey    string   `json:"dl_public_key"`
	KyberKey       string   `json:"kyber_key"`
	RecipientEmail string   `json:"recipient_email"`
	Expiration     int      `json:"expiration"`
	DownloadCount  int      `json:"download_count"`
	Anonymous      bool     `json:"anonymous"`

	// SessionID binds this upload to the secret handed out by a prior
	// BeginSession call. Its absence or mismatch is what SessionKeyMissing
	// guards against (see session.go) now that the session store is keyed
	// by this id rather than by identity alone.
	SessionID string `json:"session_id"`
}

// FileDownloadDTO is the requester's half of /download: which file, and the
// fresh Kyber public key the server should re-encrypt toward.
type FileDownloadDTO struct {
	FileID       string `json:"file_id"`
	KyberKeyPair string `json:"kyber_key_pair"`
}

// wirePoly/wireVector/wireMatrix are the JSON shapes of ring.Poly/Vector/
// Matrix: nested arrays of coefficients, matching the plain list-of-lists
// encoding the peer client uses — no custom framing.
type wirePoly = []int64
type wireVector = []wirePoly
type wireMatrix = []wireVector

type wireKyberCiphertext struct {
	U wireVector `json:"u"`
	V wirePoly   `json:"v"`
}

// dlPublicKeyPair is dl_public_key's actual wire shape: a 2-element JSON
// array [A, t], not an object — decoded positionally below.
type dlPublicKeyPair [2]json.RawMessage

type wireSignature struct {
	Z  wireVector `json:"z"`
	CP string     `json:"cp"`
}

type wireKyberPublicKey struct {
	T    wireVector `json:"t"`
	Seed string     `json:"seed"`
}

func toPoly(w wirePoly) ring.Poly {
	p := make(ring.Poly, len(w))
	copy(p, w)
	return p
}

func toVector(w wireVector) ring.Vector {
	v := make(ring.Vector, len(w))
	for i, p := range w {
		v[i] = toPoly(p)
	}
	return v
}

func toMatrix(w wireMatrix) ring.Matrix {
	m := make(ring.Matrix, len(w))
	for i, row := range w {
		m[i] = toVector(row)
	}
	return m
}

func fromVector(v ring.Vector) wireVector {
	w := make(wireVector, len(v))
	for i, p := range v {
		w[i] = wirePoly(p)
	}
	return w
}

// decodeKyberCiphertext parses the kyber_key JSON field: {"u": [...], "v": [...]}.
func decodeKyberCiphertext(raw string) (*kyberkem.Ciphertext, error) {
	var w wireKyberCiphertext
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: kyber_key: %v", ErrMalformedJSON, err)
	}
	return &kyberkem.Ciphertext{U: toVector(w.U), V: toPoly(w.V)}, nil
}

// decodeDilithiumPublicKey parses dl_public_key's [A, t] array form.
func decodeDilithiumPublicKey(raw string) (*dilithiumsig.PublicKey, error) {
	var pair dlPublicKeyPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return nil, fmt.Errorf("%w: dl_public_key: %v", ErrMalformedJSON, err)
	}

	var a wireMatrix
	if err := json.Unmarshal(pair[0], &a); err != nil {
		return nil, fmt.Errorf("%w: dl_public_key.A: %v", ErrMalformedJSON, err)
	}
	var t wireVector
	if err := json.Unmarshal(pair[1], &t); err != nil {
		return nil, fmt.Errorf("%w: dl_public_key.t: %v", ErrMalformedJSON, err)
	}

	return &dilithiumsig.PublicKey{A: toMatrix(a), T: toVector(t)}, nil
}

// decodeSignature parses one file_signatures[i] entry: {"z": [...], "cp": base64}.
func decodeSignature(raw string) (*dilithiumsig.Signature, error) {
	var w wireSignature
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: file_signatures: %v", ErrMalformedJSON, err)
	}
	cTilde, err := base64.StdEncoding.DecodeString(w.CP)
	if err != nil {
		return nil, fmt.Errorf("%w: file_signatures.cp: %v", ErrMalformedJSON, err)
	}
	return &dilithiumsig.Signature{Z: toVector(w.Z), CTilde: cTilde}, nil
}

// decodeDownloadKyberKeyPair parses kyber_key_pair: {"t": [...], "seed": base64}.
func decodeDownloadKyberKeyPair(raw string) (*kyberkem.PublicKey, error) {
	var w wireKyberPublicKey
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: kyber_key_pair: %v", ErrMalformedJSON, err)
	}
	seed, err := base64.StdEncoding.DecodeString(w.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: kyber_key_pair.seed: %v", ErrMalformedJSON, err)
	}
	return &kyberkem.PublicKey{T: toVector(w.T), Seed: seed}, nil
}

// encodeKyberPublicKey is the wire encoding BeginSession hands back to the
// caller: {"t": [...], "seed": base64}.
func encodeKyberPublicKey(pk *kyberkem.PublicKey) wireKyberPublicKey {
	return wireKyberPublicKey{T: fromVector(pk.T), Seed: base64.StdEncoding.EncodeToString(pk.Seed)}
}
