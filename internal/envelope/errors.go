package envelope

import (
	"errors"

	"github.com/kindlyrobotics/qshare/internal/kdf"
)

// Error kinds the envelope pipeline surfaces. The HTTP layer maps these to
// status classes; the pipeline itself never formats a response.
var (
	// Input validation
	ErrMalformedJSON       = errors.New("envelope: malformed json in upload dto")
	ErrRecipientUnknown    = errors.New("envelope: recipient unknown")
	ErrSelfSend            = errors.New("envelope: cannot send to self")
	ErrKeyMaterialTooShort = kdf.ErrKeyMaterialTooShort

	// Cryptographic
	ErrSignatureInvalid  = errors.New("envelope: signature invalid")
	ErrSessionKeyMissing = errors.New("envelope: session key missing")
	ErrDecryptionFailed  = errors.New("envelope: decryption failed")

	// Authorization / lifecycle
	ErrNotFound             = errors.New("envelope: not found")
	ErrForbidden            = errors.New("envelope: forbidden")
	ErrExpired              = errors.New("envelope: expired")
	ErrDownloadLimitReached = errors.New("envelope: download limit reached")
)
