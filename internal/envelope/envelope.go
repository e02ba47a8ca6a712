// Package envelope implements the hybrid decrypt-verify-rewrap pipeline
// (component F): it is the only package that composes kyberkem,
// dilithiumsig, kdf, and the CBC helpers in internal/crypto/symmetric into
// the three operations the HTTP layer calls — BeginSession, IngestUpload,
// ServeDownload — plus the read-only activity listings.
package envelope

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	symmetric "github.com/kindlyrobotics/qshare/internal/crypto/symmetric"
	"github.com/kindlyrobotics/qshare/internal/dilithiumsig"
	"github.com/kindlyrobotics/qshare/internal/identity"
	"github.com/kindlyrobotics/qshare/internal/kdf"
	"github.com/kindlyrobotics/qshare/internal/kyberkem"
	"github.com/kindlyrobotics/qshare/internal/models"
	"github.com/kindlyrobotics/qshare/internal/storage"
)

// handoffKeySize is 192 bits: the AES key length built from the first 24
// bytes of a 256-bit Kyber shared secret for both the upload and download
// legs of the pipeline (spec §4.E steps 2 and 3).
const handoffKeySize = 24

// sigVerifyWindow is the maximum prefix of a file's plaintext the
// Dilithium verifier is run against, regardless of file size.
const sigVerifyWindow = 1024

// ivBlobPrefixLen is the length of the IV prefixed onto every at-rest
// blob. Storage is a flat key-value store keyed by content hash; rather
// than maintain a parallel Postgres "files" table just to carry the IV
// next to the ciphertext, the IV travels with the blob itself.
const ivBlobPrefixLen = 16

type Service struct {
	db       *sql.DB
	storage  *storage.Service
	sessions *SessionStore
	identity *identity.Service
	secret   []byte
}

func NewService(db *sql.DB, store *storage.Service, sessions *SessionStore, idSvc *identity.Service, serverSecret []byte) *Service {
	return &Service{db: db, storage: store, sessions: sessions, identity: idSvc, secret: serverSecret}
}

// SessionResponse is begin_session's wire output: the public Kyber key
// plus the opaque session id the client must echo back on upload.
type SessionResponse struct {
	T         wireVector `json:"t"`
	Seed      string     `json:"seed"`
	SessionID string     `json:"session_id"`
}

// BeginSession generates a fresh Kyber key pair for identity and stores
// its secret half under a new session id.
func (s *Service) BeginSession(identityID string) (*SessionResponse, error) {
	pk, sessionID, err := s.sessions.Begin(identityID)
	if err != nil {
		return nil, err
	}
	log.Printf("[Envelope] began session for identity=%s", identityID)
	wirePK := encodeKyberPublicKey(pk)
	return &SessionResponse{
		T:         wirePK.T,
		Seed:      wirePK.Seed,
		SessionID: sessionID,
	}, nil
}

// UploadFile is one element of the buffers/metadata arrays IngestUpload
// receives, already split out per-file by the HTTP layer.
type UploadFile struct {
	Ciphertext []byte
	Name       string
	Size       int64
	Type       string
}

// IngestUpload runs the upload decrypt-and-rewrap pipeline (§4.E) over
// every file in files, then commits one file_logs row per file.
func (s *Service) IngestUpload(ctx context.Context, senderIdentity string, files []UploadFile, dto *FileUploadDTO) error {
	if dto.RecipientEmail == senderIdentity {
		return ErrSelfSend
	}

	exists, err := s.identity.Exists(ctx, dto.RecipientEmail)
	if err != nil {
		return fmt.Errorf("envelope: ingest upload: %w", err)
	}
	if !exists {
		return ErrRecipientUnknown
	}

	if len(files) != len(dto.InitVectors) || len(files) != len(dto.FileSignatures) {
		return fmt.Errorf("%w: file/metadata array length mismatch", ErrMalformedJSON)
	}

	secret, err := s.sessions.Take(dto.SessionID, senderIdentity)
	if err != nil {
		return err
	}

	ct, err := decodeKyberCiphertext(dto.KyberKey)
	if err != nil {
		return err
	}
	pubKey, err := decodeDilithiumPublicKey(dto.DLPublicKey)
	if err != nil {
		return err
	}

	sharedKey := kyberkem.Decapsulate(secret, ct)
	aesKey := sharedKey[:handoffKeySize]

	pairwise := kdf.PairwiseKey(senderIdentity, dto.RecipientEmail)
	storageKey, err := kdf.StorageAESKey(pairwise, s.secret)
	if err != nil {
		return err
	}

	expiry := time.Now().AddDate(0, 0, dto.Expiration)

	var pending []pendingLog
	var newlyStored []string

	rollbackNewBlobs := func() {
		for _, id := range newlyStored {
			if derr := s.storage.Delete(ctx, id); derr != nil {
				log.Printf("[Envelope] failed to roll back orphaned blob %s: %v", id, derr)
			}
		}
	}

	for i, file := range files {
		iv, err := base64.StdEncoding.DecodeString(dto.InitVectors[i])
		if err != nil {
			rollbackNewBlobs()
			return fmt.Errorf("%w: init_vectors[%d]: %v", ErrMalformedJSON, i, err)
		}

		plaintext, err := symmetric.DecryptCBC(aesKey, file.Ciphertext, iv)
		if err != nil {
			rollbackNewBlobs()
			return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}

		sig, err := decodeSignature(dto.FileSignatures[i])
		if err != nil {
			rollbackNewBlobs()
			return err
		}

		window := plaintext
		if len(window) > sigVerifyWindow {
			window = window[:sigVerifyWindow]
		}
		if !dilithiumsig.Verify(window, sig, pubKey) {
			rollbackNewBlobs()
			return ErrSignatureInvalid
		}

		fileID := kdf.ContentHash(plaintext)

		alreadyStored, err := s.storage.Exists(ctx, fileID)
		if err != nil {
			rollbackNewBlobs()
			return fmt.Errorf("envelope: ingest upload: %w", err)
		}
		if !alreadyStored {
			blobCiphertext, blobIV, err := symmetric.EncryptCBC(storageKey, plaintext)
			if err != nil {
				rollbackNewBlobs()
				return fmt.Errorf("envelope: ingest upload: %w", err)
			}
			blob := append(append([]byte{}, blobIV...), blobCiphertext...)
			if err := s.storage.Put(ctx, fileID, blob); err != nil {
				rollbackNewBlobs()
				return fmt.Errorf("envelope: ingest upload: %w", err)
			}
			newlyStored = append(newlyStored, fileID)
		}

		name := file.Name
		size := file.Size
		if i < len(dto.FileNames) {
			name = dto.FileNames[i]
		}
		if i < len(dto.FileSizes) {
			size = dto.FileSizes[i]
		}

		pending = append(pending, pendingLog{fileID: fileID, name: name, size: size})
	}

	if err := insertFileLogs(ctx, s.db, senderIdentity, dto.RecipientEmail, expiry, dto.DownloadCount, dto.Anonymous, pending); err != nil {
		rollbackNewBlobs()
		return err
	}

	log.Printf("[Envelope] ingested %d file(s) from=%s to=%s", len(pending), senderIdentity, dto.RecipientEmail)
	return nil
}

// DownloadResult is serve_download's output: the re-encrypted ciphertext
// plus the fresh Kyber ciphertext the requester decapsulates it with.
type DownloadResult struct {
	FileData []byte
	IV       string
	U        wireVector
	V        wirePoly
	FileName string
}

// ServeDownload runs the download rewrap pipeline (§4.E) for file
// publicID on behalf of requesterIdentity.
func (s *Service) ServeDownload(ctx context.Context, requesterIdentity string, dto *FileDownloadDTO) (*DownloadResult, error) {
	publicID, err := uuid.Parse(dto.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: file_id: %v", ErrMalformedJSON, err)
	}

	entry, err := findFileLog(ctx, s.db, publicID)
	if err != nil {
		return nil, err
	}

	if requesterIdentity != entry.FromIdentity && requesterIdentity != entry.ToIdentity {
		return nil, ErrForbidden
	}
	if entry.Expired(time.Now()) {
		return nil, ErrExpired
	}
	if entry.Exhausted() {
		return nil, ErrDownloadLimitReached
	}

	blob, err := s.storage.Get(ctx, entry.FileID)
	if err != nil {
		return nil, fmt.Errorf("envelope: serve download: %w", err)
	}
	if len(blob) < ivBlobPrefixLen {
		return nil, fmt.Errorf("envelope: serve download: stored blob too short")
	}
	storedIV, storedCiphertext := blob[:ivBlobPrefixLen], blob[ivBlobPrefixLen:]

	pairwise := kdf.PairwiseKey(entry.FromIdentity, entry.ToIdentity)
	storageKey, err := kdf.StorageAESKey(pairwise, s.secret)
	if err != nil {
		return nil, err
	}

	plaintext, err := symmetric.DecryptCBC(storageKey, storedCiphertext, storedIV)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	peerPK, err := decodeDownloadKyberKeyPair(dto.KyberKeyPair)
	if err != nil {
		return nil, err
	}

	kct, sharedKey, err := kyberkem.Encapsulate(peerPK)
	if err != nil {
		return nil, fmt.Errorf("envelope: serve download: %w", err)
	}
	aesKey := sharedKey[:handoffKeySize]

	ciphertext, iv, err := symmetric.EncryptCBC(aesKey, plaintext)
	if err != nil {
		return nil, fmt.Errorf("envelope: serve download: %w", err)
	}

	if requesterIdentity == entry.ToIdentity {
		ok, err := decrementDownload(ctx, s.db, publicID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost the race to a concurrent download off the last slot.
			return nil, ErrDownloadLimitReached
		}
	}

	log.Printf("[Envelope] served download file=%s requester=%s", entry.PublicID, requesterIdentity)

	return &DownloadResult{
		FileData: ciphertext,
		IV:       base64.StdEncoding.EncodeToString(iv),
		U:        fromVector(kct.U),
		V:        wirePoly(kct.V),
		FileName: entry.Name,
	}, nil
}

func (s *Service) ListActivity(ctx context.Context, identityID string) ([]models.ActivityEntry, error) {
	return listActivity(ctx, s.db, identityID)
}

func (s *Service) ListReceived(ctx context.Context, identityID string) ([]models.ReceivedEntry, error) {
	return listReceived(ctx, s.db, identityID)
}

func (s *Service) ListShared(ctx context.Context, identityID string) ([]models.SharedEntry, error) {
	return listShared(ctx, s.db, identityID)
}
