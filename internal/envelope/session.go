package envelope

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	symmetric "github.com/kindlyrobotics/qshare/internal/crypto/symmetric"
	"github.com/kindlyrobotics/qshare/internal/kyberkem"
)

// sessionTTL bounds how long a begin-session secret stays valid if the
// matching upload never arrives. There is no access token to expire
// alongside here (auth is a collaborator, not part of this core), so a
// fixed window stands in for the token-linked expiry the design notes
// call for.
const sessionTTL = 15 * time.Minute

const sessionSealInfo = "qshare session cache v1"

// sessionEntry is one in-flight kyber-key fetch: the secret half of the
// key pair handed to a single identity, plus enough bookkeeping to expire
// it and to confirm it was issued to the identity now claiming it.
type sessionEntry struct {
	identity  string
	secret    *kyberkem.PrivateKey
	createdAt time.Time
}

// sealedSession is the JSON payload sealed into the blob cached in Redis.
// It carries the identity alongside the secret so a Redis-only lookup (a
// Take served by a different instance than the Begin that created the
// session) can still enforce the same identity binding the in-process
// fast path does.
type sealedSession struct {
	Identity  string     `json:"identity"`
	S         wireVector `json:"s"`
	CreatedAt int64      `json:"created_at"`
}

// SessionStore holds the Kyber secrets generated by BeginSession, keyed by
// an opaque session id rather than by identity.
//
// Keying by identity (as the source does) lets a second BeginSession call
// for the same identity silently overwrite the secret an earlier, still
// in-flight upload needs — a racing upload then decrypts against the wrong
// key. Keying by session id and requiring the id back on upload closes
// that race: two concurrent sessions for one identity get two independent
// entries, and each upload can only ever consume the one it was issued.
//
// The in-process map is the fast path for the common case of one instance
// serving both BeginSession and the matching upload. Every Begin also
// write-throughs a sealed copy to Redis, so a Take that lands on a
// different instance still succeeds; the copy is never Redis-visible in
// plaintext, sealed under a key HKDF-derived from the server secret.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry

	redis   *redis.Client
	sealKey []byte
}

// NewSessionStore builds a SessionStore. redisClient may be nil, in which
// case the store falls back to the in-process map only.
func NewSessionStore(redisClient *redis.Client, serverSecret []byte) (*SessionStore, error) {
	sealKey, err := symmetric.DeriveKey(serverSecret, nil, []byte(sessionSealInfo), symmetric.SymmetricKeySize)
	if err != nil {
		return nil, fmt.Errorf("envelope: derive session seal key: %w", err)
	}
	return &SessionStore{
		entries: make(map[string]*sessionEntry),
		redis:   redisClient,
		sealKey: sealKey,
	}, nil
}

// Begin generates a fresh Kyber key pair for identity, stores the secret
// under a new opaque session id, and returns the public half plus that id.
func (s *SessionStore) Begin(identity string) (*kyberkem.PublicKey, string, error) {
	pk, sk, err := kyberkem.GenerateKeyPair()
	if err != nil {
		return nil, "", fmt.Errorf("envelope: begin session: %w", err)
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, "", fmt.Errorf("envelope: begin session: %w", err)
	}

	now := time.Now()
	s.mu.Lock()
	s.entries[sessionID] = &sessionEntry{identity: identity, secret: sk, createdAt: now}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.writeThrough(sessionID, identity, sk, now); err != nil {
			// The in-process entry still serves this instance; losing the
			// write-through only costs cross-instance failover.
			log.Printf("[Envelope] session %s: redis write-through failed: %v", sessionID, err)
		}
	}

	return pk, sessionID, nil
}

// Take looks up and removes the secret bound to sessionID, verifying it
// was issued to identity. A session is single-use: consuming it once means
// a retried upload with the same id gets ErrSessionKeyMissing instead of
// silently reusing the secret.
func (s *SessionStore) Take(sessionID, identity string) (*kyberkem.PrivateKey, error) {
	if sessionID == "" {
		return nil, ErrSessionKeyMissing
	}

	s.mu.Lock()
	entry, ok := s.entries[sessionID]
	if ok {
		delete(s.entries, sessionID)
	}
	s.mu.Unlock()

	if ok {
		s.evictRemote(sessionID)
		return validateEntry(entry, identity)
	}

	if s.redis == nil {
		return nil, ErrSessionKeyMissing
	}
	return s.takeRemote(sessionID, identity)
}

func validateEntry(entry *sessionEntry, identity string) (*kyberkem.PrivateKey, error) {
	if entry.identity != identity {
		return nil, ErrSessionKeyMissing
	}
	if time.Since(entry.createdAt) > sessionTTL {
		return nil, ErrSessionKeyMissing
	}
	return entry.secret, nil
}

func (s *SessionStore) writeThrough(sessionID, identity string, sk *kyberkem.PrivateKey, createdAt time.Time) error {
	payload := sealedSession{Identity: identity, S: fromVector(sk.S), CreatedAt: createdAt.Unix()}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal session payload: %w", err)
	}
	sealed, err := symmetric.EncryptXChaCha20(s.sealKey, plaintext, []byte(sessionID))
	if err != nil {
		return fmt.Errorf("seal session payload: %w", err)
	}
	blob, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("marshal sealed blob: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.redis.Set(ctx, redisSessionKey(sessionID), blob, sessionTTL).Err()
}

func (s *SessionStore) takeRemote(sessionID, identity string) (*kyberkem.PrivateKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := s.redis.Get(ctx, redisSessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionKeyMissing
	}
	if err != nil {
		return nil, fmt.Errorf("envelope: fetch cached session: %w", err)
	}
	s.redis.Del(ctx, redisSessionKey(sessionID))

	var sealed symmetric.EncryptedMessage
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, fmt.Errorf("envelope: unmarshal cached session: %w", err)
	}
	plaintext, err := symmetric.DecryptXChaCha20(s.sealKey, sealed.Ciphertext, sealed.Nonce, []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("envelope: open cached session: %w", err)
	}

	var payload sealedSession
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("envelope: unmarshal session payload: %w", err)
	}
	if payload.Identity != identity {
		return nil, ErrSessionKeyMissing
	}
	if time.Since(time.Unix(payload.CreatedAt, 0)) > sessionTTL {
		return nil, ErrSessionKeyMissing
	}

	return &kyberkem.PrivateKey{S: toVector(payload.S)}, nil
}

func (s *SessionStore) evictRemote(sessionID string) {
	if s.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redis.Del(ctx, redisSessionKey(sessionID)).Err(); err != nil {
		log.Printf("[Envelope] session %s: redis evict failed: %v", sessionID, err)
	}
}

func redisSessionKey(sessionID string) string {
	return "qshare:session:" + sessionID
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
