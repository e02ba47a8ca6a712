package envelope

import (
	"errors"
	"testing"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(nil, []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return store
}

func TestSessionStoreTakeMatchesIdentity(t *testing.T) {
	store := newTestSessionStore(t)

	_, sessionID, err := store.Begin("alice@example.com")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	secret, err := store.Take(sessionID, "alice@example.com")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if secret == nil {
		t.Fatal("Take returned a nil secret")
	}
}

func TestSessionStoreTakeRejectsWrongIdentity(t *testing.T) {
	store := newTestSessionStore(t)

	_, sessionID, err := store.Begin("alice@example.com")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	_, err = store.Take(sessionID, "mallory@example.com")
	if !errors.Is(err, ErrSessionKeyMissing) {
		t.Fatalf("Take with wrong identity = %v, want ErrSessionKeyMissing", err)
	}
}

func TestSessionStoreTakeIsSingleUse(t *testing.T) {
	store := newTestSessionStore(t)

	_, sessionID, err := store.Begin("alice@example.com")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := store.Take(sessionID, "alice@example.com"); err != nil {
		t.Fatalf("first Take: %v", err)
	}

	if _, err := store.Take(sessionID, "alice@example.com"); !errors.Is(err, ErrSessionKeyMissing) {
		t.Fatalf("second Take = %v, want ErrSessionKeyMissing", err)
	}
}

func TestSessionStoreTakeRejectsUnknownSessionID(t *testing.T) {
	store := newTestSessionStore(t)

	if _, err := store.Take("not-a-real-session", "alice@example.com"); !errors.Is(err, ErrSessionKeyMissing) {
		t.Fatalf("Take with unknown id = %v, want ErrSessionKeyMissing", err)
	}
}

func TestSessionStoreDistinctSessionsPerIdentity(t *testing.T) {
	store := newTestSessionStore(t)

	_, firstID, err := store.Begin("alice@example.com")
	if err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	_, secondID, err := store.Begin("alice@example.com")
	if err != nil {
		t.Fatalf("second Begin: %v", err)
	}

	if firstID == secondID {
		t.Fatal("two Begin calls for the same identity produced the same session id")
	}

	// The earlier session is still redeemable: a second kyber-key fetch
	// must not have overwritten or invalidated it. This is the race the
	// opaque-session-id design fixes relative to an identity-keyed map.
	if _, err := store.Take(firstID, "alice@example.com"); err != nil {
		t.Fatalf("Take(firstID): %v", err)
	}
	if _, err := store.Take(secondID, "alice@example.com"); err != nil {
		t.Fatalf("Take(secondID): %v", err)
	}
}
