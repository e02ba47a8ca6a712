// Package models holds the domain types persisted by the envelope
// pipeline: the per-transfer log entry senders and recipients see in
// their activity lists. The content-addressed ciphertext blob itself has
// no separate row — internal/storage keys it by content hash directly,
// with its IV carried as a prefix on the stored bytes.
package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus enumerates the lifecycle of a FileLog entry.
type FileStatus string

const (
	FileStatusActive  FileStatus = "active"
	FileStatusExpired FileStatus = "expired"
	FileStatusRevoked FileStatus = "revoked"
)

// FileLog is one sender-to-recipient transfer record. A FileLog always
// references exactly one stored blob by content hash, but many FileLogs can
// point at the same blob (dedup).
type FileLog struct {
	ID                 int64      `json:"-"`
	PublicID           uuid.UUID  `json:"file_id"`
	Name               string     `json:"name"`
	Size               int64      `json:"size"`
	FromIdentity       string     `json:"-"`
	ToIdentity         string     `json:"-"`
	SentOn             time.Time  `json:"sent_on"`
	Expiry             time.Time  `json:"expiry"`
	DownloadCount      int        `json:"download_count"`
	RemainingDownloads int        `json:"remaining_downloads"`
	FileID             string     `json:"-"` // content hash of the stored blob
	IsAnonymous        bool       `json:"-"`
	Status             FileStatus `json:"-"`
}

// Expired reports whether the transfer has passed its expiry deadline.
func (f *FileLog) Expired(now time.Time) bool {
	return now.After(f.Expiry)
}

// Exhausted reports whether the recipient has no downloads left.
func (f *FileLog) Exhausted() bool {
	return f.RemainingDownloads < 1
}

// ActivityEntry is one row of a combined send/receive activity feed.
type ActivityEntry struct {
	Counterparty string `json:"email"` // "*" when the other side opted anonymous
	Direction    string `json:"type"`  // "send" or "receive"
}

// ReceivedEntry is one row of the recipient's inbox listing.
type ReceivedEntry struct {
	FileID             string `json:"file_id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	ReceivedFrom       string `json:"received_from"`
	ReceivedOn         string `json:"received_on"`
	Expiry             string `json:"expiry"`
	RemainingDownloads int    `json:"download_count"`
}

// SharedEntry is one row of the sender's outbox listing.
type SharedEntry struct {
	FileID        string `json:"file_id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	SentTo        string `json:"sent_to"`
	SentOn        string `json:"sent_on"`
	Expiry        string `json:"expiry"`
	DownloadCount int    `json:"download_count"`
}
