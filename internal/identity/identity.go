// Package identity answers the one question the envelope core needs of
// the user system it sits in front of: does this identity exist. Account
// registration, password hashes, and session tokens live in a collaborator
// out of this core's scope; this package is deliberately thin.
package identity

import (
	"context"
	"database/sql"
	"fmt"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Exists reports whether identity is a known recipient.
func (s *Service) Exists(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM known_identities WHERE email = $1)",
		identity,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("identity: exists: %w", err)
	}
	return exists, nil
}

// Register records a new identity. Out-of-band to the envelope pipeline
// itself (no operation in §6 calls it) but needed to seed the
// known_identities table the RecipientUnknown check reads from.
func (s *Service) Register(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO known_identities (email) VALUES ($1) ON CONFLICT (email) DO NOTHING",
		identity,
	)
	if err != nil {
		return fmt.Errorf("identity: register: %w", err)
	}
	return nil
}
