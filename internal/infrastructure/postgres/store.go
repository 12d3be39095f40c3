package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stocklaabh/verify-api/internal/domain"
)

// Store is a PostgreSQL-backed CodeStore. Consume runs inside a transaction
// with a row lock so concurrent attempts against the same key are serialized.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Put upserts the code for (identifier, channel), superseding any prior one.
func (s *Store) Put(ctx context.Context, code *domain.VerificationCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_codes (identifier, channel, code_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier, channel) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at`,
		code.Identifier, string(code.Channel), code.CodeHash, code.IssuedAt, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert verification code: %w", err)
	}
	return nil
}

// Get returns the current code for the key, treating expired rows as absent.
func (s *Store) Get(ctx context.Context, identifier string, ch domain.Channel) (*domain.VerificationCode, error) {
	code := domain.VerificationCode{Identifier: identifier, Channel: ch}
	err := s.db.QueryRowContext(ctx, `
		SELECT code_hash, issued_at, expires_at
		FROM verification_codes
		WHERE identifier = $1 AND channel = $2`,
		identifier, string(ch)).Scan(&code.CodeHash, &code.IssuedAt, &code.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query verification code: %w", err)
	}
	if code.Expired(time.Now()) {
		// Condition on the hash so a concurrent resend is never wiped out.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE identifier = $1 AND channel = $2 AND code_hash = $3`,
			identifier, string(ch), code.CodeHash)
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	return &code, nil
}

// Consume locks the row, compares the submitted code against the stored
// hash and deletes the row only on a match or on expiry. A mismatch leaves
// the row intact so the correct code stays valid until its expiry.
func (s *Store) Consume(ctx context.Context, identifier string, ch domain.Channel, submitted string) (domain.ConsumeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ConsumeNotFound, fmt.Errorf("begin consume tx: %w", err)
	}
	defer tx.Rollback()

	code := domain.VerificationCode{Identifier: identifier, Channel: ch}
	err = tx.QueryRowContext(ctx, `
		SELECT code_hash, issued_at, expires_at
		FROM verification_codes
		WHERE identifier = $1 AND channel = $2
		FOR UPDATE`,
		identifier, string(ch)).Scan(&code.CodeHash, &code.IssuedAt, &code.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConsumeNotFound, nil
	}
	if err != nil {
		return domain.ConsumeNotFound, fmt.Errorf("lock verification code: %w", err)
	}

	result := domain.ConsumeValid
	switch {
	case code.Expired(time.Now()):
		result = domain.ConsumeExpired
	case !code.Matches(submitted):
		return domain.ConsumeInvalidCode, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM verification_codes WHERE identifier = $1 AND channel = $2`,
		identifier, string(ch)); err != nil {
		return domain.ConsumeNotFound, fmt.Errorf("delete verification code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ConsumeNotFound, fmt.Errorf("commit consume tx: %w", err)
	}
	return result, nil
}
