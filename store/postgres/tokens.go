package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	stepAuth "github.com/MrEthical07/stepAuth"
)

// SaveVerificationToken replaces any token for the same (email, purpose) in
// one statement, so concurrent issuers leave exactly one row behind.
func (s *Store) SaveVerificationToken(ctx context.Context, t stepAuth.VerificationToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (token_hash, email, purpose, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email, purpose) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
		hashToken(t.Value), t.Email, string(t.Purpose), t.ExpiresAt.UTC(),
	)
	return mapErr(err)
}

func (s *Store) GetVerificationToken(ctx context.Context, value string) (stepAuth.VerificationToken, error) {
	t := stepAuth.VerificationToken{Value: value}
	var purpose string
	err := s.db.QueryRowContext(ctx,
		`SELECT email, purpose, expires_at FROM verification_tokens WHERE token_hash = $1`,
		hashToken(value),
	).Scan(&t.Email, &purpose, &t.ExpiresAt)
	if err != nil {
		return stepAuth.VerificationToken{}, mapErr(err)
	}
	t.Purpose = stepAuth.TokenPurpose(purpose)
	return t, nil
}

// DeleteVerificationToken reports whether this call removed the row, so
// exactly one of several concurrent consumers sees true.
func (s *Store) DeleteVerificationToken(ctx context.Context, value string) (bool, error) {
	return s.deleteRows(ctx, `DELETE FROM verification_tokens WHERE token_hash = $1`, hashToken(value))
}

func (s *Store) SaveOneTimeCode(ctx context.Context, c stepAuth.OneTimeCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO one_time_codes (email, code, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		c.Email, c.Code, c.ExpiresAt.UTC(),
	)
	return mapErr(err)
}

func (s *Store) GetOneTimeCode(ctx context.Context, email string) (stepAuth.OneTimeCode, error) {
	c := stepAuth.OneTimeCode{Email: email}
	err := s.db.QueryRowContext(ctx,
		`SELECT code, expires_at FROM one_time_codes WHERE email = $1`,
		email,
	).Scan(&c.Code, &c.ExpiresAt)
	if err != nil {
		return stepAuth.OneTimeCode{}, mapErr(err)
	}
	return c, nil
}

// DeleteOneTimeCode removes the code only while it still equals code.
func (s *Store) DeleteOneTimeCode(ctx context.Context, email, code string) (bool, error) {
	return s.deleteRows(ctx, `DELETE FROM one_time_codes WHERE email = $1 AND code = $2`, email, code)
}

func (s *Store) deleteRows(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
