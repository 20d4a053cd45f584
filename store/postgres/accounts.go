package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/google/uuid"
)

const accountColumns = `id, email, password_hash, name, role, suspended, email_verified_at, session_version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (stepAuth.Account, error) {
	var (
		a        stepAuth.Account
		role     string
		verified sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &role, &a.Suspended, &verified, &a.SessionVersion, &a.CreatedAt)
	if err != nil {
		return stepAuth.Account{}, mapErr(err)
	}
	a.Role = stepAuth.Role(role)
	if verified.Valid {
		t := verified.Time.UTC()
		a.EmailVerifiedAt = &t
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (stepAuth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (stepAuth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// CreateAccount maps a unique violation on email to stepAuth.ErrAccountExists.
func (s *Store) CreateAccount(ctx context.Context, in stepAuth.NewAccount) (stepAuth.Account, error) {
	role := in.Role
	if role == "" {
		role = stepAuth.RoleUser
	}
	query := `INSERT INTO accounts (id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	return scanAccount(s.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		strings.ToLower(strings.TrimSpace(in.Email)),
		in.PasswordHash,
		in.Name,
		string(role),
		time.Now().UTC(),
	))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) (stepAuth.Account, error) {
	return s.updateAccount(ctx, `password_hash = $2`, id, hash)
}

func (s *Store) MarkEmailVerified(ctx context.Context, id string, at time.Time) (stepAuth.Account, error) {
	return s.updateAccount(ctx, `email_verified_at = $2`, id, at.UTC())
}

func (s *Store) SetRole(ctx context.Context, id string, role stepAuth.Role) (stepAuth.Account, error) {
	return s.updateAccount(ctx, `role = $2`, id, string(role))
}

func (s *Store) SetSuspended(ctx context.Context, id string, suspended bool) (stepAuth.Account, error) {
	return s.updateAccount(ctx, `suspended = $2`, id, suspended)
}

func (s *Store) IncrementSessionVersion(ctx context.Context, id string) (stepAuth.Account, error) {
	return s.updateAccount(ctx, `session_version = session_version + 1`, id)
}

func (s *Store) updateAccount(ctx context.Context, set string, args ...any) (stepAuth.Account, error) {
	query := `UPDATE accounts SET ` + set + ` WHERE id = $1 RETURNING ` + accountColumns
	return scanAccount(s.db.QueryRowContext(ctx, query, args...))
}
