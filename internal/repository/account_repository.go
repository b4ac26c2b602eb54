package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/yourorg/profilehub/internal/domain"
)

// Constraint names from the migrations; unique violations map back to
// the user-facing duplicate errors.
const (
	usernameUniqueConstraint = "accounts_username_key"
	emailUniqueConstraint    = "accounts_email_key"
)

// PostgresAccountRepository implements domain.AccountRepository using PostgreSQL
type PostgresAccountRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAccountRepository creates a new account repository
func NewPostgresAccountRepository(db *sql.DB, logger *slog.Logger) *PostgresAccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountRepository{db: db, logger: logger}
}

// CreateWithProfile inserts the account and its empty profile in one
// transaction so no reader ever observes an account without a profile.
// The unique indexes are the authoritative duplicate check; violations
// racing past validation surface as the same field errors.
func (r *PostgresAccountRepository) CreateWithProfile(ctx context.Context, account *domain.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, account.ID, account.Username, strings.ToLower(account.Email), account.PasswordHash,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		r.logger.Error("failed to insert account",
			slog.String("username", account.Username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create account: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (account_id) VALUES ($1)
	`, account.ID); err != nil {
		r.logger.Error("failed to insert profile",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	return nil
}

const accountColumns = `id, username, email, password_hash, created_at, updated_at`

// GetByID retrieves an account by ID
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

// GetByUsername retrieves an account by username
func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.getBy(ctx, `WHERE username = $1`, username)
}

// GetByEmail retrieves an account by email
func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getBy(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (r *PostgresAccountRepository) getBy(ctx context.Context, where string, arg interface{}) (*domain.Account, error) {
	account := &domain.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts `+where, arg,
	).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ExistsByUsername reports whether a username is taken
func (r *PostgresAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username)
}

// ExistsByEmail reports whether an email is taken
func (r *PostgresAccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, strings.ToLower(email))
}

func (r *PostgresAccountRepository) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

// UpdatePasswordHash replaces the stored hash for an account
func (r *PostgresAccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $1, updated_at = now()
		WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes an account. The profile row follows through the
// ON DELETE CASCADE rule on profiles.account_id.
func (r *PostgresAccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete account",
			slog.String("account_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// mapUniqueViolation translates a 23505 into the matching field error
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case usernameUniqueConstraint:
		return domain.ErrDuplicateUsername
	case emailUniqueConstraint:
		return domain.ErrDuplicateEmail
	}
	return nil
}
