package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/profilehub/internal/domain"
)

// PostgresProfileRepository implements domain.ProfileRepository using PostgreSQL
type PostgresProfileRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProfileRepository creates a new profile repository
func NewPostgresProfileRepository(db *sql.DB, logger *slog.Logger) *PostgresProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProfileRepository{db: db, logger: logger}
}

// GetByAccountID retrieves the profile owned by an account
func (r *PostgresProfileRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.Profile, error) {
	profile := &domain.Profile{}
	var birthDate sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, bio, birth_date, location, avatar_key, updated_at
		FROM profiles
		WHERE account_id = $1
	`, accountID).Scan(
		&profile.AccountID,
		&profile.Bio,
		&birthDate,
		&profile.Location,
		&profile.AvatarKey,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if birthDate.Valid {
		t := birthDate.Time
		profile.BirthDate = &t
	}
	return profile, nil
}

// Update applies a partial update; nil fields keep their stored
// values, ClearBirthDate writes NULL. COALESCE keeps the statement a
// single atomic write.
func (r *PostgresProfileRepository) Update(ctx context.Context, accountID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	var birthDate sql.NullTime
	if upd.BirthDate != nil {
		birthDate = sql.NullTime{Time: *upd.BirthDate, Valid: true}
	}
	touchBirthDate := upd.BirthDate != nil || upd.ClearBirthDate

	profile := &domain.Profile{}
	var storedBirthDate sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		UPDATE profiles
		SET bio        = COALESCE($2::text, bio),
		    birth_date = CASE WHEN $3::bool THEN $4::date ELSE birth_date END,
		    location   = COALESCE($5::text, location),
		    updated_at = now()
		WHERE account_id = $1
		RETURNING account_id, bio, birth_date, location, avatar_key, updated_at
	`, accountID, upd.Bio, touchBirthDate, birthDate, upd.Location,
	).Scan(
		&profile.AccountID,
		&profile.Bio,
		&storedBirthDate,
		&profile.Location,
		&profile.AvatarKey,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to update profile",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if storedBirthDate.Valid {
		t := storedBirthDate.Time
		profile.BirthDate = &t
	}
	return profile, nil
}

// SetAvatarKey records the media-store key of the current avatar
func (r *PostgresProfileRepository) SetAvatarKey(ctx context.Context, accountID, avatarKey string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET avatar_key = $1, updated_at = now()
		WHERE account_id = $2
	`, avatarKey, accountID)
	if err != nil {
		return fmt.Errorf("failed to set avatar key: %w", err)
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
