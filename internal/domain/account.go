package domain

import (
	"context"
	"time"
)

// Account represents an authentication identity
type Account struct {
	ID           string // UUID
	Username     string // Unique username
	Email        string // Unique email address, stored lowercase
	PasswordHash string // Bcrypt hashed password (never returned in API)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the 1:1 extension record attached to an Account.
// It is created together with the account and removed by the
// ON DELETE CASCADE rule on its foreign key.
type Profile struct {
	AccountID string // UUID, primary key and FK to accounts
	Bio       string
	BirthDate *time.Time // optional, date only
	Location  string
	AvatarKey string // opaque media-store key, empty when unset
	UpdatedAt time.Time
}

// ProfileUpdate carries a partial profile edit. Nil fields keep their
// prior values; ClearBirthDate sets the stored date to NULL and wins
// over a nil BirthDate.
type ProfileUpdate struct {
	Bio            *string
	BirthDate      *time.Time
	ClearBirthDate bool
	Location       *string
}

// AccountRepository defines data access for accounts
type AccountRepository interface {
	// CreateWithProfile inserts the account and its empty profile in a
	// single transaction. Unique-constraint violations are mapped to
	// ErrDuplicateUsername / ErrDuplicateEmail.
	CreateWithProfile(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// Delete removes the account; the profile row goes with it through
	// the ON DELETE CASCADE rule on profiles.account_id.
	Delete(ctx context.Context, id string) error
}

// ProfileRepository defines data access for profiles
type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*Profile, error)
	// Update applies a partial update; nil fields in upd are untouched
	Update(ctx context.Context, accountID string, upd ProfileUpdate) (*Profile, error)
	SetAvatarKey(ctx context.Context, accountID, avatarKey string) error
}
