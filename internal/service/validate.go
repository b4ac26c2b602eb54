package service

import (
	"context"
	"time"

	"github.com/yourorg/profilehub/internal/domain"
)

const (
	maxBioLength      = 500
	maxLocationLength = 30
)

// ValidateUsername fails when an account with the candidate username
// already exists. The check is a best-effort courtesy: the unique index
// on accounts(username) is the authoritative guard against races.
func ValidateUsername(ctx context.Context, repo domain.AccountRepository, candidate string) error {
	taken, err := repo.ExistsByUsername(ctx, candidate)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDuplicateUsername
	}
	return nil
}

// ValidateEmail fails when an account with the candidate email already exists
func ValidateEmail(ctx context.Context, repo domain.AccountRepository, candidate string) error {
	taken, err := repo.ExistsByEmail(ctx, candidate)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDuplicateEmail
	}
	return nil
}

// ValidatePasswordConfirmation fails only when both values are present
// and unequal. An absent value passes, matching the form semantics
// where the required-field check reports separately.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != "" && confirm != "" && password != confirm {
		return domain.ErrPasswordMismatch
	}
	return nil
}

// ValidateNewPassword fails when the proposed password equals the
// current one.
func ValidateNewPassword(newPassword, currentPassword string) error {
	if newPassword == currentPassword {
		return domain.ErrPasswordUnchanged
	}
	return nil
}

// ValidateBio enforces the profile bio length bound
func ValidateBio(bio string) error {
	if len([]rune(bio)) > maxBioLength {
		return domain.ErrBioTooLong
	}
	return nil
}

// ValidateLocation enforces the profile location length bound
func ValidateLocation(location string) error {
	if len([]rune(location)) > maxLocationLength {
		return domain.ErrLocationTooLong
	}
	return nil
}

// ParseBirthDate parses an optional YYYY-MM-DD value
func ParseBirthDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, domain.ErrInvalidBirthDate
	}
	return &t, nil
}
