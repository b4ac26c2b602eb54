package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/internal/session"
)

// TokenIssuer abstracts token creation so the service stays
// framework-agnostic
type TokenIssuer interface {
	GenerateToken(accountID, sessionID, stamp string, expiresIn time.Duration) (string, error)
}

// AccountService handles registration, login and password changes
type AccountService struct {
	accounts domain.AccountRepository
	sessions session.Manager
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	accounts domain.AccountRepository,
	sessions session.Manager,
	tokens TokenIssuer,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// RegisterInput carries the raw registration form values
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// AuthResult is returned by operations that leave the caller
// authenticated
type AuthResult struct {
	AccountID  string `json:"accountId"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Token      string `json:"token"`
	RedirectTo string `json:"redirectTo"`
}

// Register validates the form, creates the account with its empty
// profile in one transaction, and establishes a session. Validation
// failures return domain.FieldErrors with every failing field; nothing
// is written unless all rules pass.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fe := domain.FieldErrors{}
	if err := ValidateUsername(ctx, s.accounts, username); err != nil {
		if !errors.Is(err, domain.ErrDuplicateUsername) {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		fe.Add("username", err)
	}
	if err := ValidateEmail(ctx, s.accounts, email); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		fe.Add("email", err)
	}
	fe.Add("passwordConfirm", ValidatePasswordConfirmation(in.Password, in.PasswordConfirm))
	if len(fe) > 0 {
		return nil, fe
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.accounts.CreateWithProfile(ctx, account); err != nil {
		// A concurrent registration can slip past the validation
		// reads; the unique constraints are authoritative and map
		// back to the same field errors.
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			return nil, domain.FieldErrors{"username": domain.ErrDuplicateUsername}
		case errors.Is(err, domain.ErrDuplicateEmail):
			return nil, domain.FieldErrors{"email": domain.ErrDuplicateEmail}
		}
		s.logger.Error("failed to create account", slog.String("username", username), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	result, err := s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
	)
	return result, nil
}

// Login authenticates by username and password
func (s *AccountService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		s.logger.Info("login attempt for unknown username", slog.String("username", username))
		return nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		s.logger.Info("login failed with wrong password", slog.String("username", username))
		return nil, domain.ErrInvalidCredentials
	}

	result, err := s.startSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account logged in",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
	)
	return result, nil
}

// ChangePasswordInput carries the raw password-change form values
type ChangePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	NewPasswordConfirm string
}

// ChangePassword replaces the stored hash after all rules pass and
// refreshes the caller's session so the hash change does not log them
// out. A stale token minted before the change stops validating because
// its credential stamp no longer matches.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, sessionID string, in ChangePasswordInput) (*AuthResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	fe := domain.FieldErrors{}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.CurrentPassword)) != nil {
		fe.Add("currentPassword", domain.ErrInvalidCurrentPassword)
	}
	fe.Add("newPasswordConfirm", ValidatePasswordConfirmation(in.NewPassword, in.NewPasswordConfirm))
	fe.Add("newPassword", ValidateNewPassword(in.NewPassword, in.CurrentPassword))
	if len(fe) > 0 {
		return nil, fe
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to change password: %w", err)
	}

	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, string(hash)); err != nil {
		s.logger.Error("failed to update password hash", slog.String("account_id", account.ID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to change password: %w", err)
	}
	account.PasswordHash = string(hash)

	sess, err := s.sessions.Refresh(ctx, sessionID, account)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	token, err := s.tokens.GenerateToken(account.ID, sess.ID, sess.Stamp, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("password changed", slog.String("account_id", account.ID))
	return &AuthResult{
		AccountID:  account.ID,
		Username:   account.Username,
		Email:      account.Email,
		Token:      token,
		RedirectTo: "/profile",
	}, nil
}

// Delete removes the account and revokes every session it holds. The
// profile row is removed by the database cascade; avatar object
// cleanup is the caller's concern since it is best effort.
func (s *AccountService) Delete(ctx context.Context, accountID string) error {
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("account_id", accountID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if err := s.sessions.RevokeAll(ctx, accountID); err != nil {
		// The account row is gone; sessions die by TTL at the latest
		s.logger.Warn("failed to revoke sessions for deleted account",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.Info("account deleted", slog.String("account_id", accountID))
	return nil
}

func (s *AccountService) startSession(ctx context.Context, account *domain.Account) (*AuthResult, error) {
	sess, err := s.sessions.Establish(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}
	token, err := s.tokens.GenerateToken(account.ID, sess.ID, sess.Stamp, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{
		AccountID:  account.ID,
		Username:   account.Username,
		Email:      account.Email,
		Token:      token,
		RedirectTo: "/profile",
	}, nil
}
