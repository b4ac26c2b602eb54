package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/internal/session"
)

type memAccountRepo struct {
	byID       map[string]*domain.Account
	byUsername map[string]*domain.Account
	byEmail    map[string]*domain.Account
	profiles   map[string]*domain.Profile
	createErr  error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		byID:       map[string]*domain.Account{},
		byUsername: map[string]*domain.Account{},
		byEmail:    map[string]*domain.Account{},
		profiles:   map[string]*domain.Profile{},
	}
}

func (m *memAccountRepo) CreateWithProfile(_ context.Context, a *domain.Account) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byUsername[a.Username]; ok {
		return domain.ErrDuplicateUsername
	}
	if _, ok := m.byEmail[a.Email]; ok {
		return domain.ErrDuplicateEmail
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = a
	m.byUsername[a.Username] = a
	m.byEmail[a.Email] = a
	m.profiles[a.ID] = &domain.Profile{AccountID: a.ID}
	return nil
}

func (m *memAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if a, ok := m.byID[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memAccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	if a, ok := m.byUsername[username]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	if a, ok := m.byEmail[email]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memAccountRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, ok := m.byUsername[username]
	return ok, nil
}

func (m *memAccountRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memAccountRepo) Delete(_ context.Context, id string) error {
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byUsername, a.Username)
	delete(m.byEmail, a.Email)
	// Mirror the ON DELETE CASCADE rule on profiles.account_id.
	delete(m.profiles, id)
	return nil
}

func (m *memAccountRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now()
	return nil
}

type memSessions struct {
	byID map[string]*session.Session
	seq  int
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]*session.Session{}}
}

func (m *memSessions) Establish(_ context.Context, a *domain.Account) (*session.Session, error) {
	m.seq++
	s := &session.Session{
		ID:        fmt.Sprintf("sess-%d", m.seq),
		AccountID: a.ID,
		Stamp:     session.CredentialStamp(a.PasswordHash),
		CreatedAt: time.Now(),
	}
	m.byID[s.ID] = s
	return s, nil
}

func (m *memSessions) Refresh(_ context.Context, sessionID string, a *domain.Account) (*session.Session, error) {
	s, ok := m.byID[sessionID]
	if !ok || s.AccountID != a.ID {
		return nil, domain.ErrUnauthenticated
	}
	s.Stamp = session.CredentialStamp(a.PasswordHash)
	return s, nil
}

func (m *memSessions) Validate(_ context.Context, sessionID, stamp string) (*session.Session, error) {
	s, ok := m.byID[sessionID]
	if !ok || s.Stamp != stamp {
		return nil, domain.ErrUnauthenticated
	}
	return s, nil
}

func (m *memSessions) Revoke(_ context.Context, sessionID string) error {
	delete(m.byID, sessionID)
	return nil
}

func (m *memSessions) RevokeAll(_ context.Context, accountID string) error {
	for id, s := range m.byID {
		if s.AccountID == accountID {
			delete(m.byID, id)
		}
	}
	return nil
}

type fakeTokens struct{ seq int }

func (f *fakeTokens) GenerateToken(accountID, sessionID, stamp string, _ time.Duration) (string, error) {
	f.seq++
	return fmt.Sprintf("token-%d:%s:%s:%s", f.seq, accountID, sessionID, stamp), nil
}

func newAccountService(repo *memAccountRepo, sessions *memSessions) *AccountService {
	return NewAccountService(repo, sessions, &fakeTokens{}, time.Hour, nil)
}

func TestRegisterCreatesAccountAndProfile(t *testing.T) {
	repo := newMemAccountRepo()
	s := newAccountService(repo, newMemSessions())

	r, err := s.Register(context.Background(), RegisterInput{
		Username:        "alice",
		Email:           "Alice@Example.com",
		Password:        "Password123",
		PasswordConfirm: "Password123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if r.AccountID == "" || r.Token == "" {
		t.Fatalf("expected account id and token, got %+v", r)
	}
	if r.RedirectTo != "/profile" {
		t.Fatalf("expected redirect to /profile, got %q", r.RedirectTo)
	}

	account, ok := repo.byUsername["alice"]
	if !ok {
		t.Fatalf("expected account to be stored")
	}
	if account.Email != "alice@example.com" {
		t.Fatalf("expected email lowercased, got %q", account.Email)
	}
	if account.PasswordHash == "Password123" {
		t.Fatalf("expected hashed password, got plaintext")
	}
	if _, ok := repo.profiles[account.ID]; !ok {
		t.Fatalf("expected empty profile created with account")
	}
}

func TestRegisterReportsEveryFailingField(t *testing.T) {
	repo := newMemAccountRepo()
	s := newAccountService(repo, newMemSessions())

	if _, err := s.Register(context.Background(), RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "Password123",
		PasswordConfirm: "Password123",
	}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	// Same username and email, mismatched confirmation: all three
	// fields must come back at once.
	_, err := s.Register(context.Background(), RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "Password123",
		PasswordConfirm: "Different123",
	})
	fe, ok := domain.AsFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
	if !errors.Is(fe["username"], domain.ErrDuplicateUsername) {
		t.Errorf("expected duplicate username error, got %v", fe["username"])
	}
	if !errors.Is(fe["email"], domain.ErrDuplicateEmail) {
		t.Errorf("expected duplicate email error, got %v", fe["email"])
	}
	if !errors.Is(fe["passwordConfirm"], domain.ErrPasswordMismatch) {
		t.Errorf("expected password mismatch error, got %v", fe["passwordConfirm"])
	}

	if len(repo.byID) != 1 {
		t.Fatalf("expected no account written on validation failure, have %d", len(repo.byID))
	}
}

func TestRegisterMapsRaceDuplicateFromRepository(t *testing.T) {
	// The uniqueness reads pass but the insert loses the race; the
	// constraint violation must surface as the same field error.
	repo := newMemAccountRepo()
	repo.createErr = domain.ErrDuplicateUsername
	s := newAccountService(repo, newMemSessions())

	_, err := s.Register(context.Background(), RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "Password123",
		PasswordConfirm: "Password123",
	})
	fe, ok := domain.AsFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
	if !errors.Is(fe["username"], domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username error, got %v", fe["username"])
	}
}

func TestLogin(t *testing.T) {
	repo := newMemAccountRepo()
	s := newAccountService(repo, newMemSessions())

	if _, err := s.Register(context.Background(), RegisterInput{
		Username:        "bob",
		Email:           "bob@example.com",
		Password:        "Password123",
		PasswordConfirm: "Password123",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	r, err := s.Login(context.Background(), "bob", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if r.Token == "" {
		t.Fatalf("expected token on login")
	}

	if _, err := s.Login(context.Background(), "bob", "Wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := s.Login(context.Background(), "nobody", "Password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown username, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	repo := newMemAccountRepo()
	sessions := newMemSessions()
	s := newAccountService(repo, sessions)

	reg, err := s.Register(context.Background(), RegisterInput{
		Username:        "dave",
		Email:           "dave@example.com",
		Password:        "Password123",
		PasswordConfirm: "Password123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.Delete(context.Background(), reg.AccountID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, ok := repo.byID[reg.AccountID]; ok {
		t.Fatalf("expected account removed")
	}
	if _, ok := repo.byUsername["dave"]; ok {
		t.Fatalf("expected username index cleared")
	}
	if _, ok := repo.profiles[reg.AccountID]; ok {
		t.Fatalf("expected profile removed with account")
	}
	for _, sess := range sessions.byID {
		if sess.AccountID == reg.AccountID {
			t.Fatalf("expected sessions revoked, found %s", sess.ID)
		}
	}

	if _, err := s.Login(context.Background(), "dave", "Password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected login to fail after deletion, got %v", err)
	}
	if err := s.Delete(context.Background(), reg.AccountID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	repo := newMemAccountRepo()
	sessions := newMemSessions()
	s := newAccountService(repo, sessions)

	reg, err := s.Register(context.Background(), RegisterInput{
		Username:        "carol",
		Email:           "carol@example.com",
		Password:        "OldPass123",
		PasswordConfirm: "OldPass123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	account := repo.byUsername["carol"]
	oldHash := account.PasswordHash
	sessionID := "sess-1"
	oldStamp := sessions.byID[sessionID].Stamp

	// Wrong current password leaves the hash and session untouched
	_, err = s.ChangePassword(context.Background(), reg.AccountID, sessionID, ChangePasswordInput{
		CurrentPassword:    "bad",
		NewPassword:        "NewPass123",
		NewPasswordConfirm: "NewPass123",
	})
	fe, ok := domain.AsFieldErrors(err)
	if !ok || !errors.Is(fe["currentPassword"], domain.ErrInvalidCurrentPassword) {
		t.Fatalf("expected invalid current password, got %v", err)
	}
	if account.PasswordHash != oldHash {
		t.Fatalf("expected hash unchanged after failed attempt")
	}
	if sessions.byID[sessionID].Stamp != oldStamp {
		t.Fatalf("expected session stamp unchanged after failed attempt")
	}

	// Reusing the current password is rejected
	_, err = s.ChangePassword(context.Background(), reg.AccountID, sessionID, ChangePasswordInput{
		CurrentPassword:    "OldPass123",
		NewPassword:        "OldPass123",
		NewPasswordConfirm: "OldPass123",
	})
	fe, ok = domain.AsFieldErrors(err)
	if !ok || !errors.Is(fe["newPassword"], domain.ErrPasswordUnchanged) {
		t.Fatalf("expected password unchanged error, got %v", err)
	}

	// Mismatched confirmation is rejected
	_, err = s.ChangePassword(context.Background(), reg.AccountID, sessionID, ChangePasswordInput{
		CurrentPassword:    "OldPass123",
		NewPassword:        "NewPass123",
		NewPasswordConfirm: "Different123",
	})
	fe, ok = domain.AsFieldErrors(err)
	if !ok || !errors.Is(fe["newPasswordConfirm"], domain.ErrPasswordMismatch) {
		t.Fatalf("expected password mismatch error, got %v", err)
	}

	// Good change: hash rotates, session keeps its ID with a new stamp
	r, err := s.ChangePassword(context.Background(), reg.AccountID, sessionID, ChangePasswordInput{
		CurrentPassword:    "OldPass123",
		NewPassword:        "NewPass123",
		NewPasswordConfirm: "NewPass123",
	})
	if err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if r.Token == "" {
		t.Fatalf("expected fresh token after change")
	}
	if account.PasswordHash == oldHash {
		t.Fatalf("expected hash to change")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("NewPass123")) != nil {
		t.Fatalf("expected new password to verify against stored hash")
	}

	sess := sessions.byID[sessionID]
	if sess == nil {
		t.Fatalf("expected session to survive the password change")
	}
	if sess.Stamp == oldStamp {
		t.Fatalf("expected session stamp to rotate")
	}
	// A token minted before the change carries the old stamp and must
	// no longer validate.
	if _, err := sessions.Validate(context.Background(), sessionID, oldStamp); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected stale stamp to be rejected, got %v", err)
	}
	if _, err := sessions.Validate(context.Background(), sessionID, sess.Stamp); err != nil {
		t.Fatalf("expected fresh stamp to validate: %v", err)
	}

	// And the new password logs in
	if _, err := s.Login(context.Background(), "carol", "NewPass123"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := s.Login(context.Background(), "carol", "OldPass123"); err == nil {
		t.Fatalf("expected old password to fail after change")
	}
}
