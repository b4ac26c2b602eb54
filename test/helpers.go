package test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/internal/handler"
	"github.com/yourorg/profilehub/internal/infrastructure/logger"
	"github.com/yourorg/profilehub/internal/security/audit"
	"github.com/yourorg/profilehub/internal/security/auth"
	"github.com/yourorg/profilehub/internal/security/middleware"
	"github.com/yourorg/profilehub/internal/service"
	"github.com/yourorg/profilehub/internal/session"
)

// TestServerHelper runs the full HTTP surface against in-memory
// stores, with the real token manager and session store in the loop.
type TestServerHelper struct {
	Server   *httptest.Server
	Logger   *slog.Logger
	Accounts *memAccountRepo
	Profiles *memProfileRepo
	Sessions *session.Store
}

func NewTestServer(t *testing.T) *TestServerHelper {
	t.Helper()
	log := logger.NewLogger("debug")

	accounts := newMemAccountRepo()
	profiles := newMemProfileRepo()
	accounts.profiles = profiles
	sessions := session.NewStore(newMemKV(), time.Hour, log)
	tokens := auth.NewTokenManager("test-secret", "profilehub")

	accountService := service.NewAccountService(accounts, sessions, tokens, time.Hour, log)
	profileService := service.NewProfileService(profiles, newMemMediaStore(), nil, log)

	auditLogger := audit.NewLogger(log)
	mux := handler.NewMux(
		handler.NewAuthHandler(accountService, profileService, auditLogger, log),
		handler.NewProfileHandler(profileService, log),
		handler.NewHealthHandler(nil, nil),
	)
	root := middleware.AuthMiddleware(tokens, sessions, log)(mux)

	return &TestServerHelper{
		Server:   httptest.NewServer(root),
		Logger:   log,
		Accounts: accounts,
		Profiles: profiles,
		Sessions: sessions,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentTypePrefix helper function
func AssertContentTypePrefix(t *testing.T, resp *http.Response, prefix string) {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, prefix) {
		t.Errorf("Expected Content-Type starting with %s, got %s", prefix, ct)
	}
}

type memAccountRepo struct {
	byID       map[string]*domain.Account
	byUsername map[string]*domain.Account
	byEmail    map[string]*domain.Account
	profiles   *memProfileRepo
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		byID:       map[string]*domain.Account{},
		byUsername: map[string]*domain.Account{},
		byEmail:    map[string]*domain.Account{},
	}
}

func (m *memAccountRepo) CreateWithProfile(_ context.Context, a *domain.Account) error {
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
	if m.profiles != nil {
		m.profiles.profiles[a.ID] = &domain.Profile{AccountID: a.ID}
	}
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
	if m.profiles != nil {
		delete(m.profiles.profiles, id)
	}
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

type memProfileRepo struct {
	profiles map[string]*domain.Profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: map[string]*domain.Profile{}}
}

func (m *memProfileRepo) GetByAccountID(_ context.Context, accountID string) (*domain.Profile, error) {
	if p, ok := m.profiles[accountID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memProfileRepo) Update(_ context.Context, accountID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	p, ok := m.profiles[accountID]
	if !ok {
		// Accounts registered through the service always own a
		// profile; create lazily for tests that seed accounts directly.
		p = &domain.Profile{AccountID: accountID}
		m.profiles[accountID] = p
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	switch {
	case upd.ClearBirthDate:
		p.BirthDate = nil
	case upd.BirthDate != nil:
		p.BirthDate = upd.BirthDate
	}
	if upd.Location != nil {
		p.Location = *upd.Location
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (m *memProfileRepo) SetAvatarKey(_ context.Context, accountID, avatarKey string) error {
	p, ok := m.profiles[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	p.AvatarKey = avatarKey
	return nil
}

type memMediaStore struct {
	objects map[string][]byte
	seq     int
}

func newMemMediaStore() *memMediaStore {
	return &memMediaStore{objects: map[string][]byte{}}
}

func (m *memMediaStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memMediaStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memMediaStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

func (m *memMediaStore) NewAvatarKey() string {
	m.seq++
	return "avatars/test/" + time.Now().UTC().Format("20060102") + "/" + string(rune('a'+m.seq))
}

type memKV struct {
	values map[string]string
	sets   map[string]map[string]struct{}
}

func newMemKV() *memKV {
	return &memKV{values: map[string]string{}, sets: map[string]map[string]struct{}{}}
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", errors.New("key not found")
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *memKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.values[key]
	return ok, nil
}

func (m *memKV) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (m *memKV) SAdd(_ context.Context, key string, members ...string) error {
	set, ok := m.sets[key]
	if !ok {
		set = map[string]struct{}{}
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *memKV) SRem(_ context.Context, key string, members ...string) error {
	for _, member := range members {
		delete(m.sets[key], member)
	}
	return nil
}

func (m *memKV) SMembers(_ context.Context, key string) ([]string, error) {
	out := []string{}
	for member := range m.sets[key] {
		out = append(out, member)
	}
	return out, nil
}

func (m *memKV) Keys(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	out := []string{}
	for key := range m.sets {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}
