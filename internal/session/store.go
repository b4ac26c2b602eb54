package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/profilehub/internal/domain"
)

const (
	sessionKeyPrefix = "session:"
	indexKeyPrefix   = "account-sessions:"
)

// Session is the server-side record behind an authenticated request.
// Stamp is derived from the account's password hash: tokens minted
// before a password change carry a stale stamp and stop validating,
// while a refreshed session keeps its ID and stays logged in.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Stamp     string    `json:"stamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// KV is the key-value surface the store needs. Implemented by
// infrastructure/redis.Client; tests substitute an in-memory map.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Manager describes session lifecycle operations consumed by services
// and the auth middleware.
type Manager interface {
	Establish(ctx context.Context, account *domain.Account) (*Session, error)
	Refresh(ctx context.Context, sessionID string, account *domain.Account) (*Session, error)
	Validate(ctx context.Context, sessionID, stamp string) (*Session, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, accountID string) error
}

// Store implements Manager on top of Redis
type Store struct {
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

// NewStore creates a session store. Sessions expire after ttl unless
// refreshed.
func NewStore(kv KV, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, ttl: ttl, logger: logger}
}

// CredentialStamp derives the session stamp from a password hash
func CredentialStamp(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:12])
}

// Establish creates a fresh session for the account
func (s *Store) Establish(ctx context.Context, account *domain.Account) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Stamp:     CredentialStamp(account.PasswordHash),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.kv.SAdd(ctx, indexKeyPrefix+account.ID, sess.ID); err != nil {
		s.logger.Warn("failed to index session", slog.String("account_id", account.ID), slog.String("error", err.Error()))
	}
	return sess, nil
}

// Refresh re-stamps an existing session after a credential change and
// resets its TTL. The session ID is preserved so the caller stays
// logged in.
func (s *Store) Refresh(ctx context.Context, sessionID string, account *domain.Account) (*Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.AccountID != account.ID {
		return nil, domain.ErrUnauthenticated
	}
	sess.Stamp = CredentialStamp(account.PasswordHash)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate loads a session and checks the credential stamp
func (s *Store) Validate(ctx context.Context, sessionID, stamp string) (*Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stamp != stamp {
		return nil, domain.ErrUnauthenticated
	}
	return sess, nil
}

// Revoke removes a single session
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, sessionKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.kv.SRem(ctx, indexKeyPrefix+sess.AccountID, sessionID); err != nil {
		s.logger.Warn("failed to unindex session", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
	return nil
}

// RevokeAll removes every session belonging to an account
func (s *Store) RevokeAll(ctx context.Context, accountID string) error {
	ids, err := s.kv.SMembers(ctx, indexKeyPrefix+accountID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, indexKeyPrefix+accountID)
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// Sweep prunes index entries whose session keys have already expired.
// Returns the number of pruned entries and the number still live.
func (s *Store) Sweep(ctx context.Context) (pruned, live int, err error) {
	indexes, err := s.kv.Keys(ctx, indexKeyPrefix+"*")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list session indexes: %w", err)
	}
	for _, index := range indexes {
		ids, err := s.kv.SMembers(ctx, index)
		if err != nil {
			s.logger.Error("failed to read session index", slog.String("key", index), slog.String("error", err.Error()))
			continue
		}
		for _, id := range ids {
			ok, err := s.kv.Exists(ctx, sessionKeyPrefix+id)
			if err != nil {
				continue
			}
			if ok {
				live++
				continue
			}
			if err := s.kv.SRem(ctx, index, id); err == nil {
				pruned++
			}
		}
	}
	return pruned, live, nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+sess.ID, string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	data, err := s.kv.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}
