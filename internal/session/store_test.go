package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/profilehub/internal/domain"
)

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
	prefix := pattern
	if len(prefix) > 0 && prefix[len(prefix)-1] == '*' {
		prefix = prefix[:len(prefix)-1]
	}
	out := []string{}
	for key := range m.sets {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, key)
		}
	}
	return out, nil
}

func testAccount() *domain.Account {
	return &domain.Account{ID: "acc-1", Username: "alice", PasswordHash: "$2a$10$hash-one"}
}

func TestEstablishAndValidate(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, time.Hour, nil)
	account := testAccount()

	sess, err := store.Establish(context.Background(), account)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, CredentialStamp(account.PasswordHash), sess.Stamp)

	got, err := store.Validate(context.Background(), sess.ID, sess.Stamp)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.AccountID)

	_, err = store.Validate(context.Background(), sess.ID, "wrong-stamp")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = store.Validate(context.Background(), "missing", sess.Stamp)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRefreshKeepsSessionID(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, time.Hour, nil)
	account := testAccount()

	sess, err := store.Establish(context.Background(), account)
	require.NoError(t, err)
	oldStamp := sess.Stamp

	account.PasswordHash = "$2a$10$hash-two"
	refreshed, err := store.Refresh(context.Background(), sess.ID, account)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, refreshed.ID)
	assert.NotEqual(t, oldStamp, refreshed.Stamp)

	// The old stamp no longer validates, the new one does
	_, err = store.Validate(context.Background(), sess.ID, oldStamp)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = store.Validate(context.Background(), sess.ID, refreshed.Stamp)
	assert.NoError(t, err)
}

func TestRefreshRejectsForeignSession(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, time.Hour, nil)

	sess, err := store.Establish(context.Background(), testAccount())
	require.NoError(t, err)

	other := &domain.Account{ID: "acc-2", PasswordHash: "$2a$10$other"}
	_, err = store.Refresh(context.Background(), sess.ID, other)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRevoke(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, time.Hour, nil)
	account := testAccount()

	sess, err := store.Establish(context.Background(), account)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(context.Background(), sess.ID))

	_, err = store.Validate(context.Background(), sess.ID, sess.Stamp)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRevokeAll(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, time.Hour, nil)
	account := testAccount()

	first, err := store.Establish(context.Background(), account)
	require.NoError(t, err)
	second, err := store.Establish(context.Background(), account)
	require.NoError(t, err)

	require.NoError(t, store.RevokeAll(context.Background(), account.ID))

	_, err = store.Validate(context.Background(), first.ID, first.Stamp)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = store.Validate(context.Background(), second.ID, second.Stamp)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSweepPrunesExpiredSessions(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, time.Hour, nil)
	account := testAccount()

	live, err := store.Establish(context.Background(), account)
	require.NoError(t, err)
	dead, err := store.Establish(context.Background(), account)
	require.NoError(t, err)

	// Simulate TTL expiry of one session key; its index entry remains
	delete(kv.values, sessionKeyPrefix+dead.ID)

	pruned, remaining, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, remaining)

	members, err := kv.SMembers(context.Background(), indexKeyPrefix+account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{live.ID}, members)
}

func TestCredentialStampIsStable(t *testing.T) {
	a := CredentialStamp("$2a$10$hash-one")
	b := CredentialStamp("$2a$10$hash-one")
	c := CredentialStamp("$2a$10$hash-two")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 24)
}
