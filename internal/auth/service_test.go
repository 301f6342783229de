package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalytics/basalytics/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st := store.NewMemoryStore()
	ts, err := NewTokenService(context.Background(), st)
	require.NoError(t, err)
	return NewService(st, ts)
}

func TestCreateAccountAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	account, err := svc.CreateAccount(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.NotEmpty(t, account.ID)
	assert.NotEqual(t, "hunter2", account.HashedPassword)

	token, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	claims, err := svc.Tokens().Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateAccount(ctx, "alice", "hunter2")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames produce the same error as wrong passwords.
	_, err = svc.Login(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateAccountDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateAccount(ctx, "alice", "hunter2")
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, "alice", "other")
	assert.ErrorIs(t, err, store.ErrAccountExists)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	account, err := svc.CreateAccount(ctx, "alice", "hunter2")
	require.NoError(t, err)

	// Pin the clock so the logout lands strictly after issuance.
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	svc.tokens.now = func() time.Time { return base }

	token, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	svc.tokens.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, svc.Logout(ctx, account.ID))

	_, err = svc.Tokens().Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestListAndDeleteAccounts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	a, err := svc.CreateAccount(ctx, "alice", "hunter2")
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, "bob", "hunter2")
	require.NoError(t, err)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	require.NoError(t, svc.DeleteAccount(ctx, a.ID))
	accounts, err = svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, "bob", accounts[0].Username)
}
