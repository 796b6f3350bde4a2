package v1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/lobby-service/internal/core/memory"
)

func newTestAuth(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	auth := NewAuthService(store.Users(), store.Players(), store.Queue(), "test-secret")
	return auth, store
}

func TestRegisterNormalizesUsername(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	response, err := auth.Register(ctx, "  Alice ", nil)
	require.NoError(t, err)
	require.NotNil(t, response.User)
	assert.Equal(t, "alice", response.User.Username)
	assert.NotEmpty(t, response.Token)
}

func TestRegisterRejectsBlankUsername(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	_, err := auth.Register(ctx, "   ", nil)
	require.ErrorIs(t, err, ErrUsernameRequired)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	_, err := auth.Register(ctx, "alice", nil)
	require.NoError(t, err)

	// Normalization makes the collision case-insensitive.
	_, err = auth.Register(ctx, "ALICE", nil)
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginIssuesToken(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	registered, err := auth.Register(ctx, "alice", nil)
	require.NoError(t, err)

	response, err := auth.Login(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, response.User.ID)
	assert.NotEmpty(t, response.Token)
}

func TestLoginRejectsUnknownUsername(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	_, err := auth.Login(ctx, "nobody")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRefusedWhileUserOccupiesActiveRound(t *testing.T) {
	ctx := context.Background()
	auth, store := newTestAuth(t)

	alice, err := auth.Register(ctx, "alice", nil)
	require.NoError(t, err)
	bob, err := auth.Register(ctx, "bob", nil)
	require.NoError(t, err)

	pending, err := store.Sessions().CreatePending(ctx, nil)
	require.NoError(t, err)
	active, err := store.Sessions().Activate(ctx, pending.ID, time.Now(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, active)

	require.NoError(t, store.Players().Add(ctx, active.ID, alice.User.ID, 3))
	require.NoError(t, store.Queue().Add(ctx, active.ID, bob.User.ID))

	_, err = auth.Login(ctx, "alice")
	require.ErrorIs(t, err, ErrUserInActiveSession)

	// Queued membership blocks login the same way.
	_, err = auth.Login(ctx, "bob")
	require.ErrorIs(t, err, ErrUserInActiveSession)
}

func TestLoginAllowedAfterRoundEnds(t *testing.T) {
	ctx := context.Background()
	auth, store := newTestAuth(t)

	alice, err := auth.Register(ctx, "alice", nil)
	require.NoError(t, err)

	pending, err := store.Sessions().CreatePending(ctx, nil)
	require.NoError(t, err)
	active, err := store.Sessions().Activate(ctx, pending.ID, time.Now(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.Players().Add(ctx, active.ID, alice.User.ID, 3))

	applied, err := store.Sessions().Complete(ctx, active.ID, 5)
	require.NoError(t, err)
	require.True(t, applied)

	_, err = auth.Login(ctx, "alice")
	require.NoError(t, err)
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	auth, _ := newTestAuth(t)

	registered, err := auth.Register(ctx, "alice", nil)
	require.NoError(t, err)

	user, err := auth.GetUser(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = auth.GetUser(ctx, 999)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
