package v1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/lobby-service/internal/core/domain"
	"github.com/duynhne/lobby-service/internal/core/memory"
)

func newTestLobby(t *testing.T, opts Options) (*LobbyService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	lobby := NewLobbyService(store.Sessions(), store.Players(), store.Queue(), store.Users(), opts)
	return lobby, store
}

func createUser(t *testing.T, store *memory.Store, username string) *domain.UserRow {
	t.Helper()
	user, err := store.Users().Create(context.Background(), username, nil)
	require.NoError(t, err)
	return user
}

func TestStartActivatesPendingRound(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	view, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view)

	assert.Equal(t, domain.StatusActive, view.Status)
	require.NotNil(t, view.StartedAt)
	require.NotNil(t, view.EndsAt)
	assert.Equal(t, defaultRoundDuration, view.EndsAt.Sub(*view.StartedAt))
	require.NotNil(t, view.StartedByID)
	assert.Equal(t, alice.ID, *view.StartedByID)

	// The pending round was consumed, not duplicated.
	pending, err := store.Sessions().FindLatestPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestStartFailsWhileRoundIsRunning(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	_, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	_, err = lobby.Start(ctx, &bob.ID)
	require.ErrorIs(t, err, ErrSessionAlreadyActive)
}

func TestActivateIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	pending, err := lobby.EnsurePending(ctx, &alice.ID)
	require.NoError(t, err)

	now := time.Now()
	first, err := store.Sessions().Activate(ctx, pending.ID, now, now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, first)

	// The losing transition matches no row and reports it with (nil, nil),
	// which Start surfaces as ErrSessionAlreadyActive.
	second, err := store.Sessions().Activate(ctx, pending.ID, now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestStartBackfillsCarriedQueue(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{Capacity: 3})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	carol := createUser(t, store, "carol")

	pending, err := lobby.EnsurePending(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.Queue().Add(ctx, pending.ID, bob.ID))
	require.NoError(t, store.Queue().Add(ctx, pending.ID, carol.ID))

	view, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	assert.True(t, view.HasPlayer(bob.ID))
	assert.True(t, view.HasPlayer(carol.ID))
	assert.Empty(t, view.Queue)
}

func TestJoinAdmitsPlayerWithPick(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	_, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	view, err := lobby.Join(ctx, bob.ID, 7)
	require.NoError(t, err)
	require.True(t, view.HasPlayer(bob.ID))
	for _, p := range view.Players {
		if p.UserID == bob.ID {
			assert.Equal(t, 7, p.Pick)
		}
	}
}

func TestJoinRejectsOutOfRangePicks(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	_, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	_, err = lobby.Join(ctx, alice.ID, 0)
	require.ErrorIs(t, err, ErrInvalidPick)
	_, err = lobby.Join(ctx, alice.ID, 10)
	require.ErrorIs(t, err, ErrInvalidPick)

	// Boundary values are admitted.
	view, err := lobby.Join(ctx, alice.ID, 1)
	require.NoError(t, err)
	assert.True(t, view.HasPlayer(alice.ID))
}

func TestJoinRequiresActiveRound(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	_, err := lobby.Join(ctx, alice.ID, 5)
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestJoinRejectsDoubleMembership(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{Capacity: 1})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	_, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	_, err = lobby.Join(ctx, alice.ID, 3)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, alice.ID, 4)
	require.ErrorIs(t, err, ErrAlreadyInSession)

	// Round is full, so bob lands in the queue; a second join is refused too.
	view, err := lobby.Join(ctx, bob.ID, 5)
	require.NoError(t, err)
	assert.True(t, view.HasQueued(bob.ID))
	assert.False(t, view.HasPlayer(bob.ID))

	_, err = lobby.Join(ctx, bob.ID, 6)
	require.ErrorIs(t, err, ErrAlreadyInQueue)
}

func TestLeavePromotesQueueHeadInOrder(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{Capacity: 2})
	lobby.draw = func() int { return 8 }
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	carol := createUser(t, store, "carol")
	dave := createUser(t, store, "dave")

	_, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, alice.ID, 3)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, bob.ID, 5)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, carol.ID, 4)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, dave.ID, 6)
	require.NoError(t, err)

	view, err := lobby.Leave(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view)

	// carol queued first, so she takes the freed slot; dave keeps waiting.
	assert.False(t, view.HasPlayer(alice.ID))
	assert.True(t, view.HasPlayer(bob.ID))
	assert.True(t, view.HasPlayer(carol.ID))
	assert.True(t, view.HasQueued(dave.ID))
	assert.Len(t, view.Players, 2)

	// Promotion assigns the promoted player a drawn pick.
	for _, p := range view.Players {
		if p.UserID == carol.ID {
			assert.Equal(t, 8, p.Pick)
		}
	}
}

func TestLeaveDeletesEmptiedPendingRound(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	pending, err := lobby.EnsurePending(ctx, &alice.ID)
	require.NoError(t, err)
	require.NoError(t, store.Players().Add(ctx, pending.ID, alice.ID, 5))

	view, err := lobby.Leave(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, view)

	row, err := store.Sessions().FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestLeaveWithoutMembershipIsNoop(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	_, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	view, err := lobby.Leave(ctx, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestEndDrawsWinnersAndOpensNextRound(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	users := []*domain.UserRow{
		createUser(t, store, "alice"),
		createUser(t, store, "bob"),
		createUser(t, store, "carol"),
		createUser(t, store, "dave"),
	}
	picks := []int{3, 5, 3, 7}

	started, err := lobby.Start(ctx, &users[0].ID)
	require.NoError(t, err)
	for i, u := range users {
		_, err := lobby.Join(ctx, u.ID, picks[i])
		require.NoError(t, err)
	}

	lobby.draw = func() int { return 3 }

	view, err := lobby.End(ctx, started.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	require.NotNil(t, view.WinningNumber)
	assert.Equal(t, 3, *view.WinningNumber)

	ended, err := lobby.GetEnded(ctx, started.ID)
	require.NoError(t, err)
	winners := 0
	for _, p := range ended.Players {
		if p.IsWinner {
			winners++
			assert.Equal(t, 3, p.Pick)
		}
	}
	assert.Equal(t, 2, winners)

	for _, id := range []int64{users[0].ID, users[2].ID} {
		u, err := store.Users().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Wins)
	}
	for _, id := range []int64{users[1].ID, users[3].ID} {
		u, err := store.Users().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, u.Wins)
	}

	// A fresh pending round is waiting behind the ended one.
	pending, err := store.Sessions().FindLatestPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.NotEqual(t, started.ID, pending.ID)
}

func TestEndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	started, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, alice.ID, 4)
	require.NoError(t, err)

	lobby.draw = func() int { return 4 }
	_, err = lobby.End(ctx, started.ID)
	require.NoError(t, err)

	// Retried End must not redraw or double-count the win.
	lobby.draw = func() int { return 9 }
	again, err := lobby.End(ctx, started.ID)
	require.NoError(t, err)
	require.NotNil(t, again)
	require.NotNil(t, again.WinningNumber)
	assert.Equal(t, 4, *again.WinningNumber)

	u, err := store.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Wins)
}

func TestEndUnknownSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	lobby, _ := newTestLobby(t, Options{})

	view, err := lobby.End(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestGetCurrentKeepsPendingRoundAvailable(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	// With an active user around, a read materializes the pending round.
	view, err := lobby.GetCurrent(ctx, &alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.StatusPending, view.Status)
}

func TestGetCurrentReturnsNilForEmptyHouse(t *testing.T) {
	ctx := context.Background()
	lobby, _ := newTestLobby(t, Options{})

	view, err := lobby.GetCurrent(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestGetCurrentAutoStartsAgedPending(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{AutoStartDelay: 30 * time.Second})
	alice := createUser(t, store, "alice")

	pending, err := lobby.EnsurePending(ctx, &alice.ID)
	require.NoError(t, err)
	store.SetSessionTimes(pending.ID, time.Now().Add(-time.Minute), nil)

	view, err := lobby.GetCurrent(ctx, &alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.StatusActive, view.Status)
	assert.Equal(t, pending.ID, view.ID)
}

func TestGetCurrentLeavesYoungPendingAlone(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	pending, err := lobby.EnsurePending(ctx, &alice.ID)
	require.NoError(t, err)

	view, err := lobby.GetCurrent(ctx, &alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.StatusPending, view.Status)
	assert.Equal(t, pending.ID, view.ID)
}

func TestGetCurrentEndsExpiredRoundInline(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	started, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)
	expired := time.Now().Add(-time.Second)
	store.SetSessionTimes(started.ID, started.CreatedAt, &expired)

	view, err := lobby.GetCurrent(ctx, &alice.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.StatusPending, view.Status)

	row, err := store.Sessions().FindByID(ctx, started.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, domain.StatusEnded, row.Status)
	assert.NotNil(t, row.WinningNumber)
}

func TestIsJoinableReasons(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{Capacity: 1})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	carol := createUser(t, store, "carol")

	result, err := lobby.IsJoinable(ctx, &alice.ID)
	require.NoError(t, err)
	assert.False(t, result.Joinable)
	assert.Equal(t, "No active session available", result.Reason)

	_, err = lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	result, err = lobby.IsJoinable(ctx, &alice.ID)
	require.NoError(t, err)
	assert.True(t, result.Joinable)
	assert.Equal(t, "Can join session directly", result.Reason)

	_, err = lobby.Join(ctx, alice.ID, 2)
	require.NoError(t, err)

	result, err = lobby.IsJoinable(ctx, &alice.ID)
	require.NoError(t, err)
	assert.False(t, result.Joinable)
	assert.Equal(t, "Already in session", result.Reason)

	result, err = lobby.IsJoinable(ctx, &bob.ID)
	require.NoError(t, err)
	assert.True(t, result.Joinable)
	assert.Equal(t, "Session is full, you can join the queue", result.Reason)

	_, err = lobby.Join(ctx, bob.ID, 3)
	require.NoError(t, err)

	result, err = lobby.IsJoinable(ctx, &bob.ID)
	require.NoError(t, err)
	assert.False(t, result.Joinable)
	assert.Equal(t, "Already in queue", result.Reason)

	result, err = lobby.IsJoinable(ctx, &carol.ID)
	require.NoError(t, err)
	assert.True(t, result.Joinable)
}

func TestGetEndedStates(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	_, err := lobby.GetEnded(ctx, 999)
	require.ErrorIs(t, err, ErrSessionNotFound)

	started, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	_, err = lobby.GetEnded(ctx, started.ID)
	require.ErrorIs(t, err, ErrSessionNotEnded)

	_, err = lobby.End(ctx, started.ID)
	require.NoError(t, err)

	view, err := lobby.GetEnded(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, view.Status)
}

func TestGetResultsProvisionalIsDeterministic(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	carol := createUser(t, store, "carol")

	started, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, alice.ID, 2)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, bob.ID, 4)
	require.NoError(t, err)
	_, err = lobby.Join(ctx, carol.ID, 4)
	require.NoError(t, err)

	// Overdue but not yet swept.
	expired := time.Now().Add(-time.Second)
	store.SetSessionTimes(started.ID, started.CreatedAt, &expired)

	first, err := lobby.GetResults(ctx, started.ID)
	require.NoError(t, err)
	require.NotNil(t, first.WinningNumber)
	// (2+4+4) mod 9 + 1
	assert.Equal(t, 2, *first.WinningNumber)
	assert.Equal(t, domain.StatusEnded, first.Status)

	second, err := lobby.GetResults(ctx, started.ID)
	require.NoError(t, err)
	require.NotNil(t, second.WinningNumber)
	assert.Equal(t, *first.WinningNumber, *second.WinningNumber)

	for _, p := range first.Players {
		assert.Equal(t, p.Pick == 2, p.IsWinner)
	}

	// Provisional results never touch storage.
	row, err := store.Sessions().FindByID(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, row.Status)
	assert.Nil(t, row.WinningNumber)
}

func TestGetResultsStates(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	_, err := lobby.GetResults(ctx, 999)
	require.ErrorIs(t, err, ErrSessionNotFound)

	started, err := lobby.Start(ctx, &alice.ID)
	require.NoError(t, err)

	// Still running, nothing to report.
	_, err = lobby.GetResults(ctx, started.ID)
	require.ErrorIs(t, err, ErrSessionNotEnded)

	_, err = lobby.End(ctx, started.ID)
	require.NoError(t, err)

	view, err := lobby.GetResults(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, view.Status)
	assert.NotNil(t, view.WinningNumber)
}

func TestListEndedNewestFirst(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	alice := createUser(t, store, "alice")

	var ids []int64
	for i := 0; i < 2; i++ {
		started, err := lobby.Start(ctx, &alice.ID)
		require.NoError(t, err)
		_, err = lobby.End(ctx, started.ID)
		require.NoError(t, err)
		ids = append(ids, started.ID)
	}
	store.SetSessionTimes(ids[0], time.Now().Add(-time.Hour), nil)

	views, err := lobby.ListEnded(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, ids[1], views[0].ID)
	assert.Equal(t, ids[0], views[1].ID)
}
