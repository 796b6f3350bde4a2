package v1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playRound runs a full start/join/end cycle and returns the session id.
func playRound(t *testing.T, lobby *LobbyService, picks map[int64]int, winningNumber int) int64 {
	t.Helper()
	ctx := context.Background()

	var starter *int64
	for userID := range picks {
		id := userID
		starter = &id
		break
	}
	started, err := lobby.Start(ctx, starter)
	require.NoError(t, err)
	for userID, pick := range picks {
		_, err := lobby.Join(ctx, userID, pick)
		require.NoError(t, err)
	}

	lobby.draw = func() int { return winningNumber }
	_, err = lobby.End(ctx, started.ID)
	require.NoError(t, err)
	return started.ID
}

func TestLeaderboardOverallRanksByCumulativeWins(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	leaderboard := NewLeaderboardService(store.Users())
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	picks := map[int64]int{alice.ID: 3, bob.ID: 5}
	playRound(t, lobby, picks, 3)
	playRound(t, lobby, picks, 3)
	playRound(t, lobby, picks, 5)

	rows, err := leaderboard.Top(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, alice.ID, rows[0].ID)
	assert.Equal(t, 2, rows[0].Wins)
	assert.Equal(t, bob.ID, rows[1].ID)
	assert.Equal(t, 1, rows[1].Wins)
}

func TestLeaderboardPeriodExcludesOlderRounds(t *testing.T) {
	ctx := context.Background()
	lobby, store := newTestLobby(t, Options{})
	leaderboard := NewLeaderboardService(store.Users())
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	picks := map[int64]int{alice.ID: 3, bob.ID: 5}
	oldRound := playRound(t, lobby, picks, 3)
	playRound(t, lobby, picks, 3)
	playRound(t, lobby, picks, 5)

	// Push alice's first win out of the trailing day.
	store.SetSessionTimes(oldRound, time.Now().AddDate(0, 0, -2), nil)

	rows, err := leaderboard.Top(ctx, "day")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Wins)
	assert.Equal(t, 1, rows[1].Wins)
	// Tie broken by id, so alice still leads.
	assert.Equal(t, alice.ID, rows[0].ID)

	// Cumulative ranking is untouched by the session's age.
	rows, err = leaderboard.Top(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, rows[0].Wins)
}
