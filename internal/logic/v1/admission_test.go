package v1

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

func TestValidatePick(t *testing.T) {
	tests := []struct {
		name    string
		pick    int
		wantErr error
	}{
		{"below range", 0, ErrInvalidPick},
		{"above range", 10, ErrInvalidPick},
		{"negative", -3, ErrInvalidPick},
		{"lower bound", 1, nil},
		{"upper bound", 9, nil},
		{"middle", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePick(tt.pick)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRequireActiveSession(t *testing.T) {
	require.ErrorIs(t, RequireActiveSession(nil), ErrNoActiveSession)

	pending := &domain.SessionRow{ID: 1, Status: domain.StatusPending}
	require.ErrorIs(t, RequireActiveSession(pending), ErrNoActiveSession)

	ended := &domain.SessionRow{ID: 2, Status: domain.StatusEnded}
	require.ErrorIs(t, RequireActiveSession(ended), ErrNoActiveSession)

	active := &domain.SessionRow{ID: 3, Status: domain.StatusActive}
	require.NoError(t, RequireActiveSession(active))
}

func TestRequireNotMemberAndNotQueued(t *testing.T) {
	players := []domain.PlayerRow{{UserID: 1}, {UserID: 2}}
	queue := []domain.QueueRow{{UserID: 3}}

	require.ErrorIs(t, RequireNotMember(players, 1), ErrAlreadyInSession)
	require.NoError(t, RequireNotMember(players, 3))

	require.ErrorIs(t, RequireNotQueued(queue, 3), ErrAlreadyInQueue)
	require.NoError(t, RequireNotQueued(queue, 1))
}

func TestIsFull(t *testing.T) {
	players := []domain.PlayerRow{{UserID: 1}, {UserID: 2}}

	require.False(t, IsFull(players, 3))
	require.True(t, IsFull(players, 2))
	require.True(t, IsFull(players, 1))
}

func TestRandomPickStaysInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		pick := randomPick()
		require.GreaterOrEqual(t, pick, MinPick)
		require.LessOrEqual(t, pick, MaxPick)
	}
}

func TestProvisionalDraw(t *testing.T) {
	require.Equal(t, MinPick, provisionalDraw(nil))

	players := []domain.PlayerRow{{Pick: 2}, {Pick: 3}, {Pick: 4}}
	// (2+3+4) mod 9 + 1
	require.Equal(t, 1, provisionalDraw(players))

	players = []domain.PlayerRow{{Pick: 3}, {Pick: 5}}
	require.Equal(t, 9, provisionalDraw(players))
}
