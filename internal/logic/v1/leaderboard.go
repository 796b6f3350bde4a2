package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

const leaderboardSize = 10

// LeaderboardService is a read-only ranking over historical results.
type LeaderboardService struct {
	users domain.UserRepository
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(users domain.UserRepository) *LeaderboardService {
	return &LeaderboardService{users: users}
}

// Top returns the top winners. period is "day", "week" or "month" for a
// trailing ranking counted from winner rows of rounds created since the
// period start; anything else (including empty) ranks by cumulative wins.
func (s *LeaderboardService) Top(ctx context.Context, period string) ([]domain.LeaderboardRow, error) {
	var since time.Time
	now := time.Now()

	switch period {
	case "day":
		since = startOfDay(now)
	case "week":
		// Weeks start on Monday.
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		since = startOfDay(now).AddDate(0, 0, -(weekday - 1))
	case "month":
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		rows, err := s.users.TopByWins(ctx, leaderboardSize)
		if err != nil {
			return nil, fmt.Errorf("overall leaderboard: %w", err)
		}
		return rows, nil
	}

	rows, err := s.users.TopWinnersSince(ctx, since, leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("%s leaderboard: %w", period, err)
	}
	return rows, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
