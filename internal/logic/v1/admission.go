package v1

import (
	"fmt"
	"math/rand"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

// Pick bounds for a round.
const (
	MinPick = 1
	MaxPick = 9
)

// Admission rules: pure checks run synchronously before any mutation.
// None of them touch the store.

// ValidatePick fails unless MinPick <= pick <= MaxPick.
func ValidatePick(pick int) error {
	if pick < MinPick || pick > MaxPick {
		return fmt.Errorf("pick %d: %w", pick, ErrInvalidPick)
	}
	return nil
}

// RequireActiveSession fails when the session is absent or not ACTIVE.
func RequireActiveSession(session *domain.SessionRow) error {
	if session == nil {
		return ErrNoActiveSession
	}
	if session.Status != domain.StatusActive {
		return fmt.Errorf("session %d is %s: %w", session.ID, session.Status, ErrNoActiveSession)
	}
	return nil
}

// RequireNotMember fails when the user already holds a player slot.
func RequireNotMember(players []domain.PlayerRow, userID int64) error {
	for _, p := range players {
		if p.UserID == userID {
			return fmt.Errorf("user %d: %w", userID, ErrAlreadyInSession)
		}
	}
	return nil
}

// RequireNotQueued fails when the user is already on the waiting list.
func RequireNotQueued(queue []domain.QueueRow, userID int64) error {
	for _, q := range queue {
		if q.UserID == userID {
			return fmt.Errorf("user %d: %w", userID, ErrAlreadyInQueue)
		}
	}
	return nil
}

// IsFull reports whether the session has no free player slots.
func IsFull(players []domain.PlayerRow, capacity int) bool {
	return len(players) >= capacity
}

// randomPick draws a uniform pick in MinPick..MaxPick.
func randomPick() int {
	return rand.Intn(MaxPick) + MinPick
}
