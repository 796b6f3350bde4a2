// Package v1 provides the lobby business logic for API version 1: the
// session state machine, admission rules, queue promotion, the background
// sweeper, identity and the leaderboard query.
//
// Error Handling:
// This package defines sentinel errors that represent the failure taxonomy of
// the lobby engine. They should be wrapped with context using
// fmt.Errorf("%w") when returned from business logic methods.
//
// Example Usage:
//
//	if active == nil {
//	    return nil, fmt.Errorf("join session for user %d: %w", userID, ErrNoActiveSession)
//	}
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrInvalidPick):
//	    c.JSON(http.StatusBadRequest, gin.H{"error": "Pick must be between 1 and 9"})
//	case errors.Is(err, logicv1.ErrAlreadyInSession):
//	    c.JSON(http.StatusConflict, gin.H{"error": "Already in session"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import "errors"

// Sentinel errors for lobby operations, grouped by taxonomy.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned.
var (
	// Validation errors: malformed input, never retried.

	// ErrInvalidPick indicates a pick outside the 1..9 range.
	// HTTP Status: 400 Bad Request
	ErrInvalidPick = errors.New("pick out of range")

	// ErrUsernameRequired indicates an empty username after normalization.
	// HTTP Status: 400 Bad Request
	ErrUsernameRequired = errors.New("username required")

	// Conflict errors: duplicate membership, caller must not retry with the
	// same state.

	// ErrAlreadyInSession indicates the user already holds a player slot.
	// HTTP Status: 409 Conflict
	ErrAlreadyInSession = errors.New("already in session")

	// ErrAlreadyInQueue indicates the user is already on the waiting list.
	// HTTP Status: 409 Conflict
	ErrAlreadyInQueue = errors.New("already in queue")

	// ErrUsernameTaken indicates the username is already registered.
	// HTTP Status: 409 Conflict
	ErrUsernameTaken = errors.New("username already taken")

	// State errors: wrong lifecycle phase.

	// ErrSessionAlreadyActive indicates a start while a round is running.
	// HTTP Status: 400 Bad Request
	ErrSessionAlreadyActive = errors.New("session already active")

	// ErrNoActiveSession indicates a join with no running round.
	// HTTP Status: 400 Bad Request
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotEnded indicates a results query before the round ended.
	// HTTP Status: 400 Bad Request
	ErrSessionNotEnded = errors.New("session not ended yet")

	// NotFound errors.

	// ErrSessionNotFound indicates an unknown session id.
	// HTTP Status: 404 Not Found
	ErrSessionNotFound = errors.New("session not found")

	// Auth errors.

	// ErrInvalidCredentials indicates an unknown username at login.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserInActiveSession refuses login while the user occupies an active
	// round as player or queued member.
	// HTTP Status: 401 Unauthorized
	ErrUserInActiveSession = errors.New("user has an active session and cannot log in")
)
