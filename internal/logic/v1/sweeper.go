package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RunExpiryPass reconciles overdue rounds. With zero users active within the
// trailing window the whole lobby is torn down: every ACTIVE session is
// ended (winners drawn as usual) and every PENDING session deleted, with no
// replacement created. Otherwise each expired ACTIVE session is ended and a
// PENDING session is guaranteed to exist afterwards. Idempotent; invoked by
// the sweeper timer and inline by reads, so both triggers share one code
// path.
func (s *LobbyService) RunExpiryPass(ctx context.Context) error {
	now := s.now()

	activeUsers, err := s.users.CountActiveSince(ctx, now.Add(-s.activityWindow))
	if err != nil {
		return fmt.Errorf("count active users: %w", err)
	}

	if activeUsers == 0 {
		return s.stopAllSessions(ctx)
	}

	expired, err := s.sessions.FindExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired sessions: %w", err)
	}
	for _, session := range expired {
		if _, err := s.End(ctx, session.ID); err != nil {
			return fmt.Errorf("end expired session %d: %w", session.ID, err)
		}
	}

	if _, err := s.EnsurePending(ctx, nil); err != nil {
		return err
	}
	return nil
}

// stopAllSessions shuts the lobby down for an empty house: active rounds are
// ended first (so their winners are still drawn and recorded), then every
// pending round is deleted. No pending round is kept alive until a user
// becomes active again.
func (s *LobbyService) stopAllSessions(ctx context.Context) error {
	for {
		active, err := s.sessions.FindActive(ctx)
		if err != nil {
			return fmt.Errorf("find active session: %w", err)
		}
		if active == nil {
			break
		}
		if _, err := s.End(ctx, active.ID); err != nil {
			return fmt.Errorf("end session %d on teardown: %w", active.ID, err)
		}
	}

	pending, err := s.sessions.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending sessions: %w", err)
	}
	for _, session := range pending {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return fmt.Errorf("delete pending session %d: %w", session.ID, err)
		}
	}
	return nil
}

// RunIdleReapPass removes players and queue entries belonging to users idle
// beyond the trailing window. A hygiene sweep, not a user action: rows are
// dropped unconditionally and no queue promotion runs.
func (s *LobbyService) RunIdleReapPass(ctx context.Context) error {
	cutoff := s.now().Add(-s.activityWindow)

	idle, err := s.users.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list inactive users: %w", err)
	}

	for _, user := range idle {
		if err := s.players.RemoveAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("reap player rows for user %d: %w", user.ID, err)
		}
		if err := s.queue.RemoveAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("reap queue rows for user %d: %w", user.ID, err)
		}
	}
	return nil
}

// Sweeper drives the periodic reconciliation passes. It never fails the
// process: a pass that errors is logged and abandoned until the next tick.
type Sweeper struct {
	lobby *LobbyService

	expiryInterval time.Duration
	reapInterval   time.Duration
}

// NewSweeper creates a Sweeper over the given lobby. Non-positive intervals
// fall back to the process defaults (10s expiry, 60s idle reap).
func NewSweeper(lobby *LobbyService, expiryInterval, reapInterval time.Duration) *Sweeper {
	if expiryInterval <= 0 {
		expiryInterval = 10 * time.Second
	}
	if reapInterval <= 0 {
		reapInterval = time.Minute
	}
	return &Sweeper{lobby: lobby, expiryInterval: expiryInterval, reapInterval: reapInterval}
}

// Run blocks until ctx is cancelled, firing the expiry and idle-reap passes
// on their intervals.
func (w *Sweeper) Run(ctx context.Context) {
	expiry := time.NewTicker(w.expiryInterval)
	defer expiry.Stop()
	reap := time.NewTicker(w.reapInterval)
	defer reap.Stop()

	log.Info().
		Dur("expiry_interval", w.expiryInterval).
		Dur("reap_interval", w.reapInterval).
		Msg("Sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")
			return
		case <-expiry.C:
			if err := w.lobby.RunExpiryPass(ctx); err != nil {
				log.Error().Err(err).Msg("Expiry pass failed")
			}
		case <-reap.C:
			if err := w.lobby.RunIdleReapPass(ctx); err != nil {
				log.Error().Err(err).Msg("Idle reap pass failed")
			}
		}
	}
}
