package v1

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/lobby-service/internal/core/domain"
	"github.com/duynhne/lobby-service/internal/logger"
	"github.com/duynhne/lobby-service/middleware"
)

// Options carries the read-only lobby configuration. Zero values fall back
// to the process defaults.
type Options struct {
	// RoundDuration is how long a round stays ACTIVE after starting.
	RoundDuration time.Duration
	// Capacity is the number of player slots per round.
	Capacity int
	// ActivityWindow is the trailing window a user must have acted within to
	// count as active.
	ActivityWindow time.Duration
	// AutoStartDelay is how long a PENDING round may age before reads
	// auto-start it.
	AutoStartDelay time.Duration
}

const (
	defaultRoundDuration  = 60 * time.Second
	defaultCapacity       = 10
	defaultActivityWindow = 5 * time.Minute
	defaultAutoStartDelay = 30 * time.Second
)

// JoinableResult tells a caller whether join would currently succeed.
type JoinableResult struct {
	Joinable bool   `json:"joinable"`
	Reason   string `json:"reason"`
}

// LobbyService owns the session lifecycle: round creation, admission, queue
// promotion, timed expiration and winner selection. It is the only writer of
// session status; every operation re-reads current state from the store
// before deciding, so transitions stay correct under concurrent callers.
// It depends on repository interfaces (injected via constructor) and MUST
// NOT access the database or SQL directly.
type LobbyService struct {
	sessions domain.SessionRepository
	players  domain.PlayerRepository
	queue    domain.QueueRepository
	users    domain.UserRepository

	roundDuration  time.Duration
	capacity       int
	activityWindow time.Duration
	autoStartDelay time.Duration

	// draw and now are replaceable in tests.
	draw func() int
	now  func() time.Time
}

// NewLobbyService creates a LobbyService with the given repository
// dependencies and options.
func NewLobbyService(
	sessions domain.SessionRepository,
	players domain.PlayerRepository,
	queue domain.QueueRepository,
	users domain.UserRepository,
	opts Options,
) *LobbyService {
	if opts.RoundDuration <= 0 {
		opts.RoundDuration = defaultRoundDuration
	}
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.ActivityWindow <= 0 {
		opts.ActivityWindow = defaultActivityWindow
	}
	if opts.AutoStartDelay <= 0 {
		opts.AutoStartDelay = defaultAutoStartDelay
	}
	return &LobbyService{
		sessions:       sessions,
		players:        players,
		queue:          queue,
		users:          users,
		roundDuration:  opts.RoundDuration,
		capacity:       opts.Capacity,
		activityWindow: opts.ActivityWindow,
		autoStartDelay: opts.AutoStartDelay,
		draw:           randomPick,
		now:            time.Now,
	}
}

// EnsurePending returns the PENDING session, creating one when none exists.
// Idempotent and safe to call from any path; a lost creation race falls back
// to re-reading the winner's row.
func (s *LobbyService) EnsurePending(ctx context.Context, startedBy *int64) (*domain.SessionRow, error) {
	pending, err := s.sessions.FindLatestPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("find pending session: %w", err)
	}
	if pending != nil {
		return pending, nil
	}

	created, err := s.sessions.CreatePending(ctx, startedBy)
	if err != nil {
		return nil, fmt.Errorf("create pending session: %w", err)
	}
	if created != nil {
		return created, nil
	}

	// Another caller created the row between our read and insert.
	pending, err = s.sessions.FindLatestPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("re-read pending session: %w", err)
	}
	if pending == nil {
		return nil, fmt.Errorf("pending session vanished after creation race")
	}
	return pending, nil
}

// Start activates the pending round. initiator is nil when the engine itself
// starts the round (sweeper auto-start); otherwise it is the acting user.
// Fails with ErrSessionAlreadyActive when a round is already running,
// including when a concurrent Start wins the PENDING→ACTIVE transition.
func (s *LobbyService) Start(ctx context.Context, initiator *int64) (*domain.SessionView, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.start", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if initiator != nil {
		s.touchActivity(ctx, *initiator)
	}

	active, err := s.sessions.FindActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("session %d: %w", active.ID, ErrSessionAlreadyActive)
	}

	pending, err := s.EnsurePending(ctx, initiator)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	startedAt := s.now()
	endsAt := startedAt.Add(s.roundDuration)

	started, err := s.sessions.Activate(ctx, pending.ID, startedAt, endsAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("activate session %d: %w", pending.ID, err)
	}
	if started == nil {
		// Compare-and-set lost: someone else moved the round first.
		return nil, fmt.Errorf("session %d activation race: %w", pending.ID, ErrSessionAlreadyActive)
	}

	span.SetAttributes(attribute.Int64("session.id", started.ID))

	// Back-fill free slots from any queue carried over from the previous
	// round's overflow.
	if _, err := s.promoteFromQueue(ctx, started.ID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("promote queue on start: %w", err)
	}

	return s.loadView(ctx, started)
}

// End closes the round: draws a winning number, marks matching players as
// winners, increments their win counts, sets status ENDED and opens a fresh
// PENDING round. Idempotent: a session already ENDED or absent is a no-op.
// Returns the pre-mutation snapshot annotated with the draw; callers needing
// final winner flags re-query.
func (s *LobbyService) End(ctx context.Context, sessionID int64) (*domain.SessionView, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.end", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("session.id", sessionID),
	))
	defer span.End()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, nil
	}
	if session.Status == domain.StatusEnded {
		return s.loadView(ctx, session)
	}

	snapshot, err := s.loadView(ctx, session)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	winningNumber := s.draw()
	span.SetAttributes(attribute.Int("session.winning_number", winningNumber))

	applied, err := s.sessions.Complete(ctx, sessionID, winningNumber)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("complete session %d: %w", sessionID, err)
	}
	if !applied {
		// A concurrent End won; return what it produced.
		current, err := s.sessions.FindByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("re-read session %d: %w", sessionID, err)
		}
		if current == nil {
			return nil, nil
		}
		return s.loadView(ctx, current)
	}

	// A new round must always be available. Best-effort: the round is
	// already ENDED, and the sweeper re-creates a missing PENDING on its
	// next pass anyway.
	if _, err := s.EnsurePending(ctx, nil); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("Failed to open next pending session")
	}

	snapshot.WinningNumber = &winningNumber
	return snapshot, nil
}

// GetCurrent refreshes the caller's activity, reconciles expired rounds
// inline, and returns the ACTIVE session if one exists, else the latest
// PENDING session. A PENDING session older than the auto-start delay is
// started on the spot; auto-start failures are swallowed and the pending
// round returned as-is. Returns (nil, nil) when no round exists at all.
func (s *LobbyService) GetCurrent(ctx context.Context, callerID *int64) (*domain.SessionView, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.get_current", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if callerID != nil {
		s.touchActivity(ctx, *callerID)
	}

	// Reads never serve stale rounds between sweeper ticks.
	if err := s.RunExpiryPass(ctx); err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("Inline expiry pass failed")
	}

	active, err := s.sessions.FindActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if active != nil {
		return s.loadView(ctx, active)
	}

	pending, err := s.sessions.FindLatestPending(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find pending session: %w", err)
	}
	if pending == nil {
		return nil, nil
	}

	if s.now().Sub(pending.CreatedAt) > s.autoStartDelay {
		started, err := s.Start(ctx, nil)
		if err == nil {
			return started, nil
		}
		logger.FromContext(ctx).Warn().Err(err).Int64("session_id", pending.ID).Msg("Auto-start failed")
	}

	return s.loadView(ctx, pending)
}

// Join admits the user into the ACTIVE round with the given pick, or appends
// them to the queue when the round is full. Callers observe where they
// landed by checking membership on the returned view.
func (s *LobbyService) Join(ctx context.Context, userID int64, pick int) (*domain.SessionView, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.join", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
		attribute.Int("pick", pick),
	))
	defer span.End()

	if err := ValidatePick(pick); err != nil {
		return nil, err
	}

	s.touchActivity(ctx, userID)

	active, err := s.sessions.FindActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if err := RequireActiveSession(active); err != nil {
		return nil, err
	}

	players, err := s.players.ListBySession(ctx, active.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list players: %w", err)
	}
	queue, err := s.queue.ListBySession(ctx, active.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list queue: %w", err)
	}

	if err := RequireNotMember(players, userID); err != nil {
		return nil, err
	}
	if err := RequireNotQueued(queue, userID); err != nil {
		return nil, err
	}

	if !IsFull(players, s.capacity) {
		if err := s.players.Add(ctx, active.ID, userID, pick); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("add player: %w", err)
		}
		span.AddEvent("player.joined")
	} else {
		if err := s.queue.Add(ctx, active.ID, userID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("enqueue user: %w", err)
		}
		span.AddEvent("player.queued")
	}

	return s.GetCurrent(ctx, nil)
}

// Leave removes the user from the round they occupy (PENDING or ACTIVE,
// player or queued). A missing membership is a no-op returning (nil, nil).
// An emptied PENDING round is deleted outright; a freed ACTIVE slot is
// back-filled from the queue head.
func (s *LobbyService) Leave(ctx context.Context, userID int64) (*domain.SessionView, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.leave", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	s.touchActivity(ctx, userID)

	session, err := s.findSessionWithUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	span.SetAttributes(attribute.Int64("session.id", session.ID))

	// Remove from both sets even though admission guarantees the
	// user sits in at most one.
	removedPlayers, err := s.players.Remove(ctx, session.ID, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("remove player: %w", err)
	}
	if err := s.queue.Remove(ctx, session.ID, userID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("remove queue entry: %w", err)
	}
	wasPlayer := removedPlayers > 0

	remaining, err := s.players.ListBySession(ctx, session.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list players: %w", err)
	}

	if session.Status == domain.StatusPending && len(remaining) == 0 {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("delete empty pending session: %w", err)
		}
		span.AddEvent("session.deleted")
		return nil, nil
	}

	if wasPlayer {
		if _, err := s.promoteFromQueue(ctx, session.ID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("promote queue on leave: %w", err)
		}
	}

	return s.GetCurrent(ctx, nil)
}

// IsJoinable reports whether the caller could join the current round, with a
// human-readable reason.
func (s *LobbyService) IsJoinable(ctx context.Context, callerID *int64) (*JoinableResult, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.is_joinable", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if callerID != nil {
		s.touchActivity(ctx, *callerID)
	}

	active, err := s.sessions.FindActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if active == nil {
		return &JoinableResult{Joinable: false, Reason: "No active session available"}, nil
	}

	players, err := s.players.ListBySession(ctx, active.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list players: %w", err)
	}
	queue, err := s.queue.ListBySession(ctx, active.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list queue: %w", err)
	}

	if callerID != nil {
		if RequireNotMember(players, *callerID) != nil {
			return &JoinableResult{Joinable: false, Reason: "Already in session"}, nil
		}
		if RequireNotQueued(queue, *callerID) != nil {
			return &JoinableResult{Joinable: false, Reason: "Already in queue"}, nil
		}
	}

	if IsFull(players, s.capacity) {
		return &JoinableResult{Joinable: true, Reason: "Session is full, you can join the queue"}, nil
	}
	return &JoinableResult{Joinable: true, Reason: "Can join session directly"}, nil
}

// GetEnded returns the session verbatim once it is ENDED.
func (s *LobbyService) GetEnded(ctx context.Context, sessionID int64) (*domain.SessionView, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %d: %w", sessionID, ErrSessionNotFound)
	}
	if session.Status != domain.StatusEnded {
		return nil, fmt.Errorf("session %d is %s: %w", sessionID, session.Status, ErrSessionNotEnded)
	}
	return s.loadView(ctx, session)
}

// GetResults returns the session's results. An ENDED session is returned
// verbatim. An ACTIVE session past its expiry that the sweeper has not yet
// processed gets a deterministic provisional result computed locally without
// mutating storage, so repeated calls before the real sweep agree.
func (s *LobbyService) GetResults(ctx context.Context, sessionID int64) (*domain.SessionView, error) {
	ctx, span := middleware.StartSpan(ctx, "lobby.get_results", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("session.id", sessionID),
	))
	defer span.End()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %d: %w", sessionID, ErrSessionNotFound)
	}

	view, err := s.loadView(ctx, session)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if session.Status == domain.StatusEnded {
		return view, nil
	}

	if session.Status == domain.StatusActive && session.EndsAt != nil && s.now().After(*session.EndsAt) {
		winningNumber := provisionalDraw(view.Players)
		if session.WinningNumber != nil {
			winningNumber = *session.WinningNumber
		}
		view.Status = domain.StatusEnded
		view.WinningNumber = &winningNumber
		for i := range view.Players {
			view.Players[i].IsWinner = view.Players[i].Pick == winningNumber
		}
		span.AddEvent("results.provisional")
		return view, nil
	}

	return nil, fmt.Errorf("session %d is %s: %w", sessionID, session.Status, ErrSessionNotEnded)
}

// ListEnded returns all ended rounds with their players, newest first.
func (s *LobbyService) ListEnded(ctx context.Context) ([]domain.SessionView, error) {
	sessions, err := s.sessions.ListEnded(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ended sessions: %w", err)
	}

	out := make([]domain.SessionView, 0, len(sessions))
	for i := range sessions {
		view, err := s.loadView(ctx, &sessions[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// promoteFromQueue moves queue heads into free player slots, FIFO, until the
// round is full or the queue is empty. Promoted players receive a freshly
// drawn random pick. Returns the number of promotions.
func (s *LobbyService) promoteFromQueue(ctx context.Context, sessionID int64) (int, error) {
	players, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list players: %w", err)
	}
	queue, err := s.queue.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("list queue: %w", err)
	}

	promoted := 0
	slots := s.capacity - len(players)
	for slots > 0 && len(queue) > 0 {
		head := queue[0]
		if err := s.players.Add(ctx, sessionID, head.UserID, s.draw()); err != nil {
			return promoted, fmt.Errorf("promote user %d: %w", head.UserID, err)
		}
		if err := s.queue.RemoveByID(ctx, head.ID); err != nil {
			return promoted, fmt.Errorf("dequeue user %d: %w", head.UserID, err)
		}
		queue = queue[1:]
		slots--
		promoted++
	}
	return promoted, nil
}

// findSessionWithUser locates the ACTIVE or latest PENDING session holding
// the user as player or queued member. Returns (nil, nil) when none does.
func (s *LobbyService) findSessionWithUser(ctx context.Context, userID int64) (*domain.SessionRow, error) {
	active, err := s.sessions.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	pending, err := s.sessions.FindLatestPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("find pending session: %w", err)
	}

	for _, session := range []*domain.SessionRow{active, pending} {
		if session == nil {
			continue
		}
		ok, err := s.sessionContainsUser(ctx, session.ID, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			return session, nil
		}
	}
	return nil, nil
}

func (s *LobbyService) sessionContainsUser(ctx context.Context, sessionID, userID int64) (bool, error) {
	players, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("list players: %w", err)
	}
	if RequireNotMember(players, userID) != nil {
		return true, nil
	}
	queue, err := s.queue.ListBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("list queue: %w", err)
	}
	return RequireNotQueued(queue, userID) != nil, nil
}

// loadView assembles a session with its members.
func (s *LobbyService) loadView(ctx context.Context, session *domain.SessionRow) (*domain.SessionView, error) {
	players, err := s.players.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	queue, err := s.queue.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return &domain.SessionView{SessionRow: *session, Players: players, Queue: queue}, nil
}

// touchActivity refreshes the user's last-activity timestamp. Best-effort:
// an activity refresh never fails the operation that triggered it.
func (s *LobbyService) touchActivity(ctx context.Context, userID int64) {
	if err := s.users.TouchActivity(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int64("user_id", userID).Msg("Failed to refresh user activity")
	}
}

// provisionalDraw derives a deterministic draw from the picks so repeated
// reads before the real sweep agree: (sum of picks) mod 9 + 1.
func provisionalDraw(players []domain.PlayerRow) int {
	if len(players) == 0 {
		return MinPick
	}
	sum := 0
	for _, p := range players {
		sum += p.Pick
	}
	return (sum % MaxPick) + MinPick
}
