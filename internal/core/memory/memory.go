// Package memory implements the repository contracts on in-process maps.
// The logic and web tests run the full engine against it; it is not meant
// for production use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duynhne/lobby-service/internal/core/domain"
)

// Store holds all four repositories behind one mutex so cross-entity
// operations (Complete) stay atomic, mirroring the transactional guarantees
// of the Postgres implementation.
type Store struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]*domain.UserRow
	sessions map[int64]*domain.SessionRow
	players  []*playerRec
	queue    []*queueRec
}

type playerRec struct {
	id        int64
	sessionID int64
	userID    int64
	pick      int
	isWinner  bool
	joinedAt  time.Time
}

type queueRec struct {
	id        int64
	sessionID int64
	userID    int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*domain.UserRow),
		sessions: make(map[int64]*domain.SessionRow),
	}
}

func (s *Store) nextIdentity() int64 {
	s.nextID++
	return s.nextID
}

// Sessions returns the store's domain.SessionRepository view.
func (s *Store) Sessions() domain.SessionRepository { return (*sessionStore)(s) }

// Players returns the store's domain.PlayerRepository view.
func (s *Store) Players() domain.PlayerRepository { return (*playerStore)(s) }

// Queue returns the store's domain.QueueRepository view.
func (s *Store) Queue() domain.QueueRepository { return (*queueStore)(s) }

// Users returns the store's domain.UserRepository view.
func (s *Store) Users() domain.UserRepository { return (*userStore)(s) }

type sessionStore Store
type playerStore Store
type queueStore Store
type userStore Store

// --- sessions ---

func (s *sessionStore) FindActive(ctx context.Context) (*domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.sessions {
		if row.Status == domain.StatusActive {
			return copySession(row), nil
		}
	}
	return nil, nil
}

func (s *sessionStore) FindLatestPending(ctx context.Context) (*domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.SessionRow
	for _, row := range s.sessions {
		if row.Status == domain.StatusPending && (latest == nil || row.ID > latest.ID) {
			latest = row
		}
	}
	return copySession(latest), nil
}

func (s *sessionStore) FindByID(ctx context.Context, id int64) (*domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.sessions[id]), nil
}

func (s *sessionStore) CreatePending(ctx context.Context, startedBy *int64) (*domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.sessions {
		if row.Status == domain.StatusPending {
			return nil, nil
		}
	}
	row := &domain.SessionRow{
		ID:          (*Store)(s).nextIdentity(),
		Status:      domain.StatusPending,
		CreatedAt:   time.Now(),
		StartedByID: startedBy,
	}
	s.sessions[row.ID] = row
	return copySession(row), nil
}

func (s *sessionStore) Activate(ctx context.Context, id int64, startedAt, endsAt time.Time) (*domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if !ok || row.Status != domain.StatusPending {
		return nil, nil
	}
	row.Status = domain.StatusActive
	row.StartedAt = &startedAt
	row.EndsAt = &endsAt
	return copySession(row), nil
}

func (s *sessionStore) Complete(ctx context.Context, id int64, winningNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[id]
	if !ok || row.Status == domain.StatusEnded {
		return false, nil
	}
	row.Status = domain.StatusEnded
	row.WinningNumber = &winningNumber
	for _, p := range s.players {
		if p.sessionID == id && p.pick == winningNumber {
			p.isWinner = true
			if u, ok := s.users[p.userID]; ok {
				u.Wins++
			}
		}
	}
	return true, nil
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.players = filterPlayers(s.players, func(p *playerRec) bool { return p.sessionID != id })
	s.queue = filterQueue(s.queue, func(q *queueRec) bool { return q.sessionID != id })
	return nil
}

func (s *sessionStore) FindExpired(ctx context.Context, now time.Time) ([]domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SessionRow
	for _, row := range s.sessions {
		if row.Status == domain.StatusActive && row.EndsAt != nil && row.EndsAt.Before(now) {
			out = append(out, *copySession(row))
		}
	}
	return out, nil
}

func (s *sessionStore) ListPending(ctx context.Context) ([]domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SessionRow
	for _, row := range s.sessions {
		if row.Status == domain.StatusPending {
			out = append(out, *copySession(row))
		}
	}
	return out, nil
}

func (s *sessionStore) ListEnded(ctx context.Context) ([]domain.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SessionRow
	for _, row := range s.sessions {
		if row.Status == domain.StatusEnded {
			out = append(out, *copySession(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- players ---

func (s *playerStore) ListBySession(ctx context.Context, sessionID int64) ([]domain.PlayerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PlayerRow
	for _, p := range s.players {
		if p.sessionID != sessionID {
			continue
		}
		out = append(out, s.playerRow(p))
	}
	return out, nil
}

func (s *playerStore) Add(ctx context.Context, sessionID, userID int64, pick int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.sessionID == sessionID && p.userID == userID {
			return fmt.Errorf("duplicate player %d in session %d", userID, sessionID)
		}
	}
	s.players = append(s.players, &playerRec{
		id:        (*Store)(s).nextIdentity(),
		sessionID: sessionID,
		userID:    userID,
		pick:      pick,
		joinedAt:  time.Now(),
	})
	return nil
}

func (s *playerStore) Remove(ctx context.Context, sessionID, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.players)
	s.players = filterPlayers(s.players, func(p *playerRec) bool {
		return p.sessionID != sessionID || p.userID != userID
	})
	return int64(before - len(s.players)), nil
}

func (s *playerStore) RemoveAllForUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = filterPlayers(s.players, func(p *playerRec) bool { return p.userID != userID })
	return nil
}

func (s *playerStore) ExistsInActiveSession(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.userID != userID {
			continue
		}
		if sess, ok := s.sessions[p.sessionID]; ok && sess.Status == domain.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *playerStore) playerRow(p *playerRec) domain.PlayerRow {
	row := domain.PlayerRow{
		ID:        p.id,
		SessionID: p.sessionID,
		UserID:    p.userID,
		Pick:      p.pick,
		IsWinner:  p.isWinner,
		JoinedAt:  p.joinedAt,
	}
	if u, ok := s.users[p.userID]; ok {
		row.Username = u.Username
		row.FullName = u.FullName
	}
	return row
}

// --- queue ---

func (s *queueStore) ListBySession(ctx context.Context, sessionID int64) ([]domain.QueueRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.QueueRow
	for _, q := range s.queue {
		if q.sessionID != sessionID {
			continue
		}
		row := domain.QueueRow{ID: q.id, SessionID: q.sessionID, UserID: q.userID}
		if u, ok := s.users[q.userID]; ok {
			row.Username = u.Username
			row.FullName = u.FullName
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *queueStore) Add(ctx context.Context, sessionID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if q.sessionID == sessionID && q.userID == userID {
			return fmt.Errorf("duplicate queue entry %d in session %d", userID, sessionID)
		}
	}
	s.queue = append(s.queue, &queueRec{
		id:        (*Store)(s).nextIdentity(),
		sessionID: sessionID,
		userID:    userID,
	})
	return nil
}

func (s *queueStore) RemoveByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = filterQueue(s.queue, func(q *queueRec) bool { return q.id != id })
	return nil
}

func (s *queueStore) Remove(ctx context.Context, sessionID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = filterQueue(s.queue, func(q *queueRec) bool {
		return q.sessionID != sessionID || q.userID != userID
	})
	return nil
}

func (s *queueStore) RemoveAllForUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = filterQueue(s.queue, func(q *queueRec) bool { return q.userID != userID })
	return nil
}

func (s *queueStore) ExistsInActiveSession(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if q.userID != userID {
			continue
		}
		if sess, ok := s.sessions[q.sessionID]; ok && sess.Status == domain.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

// --- users ---

func (s *userStore) Create(ctx context.Context, username string, fullName *string) (*domain.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return nil, fmt.Errorf("duplicate username %q", username)
		}
	}
	row := &domain.UserRow{
		ID:             (*Store)(s).nextIdentity(),
		Username:       username,
		FullName:       fullName,
		LastActivityAt: time.Now(),
		CreatedAt:      time.Now(),
	}
	s.users[row.ID] = row
	out := *row
	return &out, nil
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*domain.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*domain.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (s *userStore) TouchActivity(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.LastActivityAt = time.Now()
	}
	return nil
}

func (s *userStore) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, u := range s.users {
		if !u.LastActivityAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *userStore) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserRow
	for _, u := range s.users {
		if u.LastActivityAt.Before(cutoff) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *userStore) TopByWins(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LeaderboardRow
	for _, u := range s.users {
		out = append(out, domain.LeaderboardRow{ID: u.ID, Username: u.Username, FullName: u.FullName, Wins: u.Wins})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *userStore) TopWinnersSince(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wins := make(map[int64]int)
	for _, p := range s.players {
		if !p.isWinner {
			continue
		}
		sess, ok := s.sessions[p.sessionID]
		if !ok || sess.CreatedAt.Before(since) {
			continue
		}
		wins[p.userID]++
	}
	var out []domain.LeaderboardRow
	for userID, count := range wins {
		if u, ok := s.users[userID]; ok {
			out = append(out, domain.LeaderboardRow{ID: u.ID, Username: u.Username, FullName: u.FullName, Wins: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetSessionTimes rewrites a session's timestamps. Test hook for aging
// rounds without sleeping.
func (s *Store) SetSessionTimes(id int64, createdAt time.Time, endsAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.sessions[id]; ok {
		row.CreatedAt = createdAt
		row.EndsAt = endsAt
	}
}

// SetUserActivity rewrites a user's last-activity timestamp. Test hook.
func (s *Store) SetUserActivity(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastActivityAt = at
	}
}

func copySession(row *domain.SessionRow) *domain.SessionRow {
	if row == nil {
		return nil
	}
	out := *row
	return &out
}

func filterPlayers(in []*playerRec, keep func(*playerRec) bool) []*playerRec {
	out := in[:0]
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func filterQueue(in []*queueRec, keep func(*queueRec) bool) []*queueRec {
	out := in[:0]
	for _, q := range in {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}
