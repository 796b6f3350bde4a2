package v1

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/lobby-service/internal/core/domain"
	"github.com/duynhne/lobby-service/middleware"
)

// AuthService implements the lobby's identity rules: usernames are the whole
// credential, and a user occupying an active round cannot log in again.
// It depends on repository interfaces (injected via constructor) and MUST
// NOT access the database or SQL directly.
type AuthService struct {
	users   domain.UserRepository
	players domain.PlayerRepository
	queue   domain.QueueRepository

	jwtSecret []byte
	tokenTTL  time.Duration
}

// AuthResponse is the payload returned on register and login.
type AuthResponse struct {
	User  *domain.UserRow `json:"user"`
	Token string          `json:"token"`
}

// NewAuthService creates a new AuthService with the given repository
// dependencies and signing secret.
func NewAuthService(users domain.UserRepository, players domain.PlayerRepository, queue domain.QueueRepository, jwtSecret string) *AuthService {
	return &AuthService{
		users:     users,
		players:   players,
		queue:     queue,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
	}
}

// Register creates a user from a normalized username and issues a token.
func (s *AuthService) Register(ctx context.Context, username string, fullName *string) (*AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	username = normalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("register: %w", ErrUsernameRequired)
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", username, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("register user %q: %w", username, ErrUsernameTaken)
	}

	user, err := s.users.Create(ctx, username, fullName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert user %q: %w", username, err)
	}

	token, err := s.sign(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sign token: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.AddEvent("user.registered")
	return &AuthResponse{User: user, Token: token}, nil
}

// Login resolves the username and issues a token. Refused while the user
// occupies an active round as player or queued member.
func (s *AuthService) Login(ctx context.Context, username string) (*AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	username = normalizeUsername(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", username, err)
	}
	if user == nil {
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate user %q: %w", username, ErrInvalidCredentials)
	}

	inSession, err := s.players.ExistsInActiveSession(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check active membership: %w", err)
	}
	if !inSession {
		inSession, err = s.queue.ExistsInActiveSession(ctx, user.ID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("check active queue membership: %w", err)
		}
	}
	if inSession {
		return nil, fmt.Errorf("authenticate user %q: %w", username, ErrUserInActiveSession)
	}

	token, err := s.sign(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sign token: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.AddEvent("user.authenticated")
	return &AuthResponse{User: user, Token: token}, nil
}

// GetUser resolves a user id (e.g. from a verified token) to its record.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*domain.UserRow, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("lookup user %d: %w", userID, ErrInvalidCredentials)
	}
	return user, nil
}

func (s *AuthService) sign(user *domain.UserRow) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      fmt.Sprintf("%d", user.ID),
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
