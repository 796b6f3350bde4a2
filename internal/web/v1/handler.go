// Package v1 exposes the lobby facade over HTTP. Handlers parse and bind,
// call the logic layer, and map sentinel errors to statuses. No business
// rules live here.
package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/lobby-service/internal/logger"
	logicv1 "github.com/duynhne/lobby-service/internal/logic/v1"
	"github.com/duynhne/lobby-service/middleware"
)

// Handler groups HTTP handlers for the lobby API v1.
// Dependencies are injected via the constructor, no global state.
type Handler struct {
	auth        *logicv1.AuthService
	lobby       *logicv1.LobbyService
	leaderboard *logicv1.LeaderboardService
	jwtSecret   string
}

// NewHandler creates a new Handler with the given services.
func NewHandler(auth *logicv1.AuthService, lobby *logicv1.LobbyService, leaderboard *logicv1.LeaderboardService, jwtSecret string) *Handler {
	return &Handler{auth: auth, lobby: lobby, leaderboard: leaderboard, jwtSecret: jwtSecret}
}

// RegisterRoutes registers all lobby API v1 routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.Register)
	rg.POST("/auth/login", h.Login)
	rg.GET("/auth/me", middleware.RequireAuth(h.jwtSecret), h.GetMe)

	sessions := rg.Group("/sessions")
	{
		sessions.GET("/current", middleware.OptionalAuth(h.jwtSecret), h.GetCurrent)
		sessions.GET("/joinable", middleware.OptionalAuth(h.jwtSecret), h.IsJoinable)
		sessions.POST("/start", middleware.RequireAuth(h.jwtSecret), h.Start)
		sessions.POST("/join", middleware.RequireAuth(h.jwtSecret), h.Join)
		sessions.POST("/leave", middleware.RequireAuth(h.jwtSecret), h.Leave)
		sessions.GET("/ended/:id", h.GetEnded)
		sessions.GET("/results/:id", h.GetResults)
		sessions.GET("/group-by-date", h.ListEnded)
	}

	rg.GET("/leaderboard", h.Leaderboard)
}

type registerRequest struct {
	Username string  `json:"username" binding:"required"`
	FullName *string `json:"fullName"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

type joinRequest struct {
	Pick int `json:"pick"`
}

// Register handles HTTP request for user registration.
func (h *Handler) Register(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.auth.Register(ctx, req.Username, req.FullName)
	if err != nil {
		span.RecordError(err)
		logger.FromContext(ctx).Error().Err(err).Msg("Registration failed")
		h.respondError(c, err)
		return
	}

	logger.FromContext(ctx).Info().Int64("user_id", response.User.ID).Msg("User registered")
	c.JSON(http.StatusCreated, response)
}

// Login handles HTTP request for user login.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.auth.Login(ctx, req.Username)
	if err != nil {
		span.RecordError(err)
		logger.FromContext(ctx).Warn().Err(err).Msg("Login failed")
		h.respondError(c, err)
		return
	}

	logger.FromContext(ctx).Info().Int64("user_id", response.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, response)
}

// GetMe returns the authenticated caller's user record.
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetCurrent returns the active round, or the pending one, or null.
func (h *Handler) GetCurrent(c *gin.Context) {
	session, err := h.lobby.GetCurrent(c.Request.Context(), h.callerID(c))
	if err != nil {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("Get current session failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Start activates the pending round on behalf of the caller.
func (h *Handler) Start(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	session, err := h.lobby.Start(c.Request.Context(), &userID)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn().Err(err).Msg("Start session failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Join admits the caller into the active round, or into its queue.
func (h *Handler) Join(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.lobby.Join(c.Request.Context(), userID, req.Pick)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn().Err(err).Int64("user_id", userID).Msg("Join failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Leave removes the caller from the round they occupy.
func (h *Handler) Leave(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	session, err := h.lobby.Leave(c.Request.Context(), userID)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error().Err(err).Int64("user_id", userID).Msg("Leave failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// IsJoinable reports whether the caller could join the current round.
func (h *Handler) IsJoinable(c *gin.Context) {
	result, err := h.lobby.IsJoinable(c.Request.Context(), h.callerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetEnded returns an ended round with its results.
func (h *Handler) GetEnded(c *gin.Context) {
	sessionID, err := h.sessionID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	session, err := h.lobby.GetEnded(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// GetResults returns the final or provisional results of a round.
func (h *Handler) GetResults(c *gin.Context) {
	sessionID, err := h.sessionID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	session, err := h.lobby.GetResults(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// ListEnded returns ended rounds, newest first.
func (h *Handler) ListEnded(c *gin.Context) {
	sessions, err := h.lobby.ListEnded(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("List ended sessions failed")
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Leaderboard returns the top winners, optionally for a trailing period.
func (h *Handler) Leaderboard(c *gin.Context) {
	rows, err := h.leaderboard.Top(c.Request.Context(), c.Query("period"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}

// respondError maps the logic sentinels onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, logicv1.ErrInvalidPick):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pick must be between 1 and 9"})
	case errors.Is(err, logicv1.ErrUsernameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username cannot be empty"})
	case errors.Is(err, logicv1.ErrAlreadyInSession):
		c.JSON(http.StatusConflict, gin.H{"error": "Already in session"})
	case errors.Is(err, logicv1.ErrAlreadyInQueue):
		c.JSON(http.StatusConflict, gin.H{"error": "Already in queue"})
	case errors.Is(err, logicv1.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
	case errors.Is(err, logicv1.ErrSessionAlreadyActive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session already active"})
	case errors.Is(err, logicv1.ErrNoActiveSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active session"})
	case errors.Is(err, logicv1.ErrSessionNotEnded):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session is not ended yet"})
	case errors.Is(err, logicv1.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, logicv1.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, logicv1.ErrUserInActiveSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User has an active session and cannot log in"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *Handler) callerID(c *gin.Context) *int64 {
	if userID, ok := middleware.UserID(c); ok {
		return &userID
	}
	return nil
}

func (h *Handler) sessionID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
