package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/lobby-service/internal/core/memory"
	logicv1 "github.com/duynhne/lobby-service/internal/logic/v1"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	lobby := logicv1.NewLobbyService(store.Sessions(), store.Players(), store.Queue(), store.Users(), logicv1.Options{})
	auth := logicv1.NewAuthService(store.Users(), store.Players(), store.Queue(), testSecret)
	leaderboard := logicv1.NewLeaderboardService(store.Users())

	r := gin.New()
	NewHandler(auth, lobby, leaderboard, testSecret).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func perform(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := perform(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": username})
	require.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotEmpty(t, response.Token)
	return response.Token
}

func TestRegisterEndpoint(t *testing.T) {
	r := newTestRouter(t)

	register(t, r, "alice")

	// Missing username fails binding.
	w := perform(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate username conflicts.
	w = perform(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "Alice"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "alice")

	w := perform(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nobody"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMeRequiresToken(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "alice")

	w := perform(t, r, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(t, r, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r, "alice")

	// Mutating session routes demand authentication.
	w := perform(t, r, http.MethodPost, "/api/v1/sessions/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// No round is running yet, so a join is refused.
	w = perform(t, r, http.MethodPost, "/api/v1/sessions/join", token, gin.H{"pick": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(t, r, http.MethodPost, "/api/v1/sessions/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Starting twice trips the single-active-round rule.
	w = perform(t, r, http.MethodPost, "/api/v1/sessions/start", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Out-of-range pick.
	w = perform(t, r, http.MethodPost, "/api/v1/sessions/join", token, gin.H{"pick": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(t, r, http.MethodPost, "/api/v1/sessions/join", token, gin.H{"pick": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(t, r, http.MethodPost, "/api/v1/sessions/join", token, gin.H{"pick": 6})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = perform(t, r, http.MethodGet, "/api/v1/sessions/current", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var current struct {
		Session *struct {
			Status  string `json:"status"`
			Players []struct {
				Username string `json:"username"`
				Pick     int    `json:"pick"`
			} `json:"players"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &current))
	require.NotNil(t, current.Session)
	assert.Equal(t, "ACTIVE", current.Session.Status)
	require.Len(t, current.Session.Players, 1)
	assert.Equal(t, "alice", current.Session.Players[0].Username)
	assert.Equal(t, 5, current.Session.Players[0].Pick)

	w = perform(t, r, http.MethodGet, "/api/v1/sessions/joinable", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var joinable struct {
		Joinable bool   `json:"joinable"`
		Reason   string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &joinable))
	assert.False(t, joinable.Joinable)
	assert.Equal(t, "Already in session", joinable.Reason)

	w = perform(t, r, http.MethodPost, "/api/v1/sessions/leave", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEndedAndResultsEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := perform(t, r, http.MethodGet, "/api/v1/sessions/ended/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(t, r, http.MethodGet, "/api/v1/sessions/ended/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(t, r, http.MethodGet, "/api/v1/sessions/results/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(t, r, http.MethodGet, "/api/v1/sessions/group-by-date", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ended struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ended))
	assert.Empty(t, ended.Sessions)
}

func TestLeaderboardEndpoint(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "alice")

	w := perform(t, r, http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Leaderboard []struct {
			Username string `json:"username"`
			Wins     int    `json:"wins"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Leaderboard, 1)
	assert.Equal(t, "alice", response.Leaderboard[0].Username)
	assert.Equal(t, 0, response.Leaderboard[0].Wins)
}
