package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/skillmatch/auth-service/internal/sessions"
)

func TestListSessions(t *testing.T) {
	e := newEnv(t)
	first := e.register(t, "alice@example.com", testPassword)
	second := e.login(t, "alice@example.com", testPassword)

	w := e.do(t, http.MethodGet, "/api/v1/sessions", nil, second.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Sessions []sessions.Session `json:"sessions"`
		Count    int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 2, out.Count)
	// newest first
	require.Equal(t, second.Tokens.SessionID, out.Sessions[0].ID)
	require.Equal(t, first.Tokens.SessionID, out.Sessions[1].ID)
}

func TestRevokeSession(t *testing.T) {
	e := newEnv(t)
	first := e.register(t, "bob@example.com", testPassword)
	second := e.login(t, "bob@example.com", testPassword)

	// revoke the first session from the second
	w := e.do(t, http.MethodDelete, "/api/v1/sessions/"+first.Tokens.SessionID, nil, second.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	// the revoked token no longer authenticates
	w = e.do(t, http.MethodGet, "/api/v1/auth/me", nil, first.Tokens.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// revoking again is 404
	w = e.do(t, http.MethodDelete, "/api/v1/sessions/"+first.Tokens.SessionID, nil, second.Tokens.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	// unknown id is 404
	w = e.do(t, http.MethodDelete, "/api/v1/sessions/does-not-exist", nil, second.Tokens.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevokeSession_OtherUsersSessionIs404(t *testing.T) {
	e := newEnv(t)
	victim := e.register(t, "victim@example.com", testPassword)
	attacker := e.register(t, "attacker@example.com", testPassword)

	w := e.do(t, http.MethodDelete, "/api/v1/sessions/"+victim.Tokens.SessionID, nil, attacker.Tokens.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	// victim's session is untouched
	w = e.do(t, http.MethodGet, "/api/v1/auth/me", nil, victim.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRevokeOthers(t *testing.T) {
	e := newEnv(t)
	e.register(t, "carol@example.com", testPassword)
	e.login(t, "carol@example.com", testPassword)
	current := e.login(t, "carol@example.com", testPassword)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/revoke-others", nil, current.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"revoked":2`)

	// the current session survives
	w = e.do(t, http.MethodGet, "/api/v1/sessions", nil, current.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
}

// faultyJTIRepo lets GetByJTI succeed a fixed number of times and then time
// out, while every other repository call passes through untouched.
type faultyJTIRepo struct {
	sessions.Repository
	mu    sync.Mutex
	allow int // successful GetByJTI calls remaining; negative means unlimited
}

func (r *faultyJTIRepo) setAllow(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allow = n
}

func (r *faultyJTIRepo) GetByJTI(ctx context.Context, jti string) (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allow == 0 {
		return nil, context.DeadlineExceeded
	}
	if r.allow > 0 {
		r.allow--
	}
	return r.Repository.GetByJTI(ctx, jti)
}

func TestRevokeOthers_StoreFailureKeepsSessions(t *testing.T) {
	repo := &faultyJTIRepo{Repository: sessions.NewMemoryRepo(), allow: -1}
	e := newEnvWithRepo(t, repo)
	e.register(t, "heidi@example.com", testPassword)
	current := e.login(t, "heidi@example.com", testPassword)

	// the middleware's session lookup succeeds, the handler's own lookup
	// times out; the request must fail rather than revoke everything
	repo.setAllow(1)
	w := e.do(t, http.MethodPost, "/api/v1/sessions/revoke-others", nil, current.Tokens.AccessToken)
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	// no session was revoked, the caller's current one included
	repo.setAllow(-1)
	w = e.do(t, http.MethodGet, "/api/v1/sessions", nil, current.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 2, out.Count)
}

func TestRevokeBulk(t *testing.T) {
	e := newEnv(t)
	first := e.register(t, "dave@example.com", testPassword)
	second := e.login(t, "dave@example.com", testPassword)
	current := e.login(t, "dave@example.com", testPassword)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/revoke-bulk", gin.H{
		"session_ids": []string{first.Tokens.SessionID, second.Tokens.SessionID, "unknown-id"},
	}, current.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Revoked   int `json:"revoked"`
		Requested int `json:"requested"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 2, out.Revoked)
	require.Equal(t, 3, out.Requested)
}

func TestSessionStatsEndpoint(t *testing.T) {
	e := newEnv(t)
	out := e.register(t, "erin@example.com", testPassword)
	e.login(t, "erin@example.com", testPassword)

	w := e.do(t, http.MethodGet, "/api/v1/sessions/stats", nil, out.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	var st sessions.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, 2, st.TotalSessions)
	require.Equal(t, 2, st.ActiveSessions)
}

func TestSecurityEndpoint(t *testing.T) {
	e := newEnv(t)
	out := e.register(t, "frank@example.com", testPassword)
	// burst of logins from the same address and device bucket
	for i := 0; i < 4; i++ {
		e.login(t, "frank@example.com", testPassword)
	}

	w := e.do(t, http.MethodGet, "/api/v1/sessions/security", nil, out.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "multiple_logins")
}

func TestCleanupEndpoint(t *testing.T) {
	e := newEnv(t)
	out := e.register(t, "grace@example.com", testPassword)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/cleanup", nil, out.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	// nothing is old enough to purge
	require.Contains(t, w.Body.String(), `"purged":0`)
}
