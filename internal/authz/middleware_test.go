package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

func requestWithSession(userID, workspaceID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	if workspaceID != "" {
		sess.Set("workspace_id", workspaceID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireRoleAllowsSufficientRole(t *testing.T) {
	gate := NewGate(staticMemberships{"alice/ws-1": RoleAdmin})
	var reached bool
	h := RequireRole(gate, RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, requestWithSession("alice", "ws-1"))
	require.True(t, reached)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRequireRoleBlocksInsufficientRole(t *testing.T) {
	gate := NewGate(staticMemberships{"bob/ws-1": RoleEditor})
	h := RequireRole(gate, RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, requestWithSession("bob", "ws-1"))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireRoleNeedsAuthenticatedSession(t *testing.T) {
	gate := NewGate(staticMemberships{})
	h := RequireRole(gate, RoleViewer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, requestWithSession("", ""))
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	h.ServeHTTP(res, requestWithSession("alice", ""))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
