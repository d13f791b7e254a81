package documents

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

func newTestMux(t *testing.T) (http.Handler, *fakeRepo) {
	t.Helper()
	service, repo, _ := newTestService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, service, nil, nil)
	r := chi.NewRouter()
	r.Route("/api/v1", handler.MountRoutes)
	return r, repo
}

func doGet(mux http.Handler, actor, workspace, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess := &shared.Session{}
	sess.SetUser(actor)
	sess.Set("workspace_id", workspace)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	mux.ServeHTTP(res, req)
	return res
}

func TestListRejectsMalformedPaging(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, target := range []string{
		"/api/v1/invoices/?limit=abc",
		"/api/v1/invoices/?offset=1.5",
		"/api/v1/invoices/?limit=10&offset=ten",
	} {
		res := doGet(mux, "editor", "ws-1", target)
		require.Equal(t, http.StatusBadRequest, res.Code, target)

		var env httpx.Envelope
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
		require.False(t, env.Success)
		require.Equal(t, string(billing.KindValidationFailed), env.ErrorKind)
	}
}

func TestListAcceptsNumericPaging(t *testing.T) {
	mux, _ := newTestMux(t)

	res := doGet(mux, "editor", "ws-1", "/api/v1/invoices/?limit=10&offset=20")
	require.Equal(t, http.StatusOK, res.Code)

	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
	require.True(t, env.Success)
}

func TestListRequiresSession(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/", nil)
	res := httptest.NewRecorder()
	mux.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
