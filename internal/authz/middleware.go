package authz

import (
	"net/http"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// RequireRole guards a route subtree with a minimum workspace role. The
// actor and workspace come from the session; operations behind the
// documents service run their own gate check regardless.
func RequireRole(gate *Gate, min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required", "")
				return
			}
			scope := sess.Get("workspace_id")
			if scope == "" {
				httpx.Fail(w, http.StatusUnauthorized, "no active workspace", "")
				return
			}
			if err := gate.Check(r.Context(), sess.User(), scope, min); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
