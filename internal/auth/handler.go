package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// WorkspaceSessionKey stores the active workspace in the session.
const WorkspaceSessionKey = "workspace_id"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validate       *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validate:       validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Post("/workspace", h.handleSwitchWorkspace)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	UserID      string      `json:"user_id"`
	Email       string      `json:"email,omitempty"`
	WorkspaceID string      `json:"workspace_id,omitempty"`
	Workspaces  []Workspace `json:"workspaces,omitempty"`
	CSRFToken   string      `json:"csrf_token,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "email and password are required", "")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Fail(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Fail(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	sess.SetUser(user.ID)

	workspaces, err := h.service.Workspaces(r.Context(), user.ID)
	if err != nil {
		h.logger.Warn("workspace lookup failed", slog.Any("error", err))
	}
	resp := sessionResponse{UserID: user.ID, Email: user.Email, Workspaces: workspaces}
	if len(workspaces) > 0 {
		sess.Set(WorkspaceSessionKey, workspaces[0].ID)
		resp.WorkspaceID = workspaces[0].ID
	}
	if token, err := h.csrfManager.EnsureToken(r.Context(), sess); err == nil {
		resp.CSRFToken = token
	}

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.OK(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Fail(w, http.StatusUnauthorized, "not authenticated", "")
		return
	}
	workspaces, err := h.service.Workspaces(r.Context(), sess.User())
	if err != nil {
		h.logger.Warn("workspace lookup failed", slog.Any("error", err))
	}
	httpx.OK(w, http.StatusOK, sessionResponse{
		UserID:      sess.User(),
		WorkspaceID: sess.Get(WorkspaceSessionKey),
		Workspaces:  workspaces,
	})
}

type switchWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
}

func (h *Handler) handleSwitchWorkspace(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Fail(w, http.StatusUnauthorized, "not authenticated", "")
		return
	}
	var req switchWorkspaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "workspace_id is required", "")
		return
	}
	ws, err := h.service.SwitchWorkspace(r.Context(), sess.User(), req.WorkspaceID)
	if err != nil {
		httpx.Fail(w, http.StatusForbidden, "not a member of that workspace", "")
		return
	}
	sess.Set(WorkspaceSessionKey, ws.ID)
	httpx.OK(w, http.StatusOK, sessionResponse{UserID: sess.User(), WorkspaceID: ws.ID})
}
