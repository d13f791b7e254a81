package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/drafts"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// TaskEnqueuer queues background side effects such as sending a document.
type TaskEnqueuer interface {
	EnqueueSendDocument(ctx context.Context, scopeID string, docType billing.DocumentType, id string) error
}

// Handler exposes the document API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	autosaver   *drafts.Autosaver
	enqueuer    TaskEnqueuer
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate

	openGroup singleflight.Group
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, autosaver *drafts.Autosaver, enqueuer TaskEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		autosaver: autosaver,
		enqueuer:  enqueuer,
		validate:  validator.New(),
	}
}

// WithIdempotency enables Idempotency-Key deduplication on Send.
func (h *Handler) WithIdempotency(store *shared.IdempotencyStore) *Handler {
	h.idempotency = store
	return h
}

// List returns a filtered page of documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}

	req := ListDocumentsRequest{ScopeID: scope, Type: docType}
	if status := r.URL.Query().Get("status"); status != "" {
		s := billing.Status(status)
		req.Status = &s
	}
	var err error
	if req.Limit, err = queryInt(r, "limit"); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "limit must be an integer", string(billing.KindValidationFailed))
		return
	}
	if req.Offset, err = queryInt(r, "offset"); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "offset must be an integer", string(billing.KindValidationFailed))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error(), string(billing.KindValidationFailed))
		return
	}

	docs, total, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list documents failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	page := 1
	if req.Limit > 0 {
		page = req.Offset/req.Limit + 1
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"documents":  docs,
		"total":      total,
		"pagination": shared.NewPagination(page, req.Limit, total),
	})
}

// Open starts an editing session, reconciling the persisted record with
// any buffered draft. Concurrent opens of the same document collapse into
// one reconciliation.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if id == drafts.NewDocumentID {
		id = ""
	}

	key := fmt.Sprintf("%s/%s/%s/%s", actor, scope, docType, id)
	resultChan := h.openGroup.DoChan(key, func() (any, error) {
		return h.service.Open(r.Context(), actor, scope, docType, id)
	})
	select {
	case <-r.Context().Done():
		httpx.Fail(w, http.StatusRequestTimeout, "request cancelled", "")
		return
	case res := <-resultChan:
		if res.Err != nil {
			httpx.RespondError(w, res.Err)
			return
		}
		httpx.OK(w, http.StatusOK, res.Val)
	}
}

// Create persists a new document.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// Update persists the full editable payload of an existing document.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id string) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}

	var req SaveDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", string(billing.KindValidationFailed))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error(), string(billing.KindValidationFailed))
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	doc, err := h.service.Save(r.Context(), actor, scope, docType, id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, status, doc)
}

// ChangeStatus applies a lifecycle change.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", string(billing.KindValidationFailed))
		return
	}
	doc, err := h.service.ChangeStatus(r.Context(), actor, scope, docType, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc)
}

// SetLocked toggles the advisory lock.
func (h *Handler) SetLocked(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}

	var req SetLockedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", string(billing.KindValidationFailed))
		return
	}
	doc, err := h.service.SetLocked(r.Context(), actor, scope, docType, chi.URLParam(r, "id"), req.Locked)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc)
}

// Archive freezes the document permanently.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Archive(r.Context(), actor, scope, docType, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc)
}

// Send queues the document for delivery. The SENT status lands once the
// worker confirms the send.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}
	if err := h.service.AuthorizeEdit(r.Context(), actor, scope); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		err := h.idempotency.CheckAndInsert(r.Context(), key, "documents.send")
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			// Already queued by an earlier submit of the same key.
			httpx.OK(w, http.StatusAccepted, nil)
			return
		}
		if err != nil {
			h.logger.Warn("idempotency check failed", "error", err)
		}
	}
	if err := h.enqueuer.EnqueueSendDocument(r.Context(), scope, docType, chi.URLParam(r, "id")); err != nil {
		h.logger.Error("enqueue send failed", "error", err)
		httpx.Fail(w, http.StatusBadGateway, "send could not be queued", string(billing.KindStorageFailure))
		return
	}
	httpx.OK(w, http.StatusAccepted, nil)
}

// Download records the PDF download side effect on an invoice.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	doc, err := h.service.RecordDownload(r.Context(), actor, scope, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, doc)
}

// SaveDraft schedules a debounced draft flush with the submitted state.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}
	if err := h.service.AuthorizeEdit(r.Context(), actor, scope); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req SaveDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", string(billing.KindValidationFailed))
		return
	}
	h.autosaver.Schedule(scope, docType, chi.URLParam(r, "id"), req.toSnapshot())
	httpx.OK(w, http.StatusAccepted, nil)
}

// FlushDraft writes the submitted draft state immediately, bypassing the
// debounce. Editing surfaces call it on session teardown.
func (h *Handler) FlushDraft(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req SaveDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body", string(billing.KindValidationFailed))
		return
	}
	// The direct write supersedes whatever the debounce had buffered.
	h.autosaver.Discard(scope, docType, id)
	if err := h.service.SaveDraft(r.Context(), actor, scope, docType, id, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

// DiscardDraft drops the buffered draft.
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.identity(w, r)
	if !ok {
		return
	}
	docType, ok := h.docType(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	h.autosaver.Discard(scope, docType, id)
	if err := h.service.DiscardDraft(r.Context(), actor, scope, docType, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, nil)
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (actor, scope string, ok bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required", string(billing.KindUnauthorized))
		return "", "", false
	}
	scope = sess.Get("workspace_id")
	if scope == "" {
		httpx.Fail(w, http.StatusUnauthorized, "no active workspace", string(billing.KindUnauthorized))
		return "", "", false
	}
	return sess.User(), scope, true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) docType(w http.ResponseWriter, r *http.Request) (billing.DocumentType, bool) {
	switch chi.URLParam(r, "docType") {
	case "invoices":
		return billing.TypeInvoice, true
	case "quotes":
		return billing.TypeQuote, true
	default:
		httpx.Fail(w, http.StatusNotFound, "unknown document type", string(billing.KindNotFound))
		return "", false
	}
}
