// Package documents orchestrates every read and mutation of billing
// documents: authorization, mutability guards, status transitions, totals
// recomputation and the atomic write, in that order.
package documents

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuthorizationGate verifies workspace membership before any operation.
type AuthorizationGate interface {
	Check(ctx context.Context, actorID, scopeID string, min authz.Role) error
}

// DraftStore buffers in-progress editing state keyed by document.
type DraftStore interface {
	Load(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) (*billing.DraftSnapshot, error)
	Save(ctx context.Context, scopeID string, docType billing.DocumentType, docID string, snap billing.DraftSnapshot) error
	Delete(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) error
	Promote(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) error
}

// Auditor records who did what to which document.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the persistence orchestrator. Every mutating operation runs
// the same sequence: gate, guard against the persisted state, state machine
// on status changes, number immutability, validation, totals, one atomic
// write. The first failing check stops the sequence with no partial
// mutation.
type Service struct {
	repo   Repository
	gate   AuthorizationGate
	drafts DraftStore
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the orchestrator.
func NewService(repo Repository, gate AuthorizationGate, drafts DraftStore, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		gate:   gate,
		drafts: drafts,
		logger: logger,
		now:    time.Now,
	}
}

// WithAuditor attaches an audit trail. Audit writes are best effort and
// never fail the operation they describe.
func (s *Service) WithAuditor(a Auditor) *Service {
	s.audit = a
	return s
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, doc *billing.Document, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   string(doc.Type),
		EntityID: doc.ID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit write failed", "action", action, "doc_id", doc.ID, "error", err)
	}
}

// Open loads a document for editing, reconciling the persisted snapshot
// with any buffered draft, and rewrites the draft buffer with the merged
// result so a teardown before any edit still flushes consistent state. An
// empty id opens a new-document session.
func (s *Service) Open(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string) (*OpenDocumentResponse, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleViewer); err != nil {
		return nil, err
	}

	var server *billing.Document
	if id != "" {
		doc, err := s.load(ctx, scopeID, docType, id)
		if err != nil {
			return nil, err
		}
		server = doc
	}

	draft, err := s.drafts.Load(ctx, scopeID, docType, id)
	if err != nil {
		s.logger.Warn("draft load failed, opening from server only", "doc_id", id, "error", err)
		draft = nil
	}

	merged := billing.Reconcile(docType, server, draft)
	merged.Document.ScopeID = scopeID

	snap := billing.SnapshotOf(&merged.Document, s.now())
	if err := s.drafts.Save(ctx, scopeID, docType, id, snap); err != nil {
		s.logger.Warn("draft rewrite after reconcile failed", "doc_id", id, "error", err)
	}

	return &OpenDocumentResponse{
		Document:        merged.Document,
		Source:          merged.Source,
		EffectiveLocked: merged.EffectiveLocked,
		EffectiveStatus: merged.EffectiveStatus,
	}, nil
}

// Save persists the full editable payload. An empty id creates the
// document, assigning its number from the workspace sequence.
func (s *Service) Save(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string, req SaveDocumentRequest) (*billing.Document, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleEditor); err != nil {
		return nil, err
	}

	var persisted *billing.Document
	if id != "" {
		doc, err := s.load(ctx, scopeID, docType, id)
		if err != nil {
			return nil, err
		}
		persisted = doc
	}

	guard := billing.DocumentMutability(persisted)
	if guard == billing.Immutable {
		return nil, billing.MutabilityError(guard, persisted.ArchivedAt != nil)
	}

	now := s.now()
	var doc billing.Document
	if persisted == nil {
		doc = billing.Document{
			Type:      docType,
			ScopeID:   scopeID,
			Status:    billing.StatusDraft,
			CreatedAt: now,
		}
	} else {
		doc = *persisted
	}

	if req.Status != nil && *req.Status != doc.Status {
		res := billing.CheckTransition(docType, doc.Status, *req.Status)
		if err := billing.TransitionError(res, doc.Status, *req.Status); err != nil {
			return nil, err
		}
		doc.Status = *req.Status
	}

	if persisted != nil && req.Number != "" && req.Number != persisted.Number {
		return nil, billing.NewError(billing.KindImmutableNumberChange, "document number is assigned once and cannot change")
	}

	if guard == billing.StatusOnly {
		// Content is frozen once the document reaches a third party. Only
		// the lifecycle fields above may move.
		if contentChanged(persisted, req) {
			return nil, billing.NewError(billing.KindImmutable, "document content is frozen, only status and payment date may change")
		}
	} else {
		doc.ClientID = req.ClientID
		doc.IssueDate = req.IssueDate
		doc.DueDate = req.DueDate
		doc.Notes = req.Notes
		doc.Terms = req.Terms
		doc.Items = itemsToDomain(req.Items)
		doc.Discounts = req.Discounts.toDomain()
	}
	if req.PaymentDate != nil {
		doc.PaymentDate = req.PaymentDate
	}

	if err := billing.ValidateDocument(&doc); err != nil {
		return nil, err
	}

	if persisted == nil {
		number, err := s.repo.GenerateNumber(ctx, scopeID, docType, doc.IssueDate)
		if err != nil {
			return nil, billing.WrapError(billing.KindStorageFailure, "number assignment failed", err)
		}
		doc.Number = number
	}

	doc.Totals = billing.ComputeTotals(doc.Items, doc.Discounts)
	doc.LastModifiedAt = now

	if err := s.repo.Save(ctx, &doc); err != nil {
		return nil, billing.WrapError(billing.KindStorageFailure, "document write failed", err)
	}

	if persisted == nil {
		// Move the "new" draft buffer onto the assigned ID. The buffered
		// draft itself stays: it is re-reconciled (and found stale) on the
		// next open, which tolerates a crash between write and cleanup.
		if err := s.drafts.Promote(ctx, scopeID, docType, doc.ID); err != nil {
			s.logger.Warn("draft promote failed", "doc_id", doc.ID, "error", err)
		}
		s.recordAudit(ctx, actorID, "document.create", &doc, map[string]any{"number": doc.Number})
	} else {
		s.recordAudit(ctx, actorID, "document.update", &doc, nil)
	}
	return &doc, nil
}

// AuthorizeEdit checks the caller may edit in the workspace without
// touching any document.
func (s *Service) AuthorizeEdit(ctx context.Context, actorID, scopeID string) error {
	return s.gate.Check(ctx, actorID, scopeID, authz.RoleEditor)
}

// RecordDownload gates the caller, then records the download side effect.
func (s *Service) RecordDownload(ctx context.Context, actorID, scopeID, id string) (*billing.Document, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleViewer); err != nil {
		return nil, err
	}
	return s.MarkDownloaded(ctx, scopeID, id)
}

// ChangeStatus applies a user-requested lifecycle change.
func (s *Service) ChangeStatus(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string, req ChangeStatusRequest) (*billing.Document, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleEditor); err != nil {
		return nil, err
	}
	doc, err := s.transition(ctx, scopeID, docType, id, req.Status, req.PaymentDate, false)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "document.status_change", doc, map[string]any{"status": string(doc.Status)})
	return doc, nil
}

// SetLocked toggles the advisory lock. Locking requires the persisted
// document to pass full validation first: lock is save-and-freeze.
func (s *Service) SetLocked(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string, locked bool) (*billing.Document, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleEditor); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, scopeID, docType, id)
	if err != nil {
		return nil, err
	}
	if err := billing.CheckLockToggle(doc, locked); err != nil {
		return nil, err
	}
	doc.IsLocked = locked
	doc.LastModifiedAt = s.now()
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, billing.WrapError(billing.KindStorageFailure, "document write failed", err)
	}
	action := "document.lock"
	if !locked {
		action = "document.unlock"
	}
	s.recordAudit(ctx, actorID, action, doc, nil)
	return doc, nil
}

// Archive freezes the document permanently.
func (s *Service) Archive(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleAdmin); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, scopeID, docType, id)
	if err != nil {
		return nil, err
	}
	if guard := billing.DocumentMutability(doc); guard == billing.Immutable {
		return nil, billing.MutabilityError(guard, doc.ArchivedAt != nil)
	}
	res := billing.CheckTransition(docType, doc.Status, billing.StatusArchived)
	if err := billing.TransitionError(res, doc.Status, billing.StatusArchived); err != nil {
		return nil, err
	}
	now := s.now()
	doc.Status = billing.StatusArchived
	doc.ArchivedAt = &now
	doc.LastModifiedAt = now
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, billing.WrapError(billing.KindStorageFailure, "document write failed", err)
	}
	s.recordAudit(ctx, actorID, "document.archive", doc, nil)
	return doc, nil
}

// MarkSent records the send side effect. SENT is system-derived: only this
// path may set it.
func (s *Service) MarkSent(ctx context.Context, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error) {
	return s.transition(ctx, scopeID, docType, id, billing.StatusSent, nil, true)
}

// MarkDownloaded records a completed PDF download.
func (s *Service) MarkDownloaded(ctx context.Context, scopeID string, id string) (*billing.Document, error) {
	return s.transition(ctx, scopeID, billing.TypeInvoice, id, billing.StatusDownloaded, nil, true)
}

// MarkOverdue flips a sent or downloaded invoice past its due date.
func (s *Service) MarkOverdue(ctx context.Context, scopeID string, id string) (*billing.Document, error) {
	return s.transition(ctx, scopeID, billing.TypeInvoice, id, billing.StatusOverdue, nil, true)
}

// Get returns a document without opening an editing session.
func (s *Service) Get(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error) {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleViewer); err != nil {
		return nil, err
	}
	return s.load(ctx, scopeID, docType, id)
}

// List returns a filtered page of documents with the unpaginated total.
func (s *Service) List(ctx context.Context, actorID string, req ListDocumentsRequest) ([]billing.Document, int, error) {
	if err := s.gate.Check(ctx, actorID, req.ScopeID, authz.RoleViewer); err != nil {
		return nil, 0, err
	}
	docs, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, billing.WrapError(billing.KindStorageFailure, "document listing failed", err)
	}
	return docs, total, nil
}

// SaveDraft buffers editing state without touching the persisted record.
func (s *Service) SaveDraft(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string, req SaveDraftRequest) error {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleEditor); err != nil {
		return err
	}
	if err := s.drafts.Save(ctx, scopeID, docType, id, req.toSnapshot()); err != nil {
		return billing.WrapError(billing.KindStorageFailure, "draft write failed", err)
	}
	return nil
}

// DiscardDraft drops the buffered editing state.
func (s *Service) DiscardDraft(ctx context.Context, actorID, scopeID string, docType billing.DocumentType, id string) error {
	if err := s.gate.Check(ctx, actorID, scopeID, authz.RoleEditor); err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, scopeID, docType, id); err != nil {
		return billing.WrapError(billing.KindStorageFailure, "draft delete failed", err)
	}
	return nil
}

// ListOverdueCandidates exposes the sweep input to the background worker.
func (s *Service) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]billing.Document, error) {
	return s.repo.ListOverdueCandidates(ctx, asOf)
}

func (s *Service) transition(ctx context.Context, scopeID string, docType billing.DocumentType, id string, target billing.Status, paymentDate *time.Time, system bool) (*billing.Document, error) {
	doc, err := s.load(ctx, scopeID, docType, id)
	if err != nil {
		return nil, err
	}
	if guard := billing.DocumentMutability(doc); guard == billing.Immutable {
		return nil, billing.MutabilityError(guard, doc.ArchivedAt != nil)
	}

	var res billing.TransitionResult
	if system {
		res = billing.CheckSystemTransition(docType, doc.Status, target)
	} else {
		res = billing.CheckTransition(docType, doc.Status, target)
	}
	if err := billing.TransitionError(res, doc.Status, target); err != nil {
		return nil, err
	}
	if doc.Status == target && paymentDate == nil {
		return doc, nil
	}

	now := s.now()
	doc.Status = target
	if paymentDate != nil {
		doc.PaymentDate = paymentDate
	} else if target == billing.StatusPaid && doc.PaymentDate == nil {
		doc.PaymentDate = &now
	}
	doc.LastModifiedAt = now

	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, billing.WrapError(billing.KindStorageFailure, "document write failed", err)
	}
	return doc, nil
}

func (s *Service) load(ctx context.Context, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error) {
	doc, err := s.repo.Get(ctx, scopeID, docType, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, billing.NewError(billing.KindNotFound, "document not found")
		}
		return nil, billing.WrapError(billing.KindStorageFailure, "document read failed", err)
	}
	return doc, nil
}

func contentChanged(persisted *billing.Document, req SaveDocumentRequest) bool {
	if req.ClientID != persisted.ClientID ||
		!req.IssueDate.Equal(persisted.IssueDate) ||
		!req.DueDate.Equal(persisted.DueDate) ||
		req.Notes != persisted.Notes ||
		req.Terms != persisted.Terms {
		return true
	}
	if req.Discounts.toDomain() != persisted.Discounts {
		return true
	}
	if len(req.Items) != len(persisted.Items) {
		return true
	}
	for i, in := range req.Items {
		item := in.toDomain()
		have := persisted.Items[i]
		// New lines without IDs keep matching by position.
		item.ID = have.ID
		if item != have {
			return true
		}
	}
	return false
}
