package billing

import "time"

// SessionSource names which side seeded the editing session.
type SessionSource string

const (
	SourceServer SessionSource = "server"
	SourceDraft  SessionSource = "draft"
	SourceBlank  SessionSource = "blank"
)

// MergedSession is the outcome of reconciling a persisted snapshot with a
// locally buffered draft. It seeds the editing session on document open.
type MergedSession struct {
	Document        Document
	Source          SessionSource
	EffectiveLocked bool
	EffectiveStatus Status
}

// Reconcile decides which source seeds an editing session.
//
// The server wins ties and whenever its timestamp is at least as new; the
// draft is used only when strictly newer. Lock and status carry a
// server-priority override regardless of which side wins field content: a
// stale draft can never re-open a document the server has since locked or
// finalised.
func Reconcile(docType DocumentType, server *Document, draft *DraftSnapshot) MergedSession {
	switch {
	case server == nil && draft == nil:
		doc := blankDocument(docType)
		return MergedSession{
			Document:        doc,
			Source:          SourceBlank,
			EffectiveStatus: StatusDraft,
		}

	case server == nil:
		// Unsaved document with a buffered draft: the draft is all we have.
		doc := blankDocument(docType)
		applyDraft(&doc, draft)
		status := draft.Status
		if status == "" {
			status = StatusDraft
		}
		doc.Status = status
		doc.IsLocked = draft.IsLocked
		doc.Totals = ComputeTotals(doc.Items, doc.Discounts)
		return MergedSession{
			Document:        doc,
			Source:          SourceDraft,
			EffectiveLocked: draft.IsLocked,
			EffectiveStatus: status,
		}

	case draft == nil || !draft.UpdatedAt.After(server.LastModifiedAt):
		doc := cloneDocument(server)
		locked := EffectiveLocked(server)
		doc.IsLocked = locked
		return MergedSession{
			Document:        doc,
			Source:          SourceServer,
			EffectiveLocked: locked,
			EffectiveStatus: server.Status,
		}

	default:
		// Draft strictly newer: its content wins, the server keeps priority
		// on lock and on hard-terminal status.
		doc := cloneDocument(server)
		applyDraft(&doc, draft)

		locked := server.IsLocked || draft.IsLocked
		status := draft.Status
		if status == "" {
			status = server.Status
		}
		if DocumentMutability(server) == Immutable {
			locked = true
			status = server.Status
		}
		doc.IsLocked = locked
		doc.Status = status
		doc.Totals = ComputeTotals(doc.Items, doc.Discounts)
		return MergedSession{
			Document:        doc,
			Source:          SourceDraft,
			EffectiveLocked: locked,
			EffectiveStatus: status,
		}
	}
}

// SnapshotOf captures the editable fields of a document as a draft payload.
// Used to rewrite the session buffer right after reconciliation so an
// unmount before any further edit still flushes a consistent record.
func SnapshotOf(doc *Document, at time.Time) DraftSnapshot {
	items := make([]LineItem, len(doc.Items))
	copy(items, doc.Items)
	return DraftSnapshot{
		Number:    doc.Number,
		ClientID:  doc.ClientID,
		Status:    doc.Status,
		IsLocked:  doc.IsLocked,
		IssueDate: doc.IssueDate,
		DueDate:   doc.DueDate,
		Notes:     doc.Notes,
		Terms:     doc.Terms,
		Items:     items,
		Discounts: doc.Discounts,
		UpdatedAt: at,
	}
}

func blankDocument(docType DocumentType) Document {
	doc := Document{
		Type:   docType,
		Status: StatusDraft,
		Discounts: DiscountConfig{
			LineDiscountUnit:   DiscountPercent,
			GlobalDiscountUnit: DiscountPercent,
			DefaultTaxRate:     20,
		},
	}
	doc.Totals = ComputeTotals(nil, doc.Discounts)
	return doc
}

func cloneDocument(src *Document) Document {
	doc := *src
	doc.Items = make([]LineItem, len(src.Items))
	copy(doc.Items, src.Items)
	return doc
}

func applyDraft(doc *Document, draft *DraftSnapshot) {
	if doc.Number == "" {
		doc.Number = draft.Number
	}
	doc.ClientID = draft.ClientID
	if !draft.IssueDate.IsZero() {
		doc.IssueDate = draft.IssueDate
	}
	if !draft.DueDate.IsZero() {
		doc.DueDate = draft.DueDate
	}
	doc.Notes = draft.Notes
	doc.Terms = draft.Terms
	doc.Items = make([]LineItem, len(draft.Items))
	copy(doc.Items, draft.Items)
	doc.Discounts = draft.Discounts
}
