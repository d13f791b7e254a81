package billing

import "time"

// Mutability is the three-valued result of the outermost edit gate.
type Mutability int

const (
	// FullyMutable allows every field change.
	FullyMutable Mutability = iota
	// StatusOnly restricts changes to status and payment date. Invoices in
	// the SENT/DOWNLOADED/PAID/OVERDUE band are in this tier: the content
	// has been communicated to a third party and is frozen, but the
	// lifecycle still advances.
	StatusOnly
	// Immutable rejects every change, including status and lock toggles.
	Immutable
)

func (m Mutability) String() string {
	switch m {
	case FullyMutable:
		return "FULLY_MUTABLE"
	case StatusOnly:
		return "STATUS_ONLY"
	default:
		return "IMMUTABLE"
	}
}

var invoiceStatusOnly = map[Status]bool{
	StatusSent:       true,
	StatusDownloaded: true,
	StatusPaid:       true,
	StatusOverdue:    true,
}

// EvaluateMutability decides whether a document may still be edited. It is
// evaluated before any field-level change, status changes and lock toggles
// included.
func EvaluateMutability(t DocumentType, status Status, archivedAt *time.Time) Mutability {
	if archivedAt != nil {
		return Immutable
	}
	if IsTerminal(t, status) || status == StatusCancelled {
		return Immutable
	}
	if t == TypeInvoice && invoiceStatusOnly[status] {
		return StatusOnly
	}
	return FullyMutable
}

// DocumentMutability evaluates the guard against a document's persisted
// state.
func DocumentMutability(doc *Document) Mutability {
	if doc == nil {
		return FullyMutable
	}
	return EvaluateMutability(doc.Type, doc.Status, doc.ArchivedAt)
}

// MutabilityError converts an insufficient tier into a typed error.
func MutabilityError(m Mutability, archived bool) error {
	if m != Immutable {
		return nil
	}
	if archived {
		return NewError(KindImmutable, "document is archived and permanently immutable")
	}
	return NewError(KindTerminalState, "document status is terminal, no further changes are allowed")
}
