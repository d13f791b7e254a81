// Package billing holds the document lifecycle engine: status machines,
// mutability guards, the advisory lock rules, draft reconciliation and the
// totals calculation shared by every editing surface.
package billing

import "time"

// DocumentType distinguishes the two document variants.
type DocumentType string

const (
	TypeInvoice DocumentType = "INVOICE"
	TypeQuote   DocumentType = "QUOTE"
)

// Status enumerates document lifecycle states. Invoice and Quote share the
// DRAFT/SENT/ARCHIVED values; the rest are variant specific.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusSent       Status = "SENT"
	StatusPaid       Status = "PAID"
	StatusOverdue    Status = "OVERDUE"
	StatusCancelled  Status = "CANCELLED"
	StatusDownloaded Status = "DOWNLOADED"
	StatusArchived   Status = "ARCHIVED"
	StatusAccepted   Status = "ACCEPTED"
	StatusRefused    Status = "REFUSED"
	StatusInvoiced   Status = "INVOICED"
)

// DiscountUnit selects how a discount value is interpreted.
type DiscountUnit string

const (
	DiscountPercent DiscountUnit = "PERCENT"
	DiscountAmount  DiscountUnit = "AMOUNT"
)

// LineKind separates billable product lines from free-text rows.
type LineKind string

const (
	LineProduct  LineKind = "PRODUCT"
	LineFreeText LineKind = "FREE_TEXT"
)

// LineItem is a single row of a document. Order within Document.Items is
// meaningful and user controlled.
type LineItem struct {
	ID            string
	Description   string
	Quantity      float64
	UnitPrice     float64
	TaxRate       float64
	DiscountValue float64
	DiscountUnit  DiscountUnit
	Kind          LineKind
}

// DiscountConfig carries the discount and tax configuration of a document
// as one immutable value.
type DiscountConfig struct {
	LineDiscountsEnabled bool
	LineDiscountUnit     DiscountUnit
	GlobalDiscountValue  float64
	GlobalDiscountUnit   DiscountUnit
	DefaultTaxRate       float64
}

// Totals is the derived snapshot persisted for historical display. It is
// recomputed from the items on every save and never trusted from a client.
type Totals struct {
	NetBeforeGlobalDiscount float64
	LineDiscountTotal       float64
	GlobalDiscountAmount    float64
	NetHT                   float64
	VAT                     float64
	TTC                     float64
}

// Document is the central billing entity, Invoice or Quote.
type Document struct {
	ID             string
	Number         string
	Type           DocumentType
	ScopeID        string
	ClientID       string
	Status         Status
	IsLocked       bool
	ArchivedAt     *time.Time
	IssueDate      time.Time
	DueDate        time.Time
	PaymentDate    *time.Time
	Notes          string
	Terms          string
	Items          []LineItem
	Discounts      DiscountConfig
	Totals         Totals
	LastModifiedAt time.Time
	CreatedAt      time.Time
}

// DraftSnapshot is a locally buffered copy of the editable fields of a
// document. It is a cache, never a source of truth: it may be stale, absent
// or ahead of the persisted record.
type DraftSnapshot struct {
	Number    string
	ClientID  string
	Status    Status
	IsLocked  bool
	IssueDate time.Time
	DueDate   time.Time
	Notes     string
	Terms     string
	Items     []LineItem
	Discounts DiscountConfig
	UpdatedAt time.Time
}
