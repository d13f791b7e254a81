package documents

import (
	"time"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// LineItemInput is one submitted document line.
type LineItemInput struct {
	ID            string               `json:"id,omitempty"`
	Description   string               `json:"description" validate:"required"`
	Quantity      float64              `json:"quantity" validate:"gte=0"`
	UnitPrice     float64              `json:"unitPrice"`
	TaxRate       float64              `json:"taxRate" validate:"gte=0,lte=100"`
	DiscountValue float64              `json:"discountValue" validate:"gte=0"`
	DiscountUnit  billing.DiscountUnit `json:"discountUnit,omitempty" validate:"omitempty,oneof=PERCENT AMOUNT"`
	Kind          billing.LineKind     `json:"kind,omitempty" validate:"omitempty,oneof=PRODUCT FREE_TEXT"`
}

// DiscountConfigInput mirrors the document discount configuration.
type DiscountConfigInput struct {
	LineDiscountsEnabled bool                 `json:"lineDiscountsEnabled"`
	LineDiscountUnit     billing.DiscountUnit `json:"lineDiscountUnit,omitempty" validate:"omitempty,oneof=PERCENT AMOUNT"`
	GlobalDiscountValue  float64              `json:"globalDiscountValue" validate:"gte=0"`
	GlobalDiscountUnit   billing.DiscountUnit `json:"globalDiscountUnit,omitempty" validate:"omitempty,oneof=PERCENT AMOUNT"`
	DefaultTaxRate       float64              `json:"defaultTaxRate" validate:"gte=0,lte=100"`
}

// SaveDocumentRequest is the full editable payload of a save. Totals are
// deliberately absent: they are recomputed server-side on every save.
type SaveDocumentRequest struct {
	Number      string              `json:"number,omitempty"`
	ClientID    string              `json:"clientId" validate:"required"`
	Status      *billing.Status     `json:"status,omitempty"`
	IssueDate   time.Time           `json:"issueDate"`
	DueDate     time.Time           `json:"dueDate"`
	PaymentDate *time.Time          `json:"paymentDate,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Terms       string              `json:"terms,omitempty"`
	Items       []LineItemInput     `json:"items" validate:"dive"`
	Discounts   DiscountConfigInput `json:"discounts"`
}

// ChangeStatusRequest carries an explicit lifecycle change.
type ChangeStatusRequest struct {
	Status      billing.Status `json:"status" validate:"required"`
	PaymentDate *time.Time     `json:"paymentDate,omitempty"`
}

// SetLockedRequest toggles the advisory lock.
type SetLockedRequest struct {
	Locked bool `json:"locked"`
}

// SaveDraftRequest buffers the in-session editing state.
type SaveDraftRequest struct {
	Number    string              `json:"number,omitempty"`
	ClientID  string              `json:"clientId,omitempty"`
	Status    billing.Status      `json:"status,omitempty"`
	IsLocked  bool                `json:"isLocked"`
	IssueDate time.Time           `json:"issueDate"`
	DueDate   time.Time           `json:"dueDate"`
	Notes     string              `json:"notes,omitempty"`
	Terms     string              `json:"terms,omitempty"`
	Items     []LineItemInput     `json:"items" validate:"dive"`
	Discounts DiscountConfigInput `json:"discounts"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// ListDocumentsRequest filters and paginates a listing.
type ListDocumentsRequest struct {
	ScopeID string               `json:"-"`
	Type    billing.DocumentType `json:"type" validate:"required,oneof=INVOICE QUOTE"`
	Status  *billing.Status      `json:"status,omitempty"`
	Limit   int                  `json:"limit" validate:"gte=0,lte=200"`
	Offset  int                  `json:"offset" validate:"gte=0"`
}

// OpenDocumentResponse is the reconciled editing session returned on open.
type OpenDocumentResponse struct {
	Document        billing.Document      `json:"document"`
	Source          billing.SessionSource `json:"source"`
	EffectiveLocked bool                  `json:"effectiveLocked"`
	EffectiveStatus billing.Status        `json:"effectiveStatus"`
}

func (in LineItemInput) toDomain() billing.LineItem {
	kind := in.Kind
	if kind == "" {
		kind = billing.LineProduct
	}
	return billing.LineItem{
		ID:            in.ID,
		Description:   in.Description,
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice,
		TaxRate:       in.TaxRate,
		DiscountValue: in.DiscountValue,
		DiscountUnit:  in.DiscountUnit,
		Kind:          kind,
	}
}

func itemsToDomain(inputs []LineItemInput) []billing.LineItem {
	items := make([]billing.LineItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, in.toDomain())
	}
	return items
}

func (in DiscountConfigInput) toDomain() billing.DiscountConfig {
	cfg := billing.DiscountConfig{
		LineDiscountsEnabled: in.LineDiscountsEnabled,
		LineDiscountUnit:     in.LineDiscountUnit,
		GlobalDiscountValue:  in.GlobalDiscountValue,
		GlobalDiscountUnit:   in.GlobalDiscountUnit,
		DefaultTaxRate:       in.DefaultTaxRate,
	}
	if cfg.LineDiscountUnit == "" {
		cfg.LineDiscountUnit = billing.DiscountPercent
	}
	if cfg.GlobalDiscountUnit == "" {
		cfg.GlobalDiscountUnit = billing.DiscountPercent
	}
	return cfg
}

func (in SaveDraftRequest) toSnapshot() billing.DraftSnapshot {
	updated := in.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return billing.DraftSnapshot{
		Number:    in.Number,
		ClientID:  in.ClientID,
		Status:    in.Status,
		IsLocked:  in.IsLocked,
		IssueDate: in.IssueDate,
		DueDate:   in.DueDate,
		Notes:     in.Notes,
		Terms:     in.Terms,
		Items:     itemsToDomain(in.Items),
		Discounts: in.Discounts.toDomain(),
		UpdatedAt: updated,
	}
}
