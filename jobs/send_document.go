package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// SentMarker records the SENT status on a document. Marking is idempotent:
// a document already in SENT is returned unchanged, which keeps delivery
// retries safe.
type SentMarker interface {
	MarkSent(ctx context.Context, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error)
}

// Deliverer pushes the rendered document to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, doc *billing.Document) error
}

// SendDocumentHandler processes TaskTypeSendDocument tasks.
type SendDocumentHandler struct {
	marker    SentMarker
	deliverer Deliverer
	logger    *slog.Logger
}

// NewSendDocumentHandler constructs the handler.
func NewSendDocumentHandler(marker SentMarker, deliverer Deliverer, logger *slog.Logger) *SendDocumentHandler {
	return &SendDocumentHandler{marker: marker, deliverer: deliverer, logger: logger}
}

// Handle marks the document SENT, then delivers it. A retry after a failed
// delivery re-runs both steps; the mark is a no-op the second time.
func (h *SendDocumentHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	doc, err := h.marker.MarkSent(ctx, payload.ScopeID, payload.DocType, payload.DocumentID)
	if err != nil {
		if kind, ok := billing.KindOf(err); ok && kind != billing.KindStorageFailure {
			// A lifecycle rejection will not resolve on retry.
			h.logger.Warn("send rejected", "document_id", payload.DocumentID, "kind", kind)
			return asynq.SkipRetry
		}
		return fmt.Errorf("jobs: mark sent %s: %w", payload.DocumentID, err)
	}

	if h.deliverer != nil {
		if err := h.deliverer.Deliver(ctx, doc); err != nil {
			return fmt.Errorf("jobs: deliver %s: %w", payload.DocumentID, err)
		}
	}
	h.logger.Info("document sent", "document_id", doc.ID, "number", doc.Number, "type", doc.Type)
	return nil
}
