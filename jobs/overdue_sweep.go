package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// OverdueSource lists and transitions invoices past their due date.
type OverdueSource interface {
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]billing.Document, error)
	MarkOverdue(ctx context.Context, scopeID string, id string) (*billing.Document, error)
}

// OverdueSweepHandler processes TaskTypeOverdueSweep tasks. Each candidate
// is transitioned individually so one bad record never blocks the rest of
// the sweep.
type OverdueSweepHandler struct {
	source OverdueSource
	logger *slog.Logger
	now    func() time.Time
}

// NewOverdueSweepHandler constructs the handler.
func NewOverdueSweepHandler(source OverdueSource, logger *slog.Logger) *OverdueSweepHandler {
	return &OverdueSweepHandler{source: source, logger: logger, now: time.Now}
}

// Handle runs one sweep.
func (h *OverdueSweepHandler) Handle(ctx context.Context, _ *asynq.Task) error {
	asOf := h.now()
	candidates, err := h.source.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return err
	}

	flipped := 0
	for _, doc := range candidates {
		if _, err := h.source.MarkOverdue(ctx, doc.ScopeID, doc.ID); err != nil {
			h.logger.Error("overdue transition failed", "document_id", doc.ID, "error", err)
			continue
		}
		flipped++
	}
	if flipped > 0 || len(candidates) > 0 {
		h.logger.Info("overdue sweep complete", "candidates", len(candidates), "flipped", flipped)
	}
	return nil
}
