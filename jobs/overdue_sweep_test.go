package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing"
)

type fakeOverdueSource struct {
	candidates []billing.Document
	listErr    error
	markErr    map[string]error
	marked     []string
}

func (f *fakeOverdueSource) ListOverdueCandidates(context.Context, time.Time) ([]billing.Document, error) {
	return f.candidates, f.listErr
}

func (f *fakeOverdueSource) MarkOverdue(_ context.Context, _ string, id string) (*billing.Document, error) {
	if err := f.markErr[id]; err != nil {
		return nil, err
	}
	f.marked = append(f.marked, id)
	return &billing.Document{ID: id, Status: billing.StatusOverdue}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOverdueSweepFlipsAllCandidates(t *testing.T) {
	source := &fakeOverdueSource{candidates: []billing.Document{
		{ID: "inv-1", ScopeID: "ws-1", Status: billing.StatusSent},
		{ID: "inv-2", ScopeID: "ws-2", Status: billing.StatusDownloaded},
	}}
	h := NewOverdueSweepHandler(source, discardLogger())

	require.NoError(t, h.Handle(context.Background(), NewOverdueSweepTask()))
	require.Equal(t, []string{"inv-1", "inv-2"}, source.marked)
}

func TestOverdueSweepContinuesPastFailures(t *testing.T) {
	source := &fakeOverdueSource{
		candidates: []billing.Document{
			{ID: "inv-1", ScopeID: "ws-1", Status: billing.StatusSent},
			{ID: "inv-2", ScopeID: "ws-1", Status: billing.StatusSent},
		},
		markErr: map[string]error{"inv-1": errors.New("write failed")},
	}
	h := NewOverdueSweepHandler(source, discardLogger())

	require.NoError(t, h.Handle(context.Background(), NewOverdueSweepTask()))
	require.Equal(t, []string{"inv-2"}, source.marked)
}

func TestOverdueSweepPropagatesListFailure(t *testing.T) {
	source := &fakeOverdueSource{listErr: errors.New("query failed")}
	h := NewOverdueSweepHandler(source, discardLogger())

	require.Error(t, h.Handle(context.Background(), NewOverdueSweepTask()))
}

type fakeMarker struct {
	doc *billing.Document
	err error
}

func (f *fakeMarker) MarkSent(context.Context, string, billing.DocumentType, string) (*billing.Document, error) {
	return f.doc, f.err
}

type fakeDeliverer struct {
	delivered []string
	err       error
}

func (f *fakeDeliverer) Deliver(_ context.Context, doc *billing.Document) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, doc.ID)
	return nil
}

func sendTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewSendDocumentTask(SendDocumentPayload{ScopeID: "ws-1", DocType: billing.TypeInvoice, DocumentID: "inv-1"})
	require.NoError(t, err)
	return task
}

func TestSendDocumentMarksAndDelivers(t *testing.T) {
	marker := &fakeMarker{doc: &billing.Document{ID: "inv-1", Number: "00000001", Type: billing.TypeInvoice, Status: billing.StatusSent}}
	deliverer := &fakeDeliverer{}
	h := NewSendDocumentHandler(marker, deliverer, discardLogger())

	require.NoError(t, h.Handle(context.Background(), sendTask(t)))
	require.Equal(t, []string{"inv-1"}, deliverer.delivered)
}

func TestSendDocumentLifecycleRejectionSkipsRetry(t *testing.T) {
	marker := &fakeMarker{err: billing.NewError(billing.KindTerminalState, "document status is terminal")}
	h := NewSendDocumentHandler(marker, &fakeDeliverer{}, discardLogger())

	err := h.Handle(context.Background(), sendTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSendDocumentStorageFailureRetries(t *testing.T) {
	marker := &fakeMarker{err: billing.WrapError(billing.KindStorageFailure, "document write failed", errors.New("timeout"))}
	h := NewSendDocumentHandler(marker, &fakeDeliverer{}, discardLogger())

	err := h.Handle(context.Background(), sendTask(t))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSendDocumentMalformedPayloadSkipsRetry(t *testing.T) {
	h := NewSendDocumentHandler(&fakeMarker{}, &fakeDeliverer{}, discardLogger())

	err := h.Handle(context.Background(), asynq.NewTask(TaskTypeSendDocument, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSendDocumentPayloadRoundTrip(t *testing.T) {
	task := sendTask(t)
	var payload SendDocumentPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, billing.TypeInvoice, payload.DocType)
	require.Equal(t, "inv-1", payload.DocumentID)
}
