package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendDocument delivers a document to its client and records
	// the SENT status.
	TaskTypeSendDocument = "document:send"
	// TaskTypeOverdueSweep flips sent invoices past their due date to
	// OVERDUE.
	TaskTypeOverdueSweep = "billing:overdue_sweep"
)

// SendDocumentPayload identifies the document to deliver.
type SendDocumentPayload struct {
	ScopeID    string               `json:"scope_id"`
	DocType    billing.DocumentType `json:"doc_type"`
	DocumentID string               `json:"document_id"`
}

// NewSendDocumentTask constructs a send task.
func NewSendDocumentTask(payload SendDocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendDocument, data), nil
}

// NewOverdueSweepTask constructs a sweep task. The payload is empty; the
// sweep scans every workspace.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueSweep, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueSendDocument queues a document for delivery.
func (c *Client) EnqueueSendDocument(ctx context.Context, scopeID string, docType billing.DocumentType, id string) error {
	task, err := NewSendDocumentTask(SendDocumentPayload{ScopeID: scopeID, DocType: docType, DocumentID: id})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
