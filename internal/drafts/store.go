// Package drafts buffers in-progress document edits in Redis so an editing
// session can survive a disconnect or a page unload. The buffer is a cache,
// never a source of truth: reconciliation against the persisted record
// decides whether it is used.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// NewDocumentID is the sentinel under which a not-yet-persisted document
// buffers its draft. Once the document gets a real ID the draft moves with
// it.
const NewDocumentID = "new"

// DefaultTTL is how long an untouched draft survives. Every write refreshes
// the clock.
const DefaultTTL = 24 * time.Hour

// Store reads and writes draft snapshots keyed by scope, document type and
// document ID.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStore constructs a Store. A zero ttl falls back to DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Load returns the buffered draft for a document, or nil when none exists.
// A corrupt payload is treated as absent and evicted: a draft is
// best-effort data and must never block opening the document.
func (s *Store) Load(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) (*billing.DraftSnapshot, error) {
	key := s.key(scopeID, docType, docID)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("drafts: load %s: %w", key, err)
	}

	var snap billing.DraftSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.logger.Warn("drafts: discarding corrupt draft", "key", key, "error", err)
		_ = s.client.Del(ctx, key).Err()
		return nil, nil
	}
	return &snap, nil
}

// Save buffers a draft and refreshes its expiry.
func (s *Store) Save(ctx context.Context, scopeID string, docType billing.DocumentType, docID string, snap billing.DraftSnapshot) error {
	key := s.key(scopeID, docType, docID)
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("drafts: marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("drafts: save %s: %w", key, err)
	}
	return nil
}

// Delete drops a buffered draft. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) error {
	key := s.key(scopeID, docType, docID)
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("drafts: delete %s: %w", key, err)
	}
	return nil
}

// Promote moves the "new" draft onto a freshly assigned document ID. Used
// right after the first successful save of a new document so subsequent
// opens find the buffer under the real key.
func (s *Store) Promote(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) error {
	snap, err := s.Load(ctx, scopeID, docType, NewDocumentID)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	if err := s.Save(ctx, scopeID, docType, docID, *snap); err != nil {
		return err
	}
	return s.Delete(ctx, scopeID, docType, NewDocumentID)
}

func (s *Store) key(scopeID string, docType billing.DocumentType, docID string) string {
	if docID == "" {
		docID = NewDocumentID
	}
	return fmt.Sprintf("draft:%s:%s:%s", scopeID, docType, docID)
}
