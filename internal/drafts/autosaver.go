package drafts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// DefaultDebounce is the pause after the last edit before a draft is
// flushed to the store.
const DefaultDebounce = 1200 * time.Millisecond

type draftKey struct {
	scopeID string
	docType billing.DocumentType
	docID   string
}

type pending struct {
	timer *time.Timer
	snap  billing.DraftSnapshot
}

// Autosaver debounces draft writes per document. Rapid edits collapse into
// a single Save once the stream pauses; FlushNow writes immediately, which
// editing surfaces call on session teardown.
type Autosaver struct {
	store    *Store
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[draftKey]*pending
	closed  bool
}

// NewAutosaver constructs an Autosaver. A zero debounce falls back to
// DefaultDebounce.
func NewAutosaver(store *Store, debounce time.Duration, logger *slog.Logger) *Autosaver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Autosaver{
		store:    store,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[draftKey]*pending),
	}
}

// Schedule records the latest snapshot for a document and (re)starts its
// debounce timer. Only the last snapshot scheduled before the timer fires
// is written.
func (a *Autosaver) Schedule(scopeID string, docType billing.DocumentType, docID string, snap billing.DraftSnapshot) {
	key := draftKey{scopeID: scopeID, docType: docType, docID: docID}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	if p, ok := a.pending[key]; ok {
		p.snap = snap
		p.timer.Reset(a.debounce)
		return
	}

	p := &pending{snap: snap}
	p.timer = time.AfterFunc(a.debounce, func() { a.fire(key) })
	a.pending[key] = p
}

// FlushNow writes the latest pending snapshot for a document immediately,
// cancelling its timer. A no-op when nothing is pending.
func (a *Autosaver) FlushNow(ctx context.Context, scopeID string, docType billing.DocumentType, docID string) error {
	key := draftKey{scopeID: scopeID, docType: docType, docID: docID}

	a.mu.Lock()
	p, ok := a.pending[key]
	if ok {
		p.timer.Stop()
		delete(a.pending, key)
	}
	a.mu.Unlock()

	if !ok {
		return nil
	}
	return a.store.Save(ctx, key.scopeID, key.docType, key.docID, p.snap)
}

// Discard drops any pending write for a document without flushing it.
func (a *Autosaver) Discard(scopeID string, docType billing.DocumentType, docID string) {
	key := draftKey{scopeID: scopeID, docType: docType, docID: docID}

	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pending[key]; ok {
		p.timer.Stop()
		delete(a.pending, key)
	}
}

// Close flushes every pending draft and rejects further scheduling.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	remaining := make(map[draftKey]*pending, len(a.pending))
	for key, p := range a.pending {
		p.timer.Stop()
		remaining[key] = p
	}
	a.pending = make(map[draftKey]*pending)
	a.mu.Unlock()

	var firstErr error
	for key, p := range remaining {
		if err := a.store.Save(ctx, key.scopeID, key.docType, key.docID, p.snap); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			a.logger.Error("drafts: flush on close failed", "doc_id", key.docID, "error", err)
		}
	}
	return firstErr
}

func (a *Autosaver) fire(key draftKey) {
	a.mu.Lock()
	p, ok := a.pending[key]
	if ok {
		delete(a.pending, key)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Save(ctx, key.scopeID, key.docType, key.docID, p.snap); err != nil {
		a.logger.Error("drafts: autosave failed", "doc_id", key.docID, "error", err)
	}
}
