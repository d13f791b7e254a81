package drafts

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing"
)

func testAutosaver(t *testing.T, debounce time.Duration) (*Autosaver, *Store) {
	t.Helper()
	store, _ := testStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAutosaver(store, debounce, logger), store
}

func TestAutosaverFlushesAfterDebounce(t *testing.T) {
	saver, store := testAutosaver(t, 20*time.Millisecond)
	ctx := context.Background()

	saver.Schedule("scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now()))

	require.Eventually(t, func() bool {
		loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
		return err == nil && loaded != nil
	}, time.Second, 10*time.Millisecond)
}

func TestAutosaverCollapsesRapidEdits(t *testing.T) {
	saver, store := testAutosaver(t, 30*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap := testSnapshot(time.Now())
		snap.Notes = "edit"
		if i == 4 {
			snap.Notes = "final edit"
		}
		saver.Schedule("scope-1", billing.TypeInvoice, "inv-1", snap)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
		return err == nil && loaded != nil && loaded.Notes == "final edit"
	}, time.Second, 10*time.Millisecond)
}

func TestAutosaverFlushNow(t *testing.T) {
	saver, store := testAutosaver(t, time.Hour)
	ctx := context.Background()

	saver.Schedule("scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now()))
	require.NoError(t, saver.FlushNow(ctx, "scope-1", billing.TypeInvoice, "inv-1"))

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// Nothing pending anymore: a second flush is a no-op.
	require.NoError(t, saver.FlushNow(ctx, "scope-1", billing.TypeInvoice, "inv-1"))
}

func TestAutosaverDiscard(t *testing.T) {
	saver, store := testAutosaver(t, 20*time.Millisecond)
	ctx := context.Background()

	saver.Schedule("scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now()))
	saver.Discard("scope-1", billing.TypeInvoice, "inv-1")

	time.Sleep(60 * time.Millisecond)
	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestAutosaverCloseFlushesPending(t *testing.T) {
	saver, store := testAutosaver(t, time.Hour)
	ctx := context.Background()

	saver.Schedule("scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now()))
	saver.Schedule("scope-1", billing.TypeQuote, "quo-1", testSnapshot(time.Now()))
	require.NoError(t, saver.Close(ctx))

	for _, docType := range []billing.DocumentType{billing.TypeInvoice, billing.TypeQuote} {
		id := "inv-1"
		if docType == billing.TypeQuote {
			id = "quo-1"
		}
		loaded, err := store.Load(ctx, "scope-1", docType, id)
		require.NoError(t, err)
		require.NotNil(t, loaded, "%s draft must be flushed on close", docType)
	}

	// Closed saver ignores further scheduling.
	saver.Schedule("scope-1", billing.TypeInvoice, "inv-2", testSnapshot(time.Now()))
	require.NoError(t, saver.FlushNow(ctx, "scope-1", billing.TypeInvoice, "inv-2"))
	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-2")
	require.NoError(t, err)
	require.Nil(t, loaded)
}
