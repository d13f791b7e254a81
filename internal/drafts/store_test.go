package drafts

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(client, 0, logger), mr
}

func testSnapshot(updated time.Time) billing.DraftSnapshot {
	return billing.DraftSnapshot{
		ClientID:  "client-1",
		Status:    billing.StatusDraft,
		Notes:     "buffered notes",
		Items:     []billing.LineItem{{Description: "Line", Quantity: 1, UnitPrice: 10, Kind: billing.LineProduct}},
		UpdatedAt: updated,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	snap := testSnapshot(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, "inv-1", snap))

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "buffered notes", loaded.Notes)
	require.True(t, loaded.UpdatedAt.Equal(snap.UpdatedAt))
}

func TestStoreMissingDraftIsNil(t *testing.T) {
	store, _ := testStore(t)

	loaded, err := store.Load(context.Background(), "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStoreCorruptDraftEvicted(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()
	mr.Set("draft:scope-1:INVOICE:inv-1", "{not json")

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
	require.False(t, mr.Exists("draft:scope-1:INVOICE:inv-1"))
}

func TestStoreKeysAreScoped(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	snap := testSnapshot(time.Now())

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, "inv-1", snap))

	loaded, err := store.Load(ctx, "scope-2", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)

	loaded, err = store.Load(ctx, "scope-1", billing.TypeQuote, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStoreDraftExpires(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now())))
	mr.FastForward(DefaultTTL + time.Minute)

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStoreSaveRefreshesExpiry(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now())))
	mr.FastForward(23 * time.Hour)
	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now())))
	mr.FastForward(23 * time.Hour)

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestStoreDelete(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, "inv-1", testSnapshot(time.Now())))
	require.NoError(t, store.Delete(ctx, "scope-1", billing.TypeInvoice, "inv-1"))
	require.NoError(t, store.Delete(ctx, "scope-1", billing.TypeInvoice, "inv-1"))

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestStorePromote(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	snap := testSnapshot(time.Now())

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeInvoice, NewDocumentID, snap))
	require.NoError(t, store.Promote(ctx, "scope-1", billing.TypeInvoice, "inv-9"))

	loaded, err := store.Load(ctx, "scope-1", billing.TypeInvoice, "inv-9")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "buffered notes", loaded.Notes)

	old, err := store.Load(ctx, "scope-1", billing.TypeInvoice, NewDocumentID)
	require.NoError(t, err)
	require.Nil(t, old)
}

func TestStorePromoteWithoutDraftIsNoop(t *testing.T) {
	store, _ := testStore(t)
	require.NoError(t, store.Promote(context.Background(), "scope-1", billing.TypeInvoice, "inv-9"))
}

func TestStoreEmptyIDUsesSentinel(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "scope-1", billing.TypeQuote, "", testSnapshot(time.Now())))
	require.True(t, mr.Exists("draft:scope-1:QUOTE:new"))
}
