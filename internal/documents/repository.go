package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// ErrNotFound indicates the requested document does not exist in the scope.
var ErrNotFound = errors.New("documents: not found")

// Repository is the storage contract of the orchestrator. Save replaces the
// header and every line in one transaction; partial writes are never
// observable.
type Repository interface {
	Get(ctx context.Context, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error)
	Save(ctx context.Context, doc *billing.Document) error
	List(ctx context.Context, req ListDocumentsRequest) ([]billing.Document, int, error)
	GenerateNumber(ctx context.Context, scopeID string, docType billing.DocumentType, issueDate time.Time) (string, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]billing.Document, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const documentColumns = `
	id, number, doc_type, workspace_id, client_id, status, is_locked,
	archived_at, issue_date, due_date, payment_date, notes, terms,
	line_discounts_enabled, line_discount_unit, global_discount_value,
	global_discount_unit, default_tax_rate,
	net_before_global_discount, line_discount_total, global_discount_amount,
	net_ht, vat, ttc, last_modified_at, created_at`

func (r *repository) Get(ctx context.Context, scopeID string, docType billing.DocumentType, id string) (*billing.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE workspace_id = $1 AND doc_type = $2 AND id = $3`, documentColumns)
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, scopeID, docType, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.loadItems(ctx, r.pool, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Items = items
	return doc, nil
}

// Save upserts the header and replaces every line inside one
// RepeatableRead transaction.
func (r *repository) Save(ctx context.Context, doc *billing.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (
				id, number, doc_type, workspace_id, client_id, status, is_locked,
				archived_at, issue_date, due_date, payment_date, notes, terms,
				line_discounts_enabled, line_discount_unit, global_discount_value,
				global_discount_unit, default_tax_rate,
				net_before_global_discount, line_discount_total, global_discount_amount,
				net_ht, vat, ttc, last_modified_at, created_at
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
				$19,$20,$21,$22,$23,$24,$25,$26
			)
			ON CONFLICT (id) DO UPDATE SET
				number = EXCLUDED.number,
				client_id = EXCLUDED.client_id,
				status = EXCLUDED.status,
				is_locked = EXCLUDED.is_locked,
				archived_at = EXCLUDED.archived_at,
				issue_date = EXCLUDED.issue_date,
				due_date = EXCLUDED.due_date,
				payment_date = EXCLUDED.payment_date,
				notes = EXCLUDED.notes,
				terms = EXCLUDED.terms,
				line_discounts_enabled = EXCLUDED.line_discounts_enabled,
				line_discount_unit = EXCLUDED.line_discount_unit,
				global_discount_value = EXCLUDED.global_discount_value,
				global_discount_unit = EXCLUDED.global_discount_unit,
				default_tax_rate = EXCLUDED.default_tax_rate,
				net_before_global_discount = EXCLUDED.net_before_global_discount,
				line_discount_total = EXCLUDED.line_discount_total,
				global_discount_amount = EXCLUDED.global_discount_amount,
				net_ht = EXCLUDED.net_ht,
				vat = EXCLUDED.vat,
				ttc = EXCLUDED.ttc,
				last_modified_at = EXCLUDED.last_modified_at
		`,
			doc.ID, doc.Number, doc.Type, doc.ScopeID, doc.ClientID, doc.Status, doc.IsLocked,
			doc.ArchivedAt, doc.IssueDate, doc.DueDate, doc.PaymentDate, doc.Notes, doc.Terms,
			doc.Discounts.LineDiscountsEnabled, doc.Discounts.LineDiscountUnit, doc.Discounts.GlobalDiscountValue,
			doc.Discounts.GlobalDiscountUnit, doc.Discounts.DefaultTaxRate,
			doc.Totals.NetBeforeGlobalDiscount, doc.Totals.LineDiscountTotal, doc.Totals.GlobalDiscountAmount,
			doc.Totals.NetHT, doc.Totals.VAT, doc.Totals.TTC, doc.LastModifiedAt, doc.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("documents: save header: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, doc.ID); err != nil {
			return fmt.Errorf("documents: clear lines: %w", err)
		}
		for i := range doc.Items {
			item := &doc.Items[i]
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO document_lines (
					id, document_id, position, description, quantity, unit_price,
					tax_rate, discount_value, discount_unit, kind
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`, item.ID, doc.ID, i, item.Description, item.Quantity, item.UnitPrice,
				item.TaxRate, item.DiscountValue, item.DiscountUnit, item.Kind)
			if err != nil {
				return fmt.Errorf("documents: insert line %d: %w", i, err)
			}
		}
		return nil
	})
}

// List runs the count and the page query concurrently.
func (r *repository) List(ctx context.Context, req ListDocumentsRequest) ([]billing.Document, int, error) {
	where := `WHERE workspace_id = $1 AND doc_type = $2`
	args := []any{req.ScopeID, req.Type}
	if req.Status != nil {
		where += ` AND status = $3`
		args = append(args, *req.Status)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		docs  []billing.Document
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM documents `+where, args...).Scan(&total)
	})
	g.Go(func() error {
		query := fmt.Sprintf(`SELECT %s FROM documents %s ORDER BY issue_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
			documentColumns, where, len(args)+1, len(args)+2)
		rows, err := r.pool.Query(gctx, query, append(args, limit, req.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			doc, err := scanDocument(rows)
			if err != nil {
				return err
			}
			docs = append(docs, *doc)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// GenerateNumber allocates the next number in the per-workspace sequence.
// Invoices use a flat 8-digit counter; quotes use YY01NNNN, resetting each
// year.
func (r *repository) GenerateNumber(ctx context.Context, scopeID string, docType billing.DocumentType, issueDate time.Time) (string, error) {
	period := ""
	if docType == billing.TypeQuote {
		period = issueDate.Format("2006")
	}
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (workspace_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (workspace_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, scopeID, docType, period).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("documents: next sequence: %w", err)
	}
	if docType == billing.TypeQuote {
		return fmt.Sprintf("%s01%04d", issueDate.Format("06"), seq), nil
	}
	return fmt.Sprintf("%08d", seq), nil
}

// ListOverdueCandidates returns sent or downloaded invoices whose due date
// has passed. Lines are not loaded; the sweep only needs headers.
func (r *repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]billing.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE doc_type = $1
		  AND status IN ($2, $3)
		  AND archived_at IS NULL
		  AND due_date < $4
		ORDER BY due_date
	`, documentColumns)
	rows, err := r.pool.Query(ctx, query, billing.TypeInvoice, billing.StatusSent, billing.StatusDownloaded, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []billing.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *repository) loadItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, docID string) ([]billing.LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, description, quantity, unit_price, tax_rate, discount_value, discount_unit, kind
		FROM document_lines WHERE document_id = $1 ORDER BY position
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []billing.LineItem
	for rows.Next() {
		var item billing.LineItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Quantity, &item.UnitPrice,
			&item.TaxRate, &item.DiscountValue, &item.DiscountUnit, &item.Kind); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PGClientDirectory resolves client billing emails for delivery.
type PGClientDirectory struct {
	pool *pgxpool.Pool
}

// NewClientDirectory constructs the directory.
func NewClientDirectory(pool *pgxpool.Pool) *PGClientDirectory {
	return &PGClientDirectory{pool: pool}
}

// Email returns the billing email of a client within a workspace.
func (d *PGClientDirectory) Email(ctx context.Context, scopeID, clientID string) (string, error) {
	var email string
	err := d.pool.QueryRow(ctx,
		`SELECT email FROM clients WHERE workspace_id = $1 AND id = $2`,
		scopeID, clientID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return email, nil
}

func scanDocument(row pgx.Row) (*billing.Document, error) {
	var doc billing.Document
	err := row.Scan(
		&doc.ID, &doc.Number, &doc.Type, &doc.ScopeID, &doc.ClientID, &doc.Status, &doc.IsLocked,
		&doc.ArchivedAt, &doc.IssueDate, &doc.DueDate, &doc.PaymentDate, &doc.Notes, &doc.Terms,
		&doc.Discounts.LineDiscountsEnabled, &doc.Discounts.LineDiscountUnit, &doc.Discounts.GlobalDiscountValue,
		&doc.Discounts.GlobalDiscountUnit, &doc.Discounts.DefaultTaxRate,
		&doc.Totals.NetBeforeGlobalDiscount, &doc.Totals.LineDiscountTotal, &doc.Totals.GlobalDiscountAmount,
		&doc.Totals.NetHT, &doc.Totals.VAT, &doc.Totals.TTC, &doc.LastModifiedAt, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
