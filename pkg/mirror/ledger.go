// pkg/mirror/ledger.go

package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import the PostgreSQL driver

	"github.com/invoicing-desk/pkg/invoice"
)

// Execer runs statements; *sql.DB satisfies it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const ledgerSchema = `CREATE TABLE IF NOT EXISTS invoices (
	invoice_key    TEXT PRIMARY KEY,
	invoice_number TEXT NOT NULL,
	company_name   TEXT NOT NULL,
	customer       TEXT NOT NULL,
	issue_date     DATE,
	due_date       DATE,
	subtotal       NUMERIC(14,2) NOT NULL,
	tax            NUMERIC(14,2) NOT NULL,
	discount       NUMERIC(14,2) NOT NULL,
	total          NUMERIC(14,2) NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
)`

const ledgerUpsert = `INSERT INTO invoices
	(invoice_key, invoice_number, company_name, customer, issue_date, due_date, subtotal, tax, discount, total, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (invoice_key) DO UPDATE SET
	invoice_number = EXCLUDED.invoice_number,
	company_name = EXCLUDED.company_name,
	customer = EXCLUDED.customer,
	issue_date = EXCLUDED.issue_date,
	due_date = EXCLUDED.due_date,
	subtotal = EXCLUDED.subtotal,
	tax = EXCLUDED.tax,
	discount = EXCLUDED.discount,
	total = EXCLUDED.total,
	updated_at = EXCLUDED.updated_at`

const ledgerDelete = `DELETE FROM invoices WHERE invoice_key = $1`

// Ledger keeps a row per saved invoice in a Postgres "invoices" table.
type Ledger struct {
	db  Execer
	now func() time.Time
}

// OpenPostgres connects to dsn and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("mirror: connect: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mirror: ping: %w", err)
	}
	return db, nil
}

// NewLedger wraps db.
func NewLedger(db Execer) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// EnsureSchema creates the invoices table when missing.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("mirror: create schema: %w", err)
	}
	return nil
}

func (l *Ledger) Name() string { return "postgres" }

// Mirror upserts the invoice's summary row.
func (l *Ledger) Mirror(ctx context.Context, key string, rec *invoice.Record, _ []byte) error {
	t := rec.Totals()
	_, err := l.db.ExecContext(ctx, ledgerUpsert,
		key,
		rec.InvoiceNumber,
		rec.CompanyName,
		rec.BillTo.Name,
		nullDate(rec.Date),
		nullDate(rec.DueDate),
		t.Subtotal.StringFixed(2),
		t.Tax.StringFixed(2),
		t.Discount.StringFixed(2),
		t.Total.StringFixed(2),
		l.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mirror: upsert %s: %w", key, err)
	}
	return nil
}

// Remove deletes the invoice's row. A missing row is not an error.
func (l *Ledger) Remove(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, ledgerDelete, key); err != nil {
		return fmt.Errorf("mirror: delete %s: %w", key, err)
	}
	return nil
}

func nullDate(d invoice.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}
