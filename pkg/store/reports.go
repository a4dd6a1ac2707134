// pkg/store/reports.go

package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/invoicing-desk/pkg/invoice"
)

// CSVHeader is the first row of a reports export.
var CSVHeader = []string{"Customer", "Invoice No", "Date", "Due Date", "Contact", "Tax %", "Discount", "Subtotal", "Tax Amt", "Total"}

// Summary is one row of the reports view. Money figures are recomputed
// from the stored items, never read from stored totals.
type Summary struct {
	Key           string          `json:"key"`
	Customer      string          `json:"customer"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	DueDate       string          `json:"due_date"`
	Contact       string          `json:"contact"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Discount      decimal.Decimal `json:"discount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// Row renders the summary for CSV export.
func (s Summary) Row() []string {
	return []string{
		s.Customer,
		s.InvoiceNumber,
		s.Date,
		s.DueDate,
		s.Contact,
		s.TaxRate.StringFixed(2),
		s.Discount.StringFixed(2),
		s.Subtotal.StringFixed(2),
		s.Tax.StringFixed(2),
		s.Total.StringFixed(2),
	}
}

// reportFields reads a metadata file loosely. Dates stay as text and a
// few older field names are accepted.
type reportFields struct {
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	DueDate       string `json:"due_date"`
	Due           string `json:"due"`
	BillTo        struct {
		Name     string `json:"name"`
		Customer string `json:"customer"`
		Contact  string `json:"contact"`
	} `json:"bill_to"`
	Contact    string          `json:"contact"`
	Items      json.RawMessage `json:"items"`
	TaxRate    *invoice.Number `json:"tax_rate"`
	TaxPercent invoice.Number  `json:"tax_percent"`
	Discount   invoice.Number  `json:"discount"`
}

// reportItem is the part of an item the figures need. Description is
// ignored so a malformed one cannot hide the amounts.
type reportItem struct {
	Quantity  invoice.Number  `json:"qty"`
	UnitPrice *invoice.Number `json:"unit_price"`
	Unit      invoice.Number  `json:"unit"`
}

// items decodes each entry on its own and drops the ones that are not
// objects. A missing unit_price falls back to the older "unit" field.
func (f *reportFields) items() []invoice.Item {
	var raw []json.RawMessage
	if err := json.Unmarshal(f.Items, &raw); err != nil {
		return nil
	}
	out := make([]invoice.Item, 0, len(raw))
	for _, r := range raw {
		var it reportItem
		if err := json.Unmarshal(r, &it); err != nil {
			continue
		}
		price := it.Unit
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		out = append(out, invoice.Item{Quantity: it.Quantity, UnitPrice: price})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func summarize(key string, f *reportFields) Summary {
	rate := f.TaxPercent
	if f.TaxRate != nil {
		rate = *f.TaxRate
	}
	t := invoice.ComputeTotals(f.items(), rate, f.Discount)
	return Summary{
		Key:           key,
		Customer:      firstNonEmpty(f.BillTo.Name, f.BillTo.Customer),
		InvoiceNumber: firstNonEmpty(f.InvoiceNumber, key),
		Date:          f.Date,
		DueDate:       firstNonEmpty(f.DueDate, f.Due),
		Contact:       firstNonEmpty(f.BillTo.Contact, f.Contact),
		TaxRate:       rate.Decimal(),
		Discount:      t.Discount,
		Subtotal:      t.Subtotal,
		Tax:           t.Tax,
		Total:         t.Total,
	}
}

// ListReports parses every metadata file into a Summary, descending by
// file name. Files that cannot be read or parsed are skipped.
func (s *Store) ListReports() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.stems(MetadataExt)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(keys))
	for _, key := range keys {
		path := filepath.Join(s.dir, key+MetadataExt)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Debug("report skipped", zap.String("file", path), zap.Error(err))
			continue
		}
		var f reportFields
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("report skipped", zap.String("file", path), zap.Error(err))
			continue
		}
		out = append(out, summarize(key, &f))
	}
	return out, nil
}

// WriteCSV exports summaries with CSVHeader as the first row.
func WriteCSV(w io.Writer, rows []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("store: csv: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("store: csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("store: csv: %w", err)
	}
	return nil
}
