// pkg/invoice/invoice.go

package invoice

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO date format used in metadata files.
const DateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Record represents the invoice data model as persisted in the metadata sidecar.
type Record struct {
	CompanyName        string  `json:"company_name"`
	CompanyAddress     string  `json:"company_address"`
	InvoiceNumber      string  `json:"invoice_number"`
	Date               Date    `json:"date"`
	DueDate            Date    `json:"due_date"`
	BillTo             BillTo  `json:"bill_to"`
	Items              []Item  `json:"items"`
	TaxRate            Number  `json:"tax_rate"`
	Discount           Number  `json:"discount"`
	Notes              string  `json:"notes"`
	LogoPath           *string `json:"logo_path"`
	SignatureInPDFOnly bool    `json:"signature_saved_in_pdf_only,omitempty"`
}

// BillTo identifies the customer.
type BillTo struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// Item represents a line item in the invoice.
type Item struct {
	Description string `json:"desc"`
	Quantity    Number `json:"qty"`
	UnitPrice   Number `json:"unit_price"`
}

// Amount is quantity times unit price, rounded to cents.
func (it Item) Amount() decimal.Decimal {
	return it.Quantity.Decimal().Mul(it.UnitPrice.Decimal()).Round(2)
}

// Totals are the money figures derived from a record's items.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals sums the individually rounded line amounts and applies the
// tax percentage and flat discount. The total may be negative.
func ComputeTotals(items []Item, taxRate, discount Number) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}
	tax := subtotal.Mul(taxRate.Decimal()).Div(hundred).Round(2)
	disc := discount.Decimal()
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: disc,
		Total:    subtotal.Add(tax).Sub(disc).Round(2),
	}
}

// Totals computes the record's money figures from its items.
func (r *Record) Totals() Totals {
	return ComputeTotals(r.Items, r.TaxRate, r.Discount)
}

// Warnings lists conditions worth surfacing to the user that do not
// prevent saving.
func (r *Record) Warnings() []string {
	var out []string
	if len(r.Items) == 0 {
		out = append(out, "invoice has no items")
	}
	if !r.Date.IsZero() && !r.DueDate.IsZero() && r.DueDate.Before(r.Date.Time) {
		out = append(out, "due date is before the invoice date")
	}
	if r.Totals().Total.IsNegative() {
		out = append(out, "discount exceeds subtotal plus tax, total is negative")
	}
	return out
}

// SanitizeKey filters an invoice number down to letters, digits, '-' and '_'
// so it can be used as a file name stem.
func SanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return -1
	}, s)
}

// FormatQuantity renders whole quantities without a fractional part.
func FormatQuantity(q Number) string {
	f := float64(q)
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Number is a JSON number that tolerates quoted values, null and garbage.
// Anything unparseable decodes to zero.
type Number float64

// ParseNumber parses user input, returning zero for empty or invalid text.
func ParseNumber(s string) Number {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Number(f)
}

// Decimal converts the number for money arithmetic.
func (n Number) Decimal() decimal.Decimal {
	return decimal.NewFromFloat(float64(n))
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = ParseNumber(s)
		return nil
	}
	*n = ParseNumber(string(data))
	return nil
}

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, terr := time.Parse(time.RFC3339, s)
		if terr != nil {
			return Date{}, err
		}
		t = ts
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
