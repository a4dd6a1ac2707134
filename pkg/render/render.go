// pkg/render/render.go

// Package render lays out invoice documents as A4 PDFs.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/invoicing-desk/pkg/invoice"
	"github.com/invoicing-desk/pkg/picture"
)

const (
	marginLeft   = picture.PageMarginMM
	marginRight  = picture.PageMarginMM
	marginTop    = 20.0
	marginBottom = 20.0
	contentWidth = picture.ContentWidthMM

	logoMaxW = 45.0
	logoMaxH = 30.0

	signatureBoxW    = 90.0
	signatureBoxH    = 40.0
	signatureMaxPx   = 800
	signatureHeading = 7.0
	signaturePad     = 3.0

	lineH = 5.0
)

// DefaultCurrency is the symbol printed in front of amounts.
const DefaultCurrency = "RM"

var (
	metaWidths  = []float64{30, 80, 25, 45}
	itemWidths  = []float64{10, 100, 20, 25, 25}
	itemHeaders = []string{"#", "Description", "Qty", "Unit Price", "Amount"}
	itemAligns  = []string{"C", "L", "R", "R", "R"}
)

// Renderer produces invoice PDFs.
type Renderer struct {
	currency string
	printer  *message.Printer
	logger   *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCurrency sets the currency symbol.
func WithCurrency(symbol string) Option {
	return func(r *Renderer) {
		if symbol != "" {
			r.currency = symbol
		}
	}
}

// WithLogger sets the logger used to report images that had to be skipped.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		currency: DefaultCurrency,
		printer:  message.NewPrinter(language.English),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Money formats an amount as "<symbol> 1,234.56".
func (r *Renderer) Money(v decimal.Decimal) string {
	f, _ := v.Round(2).Float64()
	return r.printer.Sprintf("%s %.2f", r.currency, f)
}

// Render writes the PDF for d to w. Images that cannot be prepared are
// left out of the document.
func (r *Renderer) Render(w io.Writer, d invoice.Draft) error {
	rec := d.Record
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetTitle("Invoice "+rec.InvoiceNumber, true)
	pdf.SetCreator("invoicing-desk", true)
	pdf.AddPage()

	p := &page{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	r.logo(p, d.Logo)
	r.header(p, &rec)
	r.items(p, rec.Items)
	r.totals(p, &rec)
	r.notes(p, rec.Notes)
	r.signature(p, d.Signature)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

type page struct {
	*gofpdf.Fpdf
	tr func(string) string
}

func (p *page) ensure(h float64) bool {
	_, pageH := p.GetPageSize()
	if p.GetY()+h > pageH-marginBottom {
		p.AddPage()
		return true
	}
	return false
}

func (r *Renderer) place(p *page, name string, b *picture.Bitmap, maxW, maxH float64) *picture.Fitted {
	if b.Empty() {
		return nil
	}
	fitted, err := picture.Fit(b, maxW, maxH)
	if err != nil {
		r.logger.Warn("image omitted from document", zap.String("image", name), zap.Error(err))
		return nil
	}
	p.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(fitted.PNG))
	if p.Err() {
		r.logger.Warn("image omitted from document", zap.String("image", name), zap.Error(p.Error()))
		p.ClearError()
		return nil
	}
	return fitted
}

func (r *Renderer) logo(p *page, b *picture.Bitmap) {
	f := r.place(p, "logo", b, logoMaxW, logoMaxH)
	if f == nil {
		return
	}
	y := p.GetY()
	p.ImageOptions("logo", marginLeft, y, f.WidthMM, f.HeightMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	p.SetY(y + f.HeightMM + 2)
}

func (r *Renderer) header(p *page, rec *invoice.Record) {
	p.SetFont("Helvetica", "B", 16)
	p.MultiCell(contentWidth, 7, p.tr(rec.CompanyName), "", "L", false)
	p.SetFont("Helvetica", "", 10)
	p.MultiCell(contentWidth, lineH, p.tr(rec.CompanyAddress), "", "L", false)
	p.Ln(3)

	rows := [][]string{
		{"Invoice No:", rec.InvoiceNumber, "Date:", rec.Date.String()},
		{"Bill To:", rec.BillTo.Name, "Due Date:", rec.DueDate.String()},
		{"Contact:", rec.BillTo.Contact, "", ""},
	}
	for _, row := range rows {
		for i, cell := range row {
			style := ""
			if i%2 == 0 {
				style = "B"
			}
			p.SetFont("Helvetica", style, 10)
			p.CellFormat(metaWidths[i], 6, p.tr(cell), "", 0, "L", false, 0, "")
		}
		p.Ln(6)
	}
	p.Ln(4)
}

func (r *Renderer) itemHeader(p *page) {
	p.SetFont("Helvetica", "B", 10)
	p.SetFillColor(211, 211, 211)
	for i, h := range itemHeaders {
		p.CellFormat(itemWidths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	p.Ln(7)
	p.SetFont("Helvetica", "", 10)
}

func (r *Renderer) items(p *page, items []invoice.Item) {
	r.itemHeader(p)
	for i, it := range items {
		cells := []string{
			strconv.Itoa(i + 1),
			p.tr(it.Description),
			invoice.FormatQuantity(it.Quantity),
			p.tr(r.Money(it.UnitPrice.Decimal())),
			p.tr(r.Money(it.Amount())),
		}
		lines := 1
		for c, text := range cells {
			if n := len(p.SplitLines([]byte(text), itemWidths[c]-2)); n > lines {
				lines = n
			}
		}
		h := float64(lines)*lineH + 2
		if p.ensure(h) {
			r.itemHeader(p)
		}

		x, y := marginLeft, p.GetY()
		for c, text := range cells {
			p.Rect(x, y, itemWidths[c], h, "D")
			p.SetXY(x+1, y+1)
			p.MultiCell(itemWidths[c]-2, lineH, text, "", itemAligns[c], false)
			x += itemWidths[c]
		}
		p.SetXY(marginLeft, y+h)
	}
	p.Ln(4)
}

func (r *Renderer) totals(p *page, rec *invoice.Record) {
	t := rec.Totals()
	rows := [][2]string{
		{"Subtotal:", r.Money(t.Subtotal)},
		{fmt.Sprintf("Tax (%.0f%%):", float64(rec.TaxRate)), r.Money(t.Tax)},
		{"Discount:", r.Money(t.Discount)},
		{"Total:", r.Money(t.Total)},
	}
	p.ensure(float64(len(rows)) * 6)
	labelX := marginLeft + contentWidth - 60
	for i, row := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		p.SetFont("Helvetica", style, 10)
		p.SetX(labelX)
		p.CellFormat(30, 6, row[0], "", 0, "R", false, 0, "")
		p.CellFormat(30, 6, p.tr(row[1]), "", 1, "R", false, 0, "")
	}
	p.Ln(6)
}

func (r *Renderer) notes(p *page, notes string) {
	if notes == "" {
		return
	}
	p.ensure(14)
	p.SetFont("Helvetica", "B", 11)
	p.CellFormat(contentWidth, 7, "Terms and Conditions", "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.MultiCell(contentWidth, lineH, p.tr(notes), "", "L", false)
	p.Ln(6)
}

func (r *Renderer) signature(p *page, b *picture.Bitmap) {
	if b.Empty() {
		return
	}
	prepared := picture.Downscale(&picture.Bitmap{Image: picture.Trim(b.Image, picture.White), DPI: b.DPI}, signatureMaxPx)
	f := r.place(p, "signature", prepared, signatureBoxW, signatureBoxH)
	if f == nil {
		return
	}

	boxH := signatureHeading + f.HeightMM + 2*signaturePad
	p.ensure(boxH)
	top := p.GetY()
	p.SetLineWidth(0.3)
	p.Rect(marginLeft, top, signatureBoxW, boxH, "D")
	p.SetXY(marginLeft, top+1)
	p.SetFont("Helvetica", "B", 10)
	p.CellFormat(signatureBoxW, signatureHeading-1, "Authorized Signature", "", 0, "C", false, 0, "")

	x := marginLeft + (signatureBoxW-f.WidthMM)/2
	y := top + signatureHeading + signaturePad
	p.ImageOptions("signature", x, y, f.WidthMM, f.HeightMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	p.SetY(top + boxH)
}
