// pkg/render/render_test.go

package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicing-desk/pkg/invoice"
	"github.com/invoicing-desk/pkg/picture"
)

func sampleDraft(t *testing.T, items int) invoice.Draft {
	t.Helper()
	d := invoice.NewDraft(7, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	d.Record.CompanyName = "Kedai Runcit Café"
	d.Record.CompanyAddress = "Kedai Runcit Café\n12 Jalan Besar\nKuala Lumpur"
	d.Record.BillTo = invoice.BillTo{Name: "Siti", Contact: "siti@example.com"}
	d.Record.TaxRate = 6
	d.Record.Discount = 1
	d.Record.Notes = "Payment due within 15 days."
	for i := 0; i < items; i++ {
		var err error
		d, err = d.WithItem(invoice.Item{
			Description: fmt.Sprintf("Item %d with a description long enough to wrap inside the description column of the table", i+1),
			Quantity:    invoice.Number(i%3) + 0.5,
			UnitPrice:   12.5,
		})
		require.NoError(t, err)
	}
	return d
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r.NumPage()
}

func documentText(t *testing.T, data []byte) string {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		require.NoError(t, err)
		sb.WriteString(text)
	}
	return sb.String()
}

// assertInOrder checks that each part occurs in text after the previous one.
func assertInOrder(t *testing.T, text string, parts ...string) {
	t.Helper()
	rest := text
	for _, part := range parts {
		i := strings.Index(rest, part)
		if !assert.GreaterOrEqual(t, i, 0, "%q missing or out of order", part) {
			return
		}
		rest = rest[i+len(part):]
	}
}

func logoImage() *picture.Bitmap {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	for y := 20; y < 180; y++ {
		for x := 20; x < 380; x++ {
			img.Set(x, y, color.NRGBA{R: 180, G: 30, B: 30, A: 255})
		}
	}
	return &picture.Bitmap{Image: img, DPI: 150}
}

func signatureImage() *picture.Bitmap {
	img := image.NewNRGBA(image.Rect(0, 0, 1200, 300))
	for x := 100; x < 1100; x++ {
		img.Set(x, 150+(x%40)-20, color.Black)
	}
	return &picture.Bitmap{Image: img}
}

func TestRender_SinglePage(t *testing.T) {
	var buf bytes.Buffer
	err := New().Render(&buf, sampleDraft(t, 3))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, 1, pageCount(t, buf.Bytes()))
}

func TestRender_ContentOrder(t *testing.T) {
	d := invoice.NewDraft(7, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	d.Record.CompanyName = "Acme Trading"
	d.Record.CompanyAddress = "12 Jalan Besar"
	d.Record.BillTo = invoice.BillTo{Name: "Siti", Contact: "siti@example.com"}
	d.Record.TaxRate = 6
	d.Record.Discount = 1
	d.Record.Notes = "Pay by transfer."
	d, err := d.WithItem(invoice.Item{Description: "Widget", Quantity: 2, UnitPrice: 10})
	require.NoError(t, err)
	d, err = d.WithItem(invoice.Item{Description: "Gadget", Quantity: 1.5, UnitPrice: 4})
	require.NoError(t, err)
	d = d.WithLogo(logoImage(), "").WithSignature(signatureImage())

	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, d))
	text := documentText(t, buf.Bytes())

	assertInOrder(t, text,
		"Acme Trading", "12 Jalan Besar",
		"Invoice No:", "7", "Date:", "2024-06-01",
		"Bill To:", "Siti", "Due Date:", "2024-06-16",
		"Contact:", "siti@example.com",
		"Description", "Amount",
		"Widget", "2", "RM 10.00", "RM 20.00",
		"Gadget", "1.5", "RM 4.00", "RM 6.00",
		"Subtotal:", "RM 26.00",
		"Tax (6%):", "RM 1.56",
		"Discount:", "RM 1.00",
		"Total:", "RM 26.56",
		"Terms and Conditions", "Pay by transfer.",
		"Authorized Signature",
	)
}

func TestRender_PaginatesLongTables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, sampleDraft(t, 80)))

	assert.Greater(t, pageCount(t, buf.Bytes()), 1)
}

func TestRender_WithImages(t *testing.T) {
	d := sampleDraft(t, 2).WithLogo(logoImage(), "").WithSignature(signatureImage())

	var plain, withImages bytes.Buffer
	require.NoError(t, New().Render(&plain, sampleDraft(t, 2)))
	require.NoError(t, New().Render(&withImages, d))

	assert.Greater(t, withImages.Len(), plain.Len())
	assert.GreaterOrEqual(t, pageCount(t, withImages.Bytes()), 1)
}

func TestRender_EmptyImagesAreSkipped(t *testing.T) {
	empty := &picture.Bitmap{Image: image.NewNRGBA(image.Rect(0, 0, 0, 0))}
	d := sampleDraft(t, 1).WithLogo(empty, "").WithSignature(empty)

	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, d))
	assert.Equal(t, 1, pageCount(t, buf.Bytes()))
}

func TestRender_NoItems(t *testing.T) {
	d := invoice.NewDraft(1, time.Now())

	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, d))
	assert.Equal(t, 1, pageCount(t, buf.Bytes()))
}

func TestMoney(t *testing.T) {
	r := New()
	assert.Equal(t, "RM 1,234.50", r.Money(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "RM 0.00", r.Money(decimal.Zero))
	assert.Equal(t, "RM 20.20", r.Money(decimal.RequireFromString("20.2")))

	usd := New(WithCurrency("$"))
	assert.Equal(t, "$ 1,000,000.00", usd.Money(decimal.NewFromInt(1000000)))
}
