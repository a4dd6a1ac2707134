// pkg/desk/desk_test.go

package desk

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicing-desk/pkg/invoice"
	"github.com/invoicing-desk/pkg/render"
	"github.com/invoicing-desk/pkg/store"
)

var fixedNow = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type recordingMirror struct {
	keys []string
	docs [][]byte
	err  error
}

func (m *recordingMirror) Name() string { return "recording" }

func (m *recordingMirror) Mirror(_ context.Context, key string, _ *invoice.Record, document []byte) error {
	m.keys = append(m.keys, key)
	m.docs = append(m.docs, document)
	return m.err
}

type ledgerMirror struct {
	recordingMirror
	removed []string
}

func (m *ledgerMirror) Remove(_ context.Context, key string) error {
	m.removed = append(m.removed, key)
	return nil
}

func newService(t *testing.T, opts ...Option) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(st, render.New(), nil, opts...), st
}

func widgetDraft(t *testing.T, s *Service) invoice.Draft {
	t.Helper()
	d := s.NewDraft()
	d.Record.CompanyName = "Acme"
	d.Record.BillTo.Name = "Bob"
	d.Record.TaxRate = 6
	d.Record.Discount = 1
	d, err := d.WithItem(invoice.Item{Description: "Widget", Quantity: 2, UnitPrice: 10})
	require.NoError(t, err)
	return d
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 60, 40))
	for y := 10; y < 20; y++ {
		for x := 5; x < 25; x++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestNewDraft_UsesNextNumber(t *testing.T) {
	s, st := newService(t)
	for _, name := range []string{"3.json", "07.json", "inv-12.json", "x.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), name), []byte("{}"), 0o644))
	}

	d := s.NewDraft()
	assert.Equal(t, "13", d.Record.InvoiceNumber)
	assert.Equal(t, "2024-07-01", d.Record.Date.String())
	assert.Equal(t, "2024-07-16", d.Record.DueDate.String())
}

func TestSave_RoundTripThroughReports(t *testing.T) {
	mirror := &recordingMirror{}
	s, _ := newService(t, WithMirror(mirror))
	d := widgetDraft(t, s)

	res, err := s.Save(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "1", res.Key)
	assert.FileExists(t, res.DocumentPath)
	assert.FileExists(t, res.MetadataPath)
	assert.Empty(t, res.Warnings)

	require.Equal(t, []string{"1"}, mirror.keys)
	assert.True(t, bytes.HasPrefix(mirror.docs[0], []byte("%PDF-")))
	onDisk, err := os.ReadFile(res.DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, onDisk, mirror.docs[0])

	reports, err := s.Reports()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "20.00", reports[0].Subtotal.StringFixed(2))
	assert.Equal(t, "1.20", reports[0].Tax.StringFixed(2))
	assert.Equal(t, "20.20", reports[0].Total.StringFixed(2))

	next, err := s.NextNumber()
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestSave_MirrorFailureIsWarning(t *testing.T) {
	s, _ := newService(t, WithMirror(&recordingMirror{err: errors.New("offline")}))

	res, err := s.Save(context.Background(), widgetDraft(t, s))
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "mirror recording failed")
}

func TestSave_FallbackKey(t *testing.T) {
	s, _ := newService(t)
	d := widgetDraft(t, s)
	d.Record.InvoiceNumber = "///"

	res, err := s.Save(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "inv-2024-07-01", res.Key)
}

func TestSave_ReportsWarnings(t *testing.T) {
	s, _ := newService(t)
	d := s.NewDraft()
	d.Record.Discount = 5

	res, err := s.Save(context.Background(), d)
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "invoice has no items")
	assert.Contains(t, res.Warnings, "discount exceeds subtotal plus tax, total is negative")
}

func TestLoadImage_TrimsAndLoadDraftRestoresLogo(t *testing.T) {
	s, _ := newService(t)
	logoPath := filepath.Join(t.TempDir(), "logo.png")
	writePNG(t, logoPath)

	logo, err := s.LoadImage(logoPath)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 10), logo.Image.Bounds().Size())

	d := widgetDraft(t, s).WithLogo(logo, logoPath).WithSignature(logo)
	res, err := s.Save(context.Background(), d)
	require.NoError(t, err)

	back, err := s.LoadDraft(res.Key)
	require.NoError(t, err)
	require.NotNil(t, back.Logo)
	assert.Equal(t, image.Pt(20, 10), back.Logo.Image.Bounds().Size())
	assert.Nil(t, back.Signature)
	assert.Len(t, back.Record.Items, 1)
}

func TestLoadDraft_MissingLogoIsNotFatal(t *testing.T) {
	s, _ := newService(t)
	d := widgetDraft(t, s)
	missing := "/does/not/exist.png"
	d.Record.LogoPath = &missing

	res, err := s.Save(context.Background(), d)
	require.NoError(t, err)
	back, err := s.LoadDraft(res.Key)
	require.NoError(t, err)
	assert.Nil(t, back.Logo)
}

func TestDeleteUndo(t *testing.T) {
	s, _ := newService(t)
	res, err := s.Save(context.Background(), widgetDraft(t, s))
	require.NoError(t, err)

	h, err := s.Delete(context.Background(), res.Key)
	require.NoError(t, err)
	keys, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	restored, err := s.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Count)
	keys, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{res.Key}, keys)

	_, err = s.Delete(context.Background(), res.Key)
	require.NoError(t, err)
	restored, err = s.Restore(context.Background(), h.Key, h.Document, h.Metadata)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Count)
}

func TestExportCSV(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Save(context.Background(), widgetDraft(t, s))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := s.ExportCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Customer,Invoice No,Date,Due Date,Contact,Tax %,Discount,Subtotal,Tax Amt,Total", lines[0])
	assert.Equal(t, "Bob,1,2024-07-01,2024-07-16,,6.00,1.00,20.00,1.20,20.20", lines[1])
}

func TestDeleteUndo_KeepsMirrorsInStep(t *testing.T) {
	ledger := &ledgerMirror{}
	archive := &recordingMirror{}
	s, _ := newService(t, WithMirror(ledger), WithMirror(archive))
	res, err := s.Save(context.Background(), widgetDraft(t, s))
	require.NoError(t, err)

	_, err = s.Delete(context.Background(), res.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ledger.removed)

	restored, err := s.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1"}, ledger.keys)
	assert.Equal(t, []string{"1", "1"}, archive.keys)
	assert.True(t, bytes.HasPrefix(ledger.docs[1], []byte("%PDF-")))
	assert.Equal(t, "1", restored.Key)
}
