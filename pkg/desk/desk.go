// pkg/desk/desk.go

// Package desk is the invoice workflow behind the CLI and HTTP surfaces:
// drafting, saving, listing, reporting and soft deletion.
package desk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/invoicing-desk/pkg/invoice"
	"github.com/invoicing-desk/pkg/picture"
	"github.com/invoicing-desk/pkg/render"
	"github.com/invoicing-desk/pkg/store"
)

// Mirror receives a copy of every saved invoice.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, key string, rec *invoice.Record, document []byte) error
}

// Remover is implemented by mirrors that drop an invoice when it is
// deleted. Mirrors without it keep their copy.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Service ties the store, renderer and mirrors together.
type Service struct {
	store    *store.Store
	renderer *render.Renderer
	mirrors  []Mirror
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMirror adds a mirror that is fed after each successful save.
func WithMirror(m Mirror) Option {
	return func(s *Service) {
		s.mirrors = append(s.mirrors, m)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(st *store.Store, r *render.Renderer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    st,
		renderer: r,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveResult describes a saved invoice.
type SaveResult struct {
	Key          string   `json:"key"`
	DocumentPath string   `json:"document_path"`
	MetadataPath string   `json:"metadata_path"`
	Warnings     []string `json:"warnings,omitempty"`
}

// NextNumber suggests the next invoice number from the stored metadata.
func (s *Service) NextNumber() (int, error) {
	keys, err := s.store.MetadataKeys()
	if err != nil {
		return 0, err
	}
	return invoice.NextNumber(keys), nil
}

// NewDraft starts an invoice with the suggested number. If the store
// cannot be read the numbering starts at 1.
func (s *Service) NewDraft() invoice.Draft {
	n, err := s.NextNumber()
	if err != nil {
		s.logger.Warn("could not scan invoices for numbering", zap.Error(err))
		n = 1
	}
	return invoice.NewDraft(n, s.now())
}

// LoadImage reads a logo or signature and trims its white margins.
func (s *Service) LoadImage(path string) (*picture.Bitmap, error) {
	b, err := picture.Load(path)
	if err != nil {
		return nil, err
	}
	return s.prepare(b), nil
}

// DecodeImage is LoadImage for in-memory data.
func (s *Service) DecodeImage(data []byte) (*picture.Bitmap, error) {
	b, err := picture.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.prepare(b), nil
}

func (s *Service) prepare(b *picture.Bitmap) *picture.Bitmap {
	return &picture.Bitmap{Image: picture.Trim(b.Image, picture.White), DPI: b.DPI}
}

// Key is the storage key a draft will be saved under. Numbers that
// sanitize to nothing fall back to inv-<issue date>.
func (s *Service) Key(d invoice.Draft) string {
	if key := invoice.SanitizeKey(d.Record.InvoiceNumber); key != "" {
		return key
	}
	date := d.Record.Date
	if date.IsZero() {
		date = invoice.NewDate(s.now())
	}
	return "inv-" + date.String()
}

// Save renders and stores d. Mirrors run afterwards; their failures are
// logged and reported as warnings only. A document written without its
// metadata returns the result together with an error wrapping
// store.ErrPartialSave.
func (s *Service) Save(ctx context.Context, d invoice.Draft) (*SaveResult, error) {
	key := s.Key(d)
	meta := d.Metadata()
	warnings := meta.Warnings()
	for _, w := range warnings {
		s.logger.Info("invoice warning", zap.String("key", key), zap.String("warning", w))
	}

	var rendered bytes.Buffer
	key, err := s.store.Save(key, func(w io.Writer) error {
		return s.renderer.Render(io.MultiWriter(w, &rendered), d)
	}, &meta)
	res := &SaveResult{
		Key:          key,
		DocumentPath: s.store.DocumentPath(key),
		MetadataPath: s.store.MetadataPath(key),
		Warnings:     warnings,
	}
	if errors.Is(err, store.ErrPartialSave) {
		res.Warnings = append(res.Warnings, "document saved but metadata failed")
		return res, err
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice saved", zap.String("key", key), zap.Int("items", len(meta.Items)))

	for _, m := range s.mirrors {
		if err := m.Mirror(ctx, key, &meta, rendered.Bytes()); err != nil {
			s.logger.Warn("mirror failed", zap.String("mirror", m.Name()), zap.String("key", key), zap.Error(err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("mirror %s failed", m.Name()))
		}
	}
	return res, nil
}

// LoadDraft reopens a saved invoice. The logo is reloaded when its path
// still resolves; signatures only ever lived in memory and are lost.
func (s *Service) LoadDraft(key string) (invoice.Draft, error) {
	rec, err := s.store.Load(key)
	if err != nil {
		return invoice.Draft{}, err
	}
	d := invoice.Draft{Record: *rec}
	if rec.LogoPath != nil && *rec.LogoPath != "" {
		logo, err := s.LoadImage(*rec.LogoPath)
		if err != nil {
			s.logger.Warn("saved logo could not be loaded", zap.String("path", *rec.LogoPath), zap.Error(err))
		} else {
			d.Logo = logo
		}
	}
	d.Record.SignatureInPDFOnly = false
	return d, nil
}

// List returns the stored document keys, newest-looking first.
func (s *Service) List() ([]string, error) {
	return s.store.List()
}

// Reports summarizes every stored metadata file.
func (s *Service) Reports() ([]store.Summary, error) {
	return s.store.ListReports()
}

// ExportCSV writes the reports table as CSV and returns the row count.
func (s *Service) ExportCSV(w io.Writer) (int, error) {
	rows, err := s.store.ListReports()
	if err != nil {
		return 0, err
	}
	if err := store.WriteCSV(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Delete soft-deletes key. The handle becomes the undo target. Mirrors
// that implement Remover forget the invoice.
func (s *Service) Delete(ctx context.Context, key string) (*store.Deleted, error) {
	h, err := s.store.SoftDelete(key)
	if h == nil {
		return nil, err
	}
	s.logger.Info("invoice moved to trash", zap.String("key", h.Key), zap.String("handle", h.ID.String()))
	if h.Metadata != "" {
		for _, m := range s.mirrors {
			r, ok := m.(Remover)
			if !ok {
				continue
			}
			if rerr := r.Remove(ctx, h.Key); rerr != nil {
				s.logger.Warn("mirror removal failed", zap.String("mirror", m.Name()), zap.String("key", h.Key), zap.Error(rerr))
			}
		}
	}
	return h, err
}

// Undo restores the most recent delete.
func (s *Service) Undo(ctx context.Context) (store.Restored, error) {
	res, err := s.store.UndoLast()
	s.restored(ctx, res)
	return res, err
}

// Restore brings back files from the trash by name.
func (s *Service) Restore(ctx context.Context, key, document, metadata string) (store.Restored, error) {
	res, err := s.store.Undo(s.store.Handle(key, document, metadata))
	s.restored(ctx, res)
	return res, err
}

// restored feeds a restored pair back to the mirrors.
func (s *Service) restored(ctx context.Context, res store.Restored) {
	if res.Count == 0 {
		return
	}
	s.logger.Info("invoice restored", zap.String("key", res.Key), zap.Int("files", res.Count))
	if res.Document == "" || res.Metadata == "" || len(s.mirrors) == 0 {
		return
	}
	rec, err := s.store.Load(res.Key)
	if err != nil {
		s.logger.Warn("restored invoice not mirrored", zap.String("key", res.Key), zap.Error(err))
		return
	}
	document, err := os.ReadFile(s.store.DocumentPath(res.Key))
	if err != nil {
		s.logger.Warn("restored invoice not mirrored", zap.String("key", res.Key), zap.Error(err))
		return
	}
	for _, m := range s.mirrors {
		if err := m.Mirror(ctx, res.Key, rec, document); err != nil {
			s.logger.Warn("mirror failed", zap.String("mirror", m.Name()), zap.String("key", res.Key), zap.Error(err))
		}
	}
}

// DocumentPath is the PDF location for key.
func (s *Service) DocumentPath(key string) string {
	return s.store.DocumentPath(key)
}
