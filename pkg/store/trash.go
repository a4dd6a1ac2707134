// pkg/store/trash.go

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoicing-desk/pkg/invoice"
)

var (
	ErrNothingToUndo = errors.New("store: nothing to undo")
	// ErrPartialDelete means only the document reached the trash.
	ErrPartialDelete = errors.New("store: metadata could not be moved to trash")
)

// Deleted identifies the files one soft delete moved into the trash.
// Document or Metadata is empty when that file was not moved.
type Deleted struct {
	ID       uuid.UUID `json:"id"`
	Key      string    `json:"key"`
	Document string    `json:"document,omitempty"`
	Metadata string    `json:"metadata,omitempty"`
	At       time.Time `json:"at"`
}

// Restored reports the outcome of an undo.
type Restored struct {
	Key      string `json:"key"`
	Document string `json:"document,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	Count    int    `json:"count"`
	Expected int    `json:"expected"`
}

// Partial reports whether some but not all files came back.
func (r Restored) Partial() bool { return r.Count > 0 && r.Count < r.Expected }

func (s *Store) trashDir() string { return filepath.Join(s.dir, TrashDir) }

// SoftDelete moves the document and metadata for key into the trash and
// makes the returned handle the one that UndoLast restores. Previous
// handles are forgotten.
func (s *Store) SoftDelete(key string) (*Deleted, error) {
	key = invoice.SanitizeKey(key)
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := filepath.Join(s.dir, key+DocumentExt)
	meta := filepath.Join(s.dir, key+MetadataExt)
	hasDoc, hasMeta := exists(doc), exists(meta)
	if !hasDoc && !hasMeta {
		return nil, ErrNotFound
	}

	var exts []string
	if hasDoc {
		exts = append(exts, DocumentExt)
	}
	if hasMeta {
		exts = append(exts, MetadataExt)
	}
	stem := freeStem(s.trashDir(), key, "_", exts...)

	h := &Deleted{ID: uuid.New(), Key: key, At: time.Now().UTC()}
	if hasDoc {
		if err := os.Rename(doc, filepath.Join(s.trashDir(), stem+DocumentExt)); err != nil {
			return nil, fmt.Errorf("store: trash %s: %w", key, err)
		}
		h.Document = stem + DocumentExt
	}
	var err error
	if hasMeta {
		if merr := os.Rename(meta, filepath.Join(s.trashDir(), stem+MetadataExt)); merr != nil {
			s.logger.Warn("metadata left behind on delete", zap.String("key", key), zap.Error(merr))
			err = fmt.Errorf("%w: %s: %v", ErrPartialDelete, key, merr)
		} else {
			h.Metadata = stem + MetadataExt
		}
	}
	if h.Document == "" && h.Metadata == "" {
		return nil, err
	}
	s.lastDeleted = h
	return h, err
}

// LastDeleted returns the handle UndoLast would restore, or nil.
func (s *Store) LastDeleted() *Deleted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDeleted
}

// Handle rebuilds a delete handle from trash file names, for restoring a
// deletion made by another process.
func (s *Store) Handle(key, document, metadata string) *Deleted {
	base := func(name string) string {
		if name == "" {
			return ""
		}
		return filepath.Base(name)
	}
	return &Deleted{
		ID:       uuid.New(),
		Key:      invoice.SanitizeKey(key),
		Document: base(document),
		Metadata: base(metadata),
	}
}

// UndoLast restores the most recent soft delete.
func (s *Store) UndoLast() (Restored, error) {
	h := s.LastDeleted()
	if h == nil {
		return Restored{}, ErrNothingToUndo
	}
	return s.Undo(h)
}

// Undo moves the files named by h back into the collection under their
// original key, or <key>_restored_N when either name is taken. Both files
// always come back under the same stem. Each file is restored
// independently; the result counts how many made it.
func (s *Store) Undo(h *Deleted) (Restored, error) {
	if h == nil || h.Key == "" || (h.Document == "" && h.Metadata == "") {
		return Restored{}, ErrNothingToUndo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exts []string
	if h.Document != "" {
		exts = append(exts, DocumentExt)
	}
	if h.Metadata != "" {
		exts = append(exts, MetadataExt)
	}
	stem := freeStem(s.dir, h.Key, "_restored_", exts...)

	res := Restored{Key: stem}
	var errs []error
	restore := func(name, ext string) string {
		if name == "" {
			return ""
		}
		res.Expected++
		if err := os.Rename(filepath.Join(s.trashDir(), filepath.Base(name)), filepath.Join(s.dir, stem+ext)); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", name, err))
			return ""
		}
		res.Count++
		return stem + ext
	}
	res.Document = restore(h.Document, DocumentExt)
	res.Metadata = restore(h.Metadata, MetadataExt)

	if res.Count == res.Expected && s.lastDeleted != nil && s.lastDeleted.ID == h.ID {
		s.lastDeleted = nil
	}
	if len(errs) > 0 {
		s.logger.Warn("undo incomplete", zap.String("key", h.Key), zap.Int("restored", res.Count), zap.Int("expected", res.Expected))
		return res, fmt.Errorf("store: %w", errors.Join(errs...))
	}
	return res, nil
}

// freeStem returns stem, or stem<sep>N with the first N, such that no
// stem+ext in dir exists for any of exts.
func freeStem(dir, stem, sep string, exts ...string) string {
	candidate := stem
	for n := 1; ; n++ {
		taken := false
		for _, ext := range exts {
			if exists(filepath.Join(dir, candidate+ext)) {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s%s%d", stem, sep, n)
	}
}
