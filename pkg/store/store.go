// pkg/store/store.go

// Package store keeps invoice documents and their metadata sidecars in a
// flat directory, with a .trash folder for soft deletes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/invoicing-desk/pkg/invoice"
)

const (
	DocumentExt = ".pdf"
	MetadataExt = ".json"
	TrashDir    = ".trash"
)

var (
	ErrInvalidKey = errors.New("store: invoice key is empty after sanitizing")
	ErrNotFound   = errors.New("store: invoice not found")
	// ErrPartialSave means the document is on disk but its metadata is not.
	ErrPartialSave = errors.New("store: document saved but metadata was not")
)

// Store is a directory of <key>.pdf / <key>.json pairs.
type Store struct {
	dir    string
	logger *zap.Logger

	mu          sync.Mutex
	lastDeleted *Deleted
}

// Open prepares dir (and its trash folder) for use.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(dir, TrashDir), 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir is the collection root.
func (s *Store) Dir() string { return s.dir }

// DocumentPath is where the document for key lives.
func (s *Store) DocumentPath(key string) string {
	return filepath.Join(s.dir, invoice.SanitizeKey(key)+DocumentExt)
}

// MetadataPath is where the metadata for key lives.
func (s *Store) MetadataPath(key string) string {
	return filepath.Join(s.dir, invoice.SanitizeKey(key)+MetadataExt)
}

// List returns the keys of all stored documents, newest-looking first
// (descending by name). Extensions match exactly, so every listed key
// resolves through DocumentPath.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stems(DocumentExt)
}

// MetadataKeys returns the keys of all metadata files, descending by name.
func (s *Store) MetadataKeys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stems(MetadataExt)
}

func (s *Store) stems(ext string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ext {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// Save writes the document produced by render, then the metadata record,
// both under the sanitized key. An existing pair is overwritten. If the
// document cannot be written the metadata is left untouched; if the
// metadata fails afterwards the error wraps ErrPartialSave.
func (s *Store) Save(key string, render func(io.Writer) error, rec *invoice.Record) (string, error) {
	key = invoice.SanitizeKey(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return key, fmt.Errorf("store: encode metadata %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(filepath.Join(s.dir, key+DocumentExt), render); err != nil {
		return key, fmt.Errorf("store: write document %s: %w", key, err)
	}
	err = writeFile(filepath.Join(s.dir, key+MetadataExt), func(w io.Writer) error {
		_, err := w.Write(meta)
		return err
	})
	if err != nil {
		s.logger.Warn("metadata not saved", zap.String("key", key), zap.Error(err))
		return key, fmt.Errorf("%w: %s: %v", ErrPartialSave, key, err)
	}
	return key, nil
}

// writeFile fills a temp file next to path and renames it into place, so a
// reader never sees a half-written file.
func writeFile(path string, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads the metadata record stored under key.
func (s *Store) Load(key string) (*invoice.Record, error) {
	data, err := os.ReadFile(s.MetadataPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	var rec invoice.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return &rec, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
