// pkg/api/api.go

// Package api exposes the invoice desk over a local HTTP JSON interface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/invoicing-desk/pkg/desk"
	"github.com/invoicing-desk/pkg/invoice"
	"github.com/invoicing-desk/pkg/picture"
	"github.com/invoicing-desk/pkg/store"
)

// maxUploadBytes bounds a multipart create request (record plus images).
const maxUploadBytes = 10 << 20

// Server holds the handlers' dependencies.
type Server struct {
	desk   *desk.Service
	logger *zap.Logger
}

// New creates a Server for svc.
func New(svc *desk.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{desk: svc, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/next-number", s.nextNumberHandler).Methods(http.MethodGet)
	api.HandleFunc("/invoices", s.listHandler).Methods(http.MethodGet)
	api.HandleFunc("/invoices", s.createHandler).Methods(http.MethodPost)
	api.HandleFunc("/invoices/{key}", s.getHandler).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{key}/document", s.documentHandler).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{key}", s.deleteHandler).Methods(http.MethodDelete)
	api.HandleFunc("/undo", s.undoHandler).Methods(http.MethodPost)
	api.HandleFunc("/reports", s.reportsHandler).Methods(http.MethodGet)
	api.HandleFunc("/reports.csv", s.reportsCSVHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, http.StatusNotFound, "not found")
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("took", time.Since(start)))
	})
}

// writeJSON sends data as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	js, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	js = append(js, '\n')
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(js); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

// fail maps err onto a status code and reports it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNothingToUndo):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}

func (s *Server) nextNumberHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.desk.NextNumber()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"next": n})
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	keys, err := s.desk.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"invoices": keys})
}

// createHandler accepts either a JSON record body or a multipart form with
// an "invoice" field (value or file) and optional "logo" and "signature"
// image files. Fields missing from the record keep the values of a fresh
// draft.
func (s *Server) createHandler(w http.ResponseWriter, r *http.Request) {
	d, status, err := s.readDraft(w, r)
	if err != nil {
		s.errorResponse(w, status, err.Error())
		return
	}

	res, err := s.desk.Save(r.Context(), d)
	if errors.Is(err, store.ErrPartialSave) {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "result": res})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) readDraft(w http.ResponseWriter, r *http.Request) (invoice.Draft, int, error) {
	d := s.desk.NewDraft()
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return d, http.StatusBadRequest, fmt.Errorf("could not parse multipart form: %w", err)
		}
		raw, err := formPart(r, "invoice")
		if err != nil || raw == nil {
			return d, http.StatusBadRequest, errors.New("missing invoice field")
		}
		if err := json.Unmarshal(raw, &d.Record); err != nil {
			return d, http.StatusBadRequest, fmt.Errorf("invalid invoice: %w", err)
		}
		if d.Logo, err = s.formImage(r, "logo"); err != nil {
			return d, http.StatusBadRequest, err
		}
		if d.Signature, err = s.formImage(r, "signature"); err != nil {
			return d, http.StatusBadRequest, err
		}
	} else {
		body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := json.NewDecoder(body).Decode(&d.Record); err != nil {
			return d, http.StatusBadRequest, fmt.Errorf("invalid invoice: %w", err)
		}
	}

	if d.Logo == nil && d.Record.LogoPath != nil && *d.Record.LogoPath != "" {
		logo, err := s.desk.LoadImage(*d.Record.LogoPath)
		if err != nil {
			s.logger.Warn("logo path could not be loaded", zap.String("path", *d.Record.LogoPath), zap.Error(err))
		} else {
			d.Logo = logo
		}
	}
	return d, http.StatusOK, nil
}

// formPart returns a form value or the contents of an uploaded file named
// field, or nil when neither is present.
func formPart(r *http.Request, field string) ([]byte, error) {
	if vals := r.MultipartForm.Value[field]; len(vals) > 0 {
		return []byte(vals[0]), nil
	}
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (s *Server) formImage(r *http.Request, field string) (*picture.Bitmap, error) {
	data, err := formPart(r, field)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	b, err := s.desk.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return b, nil
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.desk.LoadDraft(mux.Vars(r)["key"])
	if err != nil {
		s.fail(w, err)
		return
	}
	t := d.Record.Totals()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"invoice": d.Record,
		"totals": map[string]string{
			"subtotal": t.Subtotal.StringFixed(2),
			"tax":      t.Tax.StringFixed(2),
			"discount": t.Discount.StringFixed(2),
			"total":    t.Total.StringFixed(2),
		},
		"warnings": d.Record.Warnings(),
	})
}

func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	key := invoice.SanitizeKey(mux.Vars(r)["key"])
	if key == "" {
		s.fail(w, store.ErrInvalidKey)
		return
	}
	f, err := os.Open(s.desk.DocumentPath(key))
	if errors.Is(err, os.ErrNotExist) {
		s.fail(w, store.ErrNotFound)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", key+store.DocumentExt))
	http.ServeContent(w, r, key+store.DocumentExt, info.ModTime(), f)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	h, err := s.desk.Delete(r.Context(), mux.Vars(r)["key"])
	if h != nil && errors.Is(err, store.ErrPartialDelete) {
		s.writeJSON(w, http.StatusOK, map[string]any{"deleted": h, "warning": err.Error()})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": h})
}

func (s *Server) undoHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.desk.Undo(r.Context())
	if err != nil && res.Count > 0 {
		s.writeJSON(w, http.StatusOK, map[string]any{"restored": res, "warning": err.Error()})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"restored": res})
}

func (s *Server) reportsHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.desk.Reports()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reports": rows})
}

func (s *Server) reportsCSVHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="invoices_report.csv"`)
	if _, err := s.desk.ExportCSV(w); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}
