package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finai/internal/core"
	"finai/internal/export"
	"finai/internal/storage"
)

const defaultListLimit = 100

type categoryJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if s.catCache != nil {
		if cached, found := s.catCache.Get("categories"); found {
			if cats, ok := cached.([]categoryJSON); ok {
				writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
				return
			}
		}
	}

	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.storeError(w, r, err, "list categories")
		return
	}

	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name, Slug: c.Slug, Icon: c.Icon, Color: c.Color})
	}
	if s.catCache != nil {
		s.catCache.SetWithTTL("categories", out, 1, categoryCacheTTL)
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// listFilter builds a TxFilter from query parameters. Malformed dates
// are dropped rather than rejected.
func listFilter(r *http.Request) storage.TxFilter {
	q := r.URL.Query()
	filter := storage.TxFilter{Limit: defaultListLimit}

	if v := strings.TrimSpace(q.Get("type")); v != "" && core.TxKind(v).Valid() {
		filter.Kind = core.TxKind(v)
	}
	filter.CategorySlug = strings.TrimSpace(q.Get("category"))
	if v := strings.TrimSpace(q.Get("date_from")); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = d
		}
	}
	if v := strings.TrimSpace(q.Get("date_to")); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = d
		}
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	return filter
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context(), owner(r), listFilter(r))
	if err != nil {
		s.storeError(w, r, err, "list transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txListJSON(txs)})
}

type transactionBody struct {
	Amount      int64  `json:"amount"`
	Kind        string `json:"type"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Notes       string `json:"notes"`
}

// apply copies the request body onto a transaction, resolving the
// category slug when one is given.
func (s *Server) apply(r *http.Request, body transactionBody, tx *core.Transaction) error {
	tx.Amount = core.Money{Units: body.Amount}
	tx.Kind = core.TxKind(body.Kind)
	tx.Description = strings.TrimSpace(body.Description)
	tx.Notes = strings.TrimSpace(body.Notes)

	tx.CategoryID = nil
	if slug := strings.TrimSpace(body.Category); slug != "" {
		cat, err := s.store.CategoryBySlug(r.Context(), slug)
		if err != nil {
			return err
		}
		tx.CategoryID = &cat.ID
	}

	date := time.Now().UTC()
	if body.Date != "" {
		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return core.ErrInvalidDate
		}
		date = d
	}
	tx.Date = core.Date{Time: date}
	return nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}

	tx := &core.Transaction{OwnerID: owner(r), Source: core.SourceManual}
	if err := s.apply(r, body, tx); err != nil {
		s.storeError(w, r, err, "create transaction")
		return
	}
	if err := s.txs.Create(r.Context(), tx); err != nil {
		s.storeError(w, r, err, "create transaction")
		return
	}
	okJSON(w, map[string]any{"id": tx.ID})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "identifiant invalide")
		return
	}
	var body transactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}

	tx, err := s.store.GetTransaction(r.Context(), owner(r), id)
	if err != nil {
		s.storeError(w, r, err, "load transaction")
		return
	}
	if err := s.apply(r, body, &tx); err != nil {
		s.storeError(w, r, err, "update transaction")
		return
	}
	if err := s.store.UpdateTransaction(r.Context(), &tx); err != nil {
		s.storeError(w, r, err, "update transaction")
		return
	}
	okJSON(w, nil)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "identifiant invalide")
		return
	}
	if err := s.store.DeleteTransaction(r.Context(), owner(r), id); err != nil {
		s.storeError(w, r, err, "delete transaction")
		return
	}
	okJSON(w, nil)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter := listFilter(r)
	filter.Limit = 0 // exports are unbounded
	txs, err := s.store.ListTransactions(r.Context(), owner(r), filter)
	if err != nil {
		s.storeError(w, r, err, "export transactions")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.CSVFilename+`"`)
	if err := export.WriteCSV(w, txs); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

// storeError maps domain errors to HTTP statuses and logs the rest.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		errorJSON(w, http.StatusNotFound, "introuvable")
	case errors.Is(err, core.ErrDuplicate):
		errorJSON(w, http.StatusConflict, "doublon")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidSource),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyLabel):
		errorJSON(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "op", op, "error", err)
		errorJSON(w, http.StatusInternalServerError, "erreur interne")
	}
}
