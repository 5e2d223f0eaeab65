package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"finai/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	rows, err := s.analytics.BudgetRows(r.Context(), owner(r))
	if err != nil {
		s.storeError(w, r, err, "budget rows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budget_rows": rows})
}

// handleUpsertBudget sets the monthly limit for one category, replacing
// any existing one.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string `json:"category"`
		Amount   int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}
	if body.Amount <= 0 {
		s.storeError(w, r, core.ErrInvalidAmount, "upsert budget")
		return
	}

	cat, err := s.store.CategoryBySlug(r.Context(), strings.TrimSpace(body.Category))
	if err != nil {
		s.storeError(w, r, err, "upsert budget")
		return
	}
	if err := s.store.UpsertBudgetLimit(r.Context(), owner(r), cat.ID, body.Amount); err != nil {
		s.storeError(w, r, err, "upsert budget")
		return
	}
	okJSON(w, nil)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "identifiant invalide")
		return
	}
	if err := s.store.DeleteBudgetLimit(r.Context(), owner(r), id); err != nil {
		s.storeError(w, r, err, "delete budget")
		return
	}
	okJSON(w, nil)
}
