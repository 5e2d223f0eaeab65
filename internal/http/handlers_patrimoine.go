package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"finai/internal/core"
)

func patrimoineJSON(e core.PatrimoineEntry) map[string]any {
	return map[string]any{
		"id":       e.ID,
		"ptype":    string(e.Kind),
		"category": e.Category,
		"label":    e.Label,
		"valeur":   e.Value.Units,
		"date":     e.Date.ISO(),
		"notes":    e.Notes,
	}
}

// handlePatrimoine returns the net-worth summary with entries and
// per-category breakdowns, split by asset and liability.
func (s *Server) handlePatrimoine(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)

	summary, err := s.analytics.PatrimoineSummary(r.Context(), ownerID)
	if err != nil {
		s.storeError(w, r, err, "patrimoine summary")
		return
	}
	entries, err := s.store.ListPatrimoineEntries(r.Context(), ownerID)
	if err != nil {
		s.storeError(w, r, err, "list patrimoine")
		return
	}
	catAssets, err := s.store.PatrimoineByCategory(r.Context(), ownerID, core.PatrimoineAsset)
	if err != nil {
		s.storeError(w, r, err, "patrimoine by category")
		return
	}
	catLiabilities, err := s.store.PatrimoineByCategory(r.Context(), ownerID, core.PatrimoineLiability)
	if err != nil {
		s.storeError(w, r, err, "patrimoine by category")
		return
	}

	assets := make([]map[string]any, 0)
	liabilities := make([]map[string]any, 0)
	for _, e := range entries {
		if e.Kind == core.PatrimoineAsset {
			assets = append(assets, patrimoineJSON(e))
		} else {
			liabilities = append(liabilities, patrimoineJSON(e))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":     summary,
		"actifs":      assets,
		"passifs":     liabilities,
		"cat_actifs":  catAssets,
		"cat_passifs": catLiabilities,
	})
}

func (s *Server) handleAddPatrimoine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind     string `json:"ptype"`
		Category string `json:"category"`
		Label    string `json:"label"`
		Value    int64  `json:"valeur"`
		Date     string `json:"date"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}

	category := strings.TrimSpace(body.Category)
	if category == "" {
		category = "autre"
	}
	date := time.Now().UTC()
	if body.Date != "" {
		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			s.storeError(w, r, core.ErrInvalidDate, "add patrimoine")
			return
		}
		date = d
	}

	entry := &core.PatrimoineEntry{
		OwnerID:  owner(r),
		Kind:     core.PatrimoineKind(body.Kind),
		Category: category,
		Label:    strings.TrimSpace(body.Label),
		Value:    core.Money{Units: body.Value},
		Date:     core.Date{Time: date},
		Notes:    strings.TrimSpace(body.Notes),
	}
	if err := s.store.CreatePatrimoineEntry(r.Context(), entry); err != nil {
		s.storeError(w, r, err, "add patrimoine")
		return
	}
	okJSON(w, map[string]any{"id": entry.ID})
}

func (s *Server) handleDeletePatrimoine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "identifiant invalide")
		return
	}
	if err := s.store.DeletePatrimoineEntry(r.Context(), owner(r), id); err != nil {
		s.storeError(w, r, err, "delete patrimoine")
		return
	}
	okJSON(w, nil)
}
