package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"finai/internal/sms"
)

// handleParseSMS runs the regex parser over a pasted Mobile Money SMS
// and returns the extracted candidate for confirmation.
func (s *Server) handleParseSMS(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SMS string `json:"sms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.SMS) == "" {
		errorJSON(w, http.StatusBadRequest, "SMS vide")
		return
	}

	candidate := sms.Parse(body.SMS, time.Now().UTC())
	if candidate == nil {
		errorJSON(w, http.StatusBadRequest, "SMS non reconnu")
		return
	}
	okJSON(w, map[string]any{"data": candidate})
}

// handleAddFromSMS saves a confirmed candidate as a ledger entry.
func (s *Server) handleAddFromSMS(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount      int64  `json:"amount"`
		Kind        string `json:"type"`
		Description string `json:"description"`
		Network     string `json:"network"`
		Date        string `json:"date"`
		RawSMS      string `json:"raw_sms"`
		Source      string `json:"source"`
		Category    string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}
	if body.Source == "" {
		body.Source = "sms"
	}

	candidate := &sms.Candidate{
		Amount:      body.Amount,
		Kind:        body.Kind,
		Description: strings.TrimSpace(body.Description),
		Network:     body.Network,
		Date:        body.Date,
		RawSMS:      strings.TrimSpace(body.RawSMS),
		Source:      body.Source,
	}
	tx, err := s.txs.CreateFromCandidate(r.Context(), owner(r), candidate, strings.TrimSpace(body.Category))
	if err != nil {
		s.storeError(w, r, err, "add from sms")
		return
	}
	okJSON(w, map[string]any{"id": tx.ID})
}
