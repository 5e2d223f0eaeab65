package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"finai/internal/advisor"
	"finai/internal/core"
)

const advisorHistoryLimit = 10

func chatJSON(msgs []core.ChatMessage) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"role":       m.Role,
			"content":    m.Content,
			"created_at": m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}

// handleAdvisorHome returns the weekly report, the 30-day outlook and
// the recent conversation in one payload.
func (s *Server) handleAdvisorHome(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)

	var (
		report  string
		preds   advisor.Predictions
		history []core.ChatMessage
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		report, err = s.advisor.WeeklyReport(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		preds, err = s.advisor.Predict(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.advisor.History(ctx, ownerID, advisorHistoryLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.storeError(w, r, err, "advisor home")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report":      report,
		"predictions": preds,
		"history":     chatJSON(history),
		"has_api_key": s.advisor.Enabled(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}

	answer, err := s.advisor.Chat(r.Context(), owner(r), body.Message)
	if err != nil {
		if errors.Is(err, advisor.ErrEmptyQuestion) {
			errorJSON(w, http.StatusBadRequest, "question vide")
			return
		}
		s.storeError(w, r, err, "advisor chat")
		return
	}
	okJSON(w, map[string]any{"answer": answer})
}

// handleParseSMSAI extracts a candidate with the model when available,
// regex otherwise.
func (s *Server) handleParseSMSAI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SMS string `json:"sms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.SMS) == "" {
		errorJSON(w, http.StatusBadRequest, "SMS vide")
		return
	}

	candidate := s.advisor.ParseSMS(r.Context(), owner(r), body.SMS)
	if candidate == nil {
		errorJSON(w, http.StatusBadRequest, "SMS non reconnu")
		return
	}
	okJSON(w, map[string]any{"data": candidate})
}

func (s *Server) handleRefreshReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.advisor.RefreshReport(r.Context(), owner(r))
	if err != nil {
		s.storeError(w, r, err, "refresh report")
		return
	}
	okJSON(w, map[string]any{"report": report})
}
