package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// handlePushSubscribe stores a browser push subscription for the owner.
func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subscription struct {
			Endpoint string `json:"endpoint"`
			Keys     struct {
				P256dh string `json:"p256dh"`
				Auth   string `json:"auth"`
			} `json:"keys"`
		} `json:"subscription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}
	endpoint := strings.TrimSpace(body.Subscription.Endpoint)
	if endpoint == "" {
		errorJSON(w, http.StatusBadRequest, "endpoint manquant")
		return
	}

	ua := r.Header.Get("User-Agent")
	if len(ua) > 300 {
		ua = ua[:300]
	}
	err := s.store.UpsertPushSubscription(r.Context(), owner(r), endpoint,
		body.Subscription.Keys.P256dh, body.Subscription.Keys.Auth, ua)
	if err != nil {
		s.storeError(w, r, err, "push subscribe")
		return
	}
	okJSON(w, nil)
}

// handlePushCheck returns the active budget alerts for client-side push
// and queues them for async delivery.
func (s *Server) handlePushCheck(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	alerts, err := s.analytics.CurrentBudgetAlerts(r.Context(), ownerID)
	if err != nil {
		s.storeError(w, r, err, "push check")
		return
	}

	messages := make([]string, 0, len(alerts))
	for _, a := range alerts {
		messages = append(messages, fmt.Sprintf("%s : %d%% du budget", a.Category, a.Pct))
	}
	s.txs.PublishAlerts(r.Context(), ownerID, messages)

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(alerts),
		"messages": messages,
	})
}
