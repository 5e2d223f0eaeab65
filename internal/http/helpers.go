package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finai/internal/core"
)

// ownerFromHeader reads the authenticated user id set by the fronting
// proxy. Zero and malformed values are rejected.
func ownerFromHeader(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func owner(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKeyOwnerID).(int64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func okJSON(w http.ResponseWriter, extra map[string]any) {
	payload := map[string]any{"status": "ok"}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, http.StatusOK, payload)
}

// parseYearMonth extracts year and month from query parameters, falling
// back to the current month.
func parseYearMonth(r *http.Request) (year, month int) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}
	return year, month
}

// parseDateRange reads date_from/date_to query parameters. Malformed
// values fall back to the current month's start and today; an inverted
// range is swapped rather than rejected.
func parseDateRange(r *http.Request, now time.Time) (from, to time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to = today

	if v := strings.TrimSpace(r.URL.Query().Get("date_from")); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			from = d
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("date_to")); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			to = d
		}
	}

	if from.After(to) {
		from, to = to, from
	}
	return from, to
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// isMobile detects the mobile client: explicit cookie first, then the
// User-Agent as a fallback.
func isMobile(r *http.Request) bool {
	if c, err := r.Cookie("finai_view"); err == nil && c.Value != "" {
		return c.Value == "mobile"
	}
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, k := range []string{"mobile", "android", "iphone", "ipad"} {
		if strings.Contains(ua, k) {
			return true
		}
	}
	return false
}

// txJSON is the wire shape of a ledger entry.
func txJSON(t core.Transaction) map[string]any {
	name := core.DefaultCategoryName
	icon := core.DefaultCategoryIcon
	color := core.DefaultCategoryColor
	if t.Category != nil {
		name = t.Category.Name
		icon = t.Category.Icon
		color = t.Category.Color
	}
	return map[string]any{
		"id":          t.ID,
		"amount":      t.Amount.Units,
		"signed":      t.SignedAmount(),
		"type":        string(t.Kind),
		"description": t.Description,
		"category":    name,
		"cat_icon":    icon,
		"cat_class":   color,
		"date":        t.Date.ISO(),
		"planned":     t.Kind.IsPlanned(),
		"source":      string(t.Source),
		"notes":       t.Notes,
	}
}

func txListJSON(txs []core.Transaction) []map[string]any {
	out := make([]map[string]any, 0, len(txs))
	for _, t := range txs {
		out = append(out, txJSON(t))
	}
	return out
}
