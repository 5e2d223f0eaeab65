package http

import (
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"finai/internal/advisor"
	"finai/internal/core"
	"finai/internal/storage"
)

const dashboardMonths = 6

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	ownerID := owner(r)

	stats, err := s.analytics.MonthlyStats(r.Context(), ownerID, year, month)
	if err != nil {
		s.storeError(w, r, err, "monthly stats")
		return
	}
	cats, err := s.analytics.ExpenseByCategory(r.Context(), ownerID, year, month)
	if err != nil {
		s.storeError(w, r, err, "expense by category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "categories": cats})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.analytics.ComputeScore(r.Context(), owner(r))
	if err != nil {
		s.storeError(w, r, err, "compute score")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleLeaks(w http.ResponseWriter, r *http.Request) {
	leaks, err := s.analytics.Leaks(r.Context(), owner(r))
	if err != nil {
		s.storeError(w, r, err, "detect leaks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaks": leaks})
}

// handleDashboard assembles the home view in one round trip. The pieces
// are independent reads, fetched concurrently.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)

	var (
		stats  core.MonthlyStats
		score  core.Score
		series []core.SeriesPoint
		leaks  []core.Leak
		cats   []core.CategoryTotal
		recent []core.Transaction
		preds  advisor.Predictions
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		stats, err = s.analytics.CurrentMonthStats(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		score, err = s.analytics.ComputeScore(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		series, err = s.analytics.MonthlySeries(ctx, ownerID, dashboardMonths)
		return err
	})
	g.Go(func() (err error) {
		leaks, err = s.analytics.Leaks(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		now := time.Now()
		cats, err = s.analytics.ExpenseByCategory(ctx, ownerID, now.Year(), int(now.Month()))
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.store.ListTransactions(ctx, ownerID, storage.TxFilter{Limit: 6})
		return err
	})
	g.Go(func() (err error) {
		preds, err = s.advisor.Predict(ctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.storeError(w, r, err, "dashboard")
		return
	}

	view := "desktop"
	if isMobile(r) {
		view = "mobile"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       stats,
		"score":       score,
		"series":      series,
		"leaks":       leaks,
		"categories":  cats,
		"recent":      txListJSON(recent),
		"predictions": preds,
		"has_api_key": s.advisor.Enabled(),
		"view":        view,
	})
}

// handleAnalyse reports over a caller-chosen date range. Short ranges
// get a daily series, long ones a monthly series.
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	from, to := parseDateRange(r, time.Now().UTC())
	days := int(to.Sub(from).Hours()/24) + 1

	stats, err := s.analytics.RangeStats(r.Context(), ownerID, from, to)
	if err != nil {
		s.storeError(w, r, err, "range stats")
		return
	}
	cats, err := s.analytics.ExpenseByCategoryRange(r.Context(), ownerID, from, to)
	if err != nil {
		s.storeError(w, r, err, "expense by category range")
		return
	}

	var series []core.SeriesPoint
	if days <= 60 {
		series, err = s.analytics.DailySeries(r.Context(), ownerID, from, to)
	} else {
		series, err = s.analytics.MonthlySeries(r.Context(), ownerID, min(24, days/28+1))
	}
	if err != nil {
		s.storeError(w, r, err, "series")
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), ownerID, storage.TxFilter{From: from, To: to, Limit: defaultListLimit})
	if err != nil {
		s.storeError(w, r, err, "range transactions")
		return
	}
	real := txs[:0]
	for _, t := range txs {
		if !t.Kind.IsPlanned() {
			real = append(real, t)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":        stats,
		"categories":   cats,
		"series":       series,
		"transactions": txListJSON(real),
	})
}
