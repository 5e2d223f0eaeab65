package analytics

import (
	"context"
	"fmt"
	"time"

	"finai/internal/core"
)

// MonthlySeries returns income/expense totals for the last n months,
// oldest first, for chart rendering.
func (s *Service) MonthlySeries(ctx context.Context, ownerID int64, months int) ([]core.SeriesPoint, error) {
	if months < 1 {
		months = 1
	}
	now := s.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	series := make([]core.SeriesPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		totals, err := s.ledger.SumByKind(ctx, ownerID, m, m.AddDate(0, 1, -1))
		if err != nil {
			return nil, fmt.Errorf("monthly series (owner=%d, month=%s): %w", ownerID, m.Format("2006-01"), err)
		}
		series = append(series, core.SeriesPoint{
			Label:   m.Format("Jan"),
			Income:  totals.Income,
			Expense: totals.Expense,
		})
	}
	return series, nil
}

// DailySeries returns per-day totals over an inclusive range. Intended
// for short ranges (the analyse page uses it below 60 days).
func (s *Service) DailySeries(ctx context.Context, ownerID int64, from, to time.Time) ([]core.SeriesPoint, error) {
	var series []core.SeriesPoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		totals, err := s.ledger.SumByKind(ctx, ownerID, d, d)
		if err != nil {
			return nil, fmt.Errorf("daily series (owner=%d, day=%s): %w", ownerID, d.Format("2006-01-02"), err)
		}
		series = append(series, core.SeriesPoint{
			Label:   d.Format("02/01"),
			Income:  totals.Income,
			Expense: totals.Expense,
		})
	}
	return series, nil
}
