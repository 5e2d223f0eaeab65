package analytics

import (
	"context"
	"fmt"

	"finai/internal/core"
)

// Alert threshold: a category enters the alert list at 80% of its limit
// and is flagged "over" at 100%.
const alertThresholdPct = 80

// BudgetAlerts returns one alert per budget limit whose month spend
// reached the threshold. Limits of zero (or less) never alert. Alerts are
// recomputed on every call and never persisted.
func (s *Service) BudgetAlerts(ctx context.Context, ownerID int64, year, month int) ([]core.BudgetAlert, error) {
	limits, err := s.budgets.ListBudgetLimits(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budget limits (owner=%d): %w", ownerID, err)
	}
	if len(limits) == 0 {
		return nil, nil
	}

	spent, err := s.spentByCategory(ctx, ownerID, year, month)
	if err != nil {
		return nil, err
	}

	var alerts []core.BudgetAlert
	for _, lim := range limits {
		pct := spendPct(spent[lim.Category.ID], lim.Amount.Units)
		if pct < alertThresholdPct {
			continue
		}
		alerts = append(alerts, core.BudgetAlert{
			Category: lim.Category.Name,
			Slug:     lim.Category.Slug,
			Icon:     lim.Category.Icon,
			Color:    lim.Category.Color,
			Limit:    lim.Amount.Units,
			Spent:    spent[lim.Category.ID],
			Pct:      pct,
			Over:     pct >= 100,
		})
	}
	return alerts, nil
}

// CurrentBudgetAlerts evaluates alerts for the month containing now.
func (s *Service) CurrentBudgetAlerts(ctx context.Context, ownerID int64) ([]core.BudgetAlert, error) {
	now := s.now()
	return s.BudgetAlerts(ctx, ownerID, now.Year(), int(now.Month()))
}

// BudgetRows builds the budget page rows: every configured limit with its
// current-month spend, display percentage capped at 100.
func (s *Service) BudgetRows(ctx context.Context, ownerID int64) ([]core.BudgetRow, error) {
	limits, err := s.budgets.ListBudgetLimits(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budget limits (owner=%d): %w", ownerID, err)
	}

	now := s.now()
	spent, err := s.spentByCategory(ctx, ownerID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, err
	}

	rows := make([]core.BudgetRow, 0, len(limits))
	for _, lim := range limits {
		pct := spendPct(spent[lim.Category.ID], lim.Amount.Units)
		rows = append(rows, core.BudgetRow{
			LimitID:  lim.ID,
			Category: lim.Category.Name,
			Slug:     lim.Category.Slug,
			Limit:    lim.Amount.Units,
			Spent:    spent[lim.Category.ID],
			Pct:      clamp(pct, 0, 100),
			Over:     pct >= 100,
			Warn:     pct >= alertThresholdPct && pct < 100,
		})
	}
	return rows, nil
}

func (s *Service) spentByCategory(ctx context.Context, ownerID int64, year, month int) (map[int64]int64, error) {
	from, to := monthRange(year, month)
	rows, err := s.ledger.ExpenseTotalsByCategory(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("expense totals by category (owner=%d): %w", ownerID, err)
	}
	spent := make(map[int64]int64, len(rows))
	for _, r := range rows {
		spent[r.CategoryID] = r.Total
	}
	return spent, nil
}

// spendPct is spent as a percentage of limit, truncated toward zero.
// Non-positive limits yield 0 by policy, never a division error.
func spendPct(spent, limit int64) int {
	if limit <= 0 {
		return 0
	}
	return int(spent * 100 / limit)
}
