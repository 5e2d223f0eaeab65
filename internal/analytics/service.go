// Package analytics implements the financial reporting engine: period
// aggregation, the FIN.AI score, budget alerts and leak detection.
//
// Everything here is stateless and recomputed per call from the current
// ledger contents, so results are always consistent with the store.
package analytics

import (
	"context"
	"fmt"
	"time"

	"finai/internal/core"
)

// Service computes derived financial views for one owner at a time.
type Service struct {
	ledger     Ledger
	budgets    BudgetReader
	patrimoine PatrimoineReader
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, used by tests and by callers that
// need month boundaries pinned.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(ledger Ledger, budgets BudgetReader, patrimoine PatrimoineReader, opts ...Option) *Service {
	s := &Service{
		ledger:     ledger,
		budgets:    budgets,
		patrimoine: patrimoine,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// monthRange returns the inclusive first and last day of a month.
func monthRange(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	return from, to
}

// MonthlyStats aggregates one calendar month. Planned entries are summed
// separately and excluded from the real totals.
func (s *Service) MonthlyStats(ctx context.Context, ownerID int64, year, month int) (core.MonthlyStats, error) {
	from, to := monthRange(year, month)
	totals, err := s.ledger.SumByKind(ctx, ownerID, from, to)
	if err != nil {
		return core.MonthlyStats{}, fmt.Errorf("sum by kind (owner=%d, %d-%02d): %w", ownerID, year, month, err)
	}

	net := totals.Income - totals.Expense
	burn := burnRate(totals.Expense, totals.Income)

	return core.MonthlyStats{
		Year:            year,
		Month:           month,
		Incomes:         totals.Income,
		Expenses:        totals.Expense,
		Net:             net,
		BurnRate:        burn,
		FreePct:         freePct(burn),
		InvestCapacity:  net,
		PlannedExpenses: totals.PlannedExpense,
		PlannedIncomes:  totals.PlannedIncome,
	}, nil
}

// CurrentMonthStats aggregates the month containing the service clock's now.
func (s *Service) CurrentMonthStats(ctx context.Context, ownerID int64) (core.MonthlyStats, error) {
	now := s.now()
	return s.MonthlyStats(ctx, ownerID, now.Year(), int(now.Month()))
}

// RangeStats aggregates an arbitrary inclusive date range.
func (s *Service) RangeStats(ctx context.Context, ownerID int64, from, to time.Time) (core.RangeStats, error) {
	totals, err := s.ledger.SumByKind(ctx, ownerID, from, to)
	if err != nil {
		return core.RangeStats{}, fmt.Errorf("sum by kind (owner=%d, range): %w", ownerID, err)
	}

	net := totals.Income - totals.Expense
	burn := burnRate(totals.Expense, totals.Income)

	return core.RangeStats{
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		Incomes:  totals.Income,
		Expenses: totals.Expense,
		Net:      net,
		BurnRate: burn,
		FreePct:  freePct(burn),
		TxCount:  totals.Count,
		Days:     int(to.Sub(from).Hours()/24) + 1,
	}, nil
}

// ExpenseByCategory breaks down one month's real expenses per category,
// ordered by total descending.
func (s *Service) ExpenseByCategory(ctx context.Context, ownerID int64, year, month int) ([]core.CategoryTotal, error) {
	from, to := monthRange(year, month)
	return s.ExpenseByCategoryRange(ctx, ownerID, from, to)
}

// ExpenseByCategoryRange breaks down expenses per category over a range.
func (s *Service) ExpenseByCategoryRange(ctx context.Context, ownerID int64, from, to time.Time) ([]core.CategoryTotal, error) {
	rows, err := s.ledger.ExpenseTotalsByCategory(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("expense totals by category (owner=%d): %w", ownerID, err)
	}
	for i := range rows {
		applyCategoryDefaults(&rows[i])
	}
	return rows, nil
}

// PatrimoineSummary computes assets minus liabilities.
func (s *Service) PatrimoineSummary(ctx context.Context, ownerID int64) (core.PatrimoineSummary, error) {
	assets, liabilities, err := s.patrimoine.PatrimoineTotals(ctx, ownerID)
	if err != nil {
		return core.PatrimoineSummary{}, fmt.Errorf("patrimoine totals (owner=%d): %w", ownerID, err)
	}
	return core.PatrimoineSummary{
		Assets:      assets,
		Liabilities: liabilities,
		Net:         assets - liabilities,
	}, nil
}

// burnRate is expenses as a percentage of income, truncated toward zero.
// Zero income means a burn rate of 0 by policy, never a division error.
func burnRate(expenses, incomes int64) int {
	if incomes <= 0 {
		return 0
	}
	return int(expenses * 100 / incomes)
}

func freePct(burn int) int {
	if burn >= 100 {
		return 0
	}
	return 100 - burn
}

func applyCategoryDefaults(row *core.CategoryTotal) {
	if row.Name == "" {
		row.Name = core.DefaultCategoryName
	}
	if row.Slug == "" {
		row.Slug = core.DefaultCategorySlug
	}
	if row.Icon == "" {
		row.Icon = core.DefaultCategoryIcon
	}
	if row.Color == "" {
		row.Color = core.DefaultCategoryColor
	}
}
