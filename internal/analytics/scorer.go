package analytics

import (
	"context"

	"finai/internal/core"
)

// Scoring constants. The income component is a fixed 28 points with a
// hard-wired "A+" grade; the saving and expense components are derived
// from the current month's saving rate and burn rate.
const (
	incomePoints    = 28
	maxSavingPoints = 40
	maxScore        = 100
)

// ComputeScore derives the 0-100 FIN.AI score from the current month.
// A month with zero income yields the degenerate score {0, "-", "-", "-"}.
func (s *Service) ComputeScore(ctx context.Context, ownerID int64) (core.Score, error) {
	stats, err := s.CurrentMonthStats(ctx, ownerID)
	if err != nil {
		return core.Score{}, err
	}
	return scoreFromStats(stats), nil
}

func scoreFromStats(stats core.MonthlyStats) core.Score {
	if stats.Incomes == 0 {
		return core.Score{Total: 0, IncomeGrade: "-", SavingGrade: "-", ExpenseGrade: "-"}
	}

	savingRate := float64(stats.Net) / float64(stats.Incomes)
	savingPoints := clamp(int(savingRate*50), 0, maxSavingPoints)

	expensePoints := expensePointsFromBurn(stats.BurnRate)

	return core.Score{
		Total:        clamp(savingPoints+incomePoints+expensePoints, 0, maxScore),
		IncomeGrade:  "A+",
		SavingGrade:  savingGrade(savingPoints),
		ExpenseGrade: expenseGrade(expensePoints),
	}
}

func savingGrade(points int) string {
	switch {
	case points >= 35:
		return "A+"
	case points >= 28:
		return "A"
	case points >= 20:
		return "B"
	case points >= 12:
		return "C+"
	default:
		return "C"
	}
}

func expensePointsFromBurn(burn int) int {
	switch {
	case burn < 30:
		return 24
	case burn < 45:
		return 20
	case burn < 60:
		return 14
	default:
		return 8
	}
}

func expenseGrade(points int) string {
	switch {
	case points >= 22:
		return "A"
	case points >= 18:
		return "B"
	case points >= 12:
		return "C+"
	default:
		return "C"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
