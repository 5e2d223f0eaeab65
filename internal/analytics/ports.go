package analytics

import (
	"context"
	"time"

	"finai/internal/core"
)

// Ports for the ledger store. The engine never writes; it reads aggregates
// scoped to one owner and computes in memory.
type (
	// Ledger returns transaction aggregates for an owner over an
	// inclusive date range.
	Ledger interface {
		// SumByKind sums amounts per transaction kind. Count covers
		// real (non-planned) transactions only.
		SumByKind(ctx context.Context, ownerID int64, from, to time.Time) (core.KindTotals, error)

		// ExpenseTotalsByCategory returns real expense totals grouped by
		// category, ordered by total descending then category ID
		// ascending. Uncategorized spend appears with empty metadata.
		ExpenseTotalsByCategory(ctx context.Context, ownerID int64, from, to time.Time) ([]core.CategoryTotal, error)
	}

	// BudgetReader lists the owner's configured category limits.
	BudgetReader interface {
		ListBudgetLimits(ctx context.Context, ownerID int64) ([]core.BudgetLimit, error)
	}

	// PatrimoineReader sums the owner's net-worth entries per kind.
	PatrimoineReader interface {
		PatrimoineTotals(ctx context.Context, ownerID int64) (assets, liabilities int64, err error)
	}
)
