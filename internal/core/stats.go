package core

// Derived reporting views. All of these are computed on demand from the
// ledger and returned fresh per call; none are persisted or cached.
type (
	// MonthlyStats summarizes one calendar month of real and planned
	// movements for an owner.
	MonthlyStats struct {
		Year            int   `json:"year"`
		Month           int   `json:"month"`
		Incomes         int64 `json:"incomes"`
		Expenses        int64 `json:"expenses"`
		Net             int64 `json:"net"`
		BurnRate        int   `json:"burn_rate"`
		FreePct         int   `json:"free_pct"`
		InvestCapacity  int64 `json:"invest_capacity"`
		PlannedExpenses int64 `json:"planned_exp"`
		PlannedIncomes  int64 `json:"planned_inc"`
	}

	// RangeStats summarizes an arbitrary inclusive date range.
	RangeStats struct {
		From     string `json:"date_from"`
		To       string `json:"date_to"`
		Incomes  int64  `json:"incomes"`
		Expenses int64  `json:"expenses"`
		Net      int64  `json:"net"`
		BurnRate int    `json:"burn_rate"`
		FreePct  int    `json:"free_pct"`
		TxCount  int    `json:"tx_count"`
		Days     int    `json:"days"`
	}

	// KindTotals holds per-kind sums over a period, as returned by the
	// ledger store. Count covers real (non-planned) transactions only.
	KindTotals struct {
		Income         int64
		Expense        int64
		PlannedIncome  int64
		PlannedExpense int64
		Count          int
	}

	// CategoryTotal is one row of an expense-by-category breakdown,
	// ordered by total descending.
	CategoryTotal struct {
		CategoryID int64  `json:"-"`
		Name       string `json:"label"`
		Slug       string `json:"slug"`
		Icon       string `json:"icon"`
		Color      string `json:"color"`
		Total      int64  `json:"total"`
	}

	// Score is the composite 0-100 financial-health score.
	Score struct {
		Total        int    `json:"total"`
		IncomeGrade  string `json:"income_grade"`
		SavingGrade  string `json:"saving_grade"`
		ExpenseGrade string `json:"expense_grade"`
	}

	// BudgetAlert flags a category whose month spend reached 80% of its limit.
	BudgetAlert struct {
		Category string `json:"category"`
		Slug     string `json:"slug"`
		Icon     string `json:"icon"`
		Color    string `json:"color"`
		Limit    int64  `json:"limit"`
		Spent    int64  `json:"spent"`
		Pct      int    `json:"pct"`
		Over     bool   `json:"over"`
	}

	// BudgetRow is the display row for every configured limit, alerting
	// or not. Pct is capped at 100 for rendering; Over/Warn carry the
	// uncapped state.
	BudgetRow struct {
		LimitID  int64  `json:"id"`
		Category string `json:"category"`
		Slug     string `json:"slug"`
		Limit    int64  `json:"limit"`
		Spent    int64  `json:"spent"`
		Pct      int    `json:"pct"`
		Over     bool   `json:"over"`
		Warn     bool   `json:"warn"`
	}

	// Leak is a top-ranked expense category, flagged as a "money leak".
	Leak struct {
		Category string `json:"category"`
		Slug     string `json:"slug"`
		Icon     string `json:"icon"`
		Color    string `json:"color"`
		Amount   int64  `json:"amount"`
	}

	// PatrimoineSummary is assets minus liabilities.
	PatrimoineSummary struct {
		Assets      int64 `json:"actifs"`
		Liabilities int64 `json:"passifs"`
		Net         int64 `json:"net"`
	}

	// CategoryAmount is a patrimoine per-category total.
	CategoryAmount struct {
		Category string `json:"category"`
		Total    int64  `json:"total"`
	}

	// SeriesPoint is one bucket of a chart time series.
	SeriesPoint struct {
		Label   string `json:"label"`
		Income  int64  `json:"income"`
		Expense int64  `json:"expense"`
	}
)
