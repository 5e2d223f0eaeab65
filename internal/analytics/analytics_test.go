package analytics

import (
	"context"
	"testing"
	"time"

	"finai/internal/core"
)

// fakeLedger is an in-memory Ledger/BudgetReader/PatrimoineReader backed
// by a plain transaction slice.
type fakeLedger struct {
	txs        []core.Transaction
	limits     []core.BudgetLimit
	categories map[int64]core.Category
	assets     int64
	liabs      int64
}

func (f *fakeLedger) SumByKind(_ context.Context, ownerID int64, from, to time.Time) (core.KindTotals, error) {
	var totals core.KindTotals
	for _, tx := range f.txs {
		if tx.OwnerID != ownerID || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		switch tx.Kind {
		case core.KindIncome:
			totals.Income += tx.Amount.Units
			totals.Count++
		case core.KindExpense:
			totals.Expense += tx.Amount.Units
			totals.Count++
		case core.KindPlannedIncome:
			totals.PlannedIncome += tx.Amount.Units
		case core.KindPlannedExpense:
			totals.PlannedExpense += tx.Amount.Units
		}
	}
	return totals, nil
}

func (f *fakeLedger) ExpenseTotalsByCategory(_ context.Context, ownerID int64, from, to time.Time) ([]core.CategoryTotal, error) {
	byCat := map[int64]int64{}
	for _, tx := range f.txs {
		if tx.OwnerID != ownerID || tx.Kind != core.KindExpense || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		var id int64
		if tx.CategoryID != nil {
			id = *tx.CategoryID
		}
		byCat[id] += tx.Amount.Units
	}
	var rows []core.CategoryTotal
	for id, total := range byCat {
		row := core.CategoryTotal{CategoryID: id, Total: total}
		if cat, ok := f.categories[id]; ok {
			row.Name, row.Slug, row.Icon, row.Color = cat.Name, cat.Slug, cat.Icon, cat.Color
		}
		rows = append(rows, row)
	}
	// total desc, id asc: same ordering contract as the SQL stores
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			if rows[j].Total > rows[i].Total ||
				(rows[j].Total == rows[i].Total && rows[j].CategoryID < rows[i].CategoryID) {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	return rows, nil
}

func (f *fakeLedger) ListBudgetLimits(_ context.Context, ownerID int64) ([]core.BudgetLimit, error) {
	var out []core.BudgetLimit
	for _, lim := range f.limits {
		if lim.OwnerID == ownerID {
			out = append(out, lim)
		}
	}
	return out, nil
}

func (f *fakeLedger) PatrimoineTotals(_ context.Context, ownerID int64) (int64, int64, error) {
	return f.assets, f.liabs, nil
}

var testClock = func() time.Time {
	return time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
}

func newTestService(f *fakeLedger) *Service {
	return New(f, f, f, WithClock(testClock))
}

func catID(id int64) *int64 { return &id }

func tx(owner int64, kind core.TxKind, amount int64, y, m, d int, cat *int64) core.Transaction {
	return core.Transaction{
		OwnerID:    owner,
		Kind:       kind,
		Amount:     core.Money{Units: amount},
		Date:       core.NewDate(y, m, d),
		CategoryID: cat,
	}
}

func TestMonthlyStatsNet(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindIncome, 500000, 2026, 2, 1, nil),
		tx(1, core.KindIncome, 100000, 2026, 2, 10, nil),
		tx(1, core.KindExpense, 250000, 2026, 2, 5, nil),
		tx(1, core.KindPlannedExpense, 90000, 2026, 2, 20, nil),
		tx(1, core.KindPlannedIncome, 40000, 2026, 2, 25, nil),
		// other owner and other month must not leak in
		tx(2, core.KindIncome, 999999, 2026, 2, 1, nil),
		tx(1, core.KindExpense, 70000, 2026, 1, 31, nil),
	}}
	s := newTestService(f)

	stats, err := s.MonthlyStats(context.Background(), 1, 2026, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Incomes != 600000 || stats.Expenses != 250000 {
		t.Fatalf("totals = %d/%d", stats.Incomes, stats.Expenses)
	}
	if stats.Net != stats.Incomes-stats.Expenses {
		t.Errorf("net = %d, want incomes-expenses", stats.Net)
	}
	if stats.InvestCapacity != stats.Net {
		t.Errorf("invest capacity = %d, want net", stats.InvestCapacity)
	}
	if stats.BurnRate != 41 { // 250000*100/600000 truncated
		t.Errorf("burn rate = %d, want 41", stats.BurnRate)
	}
	if stats.FreePct != 59 {
		t.Errorf("free pct = %d, want 59", stats.FreePct)
	}
	if stats.PlannedExpenses != 90000 || stats.PlannedIncomes != 40000 {
		t.Errorf("planned = %d/%d", stats.PlannedExpenses, stats.PlannedIncomes)
	}
}

func TestMonthlyStatsNetMayBeNegative(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindIncome, 100000, 2026, 2, 1, nil),
		tx(1, core.KindExpense, 180000, 2026, 2, 2, nil),
	}}
	s := newTestService(f)
	stats, err := s.MonthlyStats(context.Background(), 1, 2026, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Net != -80000 {
		t.Errorf("net = %d, want -80000", stats.Net)
	}
	if stats.BurnRate != 180 {
		t.Errorf("burn rate = %d, want 180", stats.BurnRate)
	}
	if stats.FreePct != 0 {
		t.Errorf("free pct = %d, want 0", stats.FreePct)
	}
}

func TestBurnRateZeroIncome(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindExpense, 42000, 2026, 2, 3, nil),
	}}
	s := newTestService(f)
	stats, err := s.MonthlyStats(context.Background(), 1, 2026, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats.BurnRate != 0 {
		t.Errorf("burn rate with zero income = %d, want 0", stats.BurnRate)
	}
}

func TestRangeStatsCountAndDays(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindIncome, 50000, 2026, 2, 2, nil),
		tx(1, core.KindExpense, 10000, 2026, 2, 3, nil),
		tx(1, core.KindPlannedExpense, 5000, 2026, 2, 4, nil), // planned excluded from count
	}}
	s := newTestService(f)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	stats, err := s.RangeStats(context.Background(), 1, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TxCount != 2 {
		t.Errorf("tx count = %d, want 2", stats.TxCount)
	}
	if stats.Days != 10 {
		t.Errorf("days = %d, want 10", stats.Days)
	}
}

func TestComputeScoreZeroIncome(t *testing.T) {
	s := newTestService(&fakeLedger{})
	score, err := s.ComputeScore(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	want := core.Score{Total: 0, IncomeGrade: "-", SavingGrade: "-", ExpenseGrade: "-"}
	if score != want {
		t.Errorf("score = %+v, want %+v", score, want)
	}
}

func TestComputeScoreBounds(t *testing.T) {
	cases := []struct {
		name             string
		income, expense  int64
		wantTotal        int
		wantSavingGrade  string
		wantExpenseGrade string
	}{
		// saving rate 0.8 -> 40 pts (A+), burn 20 -> 24 pts (A): 40+28+24 = 92
		{"strong saver", 500000, 100000, 92, "A+", "A"},
		// saving rate -0.8 -> clamped 0 (C), burn 180 -> 8 pts (C): 0+28+8 = 36
		{"overspender", 100000, 180000, 36, "C", "C"},
		// saving rate 0.5 -> 25 pts (B), burn 50 -> 14 pts (C+): 25+28+14 = 67
		{"middling", 200000, 100000, 67, "B", "C+"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeLedger{txs: []core.Transaction{
				tx(1, core.KindIncome, tc.income, 2026, 2, 1, nil),
				tx(1, core.KindExpense, tc.expense, 2026, 2, 2, nil),
			}}
			score, err := newTestService(f).ComputeScore(context.Background(), 1)
			if err != nil {
				t.Fatal(err)
			}
			if score.Total < 0 || score.Total > 100 {
				t.Fatalf("score %d outside [0,100]", score.Total)
			}
			if score.Total != tc.wantTotal {
				t.Errorf("total = %d, want %d", score.Total, tc.wantTotal)
			}
			if score.IncomeGrade != "A+" {
				t.Errorf("income grade = %q, want fixed A+", score.IncomeGrade)
			}
			if score.SavingGrade != tc.wantSavingGrade {
				t.Errorf("saving grade = %q, want %q", score.SavingGrade, tc.wantSavingGrade)
			}
			if score.ExpenseGrade != tc.wantExpenseGrade {
				t.Errorf("expense grade = %q, want %q", score.ExpenseGrade, tc.wantExpenseGrade)
			}
		})
	}
}

func TestBudgetAlertsThresholds(t *testing.T) {
	cat := core.Category{ID: 7, Name: "Transport", Slug: "transport"}
	f := &fakeLedger{
		categories: map[int64]core.Category{7: cat},
		limits: []core.BudgetLimit{
			{ID: 1, OwnerID: 1, Category: cat, Amount: core.Money{Units: 100000}},
		},
	}
	s := newTestService(f)
	ctx := context.Background()

	cases := []struct {
		name      string
		spent     int64
		wantAlert bool
		wantOver  bool
		wantPct   int
	}{
		{"below threshold", 79999, false, false, 0},
		{"at 80 pct", 80000, true, false, 80},
		{"just under limit", 99999, true, false, 99},
		{"at limit", 100000, true, true, 100},
		{"over limit", 150000, true, true, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.txs = []core.Transaction{tx(1, core.KindExpense, tc.spent, 2026, 2, 10, catID(7))}
			alerts, err := s.BudgetAlerts(ctx, 1, 2026, 2)
			if err != nil {
				t.Fatal(err)
			}
			if got := len(alerts) == 1; got != tc.wantAlert {
				t.Fatalf("alert presence = %v, want %v", got, tc.wantAlert)
			}
			if !tc.wantAlert {
				return
			}
			if alerts[0].Over != tc.wantOver {
				t.Errorf("over = %v, want %v", alerts[0].Over, tc.wantOver)
			}
			if alerts[0].Pct != tc.wantPct {
				t.Errorf("pct = %d, want %d", alerts[0].Pct, tc.wantPct)
			}
		})
	}
}

func TestBudgetAlertsZeroLimitNeverAlerts(t *testing.T) {
	cat := core.Category{ID: 3, Name: "Loisirs", Slug: "loisirs"}
	f := &fakeLedger{
		categories: map[int64]core.Category{3: cat},
		limits: []core.BudgetLimit{
			{ID: 1, OwnerID: 1, Category: cat, Amount: core.Money{Units: 0}},
		},
		txs: []core.Transaction{tx(1, core.KindExpense, 500000, 2026, 2, 1, catID(3))},
	}
	alerts, err := newTestService(f).BudgetAlerts(context.Background(), 1, 2026, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Errorf("zero limit produced %d alerts", len(alerts))
	}
}

func TestBudgetRowsCapAndFlags(t *testing.T) {
	cat := core.Category{ID: 4, Name: "Alimentation", Slug: "alimentation"}
	f := &fakeLedger{
		categories: map[int64]core.Category{4: cat},
		limits: []core.BudgetLimit{
			{ID: 9, OwnerID: 1, Category: cat, Amount: core.Money{Units: 50000}},
		},
		txs: []core.Transaction{tx(1, core.KindExpense, 120000, 2026, 2, 8, catID(4))},
	}
	rows, err := newTestService(f).BudgetRows(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Pct != 100 {
		t.Errorf("display pct = %d, want capped 100", rows[0].Pct)
	}
	if !rows[0].Over || rows[0].Warn {
		t.Errorf("flags over=%v warn=%v, want over only", rows[0].Over, rows[0].Warn)
	}
}

func TestLeaksTopThreeSorted(t *testing.T) {
	cats := map[int64]core.Category{
		1: {ID: 1, Name: "Logement", Slug: "logement"},
		2: {ID: 2, Name: "Transport", Slug: "transport"},
		3: {ID: 3, Name: "Loisirs", Slug: "loisirs"},
		4: {ID: 4, Name: "Santé", Slug: "sante"},
	}
	f := &fakeLedger{
		categories: cats,
		txs: []core.Transaction{
			tx(1, core.KindExpense, 30000, 2026, 2, 1, catID(1)),
			tx(1, core.KindExpense, 90000, 2026, 2, 2, catID(2)),
			tx(1, core.KindExpense, 60000, 2026, 2, 3, catID(3)),
			tx(1, core.KindExpense, 10000, 2026, 2, 4, catID(4)),
			tx(1, core.KindExpense, 5000, 2026, 2, 5, nil), // uncategorized
		},
	}
	leaks, err := newTestService(f).Leaks(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(leaks) != 3 {
		t.Fatalf("leaks = %d, want 3", len(leaks))
	}
	for i := 1; i < len(leaks); i++ {
		if leaks[i].Amount > leaks[i-1].Amount {
			t.Fatalf("leaks not sorted descending: %+v", leaks)
		}
	}
	if leaks[0].Category != "Transport" || leaks[0].Amount != 90000 {
		t.Errorf("top leak = %+v", leaks[0])
	}
}

func TestLeaksUncategorizedDefaults(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindExpense, 15000, 2026, 2, 1, nil),
	}}
	leaks, err := newTestService(f).Leaks(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(leaks) != 1 {
		t.Fatalf("leaks = %d, want 1", len(leaks))
	}
	if leaks[0].Category != core.DefaultCategoryName || leaks[0].Icon != core.DefaultCategoryIcon {
		t.Errorf("defaults not applied: %+v", leaks[0])
	}
}

func TestPatrimoineSummary(t *testing.T) {
	f := &fakeLedger{assets: 12000000, liabs: 4500000}
	sum, err := newTestService(f).PatrimoineSummary(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Net != 7500000 {
		t.Errorf("net = %d, want 7500000", sum.Net)
	}
}

func TestMonthlySeriesOrderAndLength(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindIncome, 100000, 2026, 2, 1, nil),
		tx(1, core.KindExpense, 40000, 2026, 1, 15, nil),
		tx(1, core.KindIncome, 80000, 2025, 12, 20, nil),
	}}
	series, err := newTestService(f).MonthlySeries(context.Background(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	if series[0].Label != "Dec" || series[2].Label != "Feb" {
		t.Errorf("labels = %q..%q, want Dec..Feb", series[0].Label, series[2].Label)
	}
	if series[0].Income != 80000 || series[1].Expense != 40000 || series[2].Income != 100000 {
		t.Errorf("series values wrong: %+v", series)
	}
}

func TestDailySeriesInclusive(t *testing.T) {
	f := &fakeLedger{txs: []core.Transaction{
		tx(1, core.KindExpense, 2000, 2026, 2, 1, nil),
		tx(1, core.KindExpense, 3000, 2026, 2, 3, nil),
	}}
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	series, err := newTestService(f).DailySeries(context.Background(), 1, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	if series[0].Expense != 2000 || series[1].Expense != 0 || series[2].Expense != 3000 {
		t.Errorf("series values wrong: %+v", series)
	}
}
