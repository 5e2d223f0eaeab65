package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finai/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "finai_test.db"))
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCategory(t *testing.T, store *SQLiteStore, slug string) core.Category {
	t.Helper()
	cat, err := store.CategoryBySlug(context.Background(), slug)
	if err != nil {
		t.Fatalf("seeded category %q missing: %v", slug, err)
	}
	return cat
}

func newTx(owner int64, kind core.TxKind, amount int64, date core.Date, categoryID *int64) *core.Transaction {
	return &core.Transaction{
		OwnerID:     owner,
		Amount:      core.Money{Units: amount},
		Kind:        kind,
		Description: "test entry",
		CategoryID:  categoryID,
		Date:        date,
		Source:      core.SourceManual,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, store, "transport")

	tx := newTx(1, core.KindExpense, 15000, core.NewDate(2026, 2, 10), &cat.ID)
	tx.Notes = "taxi aéroport"
	if err := store.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID == 0 {
		t.Fatal("create did not assign an id")
	}

	got, err := store.GetTransaction(ctx, 1, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Units != 15000 || got.Kind != core.KindExpense {
		t.Errorf("got %+v", got)
	}
	if got.Date.ISO() != "2026-02-10" {
		t.Errorf("date = %q", got.Date.ISO())
	}
	if got.Category == nil || got.Category.Slug != "transport" {
		t.Errorf("category = %+v", got.Category)
	}
	if got.Notes != "taxi aéroport" {
		t.Errorf("notes = %q", got.Notes)
	}
}

func TestTransactionOwnerScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := newTx(1, core.KindIncome, 50000, core.NewDate(2026, 2, 1), nil)
	if err := store.CreateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetTransaction(ctx, 2, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get as other owner: err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteTransaction(ctx, 2, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete as other owner: err = %v, want ErrNotFound", err)
	}
	// still there for the real owner
	if _, err := store.GetTransaction(ctx, 1, tx.ID); err != nil {
		t.Errorf("get as owner after foreign delete attempt: %v", err)
	}
}

func TestTransactionValidationRejected(t *testing.T) {
	store := newTestStore(t)
	tx := newTx(1, core.KindExpense, 0, core.NewDate(2026, 2, 1), nil)
	if err := store.CreateTransaction(context.Background(), tx); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestUpdateTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := newTx(1, core.KindExpense, 8000, core.NewDate(2026, 2, 5), nil)
	if err := store.CreateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}

	tx.Amount = core.Money{Units: 9500}
	tx.Description = "corrigé"
	if err := store.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetTransaction(ctx, 1, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount.Units != 9500 || got.Description != "corrigé" {
		t.Errorf("got %+v", got)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	transport := mustCategory(t, store, "transport")
	loisirs := mustCategory(t, store, "loisirs")

	fixtures := []*core.Transaction{
		newTx(1, core.KindExpense, 5000, core.NewDate(2026, 2, 1), &transport.ID),
		newTx(1, core.KindExpense, 7000, core.NewDate(2026, 2, 3), &loisirs.ID),
		newTx(1, core.KindIncome, 90000, core.NewDate(2026, 2, 2), nil),
		newTx(1, core.KindExpense, 3000, core.NewDate(2026, 1, 15), &transport.ID),
		newTx(2, core.KindExpense, 11111, core.NewDate(2026, 2, 1), nil),
	}
	for _, tx := range fixtures {
		if err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListTransactions(ctx, 1, TxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("listed %d transactions, want 4", len(all))
	}
	if all[0].Date.ISO() != "2026-02-03" {
		t.Errorf("not ordered by date desc: first = %s", all[0].Date.ISO())
	}

	expenses, err := store.ListTransactions(ctx, 1, TxFilter{Kind: core.KindExpense})
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 3 {
		t.Errorf("expense filter: %d rows, want 3", len(expenses))
	}

	byCat, err := store.ListTransactions(ctx, 1, TxFilter{CategorySlug: "transport"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byCat) != 2 {
		t.Errorf("category filter: %d rows, want 2", len(byCat))
	}

	feb, err := store.ListTransactions(ctx, 1, TxFilter{
		From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(feb) != 3 {
		t.Errorf("date filter: %d rows, want 3", len(feb))
	}

	limited, err := store.ListTransactions(ctx, 1, TxFilter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit: %d rows, want 2", len(limited))
	}
}

func TestSumByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fixtures := []*core.Transaction{
		newTx(1, core.KindIncome, 600000, core.NewDate(2026, 2, 1), nil),
		newTx(1, core.KindExpense, 250000, core.NewDate(2026, 2, 10), nil),
		newTx(1, core.KindPlannedExpense, 40000, core.NewDate(2026, 2, 20), nil),
		newTx(1, core.KindPlannedIncome, 15000, core.NewDate(2026, 2, 25), nil),
		newTx(1, core.KindExpense, 99999, core.NewDate(2026, 3, 1), nil),
	}
	for _, tx := range fixtures {
		if err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	totals, err := store.SumByKind(ctx, 1,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if totals.Income != 600000 || totals.Expense != 250000 {
		t.Errorf("totals = %+v", totals)
	}
	if totals.PlannedExpense != 40000 || totals.PlannedIncome != 15000 {
		t.Errorf("planned = %+v", totals)
	}
	if totals.Count != 2 {
		t.Errorf("count = %d, want 2 real transactions", totals.Count)
	}
}

func TestExpenseTotalsByCategoryOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	transport := mustCategory(t, store, "transport")
	loisirs := mustCategory(t, store, "loisirs")

	fixtures := []*core.Transaction{
		newTx(1, core.KindExpense, 30000, core.NewDate(2026, 2, 1), &transport.ID),
		newTx(1, core.KindExpense, 60000, core.NewDate(2026, 2, 2), &loisirs.ID),
		newTx(1, core.KindExpense, 10000, core.NewDate(2026, 2, 3), nil),
	}
	for _, tx := range fixtures {
		if err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := store.ExpenseTotalsByCategory(ctx, 1,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Slug != "loisirs" || rows[0].Total != 60000 {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[2].CategoryID != 0 || rows[2].Total != 10000 {
		t.Errorf("uncategorized row = %+v", rows[2])
	}
}

func TestBudgetLimitUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, store, "alimentation")

	if err := store.UpsertBudgetLimit(ctx, 1, cat.ID, 100000); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertBudgetLimit(ctx, 1, cat.ID, 150000); err != nil {
		t.Fatal(err)
	}

	limits, err := store.ListBudgetLimits(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limits) != 1 {
		t.Fatalf("limits = %d, want 1 after upsert", len(limits))
	}
	if limits[0].Amount.Units != 150000 {
		t.Errorf("amount = %d, want updated 150000", limits[0].Amount.Units)
	}
	if limits[0].Category.Slug != "alimentation" {
		t.Errorf("category = %+v", limits[0].Category)
	}

	if err := store.DeleteBudgetLimit(ctx, 1, limits[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteBudgetLimit(ctx, 1, limits[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestPatrimoine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []*core.PatrimoineEntry{
		{OwnerID: 1, Kind: core.PatrimoineAsset, Category: "immobilier", Label: "Terrain Yaoundé", Value: core.Money{Units: 9000000}, Date: core.NewDate(2026, 1, 1)},
		{OwnerID: 1, Kind: core.PatrimoineAsset, Category: "epargne", Label: "Compte épargne", Value: core.Money{Units: 3000000}, Date: core.NewDate(2026, 2, 1)},
		{OwnerID: 1, Kind: core.PatrimoineLiability, Category: "dette", Label: "Prêt moto", Value: core.Money{Units: 4500000}, Date: core.NewDate(2026, 2, 1)},
		{OwnerID: 2, Kind: core.PatrimoineAsset, Category: "autre", Label: "Autre", Value: core.Money{Units: 777}, Date: core.NewDate(2026, 2, 1)},
	}
	for _, e := range entries {
		if err := store.CreatePatrimoineEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	assets, liabilities, err := store.PatrimoineTotals(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if assets != 12000000 || liabilities != 4500000 {
		t.Errorf("totals = %d/%d", assets, liabilities)
	}

	byCat, err := store.PatrimoineByCategory(ctx, 1, core.PatrimoineAsset)
	if err != nil {
		t.Fatal(err)
	}
	if len(byCat) != 2 || byCat[0].Category != "immobilier" {
		t.Errorf("by category = %+v", byCat)
	}

	if err := store.DeletePatrimoineEntry(ctx, 2, entries[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign delete err = %v, want ErrNotFound", err)
	}
}

func TestProfileUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetProfile(ctx, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing profile err = %v, want ErrNotFound", err)
	}

	p := core.Profile{Name: "Awa", City: "Douala", Country: "Cameroun", Profession: "Commerçante"}
	if err := store.UpsertProfile(ctx, 1, p); err != nil {
		t.Fatal(err)
	}
	p.City = "Yaoundé"
	if err := store.UpsertProfile(ctx, 1, p); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetProfile(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.City != "Yaoundé" || got.Name != "Awa" {
		t.Errorf("profile = %+v", got)
	}
}

func TestChatMessagesRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := store.AddChatMessage(ctx, 1, core.ChatRoleUser, "q"); err != nil {
			t.Fatal(err)
		}
		if err := store.AddChatMessage(ctx, 1, core.ChatRoleAssistant, "a"); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := store.RecentChatMessages(ctx, 1, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs))
	}
	// oldest first, ending with the latest assistant turn
	if msgs[len(msgs)-1].Role != core.ChatRoleAssistant {
		t.Errorf("last role = %q", msgs[len(msgs)-1].Role)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID < msgs[i-1].ID {
			t.Fatalf("messages not oldest-first: %v", msgs)
		}
	}
}

func TestWeeklyReportCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	week := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	if _, err := store.WeeklyReport(ctx, 1, week); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("miss err = %v, want ErrNotFound", err)
	}

	if err := store.SaveWeeklyReport(ctx, 1, week, "v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveWeeklyReport(ctx, 1, week, "v2"); err != nil {
		t.Fatalf("second save must upsert, got %v", err)
	}

	content, err := store.WeeklyReport(ctx, 1, week)
	if err != nil {
		t.Fatal(err)
	}
	if content != "v2" {
		t.Errorf("content = %q, want v2", content)
	}

	if err := store.DeleteWeeklyReport(ctx, 1, week); err != nil {
		t.Fatal(err)
	}
	if _, err := store.WeeklyReport(ctx, 1, week); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, store, "transport")

	if err := store.CreateTransaction(ctx, newTx(1, core.KindExpense, 15000, core.NewDate(2026, 2, 10), &cat.ID)); err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	week := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := store.SaveWeeklyReport(ctx, 1, week, fmt.Sprintf("rapport %d", i)); err != nil {
				errs <- fmt.Errorf("save report: %w", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := store.SumByKind(ctx, 1, from, to); err != nil {
				errs <- fmt.Errorf("sum by kind: %w", err)
			}
			if _, err := store.ListTransactions(ctx, 1, TxFilter{}); err != nil {
				errs <- fmt.Errorf("list: %w", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access: %v", err)
	}
}

func TestPushSubscriptionUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertPushSubscription(ctx, 1, "https://push.example/abc", "k1", "a1", "Mozilla/5.0 (Android)"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertPushSubscription(ctx, 1, "https://push.example/abc", "k2", "a2", "Mozilla/5.0 (Android)"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertPushSubscription(ctx, 1, "https://push.example/def", "k3", "a3", ""); err != nil {
		t.Fatal(err)
	}

	subs, err := store.ListPushSubscriptions(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("subs = %d, want 2 (endpoint upserted)", len(subs))
	}
	if subs[0].P256dh != "k2" {
		t.Errorf("p256dh = %q, want refreshed k2", subs[0].P256dh)
	}
}
