package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finai/internal/core"
)

type stubGen struct {
	reply string
	err   error
	calls int
	last  GenerateRequest
}

func (g *stubGen) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.calls++
	g.last = req
	return g.reply, g.err
}

type fakeInsights struct {
	stats    core.MonthlyStats
	statsErr error
	score    core.Score
	leaks    []core.Leak
}

func (f *fakeInsights) CurrentMonthStats(context.Context, int64) (core.MonthlyStats, error) {
	return f.stats, f.statsErr
}
func (f *fakeInsights) ComputeScore(context.Context, int64) (core.Score, error) {
	return f.score, nil
}
func (f *fakeInsights) Leaks(context.Context, int64) ([]core.Leak, error) {
	return f.leaks, nil
}

type fakeProfiles struct{ profile core.Profile }

func (f *fakeProfiles) GetProfile(context.Context, int64) (core.Profile, error) {
	return f.profile, nil
}

type fakeReports struct {
	saved map[string]string
}

func reportKey(owner int64, week time.Time) string {
	return week.Format("2006-01-02")
}

func (f *fakeReports) WeeklyReport(_ context.Context, owner int64, week time.Time) (string, error) {
	if c, ok := f.saved[reportKey(owner, week)]; ok {
		return c, nil
	}
	return "", core.ErrNotFound
}

func (f *fakeReports) SaveWeeklyReport(_ context.Context, owner int64, week time.Time, content string) error {
	f.saved[reportKey(owner, week)] = content
	return nil
}

func (f *fakeReports) DeleteWeeklyReport(_ context.Context, owner int64, week time.Time) error {
	delete(f.saved, reportKey(owner, week))
	return nil
}

type fakeChats struct {
	msgs []core.ChatMessage
}

func (f *fakeChats) RecentChatMessages(_ context.Context, owner int64, limit int) ([]core.ChatMessage, error) {
	msgs := f.msgs
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeChats) AddChatMessage(_ context.Context, owner int64, role, content string) error {
	f.msgs = append(f.msgs, core.ChatMessage{OwnerID: owner, Role: role, Content: content})
	return nil
}

var advisorClock = func() time.Time {
	// A Wednesday; the week starts Monday 2026-02-09.
	return time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
}

func newTestAdvisor(gen TextGenerator) (*Service, *fakeReports, *fakeChats) {
	insights := &fakeInsights{
		stats: core.MonthlyStats{Incomes: 600000, Expenses: 250000, Net: 350000, BurnRate: 41, InvestCapacity: 350000},
		score: core.Score{Total: 78, IncomeGrade: "A+", SavingGrade: "A", ExpenseGrade: "B"},
		leaks: []core.Leak{{Category: "Transport", Amount: 90000}},
	}
	reports := &fakeReports{saved: map[string]string{}}
	chats := &fakeChats{}
	svc := New(gen, insights, &fakeProfiles{profile: core.Profile{Name: "Awa", City: "Douala", Country: "Cameroun"}},
		reports, chats, 1024, WithClock(advisorClock))
	return svc, reports, chats
}

func TestWeeklyReportCachesPerWeek(t *testing.T) {
	gen := &stubGen{reply: "Rapport généré."}
	svc, reports, _ := newTestAdvisor(gen)

	first, err := svc.WeeklyReport(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if first != "Rapport généré." {
		t.Fatalf("report = %q", first)
	}
	if _, ok := reports.saved["2026-02-09"]; !ok {
		t.Fatal("report not cached under the Monday week start")
	}

	second, err := svc.WeeklyReport(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("second read = %q, want cached %q", second, first)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestWeeklyReportFallbackOnGeneratorError(t *testing.T) {
	svc, _, _ := newTestAdvisor(&stubGen{err: errors.New("api down")})
	report, err := svc.WeeklyReport(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "350,000 FCFA") || !strings.Contains(report, "burn rate 41%") {
		t.Errorf("fallback report missing computed figures: %q", report)
	}
}

func TestWeeklyReportFallbackWithoutGenerator(t *testing.T) {
	svc, _, _ := newTestAdvisor(nil)
	report, err := svc.WeeklyReport(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "ANTHROPIC_API_KEY") {
		t.Errorf("fallback report = %q", report)
	}
}

func TestWeeklyReportPropagatesStatsError(t *testing.T) {
	insights := &fakeInsights{statsErr: errors.New("db unavailable")}
	reports := &fakeReports{saved: map[string]string{}}
	svc := New(nil, insights, &fakeProfiles{}, reports, &fakeChats{}, 1024, WithClock(advisorClock))

	if _, err := svc.WeeklyReport(context.Background(), 1); err == nil {
		t.Fatal("expected the stats error to surface, got nil")
	}
	if len(reports.saved) != 0 {
		t.Errorf("saved = %v, want nothing cached after a failed load", reports.saved)
	}

	if _, err := svc.RefreshReport(context.Background(), 1); err == nil {
		t.Fatal("refresh must surface the stats error too")
	}
	if len(reports.saved) != 0 {
		t.Errorf("saved = %v after refresh, want nothing cached", reports.saved)
	}
}

func TestRefreshReportReplacesCache(t *testing.T) {
	gen := &stubGen{reply: "v1"}
	svc, _, _ := newTestAdvisor(gen)

	if _, err := svc.WeeklyReport(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	gen.reply = "v2"
	refreshed, err := svc.RefreshReport(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed != "v2" {
		t.Fatalf("refreshed = %q, want v2", refreshed)
	}
	cached, err := svc.WeeklyReport(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if cached != "v2" {
		t.Errorf("cache still holds %q after refresh", cached)
	}
}

func TestChatPersistsBothTurns(t *testing.T) {
	gen := &stubGen{reply: "Réduis tes dépenses transport."}
	svc, _, chats := newTestAdvisor(gen)

	answer, err := svc.Chat(context.Background(), 1, "  Comment épargner plus ?  ")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Réduis tes dépenses transport." {
		t.Fatalf("answer = %q", answer)
	}
	if len(chats.msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(chats.msgs))
	}
	if chats.msgs[0].Role != core.ChatRoleUser || chats.msgs[0].Content != "Comment épargner plus ?" {
		t.Errorf("first turn = %+v", chats.msgs[0])
	}
	if chats.msgs[1].Role != core.ChatRoleAssistant {
		t.Errorf("second turn role = %q", chats.msgs[1].Role)
	}
	if !strings.Contains(gen.last.System, "CFO personnel de Awa") {
		t.Errorf("system prompt = %q", gen.last.System)
	}
}

func TestChatEmptyQuestion(t *testing.T) {
	svc, _, _ := newTestAdvisor(&stubGen{reply: "x"})
	if _, err := svc.Chat(context.Background(), 1, "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestChatSendsRecentHistory(t *testing.T) {
	gen := &stubGen{reply: "ok"}
	svc, _, chats := newTestAdvisor(gen)
	for i := 0; i < 5; i++ {
		chats.msgs = append(chats.msgs,
			core.ChatMessage{Role: core.ChatRoleUser, Content: "q"},
			core.ChatMessage{Role: core.ChatRoleAssistant, Content: "a"},
		)
	}

	if _, err := svc.Chat(context.Background(), 1, "nouvelle question"); err != nil {
		t.Fatal(err)
	}
	// 6 history turns plus the new question
	if len(gen.last.Messages) != 7 {
		t.Fatalf("sent %d messages, want 7", len(gen.last.Messages))
	}
	if gen.last.Messages[6].Content != "nouvelle question" {
		t.Errorf("last message = %q", gen.last.Messages[6].Content)
	}
}

func TestParseSMSStripsFences(t *testing.T) {
	gen := &stubGen{reply: "```json\n{\"amount\":25000,\"type\":\"income\",\"description\":\"Reçu de DUPOND Jean\",\"network\":\"MTN MoMo\",\"date\":null}\n```"}
	svc, _, _ := newTestAdvisor(gen)

	got := svc.ParseSMS(context.Background(), 1, "Vous avez reçu 25000 FCFA de DUPOND Jean via MTN MoMo")
	if got == nil {
		t.Fatal("expected a candidate")
	}
	if got.Amount != 25000 || got.Kind != "income" || got.Network != "MTN MoMo" {
		t.Errorf("candidate = %+v", got)
	}
	if got.Source != "ai" {
		t.Errorf("source = %q, want ai", got.Source)
	}
	if got.Date != "2026-02-11" {
		t.Errorf("date = %q, want clock date when model says null", got.Date)
	}
}

func TestParseSMSFallsBackToRegex(t *testing.T) {
	gen := &stubGen{reply: "désolé, je ne peux pas"}
	svc, _, _ := newTestAdvisor(gen)

	got := svc.ParseSMS(context.Background(), 1, "Vous avez reçu 25000 FCFA de DUPOND Jean via MTN MoMo")
	if got == nil {
		t.Fatal("expected regex fallback candidate")
	}
	if got.Source != "sms" {
		t.Errorf("source = %q, want sms fallback", got.Source)
	}
	if got.Amount != 25000 {
		t.Errorf("amount = %d, want 25000", got.Amount)
	}
}

func TestPredictFallback(t *testing.T) {
	svc, _, _ := newTestAdvisor(nil)
	preds, err := svc.Predict(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if preds.BalanceChange != 17500 || preds.PredictedBalance != 367500 {
		t.Errorf("preds = %+v", preds)
	}
	if preds.RiskLevel != "Faible" {
		t.Errorf("risk = %q, want Faible at burn 41", preds.RiskLevel)
	}
	if preds.BestInvestDate != "2026-03-01" {
		t.Errorf("invest date = %q, want first of next month", preds.BestInvestDate)
	}
}
