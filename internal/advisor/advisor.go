// Package advisor implements the AI coach: weekly CFO reports, financial
// chat, AI-assisted SMS parsing and 30-day predictions.
//
// Every operation degrades gracefully: when no generator is configured or
// the model call fails, a deterministic French fallback computed from the
// ledger is returned instead. AI errors never propagate to callers.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"finai/internal/core"
	"finai/internal/sms"
)

// Token budgets for the short structured calls. Reports and chat use the
// configured maximum instead.
const (
	smsMaxTokens  = 200
	predMaxTokens = 300
	chatHistory   = 6
)

// Insights provides the analytics inputs embedded in prompts.
type Insights interface {
	CurrentMonthStats(ctx context.Context, ownerID int64) (core.MonthlyStats, error)
	ComputeScore(ctx context.Context, ownerID int64) (core.Score, error)
	Leaks(ctx context.Context, ownerID int64) ([]core.Leak, error)
}

// ProfileReader loads the owner profile for prompt personalization.
type ProfileReader interface {
	GetProfile(ctx context.Context, ownerID int64) (core.Profile, error)
}

// ReportStore caches one generated report per owner and week.
type ReportStore interface {
	WeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) (string, error)
	SaveWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time, content string) error
	DeleteWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) error
}

// ChatStore persists advisor conversation turns.
type ChatStore interface {
	RecentChatMessages(ctx context.Context, ownerID int64, limit int) ([]core.ChatMessage, error)
	AddChatMessage(ctx context.Context, ownerID int64, role, content string) error
}

// Predictions is the 30-day outlook returned by the advisor page.
type Predictions struct {
	PredictedBalance int64  `json:"predicted_balance"`
	BalanceChange    int64  `json:"balance_change"`
	RiskLevel        string `json:"risk_level"`
	RiskDetail       string `json:"risk_detail"`
	BestInvestDate   string `json:"best_invest_date"`
	BestInvestReason string `json:"best_invest_reason"`
}

var ErrEmptyQuestion = errors.New("empty question")

// Service orchestrates prompts, caching and fallbacks. A nil generator is
// valid and means fallback-only mode.
type Service struct {
	gen       TextGenerator
	insights  Insights
	profiles  ProfileReader
	reports   ReportStore
	chats     ChatStore
	maxTokens int64
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(gen TextGenerator, insights Insights, profiles ProfileReader, reports ReportStore, chats ChatStore, maxTokens int64, opts ...Option) *Service {
	s := &Service{
		gen:       gen,
		insights:  insights,
		profiles:  profiles,
		reports:   reports,
		chats:     chats,
		maxTokens: maxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a real generator is configured.
func (s *Service) Enabled() bool { return s.gen != nil }

// WeeklyReport returns the cached report for the current week, generating
// and caching one on first access.
func (s *Service) WeeklyReport(ctx context.Context, ownerID int64) (string, error) {
	week := s.weekStart()
	content, err := s.reports.WeeklyReport(ctx, ownerID, week)
	if err == nil {
		return content, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("load weekly report (owner=%d): %w", ownerID, err)
	}

	content, err = s.generateReport(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if err := s.reports.SaveWeeklyReport(ctx, ownerID, week, content); err != nil {
		return "", fmt.Errorf("save weekly report (owner=%d): %w", ownerID, err)
	}
	return content, nil
}

// RefreshReport discards the current week's cached report and generates a
// fresh one.
func (s *Service) RefreshReport(ctx context.Context, ownerID int64) (string, error) {
	week := s.weekStart()
	if err := s.reports.DeleteWeeklyReport(ctx, ownerID, week); err != nil && !errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("delete weekly report (owner=%d): %w", ownerID, err)
	}
	content, err := s.generateReport(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if err := s.reports.SaveWeeklyReport(ctx, ownerID, week, content); err != nil {
		return "", fmt.Errorf("save weekly report (owner=%d): %w", ownerID, err)
	}
	return content, nil
}

// Chat answers a financial question with recent conversation context and
// persists both turns.
func (s *Service) Chat(ctx context.Context, ownerID int64, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	answer := s.generateAnswer(ctx, ownerID, question)

	if err := s.chats.AddChatMessage(ctx, ownerID, core.ChatRoleUser, question); err != nil {
		return "", fmt.Errorf("persist chat question (owner=%d): %w", ownerID, err)
	}
	if err := s.chats.AddChatMessage(ctx, ownerID, core.ChatRoleAssistant, answer); err != nil {
		return "", fmt.Errorf("persist chat answer (owner=%d): %w", ownerID, err)
	}
	return answer, nil
}

// History returns the most recent conversation turns, oldest first.
func (s *Service) History(ctx context.Context, ownerID int64, limit int) ([]core.ChatMessage, error) {
	return s.chats.RecentChatMessages(ctx, ownerID, limit)
}

// ParseSMS extracts a transaction candidate with the model, falling back
// to the regex parser when the model is unavailable or answers garbage.
func (s *Service) ParseSMS(ctx context.Context, ownerID int64, smsText string) *sms.Candidate {
	smsText = strings.TrimSpace(smsText)
	if s.gen == nil {
		return sms.Parse(smsText, s.now())
	}

	prompt := fmt.Sprintf(`Extrais les infos de ce SMS Mobile Money camerounais.
Réponds UNIQUEMENT en JSON valide, sans texte autour.
SMS: "%s"
JSON: {"amount":<int FCFA>,"type":"income"|"expense","description":"<court>","network":"MTN MoMo"|"Orange Money"|"Mobile Money","date":"<YYYY-MM-DD>|null"}`, smsText)

	raw, err := s.gen.Generate(ctx, GenerateRequest{
		Messages:  []Message{{Role: core.ChatRoleUser, Content: prompt}},
		MaxTokens: smsMaxTokens,
	})
	if err != nil {
		return sms.Parse(smsText, s.now())
	}

	var parsed struct {
		Amount      int64   `json:"amount"`
		Kind        string  `json:"type"`
		Description string  `json:"description"`
		Network     string  `json:"network"`
		Date        *string `json:"date"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return sms.Parse(smsText, s.now())
	}
	if parsed.Amount <= 0 || !core.TxKind(parsed.Kind).Valid() {
		return sms.Parse(smsText, s.now())
	}

	date := s.now().Format("2006-01-02")
	if parsed.Date != nil && *parsed.Date != "" && *parsed.Date != "null" {
		date = *parsed.Date
	}
	return &sms.Candidate{
		Amount:      parsed.Amount,
		Kind:        parsed.Kind,
		Description: parsed.Description,
		Network:     parsed.Network,
		Date:        date,
		RawSMS:      smsText,
		Source:      string(core.SourceAI),
	}
}

// Predict returns the 30-day outlook, model-generated when possible.
func (s *Service) Predict(ctx context.Context, ownerID int64) (Predictions, error) {
	stats, err := s.insights.CurrentMonthStats(ctx, ownerID)
	if err != nil {
		return Predictions{}, err
	}
	if s.gen == nil {
		return s.fallbackPredictions(stats), nil
	}

	snapshot, err := s.contextFor(ctx, ownerID)
	if err != nil {
		return Predictions{}, err
	}
	prompt := snapshot + `
Génère des prédictions 30 jours. JSON uniquement:
{"predicted_balance":<int>,"balance_change":<int>,"risk_level":"Faible"|"Moyen"|"Élevé","risk_detail":"<court>","best_invest_date":"<YYYY-MM-DD>","best_invest_reason":"<court>"}`

	raw, err := s.gen.Generate(ctx, GenerateRequest{
		Messages:  []Message{{Role: core.ChatRoleUser, Content: prompt}},
		MaxTokens: predMaxTokens,
	})
	if err != nil {
		return s.fallbackPredictions(stats), nil
	}

	var preds Predictions
	if err := json.Unmarshal([]byte(stripFences(raw)), &preds); err != nil {
		return s.fallbackPredictions(stats), nil
	}
	return preds, nil
}

func (s *Service) generateReport(ctx context.Context, ownerID int64) (string, error) {
	stats, err := s.insights.CurrentMonthStats(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("load month stats (owner=%d): %w", ownerID, err)
	}
	if s.gen == nil {
		return fallbackReport(stats), nil
	}

	snapshot, err := s.contextFor(ctx, ownerID)
	if err != nil {
		return "", err
	}
	prompt := snapshot + `

Rédigez un rapport CFO hebdomadaire en français, personnel et direct (tutoyer).
3 paragraphes courts: bilan semaine, alerte principale, recommandation concrète.
Max 180 mots. Pas de titres.`

	content, err := s.gen.Generate(ctx, GenerateRequest{
		Messages:  []Message{{Role: core.ChatRoleUser, Content: prompt}},
		MaxTokens: s.maxTokens,
	})
	if err != nil || strings.TrimSpace(content) == "" {
		return fallbackReport(stats), nil
	}
	return content, nil
}

func (s *Service) generateAnswer(ctx context.Context, ownerID int64, question string) string {
	if s.gen == nil {
		return fallbackChat()
	}
	snapshot, err := s.contextFor(ctx, ownerID)
	if err != nil {
		return fallbackChat()
	}

	profile, _ := s.profiles.GetProfile(ctx, ownerID)
	name := profile.Name
	if name == "" {
		name = "utilisateur"
	}
	system := fmt.Sprintf(`Tu es le CFO personnel de %s.
%s
Réponds en français, max 150 mots, ancré dans la réalité (FCFA, BVMAC, MoMo).
Ne garantis pas de rendements. Sois direct et pratique.`, name, snapshot)

	history, err := s.chats.RecentChatMessages(ctx, ownerID, chatHistory)
	if err != nil {
		history = nil
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, Message{Role: core.ChatRoleUser, Content: question})

	answer, err := s.gen.Generate(ctx, GenerateRequest{
		System:    system,
		Messages:  msgs,
		MaxTokens: s.maxTokens,
	})
	if err != nil || strings.TrimSpace(answer) == "" {
		return fallbackChat()
	}
	return answer
}

// contextFor assembles the prompt snapshot. A missing profile is fine;
// analytics failures are not.
func (s *Service) contextFor(ctx context.Context, ownerID int64) (string, error) {
	profile, err := s.profiles.GetProfile(ctx, ownerID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("load profile (owner=%d): %w", ownerID, err)
	}
	stats, err := s.insights.CurrentMonthStats(ctx, ownerID)
	if err != nil {
		return "", err
	}
	score, err := s.insights.ComputeScore(ctx, ownerID)
	if err != nil {
		return "", err
	}
	leaks, err := s.insights.Leaks(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return buildContext(profile, stats, score, leaks), nil
}

// weekStart returns the Monday of the current week at UTC midnight.
func (s *Service) weekStart() time.Time {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func (s *Service) fallbackPredictions(stats core.MonthlyStats) Predictions {
	risk := "Faible"
	if stats.BurnRate >= 50 {
		risk = "Moyen"
	}
	now := s.now()
	nextMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	change := stats.Net * 5 / 100
	return Predictions{
		PredictedBalance: stats.Net + change,
		BalanceChange:    change,
		RiskLevel:        risk,
		RiskDetail:       "Basé sur vos habitudes récentes",
		BestInvestDate:   nextMonth.Format("2006-01-02"),
		BestInvestReason: "Prochain appel d'offres BVMAC estimé",
	}
}

func fallbackReport(stats core.MonthlyStats) string {
	return fmt.Sprintf(
		"Ce mois, ton solde net est %s FCFA (burn rate %d%%). "+
			"Tes revenus de %s FCFA couvrent bien tes dépenses. "+
			"Ta capacité d'investissement de %s FCFA mérite d'être orientée vers des obligations BVMAC à 6%%. "+
			"Configure ta clé ANTHROPIC_API_KEY pour des analyses personnalisées.",
		core.GroupThousands(stats.Net), stats.BurnRate,
		core.GroupThousands(stats.Incomes),
		core.GroupThousands(stats.InvestCapacity),
	)
}

func fallbackChat() string {
	return "Configurez votre clé ANTHROPIC_API_KEY dans .env pour activer le conseiller IA. " +
		"En attendant, explorez les onglets Diagnostic et Simulateur pour vos analyses."
}
