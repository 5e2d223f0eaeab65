package advisor

import (
	"fmt"
	"strings"

	"finai/internal/core"
)

// buildContext renders the financial snapshot injected into every prompt:
// profile, current-month stats, score and detected leaks, in French.
func buildContext(profile core.Profile, stats core.MonthlyStats, score core.Score, leaks []core.Leak) string {
	name := profile.Name
	if name == "" {
		name = "utilisateur"
	}
	profession := profile.Profession
	if profession == "" {
		profession = "Non renseignée"
	}

	var leaksTxt strings.Builder
	for _, l := range leaks {
		fmt.Fprintf(&leaksTxt, "  - %s: -%s FCFA\n", l.Category, core.GroupThousands(l.Amount))
	}
	if leaksTxt.Len() == 0 {
		leaksTxt.WriteString("  - Aucune détectée\n")
	}

	return fmt.Sprintf(`PROFIL DE %s (%s, %s)
Profession: %s

MOIS EN COURS:
  Revenus:    %s FCFA
  Dépenses:   %s FCFA
  Solde net:  %s FCFA
  Burn rate:  %d%%
  Capacité:   %s FCFA

SCORE FINAI: %d/100
  Revenus: %s | Épargne: %s | Dépenses: %s

FUITES DÉTECTÉES:
%s
Contexte: Afrique Centrale, FCFA, BVMAC disponible.`,
		name, profile.City, profile.Country,
		profession,
		core.GroupThousands(stats.Incomes),
		core.GroupThousands(stats.Expenses),
		core.GroupThousands(stats.Net),
		stats.BurnRate,
		core.GroupThousands(stats.InvestCapacity),
		score.Total,
		score.IncomeGrade, score.SavingGrade, score.ExpenseGrade,
		leaksTxt.String(),
	)
}

// stripFences removes markdown code fences the model sometimes wraps
// around JSON answers.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
