// Package sms extracts transaction candidates from Mobile Money
// notification messages (MTN MoMo, Orange Money and similar).
//
// Parsing is heuristic and regex based. A message that yields no amount
// is rejected outright; everything else produces a best-effort candidate
// the caller can confirm or edit before saving.
package sms

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"finai/internal/core"
)

// Candidate is a parsed, not yet persisted, transaction proposal.
type Candidate struct {
	Amount      int64  `json:"amount"`
	Kind        string `json:"type"`
	Description string `json:"description"`
	Network     string `json:"network"`
	Date        string `json:"date"`
	RawSMS      string `json:"raw_sms"`
	Source      string `json:"source"`
}

const minMessageLen = 10

var (
	// Amount followed by a currency marker. Groups of digits may be
	// separated by spaces ("25 000 FCFA").
	amountRe = regexp.MustCompile(`(?i)(\d[\d ]{1,10})\s*(?:F\s?CFA|FCFA|XAF)`)

	// Income keywords. No trailing \b: Go's \b is ASCII only and never
	// matches after an accented final letter like the é in "crédité".
	incomeRe = regexp.MustCompile(`(?i)\b(reçu|received|crédit|crédité|déposé)`)

	mtnRe    = regexp.MustCompile(`(?i)\bMTN\b`)
	orangeRe = regexp.MustCompile(`(?i)\bOrange\b`)

	// Counterparty after "de"/"from", e.g. "de DUPOND Jean".
	senderRe = regexp.MustCompile(`(?:de|from)\s+([A-Z][a-zA-Z\s]{2,25})`)
)

// Parse extracts a transaction candidate from a raw SMS body. It returns
// nil when the message is too short or carries no recognizable amount.
func Parse(raw string, now time.Time) *Candidate {
	msg := strings.TrimSpace(raw)
	if utf8.RuneCountInString(msg) < minMessageLen {
		return nil
	}

	amount := parseAmount(msg)
	if amount <= 0 {
		return nil
	}

	kind := core.KindExpense
	if incomeRe.MatchString(msg) {
		kind = core.KindIncome
	}

	network := detectNetwork(msg)

	return &Candidate{
		Amount:      amount,
		Kind:        string(kind),
		Description: describe(msg, kind, network),
		Network:     network,
		Date:        now.Format("2006-01-02"),
		RawSMS:      msg,
		Source:      string(core.SourceSMS),
	}
}

func parseAmount(msg string) int64 {
	m := amountRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	digits := strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "")
	var amount int64
	for _, r := range digits {
		amount = amount*10 + int64(r-'0')
	}
	return amount
}

func detectNetwork(msg string) string {
	switch {
	case mtnRe.MatchString(msg):
		return "MTN MoMo"
	case orangeRe.MatchString(msg):
		return "Orange Money"
	default:
		return "Mobile Money"
	}
}

// describe builds a short French description from the counterparty name,
// falling back to the network when no name can be extracted.
func describe(msg string, kind core.TxKind, network string) string {
	who := network
	if m := senderRe.FindStringSubmatch(msg); m != nil {
		who = strings.TrimSpace(m[1])
	}
	if kind == core.KindIncome {
		return "Reçu de " + who
	}
	return "Envoyé à " + who
}
