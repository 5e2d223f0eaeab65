// Package core provides the domain value types of the ledger.
//
// Amounts are whole FCFA (no subunit in circulation), stored as int64.
// This file contains parsing and display formatting for those amounts.
package core

import (
	"strconv"
	"strings"
)

// Money is an amount in whole FCFA. Always non-negative on persisted
// entities; computed values (net, invest capacity) may be negative.
type Money struct {
	Units int64
}

func (m Money) Validate() error {
	if m.Units <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts a user-entered amount string to whole FCFA.
//
// It tolerates internal spaces and non-breaking spaces used as thousands
// separators ("25 000"). Decimals, signs and zero amounts are rejected:
// the currency has no subunit and the ledger never stores signed amounts.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	units, err := strconv.ParseInt(s, 10, 64)
	if err != nil || units <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Units: units}, nil
}

// FormatFCFA renders an amount with thousands separators and the currency
// marker, e.g. 1234567 -> "1,234,567 FCFA". Both the AI prompt context and
// the deterministic fallbacks go through this function so their numeric
// formatting stays identical.
func FormatFCFA(units int64) string {
	return GroupThousands(units) + " FCFA"
}

// GroupThousands renders an int64 with comma thousands separators.
func GroupThousands(units int64) string {
	neg := units < 0
	if neg {
		units = -units
	}
	digits := strconv.FormatInt(units, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
