package analytics

import (
	"context"

	"finai/internal/core"
)

// maxLeaks caps how many top expense categories are flagged.
const maxLeaks = 3

// Leaks returns the current month's heaviest expense categories, largest
// first, at most three. Uncategorized spend is reported under the generic
// "Divers" bucket.
func (s *Service) Leaks(ctx context.Context, ownerID int64) ([]core.Leak, error) {
	now := s.now()
	rows, err := s.ExpenseByCategory(ctx, ownerID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, err
	}
	if len(rows) > maxLeaks {
		rows = rows[:maxLeaks]
	}

	leaks := make([]core.Leak, 0, len(rows))
	for _, r := range rows {
		leaks = append(leaks, core.Leak{
			Category: r.Name,
			Slug:     r.Slug,
			Icon:     r.Icon,
			Color:    r.Color,
			Amount:   r.Total,
		})
	}
	return leaks, nil
}
