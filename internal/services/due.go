package services

import (
	"context"
	"fmt"
	"log/slog"

	"kanakku/internal/core"
	"kanakku/internal/storage"
)

// DueResolver computes the actionable due list: recurrence output minus the
// months an expense header already satisfies. The exclusion is a secondary
// idempotency guard, independent of the watermark, covering records added by
// paths that bypass confirmation (manual entry).
type DueResolver struct {
	repos *storage.Repositories
}

func NewDueResolver(repos *storage.Repositories) *DueResolver {
	return &DueResolver{repos: repos}
}

// DueFor returns the occurrences still due for the user as of the given day,
// ordered by template then date.
func (r *DueResolver) DueFor(ctx context.Context, userID string, asOf core.Date) ([]core.DueOccurrence, error) {
	templates, err := r.repos.Templates.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	satisfied, err := r.satisfiedKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var out []core.DueOccurrence
	for _, tpl := range templates {
		for _, date := range DueDates(tpl, asOf) {
			if satisfied[dedupKey(date, tpl.Description, tpl.Category)] {
				continue
			}
			out = append(out, core.DueOccurrence{
				TemplateID:    tpl.ID,
				Date:          date,
				Description:   tpl.Description,
				Category:      tpl.Category,
				SuggestedCost: tpl.DefaultCost,
			})
		}
	}

	slog.DebugContext(ctx, "resolved due occurrences",
		"user", userID, "as_of", asOf.ISO(), "due", len(out))
	return out, nil
}

// satisfiedKeys collects the (month, description, category) triples already
// covered by an existing expense header.
func (r *DueResolver) satisfiedKeys(ctx context.Context, userID string) (map[string]bool, error) {
	headers, err := r.repos.Expenses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(headers))
	for _, h := range headers {
		keys[dedupKey(core.DateOf(h.PurchasedAt), h.Description, h.Category)] = true
	}
	return keys, nil
}

// dedupKey matches on calendar month plus exact description and category
// strings. Deliberately coarse: day-of-month drift from edits still matches,
// while a renamed description stops matching.
func dedupKey(date core.Date, description, category string) string {
	return date.MonthKey() + "|" + description + "|" + category
}
