package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/events"
	"kanakku/internal/storage"

	"github.com/shopspring/decimal"
)

// Invalidator drops cached read-side aggregates for a user. Mutating
// operations call it synchronously before returning.
type Invalidator interface {
	InvalidateUser(userID string)
}

// Selection identifies one due occurrence the user confirmed. A non-zero
// Cost overrides the template default; a negative override is rejected, not
// silently replaced by the default.
type Selection struct {
	TemplateID string
	DateISO    string
	Cost       decimal.Decimal
}

// ConfirmationEngine materializes confirmed due occurrences into expense
// headers and advances template watermarks. The whole batch runs under the
// user's advisory lock; individual selection failures are skipped and
// logged, never abort the batch.
type ConfirmationEngine struct {
	repos     *storage.Repositories
	resolver  *DueResolver
	locks     *userLocks
	publisher *events.Publisher
	cache     Invalidator
}

func NewConfirmationEngine(repos *storage.Repositories, resolver *DueResolver, locks *userLocks, publisher *events.Publisher, cache Invalidator) *ConfirmationEngine {
	return &ConfirmationEngine{
		repos:     repos,
		resolver:  resolver,
		locks:     locks,
		publisher: publisher,
		cache:     cache,
	}
}

// Confirm processes a batch of selections and returns how many were
// materialized into new expense headers. Selections that were never due,
// lie beyond asOf, or resolve to a non-positive cost are skipped with no
// side effects; already-satisfied occurrences create nothing but still
// count toward the watermark.
func (e *ConfirmationEngine) Confirm(ctx context.Context, userID string, asOf core.Date, selections []Selection) (int, error) {
	mu := e.locks.lock(userID)
	defer mu.Unlock()

	due, err := e.resolver.DueFor(ctx, userID, asOf)
	if err != nil {
		return 0, fmt.Errorf("resolve due list: %w", err)
	}
	dueByKey := make(map[string]core.DueOccurrence, len(due))
	for _, occ := range due {
		dueByKey[occ.TemplateID+"|"+occ.Date.ISO()] = occ
	}

	templates, err := e.repos.Templates.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}
	tplByID := make(map[string]core.RecurringTemplate, len(templates))
	for _, tpl := range templates {
		tplByID[tpl.ID] = tpl
	}
	satisfied, err := e.resolver.satisfiedKeys(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}

	processed := 0
	// Watermark per template is advanced once, to the max confirmed date.
	maxConfirmed := make(map[string]core.Date)

	for _, sel := range selections {
		date, err := core.ParseDate(sel.DateISO)
		if err != nil {
			slog.WarnContext(ctx, "skipping selection with unparsable date",
				"template_id", sel.TemplateID, "date", sel.DateISO)
			continue
		}
		if date.After(asOf.Time) {
			slog.WarnContext(ctx, "skipping selection beyond the as-of date",
				"template_id", sel.TemplateID, "date", date.ISO(), "as_of", asOf.ISO())
			continue
		}

		// Re-resolve against the current due list: stale client state, or an
		// occurrence satisfied since the list was fetched, drops out here.
		occ, ok := dueByKey[sel.TemplateID+"|"+date.ISO()]
		if !ok {
			// Not due. The watermark moves only for dates the template
			// genuinely produces AND that an existing expense already
			// satisfies; anything else is stale garbage, skipped with no
			// side effects so an unconfirmed date can never silence future
			// occurrences.
			tpl, known := tplByID[sel.TemplateID]
			if !known || !isOccurrence(tpl, date) ||
				!satisfied[dedupKey(date, tpl.Description, tpl.Category)] {
				slog.DebugContext(ctx, "skipping selection that was never due",
					"template_id", sel.TemplateID, "date", date.ISO())
				continue
			}
			slog.DebugContext(ctx, "selection already satisfied",
				"template_id", sel.TemplateID, "date", date.ISO())
			if cur, ok := maxConfirmed[sel.TemplateID]; !ok || date.After(cur.Time) {
				maxConfirmed[sel.TemplateID] = date
			}
			continue
		}

		cost := occ.SuggestedCost
		if !sel.Cost.IsZero() {
			// An explicit override wins, even a non-positive one: the skip
			// below rejects it rather than falling back to the default.
			cost = sel.Cost
		}
		if !cost.IsPositive() {
			slog.WarnContext(ctx, "skipping selection with non-positive cost",
				"template_id", sel.TemplateID, "date", date.ISO())
			continue
		}

		header := core.ExpenseHeader{
			UserEmail:   userID,
			PurchasedAt: date.Time,
			Category:    occ.Category,
			Amount:      cost,
			Description: occ.Description,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := e.repos.Expenses.Append(ctx, header)
		if err != nil {
			slog.ErrorContext(ctx, "failed to materialize occurrence",
				"template_id", sel.TemplateID, "date", date.ISO(), "error", err)
			continue
		}
		delete(dueByKey, sel.TemplateID+"|"+date.ISO())

		if cur, ok := maxConfirmed[sel.TemplateID]; !ok || date.After(cur.Time) {
			maxConfirmed[sel.TemplateID] = date
		}
		processed++

		if err := e.publisher.Publish(ctx, events.NewExpenseEvent(events.ExpenseConfirmed, userID, id)); err != nil {
			slog.ErrorContext(ctx, "failed to publish confirmation event",
				"expense_id", id, "error", err)
		}
	}

	for templateID, date := range maxConfirmed {
		if err := e.repos.Templates.AdvanceWatermark(ctx, userID, templateID, date); err != nil {
			slog.ErrorContext(ctx, "failed to advance watermark",
				"template_id", templateID, "date", date.ISO(), "error", err)
		}
	}

	if processed > 0 && e.cache != nil {
		e.cache.InvalidateUser(userID)
	}

	slog.InfoContext(ctx, "confirmation batch complete",
		"user", userID, "selections", len(selections), "processed", processed)
	return processed, nil
}
