package services

import (
	"context"
	"log/slog"

	"kanakku/internal/core"
	"kanakku/internal/events"
	"kanakku/internal/storage"
)

// IngestResult reports the ids created by a successful ingestion.
type IngestResult struct {
	ExpenseID string
	ItemIDs   []string
}

// IngestWriter performs the two-step receipt write: header first, then line
// items, with a compensating header delete when the item step fails. The
// store has no multi-row transactions, so the saga is the only way to avoid
// an orphaned header.
type IngestWriter struct {
	repos     *storage.Repositories
	locks     *userLocks
	publisher *events.Publisher
	cache     Invalidator
}

func NewIngestWriter(repos *storage.Repositories, locks *userLocks, publisher *events.Publisher, cache Invalidator) *IngestWriter {
	return &IngestWriter{
		repos:     repos,
		locks:     locks,
		publisher: publisher,
		cache:     cache,
	}
}

// Ingest validates, deduplicates and writes one receipt. A fingerprint match
// returns a ConflictError with the existing id unless force is set, so a
// client retrying a timed-out POST converges on the first write.
func (w *IngestWriter) Ingest(ctx context.Context, userEmail string, header core.ExpenseHeader, items []core.ExpenseItem, force bool) (IngestResult, error) {
	header.UserEmail = userEmail

	if err := Reconcile(header, items); err != nil {
		return IngestResult{}, err
	}
	if header.Fingerprint == "" {
		header.Fingerprint = Fingerprint(header, items)
	}

	mu := w.locks.lock(userEmail)
	defer mu.Unlock()

	existing, err := w.repos.Expenses.FindByFingerprint(ctx, userEmail, header.Fingerprint)
	if err != nil {
		return IngestResult{}, err
	}
	if existing != nil && !force {
		return IngestResult{}, &core.ConflictError{ExistingID: existing.ID}
	}

	expenseID, err := w.repos.Expenses.Append(ctx, header)
	if err != nil {
		return IngestResult{}, err
	}

	itemIDs, err := w.repos.Items.AppendAll(ctx, userEmail, expenseID, items)
	if err != nil {
		// Compensate: remove the rows already written, items first, then the
		// header, so no orphaned header survives a partial item write.
		if cerr := w.compensate(ctx, expenseID); cerr != nil {
			return IngestResult{}, &core.InconsistentStateError{ExpenseID: expenseID, Cause: cerr}
		}
		slog.WarnContext(ctx, "rolled back partial receipt write",
			"expense_id", expenseID, "error", err)
		return IngestResult{}, err
	}

	if w.cache != nil {
		w.cache.InvalidateUser(userEmail)
	}
	if err := w.publisher.Publish(ctx, events.NewExpenseEvent(events.ExpenseCreated, userEmail, expenseID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest event",
			"expense_id", expenseID, "error", err)
	}

	slog.InfoContext(ctx, "ingested receipt",
		"user", userEmail, "expense_id", expenseID, "items", len(itemIDs))
	return IngestResult{ExpenseID: expenseID, ItemIDs: itemIDs}, nil
}

func (w *IngestWriter) compensate(ctx context.Context, expenseID string) error {
	if err := w.repos.Items.DeleteByExpense(ctx, expenseID); err != nil {
		return err
	}
	return w.repos.Expenses.Delete(ctx, expenseID)
}
