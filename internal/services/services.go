package services

import (
	"kanakku/internal/cache"
	"kanakku/internal/events"
	"kanakku/internal/storage"
)

// Services wires the engine components over one set of repositories. Confirm
// and ingest share the per-user lock; every mutation path shares the
// analysis cache for invalidation.
type Services struct {
	Due      *DueResolver
	Confirm  *ConfirmationEngine
	Ingest   *IngestWriter
	Expenses *ExpenseService
	Analysis *AnalysisService
}

func New(repos *storage.Repositories, publisher *events.Publisher, memo *cache.LRUCache[Summary]) *Services {
	locks := newUserLocks()
	analysis := NewAnalysisService(repos, memo)
	due := NewDueResolver(repos)
	return &Services{
		Due:      due,
		Confirm:  NewConfirmationEngine(repos, due, locks, publisher, analysis),
		Ingest:   NewIngestWriter(repos, locks, publisher, analysis),
		Expenses: NewExpenseService(repos, publisher, analysis),
		Analysis: analysis,
	}
}
