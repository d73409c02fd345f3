package services

import (
	"context"
	"fmt"
	"log/slog"

	"kanakku/internal/core"
	"kanakku/internal/events"
	"kanakku/internal/storage"
)

// ExpenseService handles the manual expense paths: add, edit, delete, list.
// Every mutation invalidates the analysis cache before returning and emits
// an event for downstream consumers.
type ExpenseService struct {
	repos     *storage.Repositories
	publisher *events.Publisher
	cache     Invalidator
}

func NewExpenseService(repos *storage.Repositories, publisher *events.Publisher, cache Invalidator) *ExpenseService {
	return &ExpenseService{
		repos:     repos,
		publisher: publisher,
		cache:     cache,
	}
}

// Create validates and appends a manually entered expense header. Manual
// entries carry no fingerprint.
func (s *ExpenseService) Create(ctx context.Context, header core.ExpenseHeader) (string, error) {
	if err := header.Validate(); err != nil {
		return "", &core.ValidationError{Msg: err.Error()}
	}

	id, err := s.repos.Expenses.Append(ctx, header)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}

	s.invalidate(header.UserEmail)
	s.publish(ctx, events.ExpenseCreated, header.UserEmail, id)
	return id, nil
}

// Update rewrites an existing header after checking ownership.
func (s *ExpenseService) Update(ctx context.Context, header core.ExpenseHeader) error {
	if err := header.Validate(); err != nil {
		return &core.ValidationError{Msg: err.Error()}
	}

	existing, err := s.repos.Expenses.Get(ctx, header.ID)
	if err != nil {
		return err
	}
	if existing.UserEmail != header.UserEmail {
		return &core.NotFoundError{Kind: "expense", ID: header.ID}
	}
	// Edits never change the dedup identity of an ingested receipt.
	header.Fingerprint = existing.Fingerprint

	if err := s.repos.Expenses.Update(ctx, header); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	s.invalidate(header.UserEmail)
	s.publish(ctx, events.ExpenseUpdated, header.UserEmail, header.ID)
	return nil
}

// Delete removes a header and, transitively, its line items.
func (s *ExpenseService) Delete(ctx context.Context, userEmail, expenseID string) error {
	existing, err := s.repos.Expenses.Get(ctx, expenseID)
	if err != nil {
		return err
	}
	if existing.UserEmail != userEmail {
		return &core.NotFoundError{Kind: "expense", ID: expenseID}
	}

	if err := s.repos.Items.DeleteByExpense(ctx, expenseID); err != nil {
		return fmt.Errorf("delete expense items: %w", err)
	}
	if err := s.repos.Expenses.Delete(ctx, expenseID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.invalidate(userEmail)
	s.publish(ctx, events.ExpenseDeleted, userEmail, expenseID)
	return nil
}

// List returns the user's headers, optionally narrowed to a year or month.
func (s *ExpenseService) List(ctx context.Context, userEmail string, year, month int) ([]core.ExpenseHeader, error) {
	headers, err := s.repos.Expenses.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	if year == 0 && month == 0 {
		return headers, nil
	}
	var out []core.ExpenseHeader
	for _, h := range headers {
		d := core.DateOf(h.PurchasedAt)
		if year != 0 && d.Year() != year {
			continue
		}
		if month != 0 && d.MonthIndex() != month {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Get returns one header with its items, scoped to the owning user.
func (s *ExpenseService) Get(ctx context.Context, userEmail, expenseID string) (core.ExpenseHeader, []core.ExpenseItem, error) {
	header, err := s.repos.Expenses.Get(ctx, expenseID)
	if err != nil {
		return core.ExpenseHeader{}, nil, err
	}
	if header.UserEmail != userEmail {
		return core.ExpenseHeader{}, nil, &core.NotFoundError{Kind: "expense", ID: expenseID}
	}
	items, err := s.repos.Items.ListByExpense(ctx, expenseID)
	if err != nil {
		return core.ExpenseHeader{}, nil, err
	}
	return header, items, nil
}

func (s *ExpenseService) invalidate(userEmail string) {
	if s.cache != nil {
		s.cache.InvalidateUser(userEmail)
	}
}

func (s *ExpenseService) publish(ctx context.Context, eventType, userEmail, expenseID string) {
	if err := s.publisher.Publish(ctx, events.NewExpenseEvent(eventType, userEmail, expenseID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish expense event",
			"type", eventType, "expense_id", expenseID, "error", err)
	}
}
