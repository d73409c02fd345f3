// Package memory provides an in-process tabular store used as the default
// backend for local development and as the test double for the engine.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kanakku/internal/core"
	"kanakku/internal/tabular"
)

type row struct {
	ref    string
	values []string
}

// Store keeps rows per sheet with stable refs. Failure injection hooks let
// tests force a specific primitive to fail exactly once, which is how the
// compensating-rollback paths are exercised.
type Store struct {
	mu     sync.Mutex
	sheets map[string][]row
	nextID int

	failAppend map[string]error
	failUpdate map[string]error
	failDelete map[string]error
}

var (
	_ tabular.Store    = (*Store)(nil)
	_ tabular.Migrator = (*Store)(nil)
)

func New() *Store {
	return &Store{
		sheets:     make(map[string][]row),
		failAppend: make(map[string]error),
		failUpdate: make(map[string]error),
		failDelete: make(map[string]error),
	}
}

// EnsureSheet implements tabular.Migrator. Headers are implicit in memory;
// the sheet bucket is simply created.
func (s *Store) EnsureSheet(_ context.Context, sheet string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets[sheet]; !ok {
		s.sheets[sheet] = nil
	}
	return nil
}

func (s *Store) AppendRow(_ context.Context, sheet string, values []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(s.failAppend, sheet); err != nil {
		return "", err
	}
	s.nextID++
	r := row{ref: fmt.Sprintf("mem:%d", s.nextID), values: append([]string(nil), values...)}
	s.sheets[sheet] = append(s.sheets[sheet], r)
	return r.ref, nil
}

func (s *Store) UpdateRow(_ context.Context, sheet, ref string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(s.failUpdate, sheet); err != nil {
		return err
	}
	for i := range s.sheets[sheet] {
		if s.sheets[sheet][i].ref == ref {
			s.sheets[sheet][i].values = append([]string(nil), values...)
			return nil
		}
	}
	return &core.NotFoundError{Kind: "row", ID: ref}
}

func (s *Store) DeleteRow(_ context.Context, sheet, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(s.failDelete, sheet); err != nil {
		return err
	}
	rows := s.sheets[sheet]
	for i := range rows {
		if rows[i].ref == ref {
			s.sheets[sheet] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return &core.NotFoundError{Kind: "row", ID: ref}
}

func (s *Store) FindAll(_ context.Context, sheet string) ([]tabular.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets[sheet]
	out := make([]tabular.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, tabular.Row{Ref: r.ref, Values: append([]string(nil), r.values...)})
	}
	return out, nil
}

// FailNextAppend makes the next AppendRow on sheet return err.
func (s *Store) FailNextAppend(sheet string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend[sheet] = err
}

// FailNextUpdate makes the next UpdateRow on sheet return err.
func (s *Store) FailNextUpdate(sheet string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate[sheet] = err
}

// FailNextDelete makes the next DeleteRow on sheet return err.
func (s *Store) FailNextDelete(sheet string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[sheet] = err
}

func (s *Store) takeFailure(m map[string]error, sheet string) error {
	if err, ok := m[sheet]; ok && err != nil {
		delete(m, sheet)
		return err
	}
	return nil
}
